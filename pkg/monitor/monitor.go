// Package monitor is the live sync dashboard: queue tail, cycle state,
// and manual sync triggers, refreshed on a timer.
package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/cardbox/internal/db"
	"github.com/marcus/cardbox/internal/models"
	cbsync "github.com/marcus/cardbox/internal/sync"
)

const (
	refreshEvery = 2 * time.Second
	tailLen      = 15
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
)

type tickMsg time.Time

type snapshot struct {
	items    []models.SyncQueueItem
	pending  int64
	lastSync int64
	err      error
}

// Model is the bubbletea model for the monitor view.
type Model struct {
	database *db.DB
	manager  *cbsync.Manager
	spin     spinner.Model

	snap   snapshot
	width  int
	height int
}

// New creates a monitor over an open database and a started manager.
func New(database *db.DB, manager *cbsync.Manager) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = pendingStyle
	return Model{database: database, manager: manager, spin: sp}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.refresh, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// refresh reads the queue state. Runs off the update loop as a tea.Cmd.
func (m Model) refresh() tea.Msg {
	var s snapshot
	s.items, s.err = m.database.QueueTail(tailLen)
	if s.err != nil {
		return s
	}
	s.pending, s.err = m.database.CountPending()
	if s.err != nil {
		return s
	}
	s.lastSync, s.err = m.database.LastSyncTimestamp()
	return s
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "s":
			m.manager.TriggerSync()
			return m, m.refresh
		case "o":
			m.manager.NotifyOnline()
			return m, m.refresh
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(m.refresh, tick())

	case snapshot:
		m.snap = msg

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("cardbox sync monitor"))
	b.WriteString("\n\n")

	syncing, enabled, lastRun, lastErr := m.manager.Status()
	switch {
	case !enabled:
		b.WriteString(subtleStyle.Render("● sync disabled"))
	case syncing:
		b.WriteString(m.spin.View() + " syncing")
	case lastErr != nil:
		b.WriteString(failStyle.Render("● last cycle failed: " + lastErr.Error()))
	default:
		b.WriteString(okStyle.Render("● idle"))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("queued %s   last cycle %s   watermark %s\n\n",
		pendingStyle.Render(fmt.Sprintf("%d", m.snap.pending)),
		subtleStyle.Render(relTime(lastRun)),
		subtleStyle.Render(relMS(m.snap.lastSync))))

	if m.snap.err != nil {
		b.WriteString(failStyle.Render("read queue: "+m.snap.err.Error()) + "\n")
	} else if len(m.snap.items) == 0 {
		b.WriteString(subtleStyle.Render("queue empty, everything replicated") + "\n")
	} else {
		for _, item := range m.snap.items {
			b.WriteString(queueLine(item) + "\n")
		}
	}

	b.WriteString(helpStyle.Render("s sync now · o back online · q quit"))
	return b.String()
}

func queueLine(item models.SyncQueueItem) string {
	status := pendingStyle.Render(string(item.Status))
	if item.Status == models.QueueFailed {
		status = failStyle.Render(fmt.Sprintf("failed(%d)", item.RetryCount))
	}
	line := fmt.Sprintf("  %-14s %-12s %s", item.Operation, item.EntityID, status)
	if item.LastError != "" {
		line += "  " + subtleStyle.Render(truncate(item.LastError, 40))
	}
	return line
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func relTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return relMS(t.UnixMilli())
}

func relMS(ms int64) string {
	if ms == 0 {
		return "never"
	}
	d := time.Since(time.UnixMilli(ms)).Round(time.Second)
	if d < time.Second {
		return "just now"
	}
	return d.String() + " ago"
}
