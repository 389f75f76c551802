// Package output provides styled terminal output helpers (success, error,
// warning, record formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/cardbox/internal/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	deletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Strikethrough(true)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// FormatTimeAgo renders an epoch-millisecond timestamp relative to now.
func FormatTimeAgo(ms int64) string {
	if ms == 0 {
		return "never"
	}
	t := time.UnixMilli(ms)
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// NodeOneLiner formats a node for listings: id, name, subtitle, age.
func NodeOneLiner(n *models.Node) string {
	var b strings.Builder
	b.WriteString(subtleStyle.Render(n.ID))
	b.WriteString("  ")
	if n.Deleted() {
		b.WriteString(deletedStyle.Render(n.Name))
	} else {
		b.WriteString(titleStyle.Render(n.Name))
	}
	if n.Subtitle != "" {
		b.WriteString("  " + subtleStyle.Render(n.Subtitle))
	}
	b.WriteString("  " + subtleStyle.Render(FormatTimeAgo(n.UpdatedAt)))
	return b.String()
}

// FieldLine formats one field row for node show output.
func FieldLine(f *models.Field) string {
	name := f.Name
	if f.Deleted() {
		name = deletedStyle.Render(name)
	} else {
		name = titleStyle.Render(name)
	}
	val := subtleStyle.Render("(empty)")
	if f.Value != nil {
		val = valueStyle.Render(*f.Value)
	}
	return fmt.Sprintf("  %s %s = %s", subtleStyle.Render(f.ID), name, val)
}

// HistoryLine formats one history entry for the history command.
func HistoryLine(h *models.HistoryEntry) string {
	arrow := func(v *string) string {
		if v == nil {
			return subtleStyle.Render("∅")
		}
		return valueStyle.Render(*v)
	}
	who := h.UpdatedBy
	if who == "" {
		who = "unknown"
	}
	return fmt.Sprintf("  r%-3d %-7s %s -> %s  %s",
		h.Rev, h.Action, arrow(h.PrevValue), arrow(h.NewValue),
		subtleStyle.Render(who+", "+FormatTimeAgo(h.UpdatedAt)))
}

// SectionHeader renders a bold section title.
func SectionHeader(title string) string {
	return titleStyle.Render(title)
}

// Subtle renders dim helper text.
func Subtle(s string) string {
	return subtleStyle.Render(s)
}
