// Package sync implements the replication engine: draining the local
// write queue to the remote store, pulling remote state back, and
// resolving conflicts in the remote's favor unless a local write is
// still waiting to be pushed.
package sync

import (
	"github.com/marcus/cardbox/internal/store"
)

// Mode selects the pull strategy for a sync cycle.
type Mode int

const (
	// ModeDelta pulls only records changed since the last watermark.
	// It never observes remote hard-deletes.
	ModeDelta Mode = iota
	// ModeFull pulls entire collections and reconciles local rows that
	// have vanished from the remote.
	ModeFull
)

func (m Mode) String() string {
	if m == ModeFull {
		return "full"
	}
	return "delta"
}

// PushResult summarizes one drain of the sync queue.
type PushResult struct {
	Pushed int
	Failed int
}

// PullResult summarizes one pull pass.
type PullResult struct {
	NodesApplied   int
	NodesSkipped   int
	FieldsApplied  int
	FieldsSkipped  int
	HistoryApplied int
	NodesPurged    int
	FieldsPurged   int
}

// Result is the outcome of a complete sync cycle.
type Result struct {
	Mode Mode
	Push PushResult
	Pull PullResult
}

// Engine runs sync cycles against a local and a remote store.
type Engine struct {
	local    store.Local
	remote   store.Remote
	deviceID string
}

// NewEngine creates an Engine bound to the given stores.
func NewEngine(local store.Local, remote store.Remote, deviceID string) *Engine {
	return &Engine{local: local, remote: remote, deviceID: deviceID}
}
