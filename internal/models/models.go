package models

import "strconv"

// Node is a hierarchical record. ParentID is empty for roots; a non-empty
// ParentID names another node, though traversals never assume the tree is
// acyclic (see internal/tree).
type Node struct {
	ID        string `json:"id"`
	ParentID  string `json:"parent_id,omitempty"`
	Name      string `json:"name"`
	Subtitle  string `json:"subtitle,omitempty"`
	UpdatedBy string `json:"updated_by,omitempty"`
	UpdatedAt int64  `json:"updated_at"` // epoch ms
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

// Deleted reports whether the node is soft-deleted.
func (n *Node) Deleted() bool { return n.DeletedAt != nil }

// Field is a key/value card attached to a node. CardOrder defines display
// order within the owning node; values are unique per node but gap-tolerant.
type Field struct {
	ID           string  `json:"id"`
	ParentNodeID string  `json:"parent_node_id"`
	Name         string  `json:"name"`
	Value        *string `json:"value,omitempty"`
	CardOrder    int     `json:"card_order"`
	UpdatedBy    string  `json:"updated_by,omitempty"`
	UpdatedAt    int64   `json:"updated_at"`
	DeletedAt    *int64  `json:"deleted_at,omitempty"`
}

// Deleted reports whether the field is soft-deleted.
func (f *Field) Deleted() bool { return f.DeletedAt != nil }

// HistoryAction is the kind of field edit a history entry records.
type HistoryAction string

const (
	HistoryCreate HistoryAction = "create"
	HistoryUpdate HistoryAction = "update"
	HistoryDelete HistoryAction = "delete"
)

// IsValidHistoryAction checks if an action is one of create/update/delete.
func IsValidHistoryAction(a HistoryAction) bool {
	switch a {
	case HistoryCreate, HistoryUpdate, HistoryDelete:
		return true
	}
	return false
}

// HistoryEntry is one immutable revision in a field's append-only edit
// history. ID is always "{fieldID}:{rev}"; revs are contiguous from 0.
type HistoryEntry struct {
	ID           string        `json:"id"`
	DataFieldID  string        `json:"data_field_id"`
	ParentNodeID string        `json:"parent_node_id"`
	Action       HistoryAction `json:"action"`
	PrevValue    *string       `json:"prev_value,omitempty"`
	NewValue     *string       `json:"new_value,omitempty"`
	UpdatedBy    string        `json:"updated_by,omitempty"`
	UpdatedAt    int64         `json:"updated_at"`
	Rev          int           `json:"rev"`
}

// HistoryID builds the deterministic history entry id for a field revision.
func HistoryID(fieldID string, rev int) string {
	return fieldID + ":" + strconv.Itoa(rev)
}
