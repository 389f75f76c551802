package models

import (
	"encoding/json"
	"fmt"
)

// Operation is the kind of mutation a sync queue item carries.
type Operation string

const (
	OpCreateNode    Operation = "create-node"
	OpUpdateNode    Operation = "update-node"
	OpDeleteNode    Operation = "delete-node"
	OpCreateField   Operation = "create-field"
	OpUpdateField   Operation = "update-field"
	OpDeleteField   Operation = "delete-field"
	OpCreateHistory Operation = "create-history"
)

// EntityType names the collection an operation targets.
type EntityType string

const (
	EntityNode    EntityType = "node"
	EntityField   EntityType = "field"
	EntityHistory EntityType = "field-history"
)

// EntityTypeFor returns the entity type an operation targets.
func EntityTypeFor(op Operation) (EntityType, error) {
	switch op {
	case OpCreateNode, OpUpdateNode, OpDeleteNode:
		return EntityNode, nil
	case OpCreateField, OpUpdateField, OpDeleteField:
		return EntityField, nil
	case OpCreateHistory:
		return EntityHistory, nil
	}
	return "", fmt.Errorf("unknown operation %q", op)
}

// QueueStatus is the lifecycle state of a sync queue item.
type QueueStatus string

const (
	QueuePending QueueStatus = "pending"
	QueueSyncing QueueStatus = "syncing"
	QueueSynced  QueueStatus = "synced"
	QueueFailed  QueueStatus = "failed"
)

// SyncQueueItem is a durable record of a local mutation awaiting confirmation
// on the remote store. Payload is the JSON entity snapshot to apply remotely,
// decoded by DecodePayload keyed on Operation.
type SyncQueueItem struct {
	ID         int64           `json:"id"`
	Operation  Operation       `json:"operation"`
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  int64           `json:"timestamp"` // epoch ms, enqueue time
	Status     QueueStatus     `json:"status"`
	RetryCount int             `json:"retry_count"`
	LastError  string          `json:"last_error,omitempty"`
}

// Payload is the decoded form of a queue item payload: exactly one pointer is
// non-nil, determined by the item's operation.
type Payload struct {
	Node    *Node
	Field   *Field
	History *HistoryEntry
}

// DecodePayload unmarshals a queue payload into its operation-specific shape.
// Unknown operations are an error, not a silent pass-through, so push
// dispatch stays exhaustive.
func DecodePayload(op Operation, raw json.RawMessage) (Payload, error) {
	switch op {
	case OpCreateNode, OpUpdateNode, OpDeleteNode:
		var n Node
		if err := json.Unmarshal(raw, &n); err != nil {
			return Payload{}, fmt.Errorf("decode %s payload: %w", op, err)
		}
		return Payload{Node: &n}, nil
	case OpCreateField, OpUpdateField, OpDeleteField:
		var f Field
		if err := json.Unmarshal(raw, &f); err != nil {
			return Payload{}, fmt.Errorf("decode %s payload: %w", op, err)
		}
		return Payload{Field: &f}, nil
	case OpCreateHistory:
		var h HistoryEntry
		if err := json.Unmarshal(raw, &h); err != nil {
			return Payload{}, fmt.Errorf("decode %s payload: %w", op, err)
		}
		return Payload{History: &h}, nil
	}
	return Payload{}, fmt.Errorf("unknown operation %q", op)
}
