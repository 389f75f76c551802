package db

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const (
	nodeIDPrefix  = "nd-"
	fieldIDPrefix = "fd-"
)

// NormalizeNodeID ensures a node ID has the nd- prefix.
// Accepts bare hex IDs like "a1b2c3d4" and returns "nd-a1b2c3d4".
func NormalizeNodeID(id string) string {
	if id == "" {
		return id
	}
	if !strings.HasPrefix(id, nodeIDPrefix) {
		return nodeIDPrefix + id
	}
	return id
}

// NormalizeFieldID ensures a field ID has the fd- prefix.
func NormalizeFieldID(id string) string {
	if id == "" {
		return id
	}
	if !strings.HasPrefix(id, fieldIDPrefix) {
		return fieldIDPrefix + id
	}
	return id
}

// generateNodeID generates a unique node ID (8 hex characters).
func generateNodeID() (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return nodeIDPrefix + hex.EncodeToString(bytes), nil
}

// generateFieldID generates a unique field ID (8 hex characters).
func generateFieldID() (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return fieldIDPrefix + hex.EncodeToString(bytes), nil
}
