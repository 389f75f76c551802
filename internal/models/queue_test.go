package models

import (
	"encoding/json"
	"testing"
)

func TestDecodePayloadPerOperation(t *testing.T) {
	nodeJSON, _ := json.Marshal(Node{ID: "nd-11111111", Name: "inbox"})
	fieldJSON, _ := json.Marshal(Field{ID: "fd-22222222", ParentNodeID: "nd-11111111", Name: "status"})
	histJSON, _ := json.Marshal(HistoryEntry{ID: "fd-22222222:0", DataFieldID: "fd-22222222", Action: HistoryCreate})

	cases := []struct {
		op   Operation
		raw  json.RawMessage
		want EntityType
	}{
		{OpCreateNode, nodeJSON, EntityNode},
		{OpUpdateNode, nodeJSON, EntityNode},
		{OpDeleteNode, nodeJSON, EntityNode},
		{OpCreateField, fieldJSON, EntityField},
		{OpUpdateField, fieldJSON, EntityField},
		{OpDeleteField, fieldJSON, EntityField},
		{OpCreateHistory, histJSON, EntityHistory},
	}

	for _, tc := range cases {
		p, err := DecodePayload(tc.op, tc.raw)
		if err != nil {
			t.Fatalf("%s: %v", tc.op, err)
		}
		switch tc.want {
		case EntityNode:
			if p.Node == nil || p.Field != nil || p.History != nil {
				t.Errorf("%s: want only Node set, got %+v", tc.op, p)
			}
		case EntityField:
			if p.Field == nil || p.Node != nil || p.History != nil {
				t.Errorf("%s: want only Field set, got %+v", tc.op, p)
			}
		case EntityHistory:
			if p.History == nil || p.Node != nil || p.Field != nil {
				t.Errorf("%s: want only History set, got %+v", tc.op, p)
			}
		}

		et, err := EntityTypeFor(tc.op)
		if err != nil {
			t.Fatalf("EntityTypeFor(%s): %v", tc.op, err)
		}
		if et != tc.want {
			t.Errorf("EntityTypeFor(%s) = %s, want %s", tc.op, et, tc.want)
		}
	}
}

func TestDecodePayloadUnknownOperation(t *testing.T) {
	if _, err := DecodePayload(Operation("truncate-node"), json.RawMessage(`{}`)); err == nil {
		t.Fatal("want error for unknown operation")
	}
	if _, err := EntityTypeFor(Operation("truncate-node")); err == nil {
		t.Fatal("want error for unknown operation")
	}
}
