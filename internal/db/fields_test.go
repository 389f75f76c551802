package db

import (
	"testing"

	"github.com/marcus/cardbox/internal/apperr"
	"github.com/marcus/cardbox/internal/models"
)

func makeNode(t *testing.T, database *DB, name string) *models.Node {
	t.Helper()
	n := &models.Node{Name: name, UpdatedBy: "dev-1"}
	if err := database.CreateNode(n); err != nil {
		t.Fatalf("create node: %v", err)
	}
	return n
}

func TestCreateFieldWritesHistoryAndQueueTriad(t *testing.T) {
	database := testDB(t)
	n := makeNode(t, database, "card")

	f := &models.Field{ParentNodeID: n.ID, Name: "color", Value: strptr("red"), UpdatedBy: "dev-1"}
	if err := database.CreateField(f); err != nil {
		t.Fatalf("create field: %v", err)
	}
	if len(f.ID) != 11 || f.ID[:3] != "fd-" {
		t.Errorf("id = %q, want fd- prefix with 8 hex chars", f.ID)
	}

	entries, err := database.GetFieldHistory(f.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history = %d entries, want 1", len(entries))
	}
	h := entries[0]
	if h.Rev != 0 || h.Action != models.HistoryCreate {
		t.Errorf("entry = %+v, want rev-0 create", h)
	}
	if h.ID != models.HistoryID(f.ID, 0) {
		t.Errorf("history id = %q, want deterministic field:rev form", h.ID)
	}
	if h.PrevValue != nil || h.NewValue == nil || *h.NewValue != "red" {
		t.Errorf("entry values = %+v", h)
	}

	// create-node, create-field, create-history in FIFO order.
	items, _ := database.PendingItems()
	if len(items) != 3 {
		t.Fatalf("queue = %d items, want 3", len(items))
	}
	if items[1].Operation != models.OpCreateField || items[2].Operation != models.OpCreateHistory {
		t.Errorf("queue order = %s, %s, %s", items[0].Operation, items[1].Operation, items[2].Operation)
	}
}

func TestUpdateFieldAppendsSequentialRevs(t *testing.T) {
	database := testDB(t)
	n := makeNode(t, database, "card")

	f := &models.Field{ParentNodeID: n.ID, Name: "status", Value: strptr("draft")}
	if err := database.CreateField(f); err != nil {
		t.Fatalf("create: %v", err)
	}

	f.Value = strptr("review")
	if err := database.UpdateField(f); err != nil {
		t.Fatalf("update: %v", err)
	}
	f.Value = strptr("done")
	if err := database.UpdateField(f); err != nil {
		t.Fatalf("second update: %v", err)
	}

	entries, err := database.GetFieldHistory(f.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("history = %d entries, want 3", len(entries))
	}
	for i, h := range entries {
		if h.Rev != i {
			t.Errorf("entry %d has rev %d", i, h.Rev)
		}
	}
	if *entries[1].PrevValue != "draft" || *entries[1].NewValue != "review" {
		t.Errorf("rev 1 = %+v, want draft -> review", entries[1])
	}
	if *entries[2].PrevValue != "review" || *entries[2].NewValue != "done" {
		t.Errorf("rev 2 = %+v, want review -> done", entries[2])
	}
}

func TestSoftDeleteFieldRecordsDeleteHistory(t *testing.T) {
	database := testDB(t)
	n := makeNode(t, database, "card")

	f := &models.Field{ParentNodeID: n.ID, Name: "tag", Value: strptr("urgent")}
	if err := database.CreateField(f); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := database.SoftDeleteField(f.ID, "dev-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	entries, _ := database.GetFieldHistory(f.ID)
	last := entries[len(entries)-1]
	if last.Action != models.HistoryDelete {
		t.Errorf("last action = %s, want delete", last.Action)
	}
	if last.PrevValue == nil || *last.PrevValue != "urgent" || last.NewValue != nil {
		t.Errorf("delete entry = %+v, want urgent -> nil", last)
	}
}

func TestSoftDeleteAbsentFieldIsNoOp(t *testing.T) {
	database := testDB(t)

	if err := database.SoftDeleteField("fd-missing1", "dev-1"); err != nil {
		t.Fatalf("delete of absent field must succeed, got %v", err)
	}
	count, _ := database.CountPending()
	if count != 0 {
		t.Errorf("no-op delete enqueued %d items", count)
	}
}

func TestSoftDeleteFieldTwiceKeepsOneHistoryEntry(t *testing.T) {
	database := testDB(t)
	n := makeNode(t, database, "card")

	f := &models.Field{ParentNodeID: n.ID, Name: "x", Value: strptr("1")}
	if err := database.CreateField(f); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := database.SoftDeleteField(f.ID, "dev-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := database.SoftDeleteField(f.ID, "dev-1"); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}

	entries, _ := database.GetFieldHistory(f.ID)
	if len(entries) != 2 { // create + one delete
		t.Fatalf("history = %d entries, want 2", len(entries))
	}
}

func TestRestoreFieldEmitsNoHistory(t *testing.T) {
	database := testDB(t)
	n := makeNode(t, database, "card")

	f := &models.Field{ParentNodeID: n.ID, Name: "x", Value: strptr("1")}
	if err := database.CreateField(f); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := database.SoftDeleteField(f.ID, "dev-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := database.RestoreField(f.ID, "dev-1"); err != nil {
		t.Fatalf("restore: %v", err)
	}

	got, err := database.GetField(f.ID)
	if err != nil {
		t.Fatalf("get after restore: %v", err)
	}
	if got.Deleted() {
		t.Error("restore left tombstone")
	}

	entries, _ := database.GetFieldHistory(f.ID)
	if len(entries) != 2 { // create + delete; restore adds nothing
		t.Errorf("history = %d entries, want 2", len(entries))
	}

	items, _ := database.PendingItems()
	last := items[len(items)-1]
	if last.Operation != models.OpUpdateField {
		t.Errorf("restore queued %s, want update-field", last.Operation)
	}
}

func TestRestoreFieldNotFound(t *testing.T) {
	database := testDB(t)

	err := database.RestoreField("fd-missing1", "dev-1")
	if !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("err = %v, want not-found", err)
	}
}

func TestCardOrderAssignment(t *testing.T) {
	database := testDB(t)
	n := makeNode(t, database, "card")

	var fields []*models.Field
	for _, name := range []string{"a", "b", "c"} {
		f := &models.Field{ParentNodeID: n.ID, Name: name, Value: strptr("v")}
		if err := database.CreateField(f); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		fields = append(fields, f)
	}
	for i, f := range fields {
		if f.CardOrder != i {
			t.Errorf("field %s order = %d, want %d", f.Name, f.CardOrder, i)
		}
	}

	// Orders of deleted fields stay reserved so a restore cannot collide.
	if err := database.SoftDeleteField(fields[2].ID, "dev-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	next := &models.Field{ParentNodeID: n.ID, Name: "d", Value: strptr("v")}
	if err := database.CreateField(next); err != nil {
		t.Fatalf("create after delete: %v", err)
	}
	if next.CardOrder != 3 {
		t.Errorf("order after delete = %d, want 3", next.CardOrder)
	}
}

func TestListFieldsOrderedAndExcludesDeleted(t *testing.T) {
	database := testDB(t)
	n := makeNode(t, database, "card")

	for _, name := range []string{"one", "two", "three"} {
		f := &models.Field{ParentNodeID: n.ID, Name: name, Value: strptr("v")}
		if err := database.CreateField(f); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	fields, err := database.ListFields(n.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(fields) != 3 || fields[0].Name != "one" || fields[2].Name != "three" {
		t.Fatalf("fields = %+v, want creation order", fields)
	}

	if err := database.SoftDeleteField(fields[1].ID, "dev-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	fields, _ = database.ListFields(n.ID)
	if len(fields) != 2 {
		t.Errorf("list after delete = %d fields, want 2", len(fields))
	}

	deleted, err := database.ListDeletedFields(n.ID)
	if err != nil {
		t.Fatalf("list deleted: %v", err)
	}
	if len(deleted) != 1 || deleted[0].Name != "two" {
		t.Errorf("deleted = %+v", deleted)
	}
}

func TestUpsertHistoryEntryIdempotent(t *testing.T) {
	database := testDB(t)

	h := &models.HistoryEntry{
		ID: models.HistoryID("fd-aaaa0001", 0), DataFieldID: "fd-aaaa0001",
		ParentNodeID: "nd-x", Action: models.HistoryCreate,
		NewValue: strptr("v"), UpdatedAt: 10, Rev: 0,
	}
	if err := database.UpsertHistoryEntry(h); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := database.UpsertHistoryEntry(h); err != nil {
		t.Fatalf("repeat upsert: %v", err)
	}

	ids, err := database.AllHistoryIDs()
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if len(ids) != 1 || !ids[h.ID] {
		t.Errorf("ids = %v, want exactly the one entry", ids)
	}
}
