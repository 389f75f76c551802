package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/marcus/cardbox/internal/models"
)

func newTestServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	store, err := NewStoreForConn(conn)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}

	srv := NewServer(Config{APIKey: apiKey}, store)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postWrite(t *testing.T, ts *httptest.Server, collection string, op WriteOp) *http.Response {
	t.Helper()
	body, err := json.Marshal(op)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(ts.URL+"/v1/"+collection+"/write", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, "secret")

	resp, err := http.Get(ts.URL + "/v1/nodes")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest("GET", ts.URL+"/v1/nodes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get with key: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("status with key = %d, want 200", resp2.StatusCode)
	}
}

func TestWriteStampsServerTime(t *testing.T) {
	ts := newTestServer(t, "")

	record, _ := json.Marshal(models.Node{ID: "nd-aaaa0001", Name: "inbox", UpdatedAt: 42})
	resp := postWrite(t, ts, "nodes", WriteOp{Op: "upsert", Record: record, ServerTime: true})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var wr struct {
		Record models.Node `json:"record"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if wr.Record.UpdatedAt == 42 {
		t.Error("server did not replace client timestamp")
	}
	if wr.Record.UpdatedAt <= 0 {
		t.Errorf("updated_at = %d, want server clock", wr.Record.UpdatedAt)
	}
}

func TestSoftDeleteStampsTombstone(t *testing.T) {
	ts := newTestServer(t, "")

	record, _ := json.Marshal(models.Node{ID: "nd-aaaa0002", Name: "temp", UpdatedAt: 1})
	resp := postWrite(t, ts, "nodes", WriteOp{Op: "upsert", Record: record, ServerTime: true})
	resp.Body.Close()

	resp = postWrite(t, ts, "nodes", WriteOp{Op: "soft-delete", Record: record, ServerTime: true})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var wr struct {
		Record models.Node `json:"record"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if wr.Record.DeletedAt == nil {
		t.Fatal("deleted_at not set")
	}
	if *wr.Record.DeletedAt != wr.Record.UpdatedAt {
		t.Errorf("deleted_at = %d, updated_at = %d, want equal", *wr.Record.DeletedAt, wr.Record.UpdatedAt)
	}
}

func TestWriteRejectsBadOp(t *testing.T) {
	ts := newTestServer(t, "")

	record, _ := json.Marshal(models.Node{ID: "nd-aaaa0003", Name: "x"})
	resp := postWrite(t, ts, "nodes", WriteOp{Op: "hard-delete", Record: record})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHistoryRejectsSoftDelete(t *testing.T) {
	ts := newTestServer(t, "")

	record, _ := json.Marshal(models.HistoryEntry{ID: "fd-x:0", DataFieldID: "fd-x", Action: models.HistoryCreate})
	resp := postWrite(t, ts, "history", WriteOp{Op: "soft-delete", Record: record})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListPagination(t *testing.T) {
	ts := newTestServer(t, "")

	for i := 0; i < 7; i++ {
		record, _ := json.Marshal(models.Node{
			ID:        fmt.Sprintf("nd-%08d", i),
			Name:      fmt.Sprintf("node %d", i),
			UpdatedAt: int64(i + 1),
		})
		resp := postWrite(t, ts, "nodes", WriteOp{Op: "upsert", Record: record})
		resp.Body.Close()
	}

	var got []models.Node
	afterID := ""
	pages := 0
	for {
		url := ts.URL + "/v1/nodes?limit=3"
		if afterID != "" {
			url += "&after_id=" + afterID
		}
		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		var lr struct {
			Records     []models.Node `json:"records"`
			NextAfterID string        `json:"next_after_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
			t.Fatalf("decode: %v", err)
		}
		resp.Body.Close()
		got = append(got, lr.Records...)
		pages++
		if lr.NextAfterID == "" {
			break
		}
		afterID = lr.NextAfterID
	}

	if len(got) != 7 {
		t.Errorf("got %d nodes, want 7", len(got))
	}
	if pages < 3 {
		t.Errorf("walked %d pages, want at least 3", pages)
	}
	for i := 1; i < len(got); i++ {
		if got[i].ID <= got[i-1].ID {
			t.Fatalf("ids not strictly ascending: %s then %s", got[i-1].ID, got[i].ID)
		}
	}
}

func TestChangesSince(t *testing.T) {
	ts := newTestServer(t, "")

	// Client timestamps are preserved when server_time is off.
	for i, ms := range []int64{100, 200, 300} {
		record, _ := json.Marshal(models.Node{
			ID:        fmt.Sprintf("nd-ch%06d", i),
			Name:      "n",
			UpdatedAt: ms,
		})
		resp := postWrite(t, ts, "nodes", WriteOp{Op: "upsert", Record: record})
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/v1/nodes/changes?since=150")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var cr struct {
		Records []models.Node `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cr.Records) != 2 {
		t.Fatalf("got %d changed nodes, want 2", len(cr.Records))
	}
	for _, n := range cr.Records {
		if n.UpdatedAt <= 150 {
			t.Errorf("node %s updated_at %d not after watermark", n.ID, n.UpdatedAt)
		}
	}
}

func TestUnknownCollection(t *testing.T) {
	ts := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/v1/widgets")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSyncStatusCounts(t *testing.T) {
	ts := newTestServer(t, "")

	record, _ := json.Marshal(models.Node{ID: "nd-st000001", Name: "a", UpdatedAt: 1})
	resp := postWrite(t, ts, "nodes", WriteOp{Op: "upsert", Record: record})
	resp.Body.Close()
	resp = postWrite(t, ts, "nodes", WriteOp{Op: "soft-delete", Record: record})
	resp.Body.Close()

	sresp, err := http.Get(ts.URL + "/v1/sync/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer sresp.Body.Close()

	var st StoreStatus
	if err := json.NewDecoder(sresp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Nodes != 1 || st.DeletedNodes != 1 {
		t.Errorf("status = %+v, want 1 node, 1 deleted", st)
	}
}
