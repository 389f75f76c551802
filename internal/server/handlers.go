package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/marcus/cardbox/internal/models"
)

// Collection names accepted in /v1/{collection} routes.
const (
	CollectionNodes   = "nodes"
	CollectionFields  = "fields"
	CollectionHistory = "history"
)

// WriteOp is the request body for POST /v1/{collection}/write. When
// ServerTime is set the server stamps updated_at (and deleted_at for
// soft deletes) with its own clock and the response carries the record
// actually stored.
type WriteOp struct {
	Op         string          `json:"op"` // "upsert" or "soft-delete"
	Record     json.RawMessage `json:"record"`
	ServerTime bool            `json:"server_time,omitempty"`
}

// WriteResponse returns the record as stored, server timestamps included.
type WriteResponse struct {
	Record any `json:"record"`
}

// ListResponse is a page of records. NextAfterID is empty on the last page.
type ListResponse struct {
	Records     any    `json:"records"`
	NextAfterID string `json:"next_after_id,omitempty"`
}

// ChangesResponse carries all records changed since a watermark.
type ChangesResponse struct {
	Records any `json:"records"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Status()
	if err != nil {
		slog.Error("store status", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to read store status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")

	var op WriteOp
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if op.Op != "upsert" && op.Op != "soft-delete" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "op must be upsert or soft-delete")
		return
	}
	if len(op.Record) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "record is required")
		return
	}

	var stored any
	var err error

	switch collection {
	case CollectionNodes:
		var n models.Node
		if jerr := json.Unmarshal(op.Record, &n); jerr != nil || n.ID == "" {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid node record")
			return
		}
		if op.Op == "soft-delete" {
			stored, err = s.store.SoftDeleteNode(n, op.ServerTime)
		} else {
			stored, err = s.store.UpsertNode(n, op.ServerTime)
		}

	case CollectionFields:
		var f models.Field
		if jerr := json.Unmarshal(op.Record, &f); jerr != nil || f.ID == "" {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid field record")
			return
		}
		if op.Op == "soft-delete" {
			stored, err = s.store.SoftDeleteField(f, op.ServerTime)
		} else {
			stored, err = s.store.UpsertField(f, op.ServerTime)
		}

	case CollectionHistory:
		if op.Op == "soft-delete" {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "history entries cannot be deleted")
			return
		}
		var h models.HistoryEntry
		if jerr := json.Unmarshal(op.Record, &h); jerr != nil || h.ID == "" {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid history record")
			return
		}
		if !models.IsValidHistoryAction(h.Action) {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid history action")
			return
		}
		stored, err = s.store.InsertHistory(h, op.ServerTime)

	default:
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown collection")
		return
	}

	if err != nil {
		slog.Error("write record", "collection", collection, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to store record")
		return
	}
	writeJSON(w, http.StatusOK, WriteResponse{Record: stored})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	afterID := r.URL.Query().Get("after_id")

	limit := MaxPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	switch collection {
	case CollectionNodes:
		nodes, err := s.store.ListNodes(afterID, limit)
		if err != nil {
			slog.Error("list nodes", "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list nodes")
			return
		}
		resp := ListResponse{Records: nodes}
		if len(nodes) == limit {
			resp.NextAfterID = nodes[len(nodes)-1].ID
		}
		writeJSON(w, http.StatusOK, resp)

	case CollectionFields:
		fields, err := s.store.ListFields(afterID, limit)
		if err != nil {
			slog.Error("list fields", "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list fields")
			return
		}
		resp := ListResponse{Records: fields}
		if len(fields) == limit {
			resp.NextAfterID = fields[len(fields)-1].ID
		}
		writeJSON(w, http.StatusOK, resp)

	case CollectionHistory:
		entries, err := s.store.ListHistory(afterID, limit)
		if err != nil {
			slog.Error("list history", "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list history")
			return
		}
		resp := ListResponse{Records: entries}
		if len(entries) == limit {
			resp.NextAfterID = entries[len(entries)-1].ID
		}
		writeJSON(w, http.StatusOK, resp)

	default:
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown collection")
	}
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")

	since := int64(0)
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "since must be a unix millisecond timestamp")
			return
		}
		since = n
	}

	switch collection {
	case CollectionNodes:
		nodes, err := s.store.NodesChangedSince(since)
		if err != nil {
			slog.Error("nodes changed since", "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list changes")
			return
		}
		writeJSON(w, http.StatusOK, ChangesResponse{Records: nodes})

	case CollectionFields:
		fields, err := s.store.FieldsChangedSince(since)
		if err != nil {
			slog.Error("fields changed since", "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list changes")
			return
		}
		writeJSON(w, http.StatusOK, ChangesResponse{Records: fields})

	default:
		// History is append-only and fully replicated by listing, so
		// the changes endpoint covers nodes and fields only.
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown collection")
	}
}
