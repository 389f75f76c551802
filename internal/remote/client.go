// Package remote is the HTTP client for the cardbox-sync server. It
// implements store.Remote over the /v1 JSON API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/marcus/cardbox/internal/apperr"
	"github.com/marcus/cardbox/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("server unavailable")
)

// pageSize is the listing page size requested from the server.
const pageSize = 500

// Client is an HTTP client for the cardbox-sync server.
type Client struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	HTTP     *http.Client
}

// New creates a new remote client.
func New(baseURL, apiKey, deviceID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Wire types (mirrors internal/server, independently defined) ---

// writeOp is the body for POST /v1/{collection}/write.
type writeOp struct {
	Op         string `json:"op"`
	Record     any    `json:"record"`
	ServerTime bool   `json:"server_time,omitempty"`
}

type writeResponse struct {
	Record json.RawMessage `json:"record"`
}

type listResponse struct {
	Records     json.RawMessage `json:"records"`
	NextAfterID string          `json:"next_after_id"`
}

type changesResponse struct {
	Records json.RawMessage `json:"records"`
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response from GET /v1/sync/status.
type StatusResponse struct {
	Nodes        int `json:"nodes"`
	DeletedNodes int `json:"deleted_nodes"`
	Fields       int `json:"fields"`
	History      int `json:"history"`
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, "GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches server-side collection counts.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, "GET", "/v1/sync/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Write methods ---

// write posts a single WriteOp and decodes the stored record into out.
func (c *Client) write(ctx context.Context, collection, op string, record, out any) error {
	var resp writeResponse
	if err := c.do(ctx, "POST", "/v1/"+collection+"/write", writeOp{
		Op:         op,
		Record:     record,
		ServerTime: true,
	}, &resp); err != nil {
		return err
	}
	if out != nil && len(resp.Record) > 0 {
		if err := json.Unmarshal(resp.Record, out); err != nil {
			return fmt.Errorf("unmarshal stored record: %w", err)
		}
	}
	return nil
}

// UpsertNode pushes a node. The server assigns updated_at; the passed
// node is updated in place with the stored record.
func (c *Client) UpsertNode(ctx context.Context, n *models.Node) error {
	return c.write(ctx, "nodes", "upsert", n, n)
}

// SoftDeleteNode pushes a node tombstone. The server assigns both
// updated_at and deleted_at.
func (c *Client) SoftDeleteNode(ctx context.Context, n *models.Node) error {
	return c.write(ctx, "nodes", "soft-delete", n, n)
}

// UpsertField pushes a field.
func (c *Client) UpsertField(ctx context.Context, f *models.Field) error {
	return c.write(ctx, "fields", "upsert", f, f)
}

// SoftDeleteField pushes a field tombstone.
func (c *Client) SoftDeleteField(ctx context.Context, f *models.Field) error {
	return c.write(ctx, "fields", "soft-delete", f, f)
}

// InsertHistory pushes a history entry. Entries are immutable on the
// server; duplicate pushes are accepted and ignored.
func (c *Client) InsertHistory(ctx context.Context, h *models.HistoryEntry) error {
	return c.write(ctx, "history", "upsert", h, h)
}

// --- List methods ---

// ListNodes fetches the complete nodes collection, paging internally.
func (c *Client) ListNodes(ctx context.Context) ([]models.Node, error) {
	var out []models.Node
	err := c.listPages(ctx, "nodes", func(records json.RawMessage) (int, error) {
		var page []models.Node
		if err := json.Unmarshal(records, &page); err != nil {
			return 0, err
		}
		out = append(out, page...)
		return len(page), nil
	})
	return out, err
}

// ListFields fetches the complete fields collection, paging internally.
func (c *Client) ListFields(ctx context.Context) ([]models.Field, error) {
	var out []models.Field
	err := c.listPages(ctx, "fields", func(records json.RawMessage) (int, error) {
		var page []models.Field
		if err := json.Unmarshal(records, &page); err != nil {
			return 0, err
		}
		out = append(out, page...)
		return len(page), nil
	})
	return out, err
}

// ListHistory fetches the complete history collection, paging internally.
func (c *Client) ListHistory(ctx context.Context) ([]models.HistoryEntry, error) {
	var out []models.HistoryEntry
	err := c.listPages(ctx, "history", func(records json.RawMessage) (int, error) {
		var page []models.HistoryEntry
		if err := json.Unmarshal(records, &page); err != nil {
			return 0, err
		}
		out = append(out, page...)
		return len(page), nil
	})
	return out, err
}

// listPages walks the after_id cursor until the server returns a short page.
func (c *Client) listPages(ctx context.Context, collection string, decode func(json.RawMessage) (int, error)) error {
	afterID := ""
	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(pageSize))
		if afterID != "" {
			params.Set("after_id", afterID)
		}

		var resp listResponse
		if err := c.do(ctx, "GET", "/v1/"+collection+"?"+params.Encode(), nil, &resp); err != nil {
			return err
		}
		if len(resp.Records) > 0 {
			if _, err := decode(resp.Records); err != nil {
				return fmt.Errorf("unmarshal %s page: %w", collection, err)
			}
		}
		if resp.NextAfterID == "" {
			return nil
		}
		afterID = resp.NextAfterID
	}
}

// --- Delta methods ---

// NodesChangedSince fetches nodes with updated_at after sinceMS.
func (c *Client) NodesChangedSince(ctx context.Context, sinceMS int64) ([]models.Node, error) {
	var resp changesResponse
	path := "/v1/nodes/changes?since=" + strconv.FormatInt(sinceMS, 10)
	if err := c.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}
	var out []models.Node
	if len(resp.Records) > 0 {
		if err := json.Unmarshal(resp.Records, &out); err != nil {
			return nil, fmt.Errorf("unmarshal node changes: %w", err)
		}
	}
	return out, nil
}

// FieldsChangedSince fetches fields with updated_at after sinceMS.
func (c *Client) FieldsChangedSince(ctx context.Context, sinceMS int64) ([]models.Field, error) {
	var resp changesResponse
	path := "/v1/fields/changes?since=" + strconv.FormatInt(sinceMS, 10)
	if err := c.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}
	var out []models.Field
	if len(resp.Records) > 0 {
		if err := json.Unmarshal(resp.Records, &out); err != nil {
			return nil, fmt.Errorf("unmarshal field changes: %w", err)
		}
	}
	return out, nil
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.DeviceID)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.CodeUnavailable, "server unreachable", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return c.statusError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// statusError maps an HTTP error status to the app error taxonomy so the
// sync engine can decide whether a queue item is worth retrying.
func (c *Client) statusError(status int, body []byte) error {
	var wrapper struct {
		Error apiError `json:"error"`
	}
	var apiErr apiError
	msg := ""
	if json.Unmarshal(body, &wrapper) == nil && wrapper.Error.Code != "" {
		apiErr = wrapper.Error
		msg = apiErr.Message
	}

	switch {
	case status == http.StatusUnauthorized:
		return apperr.Wrap(apperr.CodeUnauthorized, "", fmt.Errorf("%w: %s", ErrUnauthorized, msg))
	case status == http.StatusNotFound:
		return apperr.Wrap(apperr.CodeNotFound, "", fmt.Errorf("%w: %s", ErrNotFound, msg))
	case status >= 500:
		return apperr.Wrap(apperr.CodeUnavailable, "", fmt.Errorf("%w: HTTP %d: %s", ErrUnavailable, status, msg))
	case msg != "":
		return apperr.Wrap(apperr.CodeValidation, "", &apiErr)
	default:
		return apperr.Newf(apperr.CodeValidation, "HTTP %d: %s", status, string(body))
	}
}
