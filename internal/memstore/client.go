package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alexchenyu/OpenDeepWiki/internal/llmretry"
)

// Client communicates with the memory store HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a client for the store at baseURL. rps bounds the
// client-side request rate; zero or negative disables the limiter.
func NewClient(baseURL, apiKey string, rps float64) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Message is one conversational turn attached to a memory.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AddRequest is the body for POST /memories/. At least one of UserID,
// AgentID or RunID must be set; the server rejects the request otherwise.
type AddRequest struct {
	Messages   []Message      `json:"messages"`
	UserID     string         `json:"user_id,omitempty"`
	AgentID    string         `json:"agent_id,omitempty"`
	RunID      string         `json:"run_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	MemoryType string         `json:"memory_type,omitempty"`
}

// SearchRequest is the body for POST /search.
type SearchRequest struct {
	Query   string         `json:"query"`
	UserID  string         `json:"user_id,omitempty"`
	RunID   string         `json:"run_id,omitempty"`
	AgentID string         `json:"agent_id,omitempty"`
	Filters map[string]any `json:"filters,omitempty"`
	Limit   int            `json:"limit,omitempty"`
}

// AddMemory stores the request's messages under its identifiers.
func (c *Client) AddMemory(ctx context.Context, req AddRequest) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("add memory: no messages")
	}
	if req.UserID == "" && req.AgentID == "" && req.RunID == "" {
		return fmt.Errorf("add memory: at least one of user_id, agent_id, run_id is required")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}
	return c.post(ctx, "/memories/", body, nil)
}

// Search runs a semantic search and decodes the raw result payload.
func (c *Client) Search(ctx context.Context, req SearchRequest) (json.RawMessage, error) {
	if req.UserID == "" && req.AgentID == "" && req.RunID == "" {
		return nil, fmt.Errorf("search: at least one of user_id, agent_id, run_id is required")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal search: %w", err)
	}
	var out json.RawMessage
	if err := c.post(ctx, "/search", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAll removes every memory under a run id. Used when a run is
// restarted from scratch.
func (c *Client) DeleteAll(ctx context.Context, runID string) error {
	if runID == "" {
		return fmt.Errorf("delete memories: run id is required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate wait: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/memories/?run_id="+runID, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return llmretry.NewError(llmretry.KindNetwork, "delete memories", err)
	}
	defer resp.Body.Close()
	return c.checkStatus("delete memories", resp)
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate wait: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return llmretry.NewError(llmretry.KindNetwork, "post "+path, err)
	}
	defer resp.Body.Close()
	if err := c.checkStatus("post "+path, resp); err != nil {
		return err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// checkStatus maps HTTP failures onto the retry taxonomy so callers can
// decide retry eligibility without sniffing messages.
func (c *Client) checkStatus(op string, resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return llmretry.NewError(llmretry.KindRateLimit, op, statusError(resp))
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return llmretry.NewError(llmretry.KindTokenLimit, op, statusError(resp))
	case resp.StatusCode >= 500:
		return llmretry.NewError(llmretry.KindNetwork, op, statusError(resp))
	default:
		return fmt.Errorf("%s: %w", op, statusError(resp))
	}
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
}
