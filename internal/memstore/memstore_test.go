package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexchenyu/OpenDeepWiki/internal/llmretry"
)

func TestSanitizeNodeID(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"src/parser.go", "src_parser.go"},
		{"has spaces here", "has_spaces_here"},
		{"scoped:name", "scoped_name"},
		{"back\\slash", "back_slash"},
		{"multi---dash", "multi_dash"},
		{"--trimmed--", "trimmed"},
		{"a__b___c", "a_b_c"},
		{"already_clean", "already_clean"},
		{"42-start", "n_42_start"},
		{"", "node"},
		{"---", "node"},
	}
	for _, c := range cases {
		if got := SanitizeNodeID(c.in); got != c.want {
			t.Errorf("SanitizeNodeID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeMetadata(t *testing.T) {
	meta := map[string]any{
		"relationship": "depends on",
		"entry_id":     "docs/guide",
		"run_id":       "run:123", // identifier reserved for the store, left alone
		"lines":        42,
	}
	got := SanitizeMetadata(meta)
	if got["relationship"] != "depends_on" {
		t.Errorf("relationship = %v", got["relationship"])
	}
	if got["entry_id"] != "docs_guide" {
		t.Errorf("entry_id = %v", got["entry_id"])
	}
	if got["run_id"] != "run:123" {
		t.Errorf("run_id should pass through, got %v", got["run_id"])
	}
	if got["lines"] != 42 {
		t.Errorf("non-string value changed: %v", got["lines"])
	}
}

func TestAddMemory_SendsAuthAndBody(t *testing.T) {
	var gotAuth string
	var gotReq AddRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/memories/" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 0)
	err := c.AddMemory(context.Background(), AddRequest{
		Messages: []Message{{Role: "user", Content: "file contents"}},
		RunID:    "session-1",
		Metadata: map[string]any{"path": "a/b.go"},
	})
	if err != nil {
		t.Fatalf("AddMemory: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.RunID != "session-1" || len(gotReq.Messages) != 1 {
		t.Errorf("unexpected body: %+v", gotReq)
	}
}

func TestAddMemory_RequiresIdentifier(t *testing.T) {
	c := NewClient("http://unused", "k", 0)
	err := c.AddMemory(context.Background(), AddRequest{
		Messages: []Message{{Role: "user", Content: "x"}},
	})
	if err == nil {
		t.Fatal("expected error when no identifier is set")
	}
}

func TestAddMemory_ErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		want   llmretry.Kind
	}{
		{http.StatusTooManyRequests, llmretry.KindRateLimit},
		{http.StatusRequestEntityTooLarge, llmretry.KindTokenLimit},
		{http.StatusInternalServerError, llmretry.KindNetwork},
		{http.StatusBadGateway, llmretry.KindNetwork},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
		}))
		client := NewClient(srv.URL, "k", 0)
		err := client.AddMemory(context.Background(), AddRequest{
			Messages: []Message{{Role: "user", Content: "x"}},
			RunID:    "r",
		})
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", c.status)
		}
		var typed *llmretry.Error
		if !errors.As(err, &typed) || typed.Kind != c.want {
			t.Errorf("status %d: classified as %v, want %s", c.status, err, c.want)
		}
	}

	// Client errors other than 429/413 are terminal, not retryable.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	client := NewClient(srv.URL, "k", 0)
	err := client.AddMemory(context.Background(), AddRequest{
		Messages: []Message{{Role: "user", Content: "x"}},
		RunID:    "r",
	})
	var typed *llmretry.Error
	if errors.As(err, &typed) {
		t.Errorf("400 should not carry a retry kind, got %s", typed.Kind)
	}
}

func TestSearch_DecodesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"memory":"m1"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", 0)
	raw, err := c.Search(context.Background(), SearchRequest{Query: "parser", RunID: "r"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	var payload struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(payload.Results) != 1 {
		t.Errorf("results = %v", payload.Results)
	}
}
