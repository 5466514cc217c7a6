package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store for tests and single-process runs.
type Memory struct {
	mu      sync.Mutex
	repos   map[string]*Repository
	entries map[string]map[string]*CatalogEntry // repoID -> entryID -> entry
	content map[string]string                   // entryID -> document body
}

func NewMemory() *Memory {
	return &Memory{
		repos:   make(map[string]*Repository),
		entries: make(map[string]map[string]*CatalogEntry),
		content: make(map[string]string),
	}
}

func (m *Memory) SaveRepository(_ context.Context, repo *Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *repo
	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.repos[cp.ID] = &cp
	return nil
}

func (m *Memory) GetRepository(_ context.Context, repoID string) (*Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo, ok := m.repos[repoID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *repo
	return &cp, nil
}

func (m *Memory) FindRepositoryByPath(_ context.Context, path string) (*Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if path == "" {
		return nil, ErrNotFound
	}
	for _, repo := range m.repos {
		if repo.Path == path {
			cp := *repo
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) SaveEntries(_ context.Context, repoID string, entries []CatalogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket := make(map[string]*CatalogEntry, len(entries))
	now := time.Now()
	for i := range entries {
		cp := entries[i]
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		cp.RepositoryID = repoID
		bucket[cp.ID] = &cp
	}
	m.entries[repoID] = bucket
	return nil
}

func (m *Memory) FindEntriesByRepository(_ context.Context, repoID string) ([]CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.entries[repoID]
	if !ok {
		return nil, nil
	}
	out := make([]CatalogEntry, 0, len(bucket))
	for _, e := range bucket {
		if e.IsDeleted {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].URL < out[j].URL
	})
	return out, nil
}

func (m *Memory) MarkEntryCompleted(_ context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bucket := range m.entries {
		if e, ok := bucket[entryID]; ok {
			e.IsCompleted = true
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) MarkRepositoryEmbedded(_ context.Context, repoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo, ok := m.repos[repoID]
	if !ok {
		return ErrNotFound
	}
	if repo.IsEmbedded {
		return nil
	}
	repo.IsEmbedded = true
	repo.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) SaveEntryContent(_ context.Context, entryID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[entryID] = content
	return nil
}

func (m *Memory) ReadEntryContent(_ context.Context, entryID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.content[entryID]
	if !ok {
		return "", ErrNotFound
	}
	return body, nil
}
