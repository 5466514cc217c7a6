package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemory_EntriesLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	repo := &Repository{ID: NewULID(), Name: "widget", Path: "/tmp/widget"}
	if err := m.SaveRepository(ctx, repo); err != nil {
		t.Fatalf("SaveRepository: %v", err)
	}

	entries := []CatalogEntry{
		{ID: NewULID(), Name: "overview", Title: "Overview", URL: "overview", Order: 0},
		{ID: NewULID(), Name: "api", Title: "API", URL: "api", Order: 1},
		{ID: NewULID(), Name: "internals", Title: "Internals", URL: "internals", Order: 2, IsDeleted: true},
	}
	if err := m.SaveEntries(ctx, repo.ID, entries); err != nil {
		t.Fatalf("SaveEntries: %v", err)
	}

	got, err := m.FindEntriesByRepository(ctx, repo.ID)
	if err != nil {
		t.Fatalf("FindEntriesByRepository: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected deleted entries filtered, got %d entries", len(got))
	}
	if got[0].Name != "overview" || got[1].Name != "api" {
		t.Errorf("entries out of order: %s, %s", got[0].Name, got[1].Name)
	}

	if err := m.MarkEntryCompleted(ctx, entries[0].ID); err != nil {
		t.Fatalf("MarkEntryCompleted: %v", err)
	}
	got, _ = m.FindEntriesByRepository(ctx, repo.ID)
	if !got[0].IsCompleted {
		t.Error("entry not marked completed")
	}
	if err := m.MarkEntryCompleted(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_MarkRepositoryEmbeddedIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	repo := &Repository{ID: "r1", Name: "widget"}
	if err := m.SaveRepository(ctx, repo); err != nil {
		t.Fatal(err)
	}

	if err := m.MarkRepositoryEmbedded(ctx, "r1"); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := m.MarkRepositoryEmbedded(ctx, "r1"); err != nil {
		t.Fatalf("re-mark should be a no-op: %v", err)
	}
	got, err := m.GetRepository(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsEmbedded {
		t.Error("repository not flagged embedded")
	}
}

func TestMemory_EntryContent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.SaveEntryContent(ctx, "e1", "# Overview\n\nbody"); err != nil {
		t.Fatal(err)
	}
	body, err := m.ReadEntryContent(ctx, "e1")
	if err != nil {
		t.Fatal(err)
	}
	if body != "# Overview\n\nbody" {
		t.Errorf("body = %q", body)
	}
	if _, err := m.ReadEntryContent(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNewULID_UniqueAndOrdered(t *testing.T) {
	seen := make(map[string]bool)
	prev := ""
	for i := 0; i < 1000; i++ {
		id := NewULID()
		if len(id) != 26 {
			t.Fatalf("ulid length = %d", len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate ulid %s", id)
		}
		seen[id] = true
		if id < prev {
			// Same-millisecond ids must still sort by sequence.
			t.Fatalf("ulid %s sorts before predecessor %s", id, prev)
		}
		prev = id
	}
}

func TestMemory_FindRepositoryByPath(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	repo := &Repository{ID: NewULID(), Name: "widget", Path: "/srv/widget", IngestSession: "s1"}
	if err := m.SaveRepository(ctx, repo); err != nil {
		t.Fatalf("SaveRepository: %v", err)
	}
	if err := m.SaveRepository(ctx, &Repository{ID: NewULID(), Name: "bare"}); err != nil {
		t.Fatal(err)
	}

	got, err := m.FindRepositoryByPath(ctx, "/srv/widget")
	if err != nil {
		t.Fatalf("FindRepositoryByPath: %v", err)
	}
	if got.ID != repo.ID || got.IngestSession != "s1" {
		t.Errorf("wrong repository: %+v", got)
	}

	if _, err := m.FindRepositoryByPath(ctx, "/srv/other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	// An empty path never matches, even against path-less records.
	if _, err := m.FindRepositoryByPath(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty path, got %v", err)
	}
}
