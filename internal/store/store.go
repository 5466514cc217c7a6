package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an entry or repository does not exist.
var ErrNotFound = errors.New("not found")

// Repository is a catalogued code repository. IngestSession records the
// memory-store session of the most recent ingestion so a rerun can purge
// stale memories before writing its own.
type Repository struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Path          string    `json:"path"`
	IsEmbedded    bool      `json:"is_embedded"`
	IngestSession string    `json:"ingest_session,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CatalogEntry is one node of a repository's documentation catalogue.
// URL is the slash-joined path of names from the root; ParentID is empty
// for top-level entries.
type CatalogEntry struct {
	ID           string    `json:"id"`
	RepositoryID string    `json:"repository_id"`
	Name         string    `json:"name"`
	Title        string    `json:"title"`
	Prompt       string    `json:"prompt"`
	URL          string    `json:"url"`
	ParentID     string    `json:"parent_id,omitempty"`
	Order        int       `json:"order"`
	IsCompleted  bool      `json:"is_completed"`
	IsDeleted    bool      `json:"is_deleted"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store is the persistence surface the pipeline depends on. The schema
// behind it is owned elsewhere; implementations only have to honor these
// operations.
type Store interface {
	SaveRepository(ctx context.Context, repo *Repository) error
	GetRepository(ctx context.Context, repoID string) (*Repository, error)
	// FindRepositoryByPath locates a repository by its filesystem path
	// so a resubmission reuses the existing record.
	FindRepositoryByPath(ctx context.Context, path string) (*Repository, error)

	// SaveEntries replaces the catalogue of a repository.
	SaveEntries(ctx context.Context, repoID string, entries []CatalogEntry) error
	// FindEntriesByRepository returns all catalogue entries of a
	// repository, completed or not, excluding deleted ones.
	FindEntriesByRepository(ctx context.Context, repoID string) ([]CatalogEntry, error)

	MarkEntryCompleted(ctx context.Context, entryID string) error

	// MarkRepositoryEmbedded flags a repository as fully embedded.
	// Idempotent: re-marking an embedded repository is a no-op.
	MarkRepositoryEmbedded(ctx context.Context, repoID string) error

	// SaveEntryContent stores the generated document body for an entry.
	SaveEntryContent(ctx context.Context, entryID, content string) error
	// ReadEntryContent returns the generated document body for an entry.
	ReadEntryContent(ctx context.Context, entryID string) (string, error)
}
