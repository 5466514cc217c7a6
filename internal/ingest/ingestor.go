package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alexchenyu/OpenDeepWiki/internal/budget"
	"github.com/alexchenyu/OpenDeepWiki/internal/catalog"
	"github.com/alexchenyu/OpenDeepWiki/internal/llmretry"
	"github.com/alexchenyu/OpenDeepWiki/internal/memstore"
	"github.com/alexchenyu/OpenDeepWiki/internal/parser"
	"github.com/alexchenyu/OpenDeepWiki/internal/store"
)

// MemoryWriter is the slice of the memory store client the ingestor
// needs. Satisfied by *memstore.Client.
type MemoryWriter interface {
	AddMemory(ctx context.Context, req memstore.AddRequest) error
	// DeleteAll removes every memory written under a session id.
	DeleteAll(ctx context.Context, runID string) error
}

// Options tune one Ingestor.
type Options struct {
	Workers          int
	Retries          int
	BreakerThreshold int
	ProgressEvery    int
	MaxContentTokens int
}

// Stats aggregates the outcome of one ingestion run.
type Stats struct {
	mu sync.Mutex

	Processed int
	Succeeded int
	Failed    int
	Skipped   int

	EntriesTripped bool
	FilesTripped   bool
}

func (s *Stats) record(logger *slog.Logger, every int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processed++
	if err != nil {
		s.Failed++
	} else {
		s.Succeeded++
	}
	if every > 0 && s.Processed%every == 0 {
		logger.Info("ingestion progress",
			"processed", s.Processed, "succeeded", s.Succeeded, "failed", s.Failed, "skipped", s.Skipped)
	}
}

func (s *Stats) skip() {
	s.mu.Lock()
	s.Skipped++
	s.mu.Unlock()
}

// Ingestor embeds a repository's generated documentation and source
// files into the memory store. Two phases run per invocation: first the
// completed catalogue entries, then the repository files. Each phase has
// its own circuit breaker; tripping one abandons the remainder of that
// phase but keeps completed work.
type Ingestor struct {
	store  store.Store
	memory MemoryWriter
	est    budget.Estimator
	opts   Options
	logger *slog.Logger
}

func NewIngestor(st store.Store, memory MemoryWriter, est budget.Estimator, opts Options, logger *slog.Logger) *Ingestor {
	if opts.Workers <= 0 {
		opts.Workers = 3
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = 5
	}
	return &Ingestor{store: st, memory: memory, est: est, opts: opts, logger: logger}
}

// Run ingests one repository under a fresh session id. Session ids are
// never shared across runs; at-least-once delivery per item, idempotent
// completion flag.
func (ing *Ingestor) Run(ctx context.Context, repoID, repoRoot string, files []catalog.PathInfo) (*Stats, error) {
	sessionID := store.NewULID()
	stats := &Stats{}
	log := ing.logger.With("repo", repoID, "session", sessionID)
	log.Info("ingestion start", "files", catalog.CountFiles(files))

	// A rerun supersedes whatever a previous session wrote for this
	// repository; purge it before claiming the new session.
	if repo, err := ing.store.GetRepository(ctx, repoID); err == nil {
		if repo.IngestSession != "" {
			if err := ing.memory.DeleteAll(ctx, repo.IngestSession); err != nil {
				log.Warn("stale session cleanup failed", "stale_session", repo.IngestSession, "error", err)
			}
		}
		repo.IngestSession = sessionID
		if err := ing.store.SaveRepository(ctx, repo); err != nil {
			return stats, fmt.Errorf("record ingest session: %w", err)
		}
	}

	entryBreaker := NewBreaker(ing.opts.BreakerThreshold)
	if err := ing.ingestEntries(ctx, log, repoID, sessionID, entryBreaker, stats); err != nil {
		return stats, err
	}
	stats.EntriesTripped = entryBreaker.Tripped()
	if stats.EntriesTripped {
		log.Warn("catalogue entry phase tripped", "processed", stats.Processed)
	}

	fileBreaker := NewBreaker(ing.opts.BreakerThreshold)
	if err := ing.ingestFiles(ctx, log, repoID, repoRoot, sessionID, fileBreaker, stats, files); err != nil {
		return stats, err
	}
	stats.FilesTripped = fileBreaker.Tripped()
	if stats.FilesTripped {
		log.Warn("file phase tripped", "processed", stats.Processed)
	}

	if !stats.EntriesTripped && !stats.FilesTripped {
		if err := ing.store.MarkRepositoryEmbedded(ctx, repoID); err != nil {
			return stats, fmt.Errorf("mark repository embedded: %w", err)
		}
	}
	log.Info("ingestion done",
		"processed", stats.Processed, "succeeded", stats.Succeeded,
		"failed", stats.Failed, "skipped", stats.Skipped,
		"entries_tripped", stats.EntriesTripped, "files_tripped", stats.FilesTripped)
	return stats, nil
}

func (ing *Ingestor) ingestEntries(ctx context.Context, log *slog.Logger, repoID, sessionID string, breaker *Breaker, stats *Stats) error {
	entries, err := ing.store.FindEntriesByRepository(ctx, repoID)
	if err != nil {
		return fmt.Errorf("find catalogue entries: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.opts.Workers)
	for i := range entries {
		entry := entries[i]
		// Only completed, non-deleted entries are eligible.
		if !entry.IsCompleted || entry.IsDeleted {
			stats.skip()
			continue
		}
		if breaker.Tripped() {
			break
		}
		g.Go(func() error {
			if breaker.Tripped() {
				stats.skip()
				return nil
			}
			body, err := ing.store.ReadEntryContent(gctx, entry.ID)
			if err != nil {
				log.Warn("entry content unavailable", "entry", entry.URL, "error", err)
				breaker.RecordFailure()
				stats.record(log, ing.opts.ProgressEvery, err)
				return nil
			}
			err = ing.submitWithRetry(gctx, body, memstore.AddRequest{
				RunID:      sessionID,
				MemoryType: "semantic",
				Metadata: memstore.SanitizeMetadata(map[string]any{
					"kind":     "catalogue_entry",
					"node_id":  entry.URL,
					"title":    entry.Title,
					"entry_id": entry.ID,
				}),
			})
			if err != nil {
				log.Warn("entry ingestion failed", "entry", entry.URL, "error", err)
				breaker.RecordFailure()
			} else {
				breaker.RecordSuccess()
			}
			stats.record(log, ing.opts.ProgressEvery, err)
			return nil
		})
	}
	return g.Wait()
}

func (ing *Ingestor) ingestFiles(ctx context.Context, log *slog.Logger, repoID, repoRoot, sessionID string, breaker *Breaker, stats *Stats, files []catalog.PathInfo) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.opts.Workers)
	for i := range files {
		info := files[i]
		if info.Kind != catalog.KindFile {
			continue
		}
		if !parser.IsExtractable(info.Path) {
			stats.skip()
			continue
		}
		if breaker.Tripped() {
			break
		}
		g.Go(func() error {
			if breaker.Tripped() {
				stats.skip()
				return nil
			}
			text, err := ing.extractFile(repoRoot, info.Path)
			if errors.Is(err, parser.ErrBinary) {
				stats.skip()
				return nil
			}
			if err != nil {
				log.Warn("file extraction failed", "path", info.Path, "error", err)
				breaker.RecordFailure()
				stats.record(log, ing.opts.ProgressEvery, err)
				return nil
			}
			err = ing.submitWithRetry(gctx, text, memstore.AddRequest{
				RunID:      sessionID,
				MemoryType: "semantic",
				Metadata: memstore.SanitizeMetadata(map[string]any{
					"kind":    "repository_file",
					"node_id": info.Path,
					"repo":    repoID,
				}),
			})
			if err != nil {
				log.Warn("file ingestion failed", "path", info.Path, "error", err)
				breaker.RecordFailure()
			} else {
				breaker.RecordSuccess()
			}
			stats.record(log, ing.opts.ProgressEvery, err)
			return nil
		})
	}
	return g.Wait()
}

func (ing *Ingestor) extractFile(root, relPath string) (string, error) {
	f, err := os.Open(filepath.Join(root, relPath))
	if err != nil {
		return "", err
	}
	defer f.Close()
	return parser.ExtractText(f, relPath)
}

// submitWithRetry pushes one piece of content into the memory store.
// Token-limit failures shrink the content and resubmit; other failures
// get a short incremental delay.
func (ing *Ingestor) submitWithRetry(ctx context.Context, content string, req memstore.AddRequest) error {
	maxTokens := ing.opts.MaxContentTokens
	shrink := 0
	var lastErr error
	for attempt := 0; attempt < ing.opts.Retries; attempt++ {
		body := content
		if maxTokens > 0 {
			body = ing.est.Truncate(content, budget.ShrinkForAttempt(maxTokens, shrink))
		}
		req.Messages = []memstore.Message{{Role: "user", Content: body}}
		lastErr = ing.memory.AddMemory(ctx, req)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if llmretry.Classify(lastErr) == llmretry.KindTokenLimit {
			// Resubmit immediately with smaller content.
			shrink++
			continue
		}
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(time.Duration(attempt+1) * 200 * time.Millisecond):
		}
	}
	return lastErr
}
