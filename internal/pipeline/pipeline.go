package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexchenyu/OpenDeepWiki/internal/catalog"
	"github.com/alexchenyu/OpenDeepWiki/internal/generate"
	"github.com/alexchenyu/OpenDeepWiki/internal/ingest"
	"github.com/alexchenyu/OpenDeepWiki/internal/store"
)

// DefaultIgnorePatterns excludes VCS metadata and build output from
// scanning.
var DefaultIgnorePatterns = []string{
	".git/", ".hg/", ".svn/",
	"node_modules/", "vendor/", "target/", "dist/", "build/",
	".idea/", ".vscode/", "__pycache__/",
}

// Options tune the pipeline.
type Options struct {
	Workers            int
	QueueSize          int
	RunTTL             time.Duration
	ScanTimeout        time.Duration
	PersistTimeout     time.Duration
	IngestTimeout      time.Duration
	LargeRepoThreshold int
	IgnorePatterns     []string
}

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 16
	}
	if o.RunTTL <= 0 {
		o.RunTTL = time.Hour
	}
	if o.ScanTimeout <= 0 {
		o.ScanTimeout = time.Minute
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = time.Minute
	}
	if o.LargeRepoThreshold <= 0 {
		o.LargeRepoThreshold = 500
	}
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = DefaultIgnorePatterns
	}
}

// Pipeline drives a documentation run through its steps: scan the
// repository, generate the catalogue, persist the entries, then embed
// everything. Failed steps end the run; nothing here panics the process.
type Pipeline struct {
	scanner  *catalog.Scanner
	stage    *generate.Stage
	store    store.Store
	ingestor *ingest.Ingestor
	runs     *RunStore
	opts     Options
	log      *slog.Logger

	queue  chan *Run
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(stage *generate.Stage, st store.Store, ingestor *ingest.Ingestor, opts Options, log *slog.Logger) *Pipeline {
	opts.defaults()
	return &Pipeline{
		scanner:  catalog.NewScanner(log),
		stage:    stage,
		store:    st,
		ingestor: ingestor,
		runs:     NewRunStore(opts.RunTTL),
		opts:     opts,
		log:      log,
		queue:    make(chan *Run, opts.QueueSize),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for range p.opts.Workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case run, ok := <-p.queue:
					if !ok {
						return
					}
					p.Process(workerCtx, run)
				}
			}
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				p.runs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts the pipeline down.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	close(p.queue)
	p.wg.Wait()
}

// Submit queues a run for a repository path.
func (p *Pipeline) Submit(repoName, path string) (*Run, error) {
	run := &Run{
		ID:        store.NewULID(),
		RepoID:    store.NewULID(),
		RepoName:  repoName,
		Path:      path,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	p.runs.Put(run)
	select {
	case p.queue <- run:
		return run, nil
	default:
		run.SetStatus(StatusFailed)
		run.AddError("run queue is full")
		return nil, fmt.Errorf("run queue is full (%d)", p.opts.QueueSize)
	}
}

// GetRun returns a run by id.
func (p *Pipeline) GetRun(id string) *Run {
	return p.runs.Get(id)
}

// QueueDepth returns the current queue depth.
func (p *Pipeline) QueueDepth() int {
	return len(p.queue)
}

// Process runs all steps for one run. Store access happens in short
// scoped calls; nothing is held open across the minutes-scale
// generation step.
func (p *Pipeline) Process(ctx context.Context, run *Run) {
	log := p.log.With("run_id", run.ID, "repo", run.RepoName)

	run.SetStatus(StatusScanning)
	var infos []catalog.PathInfo
	var structure string
	res := RunStep(ctx, log, "scan", p.opts.ScanTimeout, func(stepCtx context.Context) error {
		var err error
		infos, err = p.scanner.Scan(run.Path, catalog.NewGlobMatcher(p.opts.IgnorePatterns))
		if err != nil {
			return err
		}
		fileCount := catalog.CountFiles(infos)
		run.Update(func(pr *Progress) { pr.FilesScanned = fileCount })
		if fileCount >= p.opts.LargeRepoThreshold {
			structure = catalog.Summarize(infos)
		} else {
			structure = catalog.BuildTree(infos).RenderIndented()
		}
		return nil
	})
	run.AddStep(res)
	if !res.Success {
		run.SetStatus(StatusFailed)
		return
	}

	// A resubmission of the same path reuses the repository record so
	// the ingestor can purge the previous session's memories. The
	// embedded flag resets; this run re-embeds from scratch.
	repo := &store.Repository{
		ID:   run.RepoID,
		Name: run.RepoName,
		Path: run.Path,
	}
	if existing, err := p.store.FindRepositoryByPath(ctx, run.Path); err == nil {
		repo.ID = existing.ID
		repo.IngestSession = existing.IngestSession
		run.mu.Lock()
		run.RepoID = existing.ID
		run.mu.Unlock()
	}
	if err := p.store.SaveRepository(ctx, repo); err != nil {
		run.AddError(fmt.Sprintf("save repository: %v", err))
		run.SetStatus(StatusFailed)
		return
	}

	// The generation step manages its own per-attempt timeouts; no
	// store handle crosses into it.
	run.SetStatus(StatusGenerating)
	var genResult *generate.Result
	res = RunStep(ctx, log, "generate", 0, func(stepCtx context.Context) error {
		genResult = p.stage.Run(stepCtx, generate.Request{
			RepoID:    run.RepoID,
			RepoName:  run.RepoName,
			Root:      run.Path,
			Structure: structure,
		})
		run.Update(func(pr *Progress) {
			pr.InputTokens += genResult.Usage.InputTokens
			pr.OutputTokens += genResult.Usage.OutputTokens
		})
		if genResult.Failed {
			return fmt.Errorf("%s", genResult.ErrorMessage)
		}
		return nil
	})
	run.AddStep(res)
	if !res.Success {
		run.SetStatus(StatusFailed)
		return
	}

	run.SetStatus(StatusPersisting)
	res = RunStep(ctx, log, "persist", p.opts.PersistTimeout, func(stepCtx context.Context) error {
		if err := p.store.SaveEntries(stepCtx, run.RepoID, genResult.Entries); err != nil {
			return fmt.Errorf("save entries: %w", err)
		}
		for _, entry := range genResult.Entries {
			body := fmt.Sprintf("# %s\n\n%s\n", entry.Title, entry.Prompt)
			if err := p.store.SaveEntryContent(stepCtx, entry.ID, body); err != nil {
				return fmt.Errorf("save entry content %s: %w", entry.URL, err)
			}
			if err := p.store.MarkEntryCompleted(stepCtx, entry.ID); err != nil {
				return fmt.Errorf("complete entry %s: %w", entry.URL, err)
			}
		}
		run.Update(func(pr *Progress) { pr.CatalogEntries = len(genResult.Entries) })
		return nil
	})
	run.AddStep(res)
	if !res.Success {
		run.SetStatus(StatusFailed)
		return
	}

	run.SetStatus(StatusIngesting)
	res = RunStep(ctx, log, "ingest", p.opts.IngestTimeout, func(stepCtx context.Context) error {
		stats, err := p.ingestor.Run(stepCtx, run.RepoID, run.Path, infos)
		if stats != nil {
			run.Update(func(pr *Progress) {
				pr.ItemsIngested = stats.Succeeded
				pr.ItemsFailed = stats.Failed
			})
		}
		if err != nil {
			return err
		}
		if stats.EntriesTripped || stats.FilesTripped {
			return fmt.Errorf("ingestion tripped (entries=%v files=%v)", stats.EntriesTripped, stats.FilesTripped)
		}
		return nil
	})
	run.AddStep(res)
	if !res.Success {
		// The catalogue is already persisted at this point, so a
		// failed or tripped ingestion leaves usable partial output.
		run.SetStatus(StatusPartial)
		return
	}

	run.SetStatus(StatusCompleted)
	log.Info("run completed",
		"files", catalog.CountFiles(infos),
		"entries", len(genResult.Entries))
}
