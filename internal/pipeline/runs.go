package pipeline

import (
	"sync"
	"time"
)

// RunStatus is the state of a documentation run.
type RunStatus string

const (
	StatusQueued     RunStatus = "queued"
	StatusScanning   RunStatus = "scanning"
	StatusGenerating RunStatus = "generating"
	StatusPersisting RunStatus = "persisting"
	StatusIngesting  RunStatus = "ingesting"
	StatusCompleted  RunStatus = "completed"
	StatusPartial    RunStatus = "partial"
	StatusFailed     RunStatus = "failed"
)

// Run tracks one repository documentation run end to end.
type Run struct {
	mu sync.Mutex

	ID       string    `json:"run_id"`
	RepoID   string    `json:"repo_id"`
	RepoName string    `json:"repo_name"`
	Path     string    `json:"path"`
	Status   RunStatus `json:"status"`

	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	steps  []StepResult
	errors []string
}

// Progress aggregates per-run counters.
type Progress struct {
	FilesScanned   int      `json:"files_scanned"`
	CatalogEntries int      `json:"catalog_entries"`
	ItemsIngested  int      `json:"items_ingested"`
	ItemsFailed    int      `json:"items_failed"`
	InputTokens    int64    `json:"input_tokens"`
	OutputTokens   int64    `json:"output_tokens"`
	Errors         []string `json:"errors"`
}

func (r *Run) SetStatus(status RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = status
	r.UpdatedAt = time.Now()
}

func (r *Run) AddStep(result StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, result)
	if !result.Success {
		r.errors = append(r.errors, result.ErrorMessage)
		r.Progress.Errors = r.errors
	}
	r.UpdatedAt = time.Now()
}

func (r *Run) AddError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
	r.Progress.Errors = r.errors
	r.UpdatedAt = time.Now()
}

func (r *Run) Update(fn func(p *Progress)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.Progress)
	r.UpdatedAt = time.Now()
}

// RunSnapshot is a read-only, JSON-safe copy of run state.
type RunSnapshot struct {
	ID       string       `json:"run_id"`
	RepoID   string       `json:"repo_id"`
	RepoName string       `json:"repo_name"`
	Path     string       `json:"path"`
	Status   RunStatus    `json:"status"`
	Progress Progress     `json:"progress"`
	Steps    []StepResult `json:"steps"`
}

func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := r.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	steps := make([]StepResult, len(r.steps))
	copy(steps, r.steps)
	progress := r.Progress
	progress.Errors = errs
	return RunSnapshot{
		ID:       r.ID,
		RepoID:   r.RepoID,
		RepoName: r.RepoName,
		Path:     r.Path,
		Status:   r.Status,
		Progress: progress,
		Steps:    steps,
	}
}

// RunStore is a thread-safe in-memory run registry with TTL eviction.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewRunStore(ttl time.Duration) *RunStore {
	return &RunStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
	}
}

func (s *RunStore) Put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

func (s *RunStore) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// Cleanup removes runs idle past the TTL.
func (s *RunStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, run := range s.runs {
		run.mu.Lock()
		idle := now.Sub(run.UpdatedAt)
		run.mu.Unlock()
		if idle > s.ttl {
			delete(s.runs, id)
		}
	}
}
