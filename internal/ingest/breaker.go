package ingest

import "sync"

// Breaker is a trip-only circuit breaker. Each ingestion phase owns one:
// consecutive failures up to the threshold trip it, after which no new
// work is dispatched for that phase. In-flight tasks drain normally and
// a tripped breaker never resets within the run.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	failures  int
	tripped   bool
}

func NewBreaker(threshold int) *Breaker {
	return &Breaker{threshold: threshold}
}

// RecordFailure counts one failed task and trips the breaker when the
// consecutive-failure threshold is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.tripped = true
	}
}

// RecordSuccess resets the consecutive-failure count. It never untrips.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// Tripped reports whether the phase should stop dispatching.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}
