package crawler

import (
	"sync"

	"github.com/nao1215/spider/internal/model"
)

// Frontier tracks which URLs of one crawl are pending, in flight or
// visited. All methods are safe for concurrent use; the single mutex is
// the one synchronization point for the crawl state.
//
// A URL moves pending -> inflight (Pop or Claim) -> visited (Done), and
// is known to the frontier in exactly one of those states, so it is
// fetched at most once.
type Frontier struct {
	mu       sync.Mutex
	scope    model.Scope
	pending  []model.CanonicalURL
	queued   map[string]bool
	inflight map[string]bool
	visited  map[string]bool
}

// NewFrontier creates a frontier whose pending queue holds the scope base.
func NewFrontier(scope model.Scope) *Frontier {
	f := &Frontier{
		scope:    scope,
		pending:  make([]model.CanonicalURL, 0),
		queued:   make(map[string]bool),
		inflight: make(map[string]bool),
		visited:  make(map[string]bool),
	}
	f.pushLocked(scope.Base)
	return f
}

// Push appends u to the pending queue if it is in scope and not yet known.
// It reports whether u was added.
func (f *Frontier) Push(u model.CanonicalURL) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.scope.InScope(u) || f.knownLocked(u.Key()) {
		return false
	}
	f.pushLocked(u)
	return true
}

func (f *Frontier) pushLocked(u model.CanonicalURL) {
	f.queued[u.Key()] = true
	f.pending = append(f.pending, u)
}

// Pop removes up to n URLs from the head of the queue and marks them in
// flight. It returns nil when the queue is empty.
func (f *Frontier) Pop(n int) []model.CanonicalURL {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= 0 || len(f.pending) == 0 {
		return nil
	}
	n = min(n, len(f.pending))

	batch := make([]model.CanonicalURL, n)
	copy(batch, f.pending[:n])
	f.pending = f.pending[n:]
	for _, u := range batch {
		delete(f.queued, u.Key())
		f.inflight[u.Key()] = true
	}
	return batch
}

// Claim marks a redirect target in flight if it is not yet known.
// It reports whether the caller may fetch u.
func (f *Frontier) Claim(u model.CanonicalURL) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.knownLocked(u.Key()) {
		return false
	}
	f.inflight[u.Key()] = true
	return true
}

// Done marks in-flight URLs as visited.
func (f *Frontier) Done(urls ...model.CanonicalURL) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range urls {
		delete(f.inflight, u.Key())
		f.visited[u.Key()] = true
	}
}

// Known reports whether u is pending, in flight or visited.
func (f *Frontier) Known(u model.CanonicalURL) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.knownLocked(u.Key())
}

func (f *Frontier) knownLocked(key string) bool {
	return f.queued[key] || f.inflight[key] || f.visited[key]
}

// Visited reports whether u has been fetched.
func (f *Frontier) Visited(u model.CanonicalURL) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited[u.Key()]
}

// Pending returns the number of queued URLs.
func (f *Frontier) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// VisitedCount returns the number of fetched URLs.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Idle reports whether nothing is pending and nothing is in flight.
func (f *Frontier) Idle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending) == 0 && len(f.inflight) == 0
}
