package searcher

import (
	"sync"
)

// Searcher is a reusable execution context for a single beam search.
//
// Searcher is NOT thread-safe. It is owned by one goroutine between
// Pool.Get and Pool.Put.
type Searcher struct {
	// Visited tracks visited nodes during graph traversal.
	Visited *VisitedSet

	// Candidates is a min-heap of nodes still to explore.
	Candidates *PriorityQueue

	// Results is a bounded max-heap holding the best ef nodes found so far.
	Results *PriorityQueue
}

// New creates a Searcher sized for capacity nodes.
func New(capacity int) *Searcher {
	return &Searcher{
		Visited:    NewVisitedSet(capacity),
		Candidates: NewPriorityQueue(false),
		Results:    NewPriorityQueue(true),
	}
}

// Reset clears all state so the Searcher can run another traversal.
func (s *Searcher) Reset() {
	s.Visited.Reset()
	s.Candidates.Reset()
	s.Results.Reset()
}

// Pool recycles Searchers across traversals.
type Pool struct {
	pool sync.Pool
}

// NewPool returns a pool whose fresh Searchers are sized for capacity nodes.
func NewPool(capacity int) *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any { return New(capacity) },
		},
	}
}

// Get returns a reset Searcher able to track at least capacity nodes.
func (p *Pool) Get(capacity int) *Searcher {
	s := p.pool.Get().(*Searcher)
	s.Visited.EnsureCapacity(capacity)
	return s
}

// Put resets s and returns it to the pool.
func (p *Pool) Put(s *Searcher) {
	if s == nil {
		return
	}
	s.Reset()
	p.pool.Put(s)
}
