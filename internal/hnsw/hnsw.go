package hnsw

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/hnswgo/internal/graph"
	"github.com/hupe1980/hnswgo/internal/level"
	"github.com/hupe1980/hnswgo/internal/searcher"
	"github.com/hupe1980/hnswgo/internal/vectorstore"
	"github.com/hupe1980/hnswgo/model"
)

const (
	// minimumM is the minimum valid value for M.
	minimumM = 2

	// DefaultM is the default number of bidirectional links.
	DefaultM = 16

	// DefaultEFConstruction is the default construction beam width.
	DefaultEFConstruction = 200
)

var (
	// ErrEmptyGraph is returned when searching a graph without nodes.
	ErrEmptyGraph = errors.New("graph is empty")
	// ErrInvalidK is returned for k < 1.
	ErrInvalidK = errors.New("k must be positive")
)

// Options represents the options for configuring HNSW.
type Options struct {
	M              int
	EFConstruction int
	// RandomSeed seeds level assignment. Nil seeds from the clock.
	RandomSeed *uint64
}

// DefaultOptions contains the default options for HNSW.
var DefaultOptions = Options{
	M:              DefaultM,
	EFConstruction: DefaultEFConstruction,
}

// HNSW is a layered proximity graph over the rows of a vector store.
//
// HNSW performs no locking. Readers (Search, Plan, Stats) may run
// concurrently with each other and with Store.MarkDeleted; Commit, Insert,
// Reset require exclusive access.
type HNSW struct {
	opts    Options
	vectors *vectorstore.Store
	graph   *graph.Graph
	levels  *level.Assigner
	pool    *searcher.Pool

	// epoch changes whenever the graph is replaced wholesale (Reset).
	epoch uint64
}

// New creates an empty graph over vectors.
func New(vectors *vectorstore.Store, optFns ...func(o *Options)) (*HNSW, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if vectors == nil {
		return nil, errors.New("hnsw: vector store is required")
	}
	if opts.M < minimumM {
		return nil, fmt.Errorf("hnsw: M must be >= %d, got %d", minimumM, opts.M)
	}
	if opts.EFConstruction < 1 {
		return nil, fmt.Errorf("hnsw: EFConstruction must be positive, got %d", opts.EFConstruction)
	}

	var seed uint64
	if opts.RandomSeed != nil {
		seed = *opts.RandomSeed
	} else {
		seed = uint64(time.Now().UnixNano())
	}

	return &HNSW{
		opts:    opts,
		vectors: vectors,
		graph:   graph.New(opts.M, vectors.Distance),
		levels:  level.New(opts.M, seed),
		pool:    searcher.NewPool(vectors.Capacity()),
	}, nil
}

// M returns the per-layer connection bound above layer 0.
func (h *HNSW) M() int { return h.opts.M }

// EFConstruction returns the construction beam width.
func (h *HNSW) EFConstruction() int { return h.opts.EFConstruction }

// Vectors returns the underlying vector store.
func (h *HNSW) Vectors() *vectorstore.Store { return h.vectors }

// Graph returns the underlying layered graph.
func (h *HNSW) Graph() *graph.Graph { return h.graph }

// SampleLevel draws the level for a new node.
func (h *HNSW) SampleLevel() int { return h.levels.Sample() }

// EntryPoint returns the entry point and the maximum level.
func (h *HNSW) EntryPoint() (model.RowID, int, bool) {
	ep, ok := h.graph.EntryPoint()
	return ep, h.graph.MaxLevel(), ok
}

// Reset drops all nodes. The vector store is reset separately.
func (h *HNSW) Reset() {
	h.graph.Reset()
	h.epoch++
}

// Clone returns a deep copy bound to vectors, which must be a clone of the
// current store.
func (h *HNSW) Clone(vectors *vectorstore.Store) *HNSW {
	return &HNSW{
		opts:    h.opts,
		vectors: vectors,
		graph:   h.graph.Clone(vectors.Distance),
		levels:  h.levels.Clone(),
		pool:    searcher.NewPool(vectors.Capacity()),
		epoch:   h.epoch,
	}
}
