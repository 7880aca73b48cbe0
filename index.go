package hnswgo

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/hnswgo/internal/hnsw"
	"github.com/hupe1980/hnswgo/internal/resource"
	"github.com/hupe1980/hnswgo/internal/vectorstore"
	"github.com/hupe1980/hnswgo/model"
)

// Index is an in-memory HNSW approximate nearest-neighbor index over
// caller-supplied uint64 ids.
//
// Index is safe for concurrent use. Queries and deletes share a read lock;
// each insert holds the write lock from level assignment through edge
// commit.
type Index struct {
	mu sync.RWMutex

	opts     options
	cfg      Config
	built    bool
	efSearch atomic.Int64

	vectors *vectorstore.Store
	graph   *hnsw.HNSW
	ctrl    *resource.Controller

	// generation changes whenever the graph is replaced (Clear, Compact).
	generation uint64
	// pending holds ids reserved by batches that are still planning.
	pending map[model.PrimaryKey]struct{}
}

// SearchResult holds the neighbors of one query, closest first.
type SearchResult struct {
	IDs       []uint64  `json:"ids"`
	Distances []float32 `json:"distances"`
}

// New returns an index that must be built with Build before use.
func New(optFns ...Option) *Index {
	return &Index{
		opts:    applyOptions(optFns),
		pending: make(map[model.PrimaryKey]struct{}),
	}
}

// NewIndex creates and builds an index.
func NewIndex(cfg Config, optFns ...Option) (*Index, error) {
	idx := New(optFns...)
	if err := idx.Build(cfg); err != nil {
		return nil, err
	}
	return idx, nil
}

// Build initializes the index. It can be called only once.
func (idx *Index) Build(cfg Config) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.built {
		return ErrAlreadyBuilt
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	vectors, err := vectorstore.New(cfg.Dimension, cfg.Space, cfg.MaxElements)
	if err != nil {
		return translateError(err)
	}

	graph, err := newGraph(vectors, cfg)
	if err != nil {
		return err
	}

	ctrl := idx.opts.controller
	if ctrl == nil {
		ctrl = resource.NewController(resource.Config{MaxWorkers: cfg.NumThreads})
	} else if cfg.NumThreads > 0 {
		ctrl.SetWorkers(cfg.NumThreads)
	}

	idx.cfg = cfg
	idx.vectors = vectors
	idx.graph = graph
	idx.ctrl = ctrl
	idx.efSearch.Store(int64(cfg.EFSearch))
	idx.built = true

	idx.opts.logger.Debug("index built",
		"space", cfg.Space,
		"dimension", cfg.Dimension,
		"m", cfg.M,
		"ef_construction", cfg.EFConstruction,
		"max_elements", cfg.MaxElements,
	)

	return nil
}

func newGraph(vectors *vectorstore.Store, cfg Config) (*hnsw.HNSW, error) {
	graph, err := hnsw.New(vectors, func(o *hnsw.Options) {
		o.M = cfg.M
		o.EFConstruction = cfg.EFConstruction
		o.RandomSeed = cfg.Seed
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return graph, nil
}

// Config returns the configuration, including the current EFSearch and
// worker bound.
func (idx *Index) Config() Config {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	cfg := idx.cfg
	if idx.built {
		cfg.EFSearch = int(idx.efSearch.Load())
		cfg.NumThreads = idx.ctrl.Workers()
	}
	return cfg
}

func (idx *Index) vectorBytes() int64 {
	return int64(idx.cfg.Dimension) * 4
}

func (idx *Index) acquireMemory(rows int) error {
	return translateError(idx.ctrl.AcquireMemory(int64(rows) * idx.vectorBytes()))
}

func (idx *Index) releaseMemory(rows int) {
	idx.ctrl.ReleaseMemory(int64(rows) * idx.vectorBytes())
}

// Insert adds vec under id. Either the vector and all its edges are
// committed, or nothing is.
func (idx *Index) Insert(ctx context.Context, id uint64, vec []float32) error {
	start := time.Now()

	err := idx.insert(ctx, model.PrimaryKey(id), vec)

	idx.opts.metricsCollector.RecordInsert(time.Since(start), err)
	idx.opts.logger.LogInsert(ctx, id, len(vec), err)

	return err
}

func (idx *Index) insert(ctx context.Context, pk model.PrimaryKey, vec []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.built {
		return ErrNotBuilt
	}

	if err := idx.vectors.Check(pk, vec); err != nil {
		return translateError(err)
	}

	if _, ok := idx.pending[pk]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, pk)
	}

	if idx.vectors.Count()+len(idx.pending) >= idx.vectors.Capacity() {
		return fmt.Errorf("%w: %d", ErrCapacityExceeded, idx.vectors.Capacity())
	}

	if err := idx.acquireMemory(1); err != nil {
		return err
	}

	plan := idx.graph.Plan(vec, idx.graph.SampleLevel())

	return idx.commitLocked(pk, vec, plan)
}

// commitLocked stores vec and links it with plan, which must not be stale.
func (idx *Index) commitLocked(pk model.PrimaryKey, vec []float32, plan *hnsw.Plan) error {
	row, err := idx.vectors.Store(pk, vec)
	if err != nil {
		idx.releaseMemory(1)
		return translateError(err)
	}

	if err := idx.graph.Commit(row, plan); err != nil {
		return fmt.Errorf("commit %d: %w", pk, err)
	}

	return nil
}

// InsertBatch adds vecs under ids. With ids == nil, consecutive ids starting
// at Count() are assigned.
//
// The whole batch is validated before the first vector is committed. Vectors
// are processed in waves as wide as the worker pool: the candidate search of
// a wave runs in parallel under the read lock, then each vector is committed
// in its own exclusive section. Cancellation is honored until the first
// commit.
func (idx *Index) InsertBatch(ctx context.Context, ids []uint64, vecs [][]float32) error {
	start := time.Now()

	err := idx.insertBatch(ctx, ids, vecs)

	failed := 0
	if err != nil {
		failed = len(vecs)
	}

	idx.opts.metricsCollector.RecordBatchInsert(len(vecs), failed, time.Since(start))
	idx.opts.logger.LogBatchInsert(ctx, len(vecs), failed)

	return err
}

func (idx *Index) insertBatch(ctx context.Context, ids []uint64, vecs [][]float32) error {
	if ids != nil && len(ids) != len(vecs) {
		return fmt.Errorf("%w: %d ids for %d vectors", ErrInvalidArgument, len(ids), len(vecs))
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	pks, ctrl, err := idx.reserve(ids, vecs)
	if err != nil {
		return err
	}

	n := len(pks)
	plans := make([]*hnsw.Plan, n)
	generations := make([]uint64, n)
	wave := ctrl.Workers()

	for start := 0; start < n; start += wave {
		end := min(start+wave, n)

		planCtx := ctx
		if start > 0 {
			// Part of the batch is committed; finish it.
			planCtx = context.WithoutCancel(ctx)
		}

		err := ctrl.ForEach(planCtx, end-start, func(_ context.Context, j int) error {
			i := start + j

			idx.mu.RLock()
			defer idx.mu.RUnlock()

			generations[i] = idx.generation
			plans[i] = idx.graph.Plan(vecs[i], idx.graph.SampleLevel())
			return nil
		})
		if err != nil {
			idx.unreserve(pks[start:])
			return err
		}

		for i := start; i < end; i++ {
			if err := idx.commitPlanned(pks[i], vecs[i], plans[i], generations[i]); err != nil {
				idx.unreserve(pks[i+1:])
				return fmt.Errorf("vector %d: %w", i, err)
			}
		}
	}

	return nil
}

func (idx *Index) commitPlanned(pk model.PrimaryKey, vec []float32, plan *hnsw.Plan, generation uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.pending, pk)

	if generation != idx.generation || idx.graph.Stale(plan) {
		plan = idx.graph.Plan(vec, plan.Level)
	}

	return idx.commitLocked(pk, vec, plan)
}

// reserve validates a batch and claims its ids and capacity.
func (idx *Index) reserve(ids []uint64, vecs [][]float32) ([]model.PrimaryKey, *resource.Controller, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.built {
		return nil, nil, ErrNotBuilt
	}

	pks := make([]model.PrimaryKey, len(vecs))
	seen := make(map[model.PrimaryKey]struct{}, len(vecs))

	for i, vec := range vecs {
		pk := model.PrimaryKey(idx.vectors.Count() + i)
		if ids != nil {
			pk = model.PrimaryKey(ids[i])
		}

		if len(vec) != idx.cfg.Dimension {
			return nil, nil, fmt.Errorf("vector %d: %w", i, &ErrDimensionMismatch{Expected: idx.cfg.Dimension, Actual: len(vec)})
		}

		if _, ok := seen[pk]; ok {
			return nil, nil, fmt.Errorf("vector %d: %w: %d repeated in batch", i, ErrDuplicateID, pk)
		}

		_, stored := idx.vectors.Row(pk)
		_, reserved := idx.pending[pk]
		if stored || reserved {
			return nil, nil, fmt.Errorf("vector %d: %w: %d", i, ErrDuplicateID, pk)
		}

		seen[pk] = struct{}{}
		pks[i] = pk
	}

	if idx.vectors.Count()+len(idx.pending)+len(pks) > idx.vectors.Capacity() {
		return nil, nil, fmt.Errorf("%w: %d + %d vectors exceed %d", ErrCapacityExceeded, idx.vectors.Count(), len(pks), idx.vectors.Capacity())
	}

	if err := idx.acquireMemory(len(pks)); err != nil {
		return nil, nil, err
	}

	for _, pk := range pks {
		idx.pending[pk] = struct{}{}
	}

	return pks, idx.ctrl, nil
}

func (idx *Index) unreserve(pks []model.PrimaryKey) {
	if len(pks) == 0 {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, pk := range pks {
		delete(idx.pending, pk)
	}
	idx.releaseMemory(len(pks))
}

// Query returns the k live vectors closest to vec, ordered by distance and
// then by ascending id. Fewer than k results are returned when the index
// holds fewer live vectors.
func (idx *Index) Query(ctx context.Context, vec []float32, k int) ([]uint64, []float32, error) {
	start := time.Now()

	ids, dists, err := idx.query(ctx, vec, k)

	idx.opts.metricsCollector.RecordSearch(k, time.Since(start), err)
	idx.opts.logger.LogSearch(ctx, k, len(ids), err)

	return ids, dists, err
}

func (idx *Index) query(ctx context.Context, vec []float32, k int) ([]uint64, []float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return nil, nil, ErrNotBuilt
	}

	if k < 1 {
		return nil, nil, ErrInvalidK
	}

	if len(vec) != idx.cfg.Dimension {
		return nil, nil, &ErrDimensionMismatch{Expected: idx.cfg.Dimension, Actual: len(vec)}
	}

	if idx.vectors.Live() == 0 {
		return nil, nil, ErrEmptyIndex
	}

	found, err := idx.graph.Search(vec, k, int(idx.efSearch.Load()))
	if err != nil {
		return nil, nil, translateError(err)
	}

	type hit struct {
		id   uint64
		dist float32
	}

	hits := make([]hit, len(found))
	for i, c := range found {
		hits[i] = hit{id: uint64(idx.vectors.PrimaryKey(c.Row)), dist: c.Distance}
	}

	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	if len(hits) > k {
		hits = hits[:k]
	}

	ids := make([]uint64, len(hits))
	dists := make([]float32, len(hits))
	for i, h := range hits {
		ids[i] = h.id
		dists[i] = h.dist
	}

	return ids, dists, nil
}

// QueryBatch runs Query for every vector on the worker pool. Results are in
// input order.
func (idx *Index) QueryBatch(ctx context.Context, vecs [][]float32, k int) ([]SearchResult, error) {
	idx.mu.RLock()
	built, ctrl := idx.built, idx.ctrl
	idx.mu.RUnlock()

	if !built {
		return nil, ErrNotBuilt
	}

	results := make([]SearchResult, len(vecs))

	err := ctrl.ForEach(ctx, len(vecs), func(ctx context.Context, i int) error {
		ids, dists, err := idx.Query(ctx, vecs[i], k)
		if err != nil {
			return fmt.Errorf("query %d: %w", i, err)
		}
		results[i] = SearchResult{IDs: ids, Distances: dists}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// Delete tombstones id. The vector stays navigable for other queries but is
// never returned or chosen as a new neighbor. Compact drops tombstones.
func (idx *Index) Delete(ctx context.Context, id uint64) error {
	start := time.Now()

	err := idx.delete(ctx, model.PrimaryKey(id))

	idx.opts.metricsCollector.RecordDelete(time.Since(start), err)
	idx.opts.logger.LogDelete(ctx, id, err)

	return err
}

func (idx *Index) delete(ctx context.Context, pk model.PrimaryKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return ErrNotBuilt
	}

	row, ok := idx.vectors.Row(pk)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownID, pk)
	}

	deleted, err := idx.vectors.MarkDeleted(row)
	if err != nil {
		return translateError(err)
	}

	if !deleted {
		return fmt.Errorf("%w: %d already deleted", ErrUnknownID, pk)
	}

	return nil
}

// SetEfSearch sets the query beam width.
func (idx *Index) SetEfSearch(ef int) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return ErrNotBuilt
	}

	if ef < 1 {
		return fmt.Errorf("%w: ef_search must be positive, got %d", ErrInvalidConfig, ef)
	}

	idx.efSearch.Store(int64(ef))

	return nil
}

// SetNumThreads bounds the batch worker pool. 0 means runtime.NumCPU().
func (idx *Index) SetNumThreads(n int) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return ErrNotBuilt
	}

	if n < 0 {
		return fmt.Errorf("%w: num_threads must not be negative, got %d", ErrInvalidConfig, n)
	}

	idx.ctrl.SetWorkers(n)

	return nil
}

// Count returns the number of stored vectors, including deleted ones.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return 0
	}
	return idx.vectors.Count()
}

// LiveCount returns the number of vectors that are not deleted.
func (idx *Index) LiveCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return 0
	}
	return idx.vectors.Live()
}

// Capacity returns MaxElements.
func (idx *Index) Capacity() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return 0
	}
	return idx.vectors.Capacity()
}

// Resize changes the capacity. It cannot drop below the stored count.
func (idx *Index) Resize(maxElements int) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.built {
		return ErrNotBuilt
	}

	if reserved := idx.vectors.Count() + len(idx.pending); maxElements < reserved {
		return fmt.Errorf("%w: capacity %d below %d stored or reserved vectors", ErrInvalidConfig, maxElements, reserved)
	}

	if err := idx.vectors.Resize(maxElements); err != nil {
		return translateError(err)
	}

	idx.cfg.MaxElements = maxElements

	return nil
}

// Clear removes all vectors, keeping the configuration.
func (idx *Index) Clear() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.built {
		return ErrNotBuilt
	}

	count := idx.vectors.Count()

	idx.vectors.Reset()
	idx.graph.Reset()
	idx.generation++
	idx.releaseMemory(count)

	return nil
}

// Compact rebuilds the graph from the live vectors, dropping tombstones.
// It holds the write lock for the whole rebuild. Row order, and with it the
// node levels and entry point choice, is preserved. On error the index is
// unchanged.
func (idx *Index) Compact(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.built {
		return ErrNotBuilt
	}

	before := idx.vectors.Count()
	err := idx.compactLocked(ctx)
	idx.opts.logger.LogCompact(ctx, before, idx.vectors.Count(), err)

	return err
}

func (idx *Index) compactLocked(ctx context.Context) error {
	old, oldGraph := idx.vectors, idx.graph.Graph()
	if old.Live() == old.Count() {
		return nil
	}

	vectors, err := vectorstore.New(idx.cfg.Dimension, idx.cfg.Space, old.Capacity())
	if err != nil {
		return translateError(err)
	}

	graph, err := newGraph(vectors, idx.cfg)
	if err != nil {
		return err
	}

	for r := 0; r < old.Count(); r++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		row := model.RowID(r)
		if old.IsDeleted(row) {
			continue
		}

		lvl, err := oldGraph.Level(row)
		if err != nil {
			return translateError(err)
		}

		newRow, err := vectors.Store(old.PrimaryKey(row), old.Vector(row))
		if err != nil {
			return translateError(err)
		}

		if err := graph.Insert(newRow, lvl); err != nil {
			return err
		}
	}

	dropped := old.Count() - vectors.Count()

	idx.vectors = vectors
	idx.graph = graph
	idx.generation++
	idx.releaseMemory(dropped)

	return nil
}

// Clone returns a deep copy sharing only the ambient collaborators.
func (idx *Index) Clone() (*Index, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return nil, ErrNotBuilt
	}

	if err := idx.acquireMemory(idx.vectors.Count()); err != nil {
		return nil, err
	}

	c := &Index{
		opts:    idx.opts,
		cfg:     idx.cfg,
		built:   true,
		ctrl:    idx.ctrl,
		vectors: idx.vectors.Clone(),
		pending: make(map[model.PrimaryKey]struct{}),
	}
	c.graph = idx.graph.Clone(c.vectors)
	c.efSearch.Store(idx.efSearch.Load())

	return c, nil
}
