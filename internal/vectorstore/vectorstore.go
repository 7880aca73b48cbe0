package vectorstore

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"slices"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/hnswgo/distance"
	"github.com/hupe1980/hnswgo/model"
)

var (
	// ErrWrongDimension is returned when a vector doesn't match the store dimension.
	ErrWrongDimension = errors.New("wrong vector dimension")
	// ErrDuplicateKey is returned when a primary key is already stored.
	ErrDuplicateKey = errors.New("duplicate primary key")
	// ErrCapacityExceeded is returned when the store is full.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrUnknownRow is returned for a row that was never assigned.
	ErrUnknownRow = errors.New("unknown row")
	// ErrInvalidCapacity is returned when a capacity is below the current count.
	ErrInvalidCapacity = errors.New("invalid capacity")
)

// DimensionError reports a vector whose length does not match the store.
type DimensionError struct {
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%v: expected %d, got %d", ErrWrongDimension, e.Expected, e.Actual)
}

func (e *DimensionError) Unwrap() error { return ErrWrongDimension }

// Store is an append-only vector store with soft deletes.
type Store struct {
	dim      int
	metric   distance.Metric
	capacity int

	data  []float32 // row r = data[r*dim : (r+1)*dim]
	norms []float32 // cached L2 norms, cosine only
	pks   []model.PrimaryKey
	rows  map[model.PrimaryKey]model.RowID

	deleted []atomic.Uint64 // bit r set = row r is tombstoned; sized for capacity
	live    atomic.Int64
}

// New creates an empty store for vectors of length dim holding at most capacity rows.
func New(dim int, metric distance.Metric, capacity int) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vectorstore: dimension must be positive, got %d", dim)
	}
	if !metric.Valid() {
		return nil, fmt.Errorf("vectorstore: unsupported metric %v", metric)
	}
	if capacity <= 0 || capacity > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Store{
		dim:      dim,
		metric:   metric,
		capacity: capacity,
		rows:     make(map[model.PrimaryKey]model.RowID),
		deleted:  make([]atomic.Uint64, words(capacity)),
	}, nil
}

func words(n int) int { return (n + 63) / 64 }

// Dimension returns the vector dimension.
func (s *Store) Dimension() int { return s.dim }

// Metric returns the configured distance metric.
func (s *Store) Metric() distance.Metric { return s.metric }

// Capacity returns the maximum number of rows.
func (s *Store) Capacity() int { return s.capacity }

// Count returns the number of stored rows, including tombstoned ones.
func (s *Store) Count() int { return len(s.pks) }

// Live returns the number of rows that are not tombstoned.
func (s *Store) Live() int { return int(s.live.Load()) }

// Check validates that vec could be stored under pk without storing it.
func (s *Store) Check(pk model.PrimaryKey, vec []float32) error {
	if len(vec) != s.dim {
		return &DimensionError{Expected: s.dim, Actual: len(vec)}
	}
	if _, ok := s.rows[pk]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateKey, pk)
	}
	if len(s.pks) >= s.capacity {
		return fmt.Errorf("%w: %d", ErrCapacityExceeded, s.capacity)
	}
	return nil
}

// Store copies vec into the store under pk and returns its row.
func (s *Store) Store(pk model.PrimaryKey, vec []float32) (model.RowID, error) {
	if err := s.Check(pk, vec); err != nil {
		return 0, err
	}

	row := model.RowID(len(s.pks))
	s.data = append(s.data, vec...)
	if s.metric == distance.MetricCosine {
		s.norms = append(s.norms, distance.Norm(vec))
	}
	s.pks = append(s.pks, pk)
	s.rows[pk] = row
	s.live.Add(1)

	return row, nil
}

// Vector returns the stored vector of row. The slice aliases internal
// memory and must not be modified.
func (s *Store) Vector(row model.RowID) []float32 {
	off := int(row) * s.dim
	return s.data[off : off+s.dim : off+s.dim]
}

// Get returns a copy of the vector stored under pk.
func (s *Store) Get(pk model.PrimaryKey) ([]float32, bool) {
	row, ok := s.rows[pk]
	if !ok {
		return nil, false
	}
	return slices.Clone(s.Vector(row)), true
}

// Row returns the row assigned to pk.
func (s *Store) Row(pk model.PrimaryKey) (model.RowID, bool) {
	row, ok := s.rows[pk]
	return row, ok
}

// PrimaryKey returns the external key of row.
func (s *Store) PrimaryKey(row model.RowID) model.PrimaryKey {
	return s.pks[row]
}

// Distance returns the distance between two stored rows.
func (s *Store) Distance(a, b model.RowID) float32 {
	va, vb := s.Vector(a), s.Vector(b)
	switch s.metric {
	case distance.MetricCosine:
		return distance.CosineWithNorms(va, vb, s.norms[a], s.norms[b])
	case distance.MetricInnerProduct:
		return distance.InnerProduct(va, vb)
	default:
		return distance.L2(va, vb)
	}
}

// QueryDistance returns a function computing the distance from query to a
// stored row. Per-query work (the query norm for cosine) is done once.
func (s *Store) QueryDistance(query []float32) func(model.RowID) float32 {
	switch s.metric {
	case distance.MetricCosine:
		qn := distance.Norm(query)
		return func(row model.RowID) float32 {
			return distance.CosineWithNorms(s.Vector(row), query, s.norms[row], qn)
		}
	case distance.MetricInnerProduct:
		return func(row model.RowID) float32 {
			return distance.InnerProduct(s.Vector(row), query)
		}
	default:
		return func(row model.RowID) float32 {
			return distance.L2(s.Vector(row), query)
		}
	}
}

// MarkDeleted tombstones row. It reports false if row was already deleted.
// Safe to call concurrently with readers.
func (s *Store) MarkDeleted(row model.RowID) (bool, error) {
	if int(row) >= len(s.pks) {
		return false, fmt.Errorf("%w: %v", ErrUnknownRow, row)
	}
	word := &s.deleted[row>>6]
	mask := uint64(1) << (row & 63)
	for {
		old := word.Load()
		if old&mask != 0 {
			return false, nil
		}
		if word.CompareAndSwap(old, old|mask) {
			s.live.Add(-1)
			return true, nil
		}
	}
}

// IsDeleted reports whether row is tombstoned.
func (s *Store) IsDeleted(row model.RowID) bool {
	w := int(row >> 6)
	if w >= len(s.deleted) {
		return false
	}
	return s.deleted[w].Load()&(uint64(1)<<(row&63)) != 0
}

// Tombstones returns the set of tombstoned rows.
func (s *Store) Tombstones() *roaring.Bitmap {
	bm := roaring.New()
	for w := range s.deleted {
		word := s.deleted[w].Load()
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			bm.Add(uint32(w*64 + bit))
			word &^= uint64(1) << bit
		}
	}
	return bm
}

// RestoreTombstones marks every row in bm as deleted.
func (s *Store) RestoreTombstones(bm *roaring.Bitmap) error {
	it := bm.Iterator()
	for it.HasNext() {
		if _, err := s.MarkDeleted(model.RowID(it.Next())); err != nil {
			return err
		}
	}
	return nil
}

// Resize changes the capacity. It fails if capacity is below the current count.
func (s *Store) Resize(capacity int) error {
	if capacity < len(s.pks) || capacity <= 0 || capacity > math.MaxUint32 {
		return fmt.Errorf("%w: %d (count %d)", ErrInvalidCapacity, capacity, len(s.pks))
	}
	deleted := make([]atomic.Uint64, words(capacity))
	for i := range min(len(deleted), len(s.deleted)) {
		deleted[i].Store(s.deleted[i].Load())
	}
	s.deleted = deleted
	s.capacity = capacity
	return nil
}

// Reset drops all rows, keeping dimension, metric and capacity.
func (s *Store) Reset() {
	s.data = s.data[:0]
	s.norms = s.norms[:0]
	s.pks = s.pks[:0]
	clear(s.rows)
	for i := range s.deleted {
		s.deleted[i].Store(0)
	}
	s.live.Store(0)
}

// Clone returns a deep copy of the store.
func (s *Store) Clone() *Store {
	c := &Store{
		dim:      s.dim,
		metric:   s.metric,
		capacity: s.capacity,
		data:     slices.Clone(s.data),
		norms:    slices.Clone(s.norms),
		pks:      slices.Clone(s.pks),
		rows:     make(map[model.PrimaryKey]model.RowID, len(s.rows)),
		deleted:  make([]atomic.Uint64, len(s.deleted)),
	}
	for pk, row := range s.rows {
		c.rows[pk] = row
	}
	for i := range s.deleted {
		c.deleted[i].Store(s.deleted[i].Load())
	}
	c.live.Store(s.live.Load())
	return c
}
