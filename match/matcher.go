package match

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/hnswgo"
	"github.com/hupe1980/hnswgo/codec"
	"github.com/hupe1980/hnswgo/distance"
)

// DefaultCutoff is the default match cutoff in hnswlib distance units, where
// the "l2" space reports squared Euclidean distance. It suits unit-normalized
// 128-d face embeddings.
const DefaultCutoff float32 = 0.5

// DefaultThreshold returns DefaultCutoff in the units the index reports for space.
// L2 distances are Euclidean, so the cutoff becomes sqrt(0.5).
func DefaultThreshold(space distance.Metric) float32 {
	if space == distance.MetricL2 {
		return float32(math.Sqrt(float64(DefaultCutoff)))
	}
	return DefaultCutoff
}

// ErrInvalidThreshold is returned by New for a negative or NaN threshold.
var ErrInvalidThreshold = errors.New("match: threshold must be a non-negative number")

// Result is either Found or Unknown.
type Result interface {
	// Matched reports whether the query resolved to an enrolled id.
	Matched() bool
}

// Found is a query whose nearest neighbor is within the threshold.
type Found struct {
	ID       uint64
	Distance float32
	// Record is nil when the id has no metadata.
	Record Record
}

// Matched returns true.
func (Found) Matched() bool { return true }

// MarshalJSON encodes f with status "found".
func (f Found) MarshalJSON() ([]byte, error) {
	return codec.Default.Marshal(struct {
		Status   string  `json:"status"`
		ID       uint64  `json:"id"`
		Distance float32 `json:"distance"`
		Record   Record  `json:"record,omitempty"`
	}{"found", f.ID, f.Distance, f.Record})
}

// Unknown is a query with no neighbor within the threshold.
// Distance is the nearest distance seen, or +Inf if the index had no live ids.
type Unknown struct {
	Distance float32
}

// Matched returns false.
func (Unknown) Matched() bool { return false }

// MarshalJSON encodes u with status "unknown". An infinite distance is omitted.
func (u Unknown) MarshalJSON() ([]byte, error) {
	var dist *float32
	if !math.IsInf(float64(u.Distance), 1) {
		dist = &u.Distance
	}
	return codec.Default.Marshal(struct {
		Status   string   `json:"status"`
		Distance *float32 `json:"distance,omitempty"`
	}{"unknown", dist})
}

// Matcher resolves query vectors to enrolled identities.
type Matcher struct {
	index     *hnswgo.Index
	meta      MetadataStore
	threshold float32
	logger    *hnswgo.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold sets the maximum accepted distance (inclusive).
func WithThreshold(t float32) Option {
	return func(m *Matcher) { m.threshold = t }
}

// WithLogger sets the logger used for match decisions.
func WithLogger(l *hnswgo.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Matcher over a built index. The threshold defaults to
// DefaultThreshold for the index's space.
func New(idx *hnswgo.Index, meta MetadataStore, optFns ...Option) (*Matcher, error) {
	m := &Matcher{
		index:     idx,
		meta:      meta,
		threshold: DefaultThreshold(idx.Config().Space),
		logger:    hnswgo.NoopLogger(),
	}
	for _, fn := range optFns {
		fn(m)
	}

	if m.threshold < 0 || math.IsNaN(float64(m.threshold)) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, m.threshold)
	}

	return m, nil
}

// Threshold returns the configured threshold.
func (m *Matcher) Threshold() float32 { return m.threshold }

// Enroll stores the record for id, then inserts vec under it. A failed record
// write leaves the index untouched, so the call can be retried with the same
// id. A failed insert restores the previous record.
func (m *Matcher) Enroll(ctx context.Context, id uint64, vec []float32, rec Record) error {
	if m.index.Contains(id) {
		return fmt.Errorf("match: enroll %d: %w", id, hnswgo.ErrDuplicateID)
	}

	prev, had, err := m.meta.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("match: metadata for %d: %w", id, err)
	}

	if err := m.meta.Put(ctx, id, rec); err != nil {
		return fmt.Errorf("match: store record %d: %w", id, err)
	}

	if err := m.index.Insert(ctx, id, vec); err != nil {
		rctx := context.WithoutCancel(ctx)
		var rerr error
		if had {
			rerr = m.meta.Put(rctx, id, prev)
		} else {
			rerr = m.meta.Delete(rctx, id)
		}
		if rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}

	return nil
}

// Forget deletes id from the index and its record from the store.
func (m *Matcher) Forget(ctx context.Context, id uint64) error {
	if err := m.index.Delete(ctx, id); err != nil {
		return err
	}
	return m.meta.Delete(ctx, id)
}

// Match resolves a single query vector.
func (m *Matcher) Match(ctx context.Context, vec []float32) (Result, error) {
	ids, dists, err := m.index.Query(ctx, vec, 1)
	if err != nil {
		if errors.Is(err, hnswgo.ErrEmptyIndex) {
			return Unknown{Distance: float32(math.Inf(1))}, nil
		}
		return nil, err
	}

	return m.resolve(ctx, ids, dists)
}

// MatchBatch resolves several query vectors in parallel.
func (m *Matcher) MatchBatch(ctx context.Context, vecs [][]float32) ([]Result, error) {
	batch, err := m.index.QueryBatch(ctx, vecs, 1)
	if err != nil {
		if !errors.Is(err, hnswgo.ErrEmptyIndex) {
			return nil, err
		}
		batch = make([]hnswgo.SearchResult, len(vecs))
	}

	out := make([]Result, len(batch))
	for i, r := range batch {
		res, err := m.resolve(ctx, r.IDs, r.Distances)
		if err != nil {
			return nil, err
		}
		out[i] = res
	}

	return out, nil
}

func (m *Matcher) resolve(ctx context.Context, ids []uint64, dists []float32) (Result, error) {
	if len(ids) == 0 {
		return Unknown{Distance: float32(math.Inf(1))}, nil
	}

	id, dist := ids[0], dists[0]
	if dist > m.threshold {
		m.logger.DebugContext(ctx, "match unknown", "nearest", id, "distance", dist)
		return Unknown{Distance: dist}, nil
	}

	rec, ok, err := m.meta.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("match: metadata for %d: %w", id, err)
	}
	if !ok {
		rec = nil
	}

	m.logger.DebugContext(ctx, "match found", "id", id, "distance", dist)

	return Found{ID: id, Distance: dist, Record: rec}, nil
}
