package hnswgo

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hnswgo/distance"
	"github.com/hupe1980/hnswgo/model"
	"github.com/hupe1980/hnswgo/persistence"
	"github.com/hupe1980/hnswgo/testutil"
)

func seedPtr(v uint64) *uint64 { return &v }

func testConfig(dim int) Config {
	cfg := DefaultConfig(dim)
	cfg.Seed = seedPtr(42)
	return cfg
}

func newTestIndex(t *testing.T, cfg Config, optFns ...Option) *Index {
	t.Helper()

	idx, err := NewIndex(cfg, optFns...)
	require.NoError(t, err)

	return idx
}

func insertVectors(t *testing.T, idx *Index, vecs [][]float32) {
	t.Helper()

	for i, v := range vecs {
		require.NoError(t, idx.Insert(context.Background(), uint64(i), v))
	}
}

// checkGraph verifies the degree bound, the entry point invariant and that
// every neighbor is a stored id.
func checkGraph(t *testing.T, idx *Index, ids []uint64) {
	t.Helper()

	st, err := idx.Stats()
	require.NoError(t, err)

	stored := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		stored[id] = true
	}

	for _, id := range ids {
		lvl, err := idx.Level(id)
		require.NoError(t, err)
		require.LessOrEqual(t, lvl, st.MaxLevel)

		for l := 0; l <= lvl; l++ {
			nbs, err := idx.Neighbors(id, l)
			require.NoError(t, err)

			bound := st.M
			if l == 0 {
				bound = st.M0
			}
			assert.LessOrEqual(t, len(nbs), bound, "id %d level %d", id, l)

			for _, nb := range nbs {
				assert.True(t, stored[nb], "neighbor %d of %d is not stored", nb, id)
				nl, err := idx.Level(nb)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, nl, l)
			}
		}
	}

	if len(ids) > 0 {
		ep, ok := idx.EntryPoint()
		require.True(t, ok)
		lvl, err := idx.Level(ep)
		require.NoError(t, err)
		assert.Equal(t, idx.MaxLevel(), lvl)
	}
}

func TestIndexScenario(t *testing.T) {
	cfg := testConfig(4)
	cfg.M = 16
	cfg.EFConstruction = 200

	idx := newTestIndex(t, cfg)
	insertVectors(t, idx, [][]float32{
		{1, 2, 3, 4},
		{2, 3, 5, 3},
		{3, 2, 2, 3},
		{4, 4, 4, 4},
		{5, 5, 5, 5},
		{2, 2, 3, 5},
		{4, 2, 5, 6},
		{10, 4, 2, 1},
	})

	ids, dists, err := idx.Query(context.Background(), []float32{2, 2, 2, 2}, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 0}, ids)
	assert.InDelta(t, math.Sqrt2, dists[0], 1e-5)
	assert.InDelta(t, math.Sqrt(6), dists[1], 1e-5)
	assert.Equal(t, 8, idx.Count())
}

func TestIndexDegreeBound(t *testing.T) {
	cfg := testConfig(16)
	cfg.M = 5

	idx := newTestIndex(t, cfg)
	vecs := testutil.NewRNG(7).UniformVectors(200, 16)
	insertVectors(t, idx, vecs)

	checkGraph(t, idx, idx.IDs())

	st, err := idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, 10, st.M0)
	for _, l := range st.Levels {
		bound := 5
		if l.Level == 0 {
			bound = 10
		}
		assert.LessOrEqual(t, l.MaxConnections, bound)
	}
}

func TestIndexSingleNode(t *testing.T) {
	idx := newTestIndex(t, testConfig(3))
	require.NoError(t, idx.Insert(context.Background(), 7, []float32{1, 2, 3}))

	ep, ok := idx.EntryPoint()
	require.True(t, ok)
	assert.Equal(t, uint64(7), ep)

	nbs, err := idx.Neighbors(7, 0)
	require.NoError(t, err)
	assert.Empty(t, nbs)

	ids, dists, err := idx.Query(context.Background(), []float32{0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, []uint64{7}, ids)
	assert.Len(t, dists, 1)
}

func TestIndexExactMatch(t *testing.T) {
	cfg := testConfig(8)
	cfg.EFSearch = 100

	idx := newTestIndex(t, cfg)
	vecs := testutil.NewRNG(3).UniformVectors(100, 8)
	insertVectors(t, idx, vecs)

	for i, v := range vecs {
		ids, dists, err := idx.Query(context.Background(), v, 1)
		require.NoError(t, err)
		require.Len(t, ids, 1)
		assert.Equal(t, uint64(i), ids[0])
		assert.InDelta(t, 0, dists[0], 1e-6)
	}
}

func TestIndexRecall(t *testing.T) {
	const (
		n   = 1000
		dim = 16
		k   = 10
	)

	cfg := testConfig(dim)
	cfg.EFSearch = 64

	rng := testutil.NewRNG(11)
	vecs := rng.UniformVectors(n, dim)
	queries := rng.UniformVectors(50, dim)

	idx := newTestIndex(t, cfg)
	require.NoError(t, idx.InsertBatch(context.Background(), nil, vecs))

	var total float64
	for _, q := range queries {
		ids, dists, err := idx.Query(context.Background(), q, k)
		require.NoError(t, err)

		approx := make([]testutil.SearchResult, len(ids))
		for i := range ids {
			approx[i] = testutil.SearchResult{ID: ids[i], Distance: dists[i]}
		}
		total += testutil.ComputeRecall(testutil.ExactTopK(q, vecs, k, distance.L2), approx)
	}

	assert.GreaterOrEqual(t, total/float64(len(queries)), 0.9)
}

func TestIndexMetrics(t *testing.T) {
	tests := []struct {
		space distance.Metric
		data  [][]float32
		query []float32
		want  uint64
	}{
		{distance.MetricCosine, [][]float32{{1, 0}, {0, 1}, {1, 1}}, []float32{2, 2}, 2},
		{distance.MetricInnerProduct, [][]float32{{1, 0}, {0, 1}, {3, 3}}, []float32{1, 1}, 2},
		{distance.MetricL2, [][]float32{{1, 0}, {0, 1}, {3, 3}}, []float32{0.1, 0.9}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.space.String(), func(t *testing.T) {
			cfg := testConfig(2)
			cfg.Space = tt.space

			idx := newTestIndex(t, cfg)
			insertVectors(t, idx, tt.data)

			ids, _, err := idx.Query(context.Background(), tt.query, 1)
			require.NoError(t, err)
			assert.Equal(t, []uint64{tt.want}, ids)
		})
	}
}

func TestIndexDelete(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(8)
	cfg.EFSearch = 50

	idx := newTestIndex(t, cfg)
	vecs := testutil.NewRNG(5).UniformVectors(100, 8)
	insertVectors(t, idx, vecs)

	deleted := []uint64{0, 3, 17, 42, 99}
	for _, id := range deleted {
		require.NoError(t, idx.Delete(ctx, id))
	}

	assert.Equal(t, 100, idx.Count())
	assert.Equal(t, 95, idx.LiveCount())
	assert.Len(t, idx.IDs(), 95)

	for _, id := range deleted {
		assert.False(t, idx.Contains(id))

		_, err := idx.GetVector(id)
		assert.ErrorIs(t, err, ErrUnknownID)

		ids, _, err := idx.Query(ctx, vecs[id], 10)
		require.NoError(t, err)
		assert.NotContains(t, ids, id)
	}

	// Tombstoned nodes keep their edges.
	_, err := idx.Neighbors(deleted[0], 0)
	assert.NoError(t, err)

	assert.ErrorIs(t, idx.Delete(ctx, 3), ErrUnknownID)
	assert.ErrorIs(t, idx.Delete(ctx, 1000), ErrUnknownID)

	// Inserts after deletes never link to tombstones.
	extra := testutil.NewRNG(6).UniformVectors(50, 8)
	for i, v := range extra {
		id := uint64(1000 + i)
		require.NoError(t, idx.Insert(ctx, id, v))

		nbs, err := idx.Neighbors(id, 0)
		require.NoError(t, err)
		for _, d := range deleted {
			assert.NotContains(t, nbs, d)
		}
	}
}

func TestIndexDeleteAll(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, testConfig(2))
	insertVectors(t, idx, [][]float32{{0, 0}, {1, 1}})

	require.NoError(t, idx.Delete(ctx, 0))
	require.NoError(t, idx.Delete(ctx, 1))

	_, _, err := idx.Query(ctx, []float32{0, 0}, 1)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestIndexDuplicateRejection(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, testConfig(4))
	vecs := testutil.NewRNG(1).UniformVectors(20, 4)
	insertVectors(t, idx, vecs)

	before, err := idx.Stats()
	require.NoError(t, err)
	data, err := idx.Serialize()
	require.NoError(t, err)

	err = idx.Insert(ctx, 5, []float32{9, 9, 9, 9})
	assert.ErrorIs(t, err, ErrDuplicateID)

	after, err := idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	again, err := idx.Serialize()
	require.NoError(t, err)
	assert.Equal(t, data, again)

	got, err := idx.GetVector(5)
	require.NoError(t, err)
	assert.Equal(t, vecs[5], got)
}

func TestIndexErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("NotBuilt", func(t *testing.T) {
		idx := New()

		assert.ErrorIs(t, idx.Insert(ctx, 1, []float32{1}), ErrNotBuilt)
		assert.ErrorIs(t, idx.InsertBatch(ctx, nil, [][]float32{{1}}), ErrNotBuilt)
		assert.ErrorIs(t, idx.Delete(ctx, 1), ErrNotBuilt)
		assert.ErrorIs(t, idx.SetEfSearch(10), ErrNotBuilt)
		assert.ErrorIs(t, idx.SetNumThreads(2), ErrNotBuilt)
		assert.ErrorIs(t, idx.Resize(10), ErrNotBuilt)
		assert.ErrorIs(t, idx.Clear(), ErrNotBuilt)
		assert.ErrorIs(t, idx.Compact(ctx), ErrNotBuilt)

		_, _, err := idx.Query(ctx, []float32{1}, 1)
		assert.ErrorIs(t, err, ErrNotBuilt)
		_, err = idx.QueryBatch(ctx, [][]float32{{1}}, 1)
		assert.ErrorIs(t, err, ErrNotBuilt)
		_, err = idx.Serialize()
		assert.ErrorIs(t, err, ErrNotBuilt)
		_, err = idx.Clone()
		assert.ErrorIs(t, err, ErrNotBuilt)
		_, err = idx.Stats()
		assert.ErrorIs(t, err, ErrNotBuilt)
		_, err = idx.GetVector(1)
		assert.ErrorIs(t, err, ErrNotBuilt)
		_, err = idx.Neighbors(1, 0)
		assert.ErrorIs(t, err, ErrNotBuilt)

		assert.Zero(t, idx.Count())
		assert.Zero(t, idx.Capacity())
		assert.Equal(t, -1, idx.MaxLevel())
		assert.False(t, idx.Contains(1))
		assert.Nil(t, idx.IDs())
	})

	t.Run("AlreadyBuilt", func(t *testing.T) {
		idx := newTestIndex(t, testConfig(2))
		assert.ErrorIs(t, idx.Build(testConfig(2)), ErrAlreadyBuilt)
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		for name, mutate := range map[string]func(*Config){
			"Dimension":      func(c *Config) { c.Dimension = 0 },
			"M":              func(c *Config) { c.M = 1 },
			"EFConstruction": func(c *Config) { c.EFConstruction = 0 },
			"EFSearch":       func(c *Config) { c.EFSearch = 0 },
			"MaxElements":    func(c *Config) { c.MaxElements = 0 },
			"NumThreads":     func(c *Config) { c.NumThreads = -1 },
			"Space":          func(c *Config) { c.Space = distance.Metric(7) },
		} {
			cfg := testConfig(2)
			mutate(&cfg)

			_, err := NewIndex(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig, name)
		}
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		idx := newTestIndex(t, testConfig(3))

		err := idx.Insert(ctx, 1, []float32{1, 2})
		var dm *ErrDimensionMismatch
		require.True(t, errors.As(err, &dm))
		assert.Equal(t, 3, dm.Expected)
		assert.Equal(t, 2, dm.Actual)

		require.NoError(t, idx.Insert(ctx, 1, []float32{1, 2, 3}))
		_, _, err = idx.Query(ctx, []float32{1}, 1)
		assert.True(t, errors.As(err, &dm))
	})

	t.Run("InvalidK", func(t *testing.T) {
		idx := newTestIndex(t, testConfig(2))
		insertVectors(t, idx, [][]float32{{1, 1}})

		_, _, err := idx.Query(ctx, []float32{1, 1}, 0)
		assert.ErrorIs(t, err, ErrInvalidK)
	})

	t.Run("Empty", func(t *testing.T) {
		idx := newTestIndex(t, testConfig(2))

		_, _, err := idx.Query(ctx, []float32{1, 1}, 1)
		assert.ErrorIs(t, err, ErrEmptyIndex)
	})

	t.Run("Capacity", func(t *testing.T) {
		cfg := testConfig(2)
		cfg.MaxElements = 2

		idx := newTestIndex(t, cfg)
		insertVectors(t, idx, [][]float32{{0, 0}, {1, 1}})

		assert.ErrorIs(t, idx.Insert(ctx, 2, []float32{2, 2}), ErrCapacityExceeded)
		assert.ErrorIs(t, idx.Resize(1), ErrInvalidConfig)

		require.NoError(t, idx.Resize(4))
		assert.Equal(t, 4, idx.Capacity())
		require.NoError(t, idx.Insert(ctx, 2, []float32{2, 2}))
		assert.Equal(t, 4, idx.Config().MaxElements)
	})

	t.Run("Canceled", func(t *testing.T) {
		idx := newTestIndex(t, testConfig(2))
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		assert.ErrorIs(t, idx.Insert(canceled, 1, []float32{1, 1}), context.Canceled)
		assert.ErrorIs(t, idx.InsertBatch(canceled, nil, [][]float32{{1, 1}}), context.Canceled)
		assert.Zero(t, idx.Count())
	})
}

func TestIndexInsertBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("AutoIDs", func(t *testing.T) {
		cfg := testConfig(8)
		cfg.NumThreads = 4

		idx := newTestIndex(t, cfg)
		vecs := testutil.NewRNG(9).UniformVectors(300, 8)
		require.NoError(t, idx.InsertBatch(ctx, nil, vecs))

		assert.Equal(t, 300, idx.Count())
		ids := idx.IDs()
		assert.Equal(t, uint64(0), ids[0])
		assert.Equal(t, uint64(299), ids[299])
		checkGraph(t, idx, ids)

		// A second batch continues after Count().
		require.NoError(t, idx.InsertBatch(ctx, nil, vecs[:2]))
		assert.True(t, idx.Contains(300))
		assert.True(t, idx.Contains(301))
	})

	t.Run("ExplicitIDs", func(t *testing.T) {
		idx := newTestIndex(t, testConfig(2))
		require.NoError(t, idx.InsertBatch(ctx, []uint64{100, 200}, [][]float32{{0, 0}, {5, 5}}))

		ids, _, err := idx.Query(ctx, []float32{4, 4}, 1)
		require.NoError(t, err)
		assert.Equal(t, []uint64{200}, ids)
	})

	t.Run("AllOrNothing", func(t *testing.T) {
		cfg := testConfig(2)
		cfg.MaxElements = 4

		idx := newTestIndex(t, cfg)
		insertVectors(t, idx, [][]float32{{0, 0}})

		tests := []struct {
			name string
			ids  []uint64
			vecs [][]float32
			want error
		}{
			{"DuplicateInBatch", []uint64{1, 1}, [][]float32{{1, 1}, {2, 2}}, ErrDuplicateID},
			{"DuplicateInIndex", []uint64{1, 0}, [][]float32{{1, 1}, {2, 2}}, ErrDuplicateID},
			{"Capacity", []uint64{1, 2, 3, 4}, [][]float32{{1, 1}, {2, 2}, {3, 3}, {4, 4}}, ErrCapacityExceeded},
			{"Length", []uint64{1}, [][]float32{{1, 1}, {2, 2}}, ErrInvalidArgument},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.ErrorIs(t, idx.InsertBatch(ctx, tt.ids, tt.vecs), tt.want)
				assert.Equal(t, 1, idx.Count())
			})
		}

		err := idx.InsertBatch(ctx, []uint64{1, 2}, [][]float32{{1, 1}, {2}})
		var dm *ErrDimensionMismatch
		assert.True(t, errors.As(err, &dm))
		assert.Equal(t, 1, idx.Count())
	})
}

func TestIndexQueryBatch(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, testConfig(8))
	rng := testutil.NewRNG(13)
	insertVectors(t, idx, rng.UniformVectors(200, 8))

	queries := rng.UniformVectors(20, 8)
	results, err := idx.QueryBatch(ctx, queries, 5)
	require.NoError(t, err)
	require.Len(t, results, len(queries))

	for i, q := range queries {
		ids, dists, err := idx.Query(ctx, q, 5)
		require.NoError(t, err)
		assert.Equal(t, ids, results[i].IDs)
		assert.Equal(t, dists, results[i].Distances)
	}

	_, err = idx.QueryBatch(ctx, [][]float32{queries[0], {1}}, 5)
	var dm *ErrDimensionMismatch
	assert.True(t, errors.As(err, &dm))
}

func TestIndexSerializeRoundTrip(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(21)
	vecs := rng.UniformVectors(300, 12)
	queries := rng.UniformVectors(25, 12)

	for _, c := range []persistence.Compression{persistence.CompressionNone, persistence.CompressionLZ4, persistence.CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			cfg := testConfig(12)
			cfg.Space = distance.MetricCosine
			cfg.EFSearch = 40

			idx := newTestIndex(t, cfg, WithCompression(c))
			require.NoError(t, idx.InsertBatch(ctx, nil, vecs))
			require.NoError(t, idx.Delete(ctx, 10))
			require.NoError(t, idx.Delete(ctx, 20))

			data, err := idx.Serialize()
			require.NoError(t, err)

			restored, err := Deserialize(data)
			require.NoError(t, err)

			assert.Equal(t, idx.Count(), restored.Count())
			assert.Equal(t, idx.LiveCount(), restored.LiveCount())
			assert.Equal(t, idx.Capacity(), restored.Capacity())
			assert.Equal(t, idx.MaxLevel(), restored.MaxLevel())
			assert.Equal(t, idx.Config().EFSearch, restored.Config().EFSearch)
			assert.Equal(t, distance.MetricCosine, restored.Config().Space)

			ep1, _ := idx.EntryPoint()
			ep2, _ := restored.EntryPoint()
			assert.Equal(t, ep1, ep2)
			assert.False(t, restored.Contains(10))

			for _, id := range []uint64{0, 1, 150, 299} {
				want, err := idx.Neighbors(id, 0)
				require.NoError(t, err)
				got, err := restored.Neighbors(id, 0)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}

			for _, p := range queries {
				wantIDs, wantDists, err := idx.Query(ctx, p, 10)
				require.NoError(t, err)
				gotIDs, gotDists, err := restored.Query(ctx, p, 10)
				require.NoError(t, err)
				assert.Equal(t, wantIDs, gotIDs)
				assert.Equal(t, wantDists, gotDists)
			}
		})
	}
}

func TestIndexSerializeEmpty(t *testing.T) {
	idx := newTestIndex(t, testConfig(3))

	data, err := idx.Serialize()
	require.NoError(t, err)

	restored, err := Deserialize(data)
	require.NoError(t, err)
	assert.Zero(t, restored.Count())
	assert.Equal(t, -1, restored.MaxLevel())
}

func TestDeserializeCorrupt(t *testing.T) {
	_, err := Deserialize([]byte("definitely not a snapshot"))
	assert.ErrorIs(t, err, ErrCorruptSnapshot)

	idx := newTestIndex(t, testConfig(2))
	insertVectors(t, idx, [][]float32{{0, 0}, {1, 1}})
	data, err := idx.Serialize()
	require.NoError(t, err)

	data[len(data)-1] ^= 0xFF
	_, err = Deserialize(data)
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestIndexCompact(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(8)
	cfg.EFSearch = 60

	idx := newTestIndex(t, cfg)
	vecs := testutil.NewRNG(17).UniformVectors(60, 8)
	insertVectors(t, idx, vecs)

	for id := uint64(0); id < 60; id += 6 {
		require.NoError(t, idx.Delete(ctx, id))
	}
	require.Equal(t, 50, idx.LiveCount())

	require.NoError(t, idx.Compact(ctx))

	assert.Equal(t, 50, idx.Count())
	assert.Equal(t, 50, idx.LiveCount())
	assert.False(t, idx.Contains(0))
	assert.True(t, idx.Contains(1))

	st, err := idx.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.DeletedCount)

	checkGraph(t, idx, idx.IDs())

	ids, dists, err := idx.Query(ctx, vecs[7], 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{7}, ids)
	assert.InDelta(t, 0, dists[0], 1e-6)

	// Deleted ids become free again.
	require.NoError(t, idx.Insert(ctx, 0, vecs[0]))
}

func TestIndexClone(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, testConfig(4))
	vecs := testutil.NewRNG(23).UniformVectors(50, 4)
	insertVectors(t, idx, vecs)

	clone, err := idx.Clone()
	require.NoError(t, err)

	require.NoError(t, clone.Insert(ctx, 1000, []float32{1, 1, 1, 1}))
	require.NoError(t, clone.Delete(ctx, 3))

	assert.Equal(t, 50, idx.Count())
	assert.True(t, idx.Contains(3))
	assert.False(t, idx.Contains(1000))
	assert.Equal(t, 51, clone.Count())

	for _, q := range vecs[10:15] {
		want, _, err := idx.Query(ctx, q, 3)
		require.NoError(t, err)
		got, _, err := clone.Query(ctx, q, 3)
		require.NoError(t, err)
		assert.Equal(t, want[0], got[0])
	}
}

func TestIndexClear(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, testConfig(2))
	insertVectors(t, idx, [][]float32{{0, 0}, {1, 1}, {2, 2}})

	require.NoError(t, idx.Clear())
	assert.Zero(t, idx.Count())
	assert.Equal(t, -1, idx.MaxLevel())

	_, _, err := idx.Query(ctx, []float32{0, 0}, 1)
	assert.ErrorIs(t, err, ErrEmptyIndex)

	require.NoError(t, idx.Insert(ctx, 1, []float32{1, 1}))
	ep, ok := idx.EntryPoint()
	require.True(t, ok)
	assert.Equal(t, uint64(1), ep)
}

func TestIndexSettings(t *testing.T) {
	idx := newTestIndex(t, testConfig(2))

	require.NoError(t, idx.SetEfSearch(77))
	assert.Equal(t, 77, idx.Config().EFSearch)
	assert.ErrorIs(t, idx.SetEfSearch(0), ErrInvalidConfig)

	require.NoError(t, idx.SetNumThreads(3))
	assert.Equal(t, 3, idx.Config().NumThreads)
	assert.ErrorIs(t, idx.SetNumThreads(-1), ErrInvalidConfig)
}

func TestIndexGetVectorCopies(t *testing.T) {
	idx := newTestIndex(t, testConfig(2))
	insertVectors(t, idx, [][]float32{{1, 2}})

	v, err := idx.GetVector(0)
	require.NoError(t, err)
	v[0] = 99

	again, err := idx.GetVector(0)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, again)
}

func TestIndexMemoryLimit(t *testing.T) {
	ctx := context.Background()
	rc := NewResourceController(ResourceConfig{MemoryLimitBytes: 2 * 4 * 4})

	idx := newTestIndex(t, testConfig(4), WithResourceController(rc))
	require.NoError(t, idx.Insert(ctx, 1, []float32{1, 1, 1, 1}))
	require.NoError(t, idx.Insert(ctx, 2, []float32{2, 2, 2, 2}))

	assert.ErrorIs(t, idx.Insert(ctx, 3, []float32{3, 3, 3, 3}), ErrMemoryLimitExceeded)
	assert.Equal(t, 2, idx.Count())

	require.NoError(t, idx.Clear())
	assert.Zero(t, rc.MemoryUsage())
	require.NoError(t, idx.Insert(ctx, 3, []float32{3, 3, 3, 3}))
}

func TestIndexObservability(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}

	idx := newTestIndex(t, testConfig(2), WithMetricsCollector(metrics), WithLogger(nil))
	insertVectors(t, idx, [][]float32{{0, 0}, {1, 1}})
	_ = idx.Insert(ctx, 0, []float32{0, 0})
	_, _, _ = idx.Query(ctx, []float32{0, 0}, 1)
	_ = idx.Delete(ctx, 1)
	_ = idx.InsertBatch(ctx, nil, [][]float32{{3, 3}})

	stats := metrics.Stats()
	assert.Equal(t, int64(3), stats.Insert.Count)
	assert.Equal(t, int64(1), stats.Insert.Errors)
	assert.Equal(t, int64(1), stats.Search.Count)
	assert.Equal(t, int64(1), stats.Delete.Count)
	assert.Equal(t, int64(1), stats.Batch.Calls)
}

func TestIndexConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(8)
	cfg.MaxElements = 1000

	idx := newTestIndex(t, cfg)
	rng := testutil.NewRNG(29)
	base := rng.UniformVectors(100, 8)
	extra := rng.UniformVectors(400, 8)
	queries := rng.UniformVectors(50, 8)
	batch := rng.UniformVectors(100, 8)
	insertVectors(t, idx, base)

	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(extra); i += 4 {
				assert.NoError(t, idx.Insert(ctx, uint64(100+i), extra[i]))
			}
		}(w)
	}

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, q := range queries {
				ids, _, err := idx.Query(ctx, q, 5)
				assert.NoError(t, err)
				assert.NotEmpty(t, ids)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for id := uint64(0); id < 20; id++ {
			assert.NoError(t, idx.Delete(ctx, id))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, idx.InsertBatch(ctx, seqIDs(5000, 100), batch))
	}()

	wg.Wait()

	assert.Equal(t, 600, idx.Count())
	assert.Equal(t, 580, idx.LiveCount())
	checkGraph(t, idx, allIDs(idx))
}

func seqIDs(start uint64, n int) []uint64 {
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = start + uint64(i)
	}
	return ids
}

// allIDs returns stored ids including deleted ones.
func allIDs(idx *Index) []uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := make([]uint64, idx.vectors.Count())
	for r := range ids {
		ids[r] = uint64(idx.vectors.PrimaryKey(model.RowID(r)))
	}
	return ids
}
