package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/hnswgo/distance"
)

func TestUniformVectors(t *testing.T) {
	v := NewRNG(4711).UniformVectors(8, 32)

	assert.Len(t, v, 8)
	for _, vec := range v {
		assert.Len(t, vec, 32)
		assert.Equal(t, 32, cap(vec))
		for _, x := range vec {
			assert.GreaterOrEqual(t, x, float32(0))
			assert.Less(t, x, float32(1))
		}
	}
}

func TestUnitVectors(t *testing.T) {
	for _, vec := range NewRNG(4711).UnitVectors(8, 32) {
		assert.InDelta(t, float32(1.0), distance.Norm(vec), 1e-5)
	}
}

func TestClusteredVectors(t *testing.T) {
	v := NewRNG(4711).ClusteredVectors(100, 32, 5, 0.01)

	assert.Len(t, v, 100)
	assert.Len(t, v[0], 32)

	// Vectors of the same cluster stay close, centroids are far apart.
	assert.Less(t, distance.L2(v[0], v[5]), float32(0.5))
	assert.Less(t, distance.L2(v[1], v[6]), float32(0.5))
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.UniformVectors(1, 10)

	rng.Reset()
	assert.Equal(t, v1, rng.UniformVectors(1, 10))
	assert.Equal(t, v1, NewRNG(4711).UniformVectors(1, 10))
	assert.NotEqual(t, v1, NewRNG(4712).UniformVectors(1, 10))
}

func TestExactTopK(t *testing.T) {
	dataset := [][]float32{{0, 0}, {3, 0}, {1, 0}, {-1, 0}}

	got := ExactTopK([]float32{0, 0}, dataset, 3, distance.L2)

	assert.Equal(t, []SearchResult{
		{ID: 0, Distance: 0},
		{ID: 2, Distance: 1},
		{ID: 3, Distance: 1},
	}, got)

	assert.Len(t, ExactTopK([]float32{0, 0}, dataset, 10, distance.L2), 4)
}

func TestComputeRecall(t *testing.T) {
	truth := []SearchResult{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}

	assert.Equal(t, 1.0, ComputeRecall(truth, []SearchResult{{ID: 4}, {ID: 3}, {ID: 2}, {ID: 1}}))
	assert.Equal(t, 0.5, ComputeRecall(truth, []SearchResult{{ID: 1}, {ID: 9}, {ID: 2}, {ID: 8}}))
	assert.Equal(t, 1.0, ComputeRecall(nil, nil))
	assert.Equal(t, 0.0, ComputeRecall(truth, nil))
}
