package testutil

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/hupe1980/hnswgo/distance"
)

// SearchResult is one entry of a ground-truth neighbor list.
type SearchResult struct {
	ID       uint64
	Distance float32
}

// RNG is a seeded, concurrency-safe source of test vectors.
type RNG struct {
	mu   sync.Mutex
	seed uint64
	rand *rand.Rand
}

// NewRNG returns an RNG that always yields the same sequence for seed.
func NewRNG(seed uint64) *RNG {
	r := &RNG{seed: seed}
	r.Reset()
	return r
}

// Reset rewinds the sequence to its start.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewPCG(r.seed, ^r.seed))
}

// Float32 returns a value in [0, 1).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// UniformVectors returns num vectors with components in [0, 1).
func (r *RNG) UniformVectors(num, dim int) [][]float32 {
	return r.fill(num, dim, func(rd *rand.Rand, _ int) float32 { return rd.Float32() })
}

// UnitVectors returns num vectors spread uniformly over the unit sphere.
func (r *RNG) UnitVectors(num, dim int) [][]float32 {
	vecs := r.fill(num, dim, func(rd *rand.Rand, _ int) float32 { return float32(rd.NormFloat64()) })
	for _, v := range vecs {
		distance.NormalizeL2InPlace(v)
	}
	return vecs
}

// ClusteredVectors returns num vectors drawn around clusters unit-length
// centroids with Gaussian noise of the given spread.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	centroids := r.UnitVectors(clusters, dim)

	i := 0
	return r.fill(num, dim, func(rd *rand.Rand, j int) float32 {
		c := centroids[(i/dim)%clusters]
		i++
		return c[j] + float32(rd.NormFloat64())*spread
	})
}

// fill allocates num vectors over one backing array.
func (r *RNG) fill(num, dim int, next func(rd *rand.Rand, j int) float32) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vecs := make([][]float32, num)
	for i := range vecs {
		v := data[i*dim : (i+1)*dim : (i+1)*dim]
		for j := range v {
			v[j] = next(r.rand, j)
		}
		vecs[i] = v
	}
	return vecs
}

// ExactTopK scans dataset linearly and returns the k nearest entries, where
// the ID of dataset[i] is i. Ties are broken by ascending ID.
func ExactTopK(query []float32, dataset [][]float32, k int, dist distance.Func) []SearchResult {
	results := make([]SearchResult, len(dataset))
	for i, v := range dataset {
		results[i] = SearchResult{ID: uint64(i), Distance: dist(query, v)}
	}

	slices.SortFunc(results, func(a, b SearchResult) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), cmp.Compare(a.ID, b.ID))
	})

	return results[:min(k, len(results))]
}

// ComputeRecall returns the share of the first k ground-truth ids found in
// the first k approximate ids, with k the shorter length.
// Two empty lists have recall 1.
func ComputeRecall(groundTruth, approximate []SearchResult) float64 {
	k := min(len(groundTruth), len(approximate))
	if k == 0 {
		if len(groundTruth) == len(approximate) {
			return 1
		}
		return 0
	}

	truth := make(map[uint64]struct{}, k)
	for _, r := range groundTruth[:k] {
		truth[r.ID] = struct{}{}
	}

	hits := 0
	for _, r := range approximate[:k] {
		if _, ok := truth[r.ID]; ok {
			hits++
		}
	}
	return float64(hits) / float64(k)
}
