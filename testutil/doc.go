// Package testutil provides deterministic test data and ground truth for
// index tests.
//
//	rng := testutil.NewRNG(42)
//	data := rng.UniformVectors(1000, 16)
//	want := testutil.ExactTopK(query, data, 10, distance.L2)
//	recall := testutil.ComputeRecall(want, got)
package testutil
