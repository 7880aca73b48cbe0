// Package distance provides vector distance calculations.
//
// # Supported Metrics
//
//   - MetricL2: Euclidean distance, sqrt(sum((a-b)^2)) (default)
//   - MetricCosine: 1 - cosine similarity
//   - MetricInnerProduct: 1 - dot(a, b)
//
// # Usage
//
//	d := distance.L2(a, b)
//	sim := distance.Dot(a, b)
//	fn, _ := distance.Provider(distance.MetricCosine)
package distance
