// Package hnsw implements Hierarchical Navigable Small World graphs.
//
// HNSW provides approximate nearest neighbor search with high recall and
// sub-linear query time. The HNSW type ties together a vector store, a
// layered graph and a level assigner, and exposes the two traversal modes:
//
//   - Construction: greedy descent (ef=1) to the new node's level, then a
//     beam search with EFConstruction per layer, neighbor selection and
//     symmetric linking.
//   - Query: greedy descent to layer 1, then a beam search at layer 0 with
//     max(k, efSearch), admitting only live rows into the result set.
//
// Insertion is split into Plan (read-only, may run concurrently with other
// readers) and Commit (requires exclusive access), so batches can compute
// candidates in parallel.
//
// # Parameters
//
//   - M: Max connections per node above layer 0; 2*M at layer 0 (default: 16)
//   - EFConstruction: Construction beam width (default: 200)
//
// # Reference
//
// Malkov & Yashunin, "Efficient and robust approximate nearest neighbor search
// using Hierarchical Navigable Small World graphs", IEEE TPAMI 2018.
package hnsw
