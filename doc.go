// Package hnswgo provides an in-memory approximate nearest-neighbor index
// built as a hierarchical navigable small world (HNSW) graph.
//
// # Quick Start
//
//	idx, _ := hnswgo.NewIndex(hnswgo.Config{
//	    Space:          distance.MetricL2,
//	    Dimension:      128,
//	    M:              16,
//	    EFConstruction: 200,
//	    EFSearch:       50,
//	    MaxElements:    100_000,
//	})
//
//	_ = idx.Insert(ctx, 42, vec)
//	ids, dists, _ := idx.Query(ctx, query, 10)
//
// # Graph
//
// Every vector is a node with a randomly drawn top layer; the level
// distribution decays geometrically with factor 1/ln(M). Nodes keep at most
// M neighbors per layer above 0 and 2*M on layer 0, chosen with the
// diversity heuristic. Queries descend greedily from the entry point and
// run a beam search of width max(k, EFSearch) on layer 0.
//
// # Deletes
//
// Delete only tombstones a vector: it keeps its edges so the graph stays
// navigable, but is never returned by queries nor chosen as a new
// neighbor. Compact rebuilds the graph without tombstones.
//
// # Concurrency
//
// Queries run concurrently under a shared lock. Each insert holds the write
// lock for its own graph mutation. InsertBatch and QueryBatch spread work
// over a bounded worker pool (Config.NumThreads, default runtime.NumCPU()).
//
// # Persistence
//
// Serialize and Deserialize round-trip the whole index through a single
// checksummed blob (see package persistence). Package snapshot stores such
// blobs in a blobstore.Store (local disk, memory, S3 or MinIO).
package hnswgo
