// Package vectorstore owns the raw vectors of an index and their external keys.
//
// Vectors are stored contiguously in a single []float32 slice
// (row r occupies data[r*dim:(r+1)*dim]) and addressed by a dense model.RowID
// assigned in insertion order. The store enforces dimension and capacity,
// rejects duplicate primary keys, and computes distances for the configured
// metric.
//
// # Concurrency
//
// Reads (Vector, Distance, IsDeleted, ...) are safe concurrently with each
// other and with MarkDeleted, which flips a word-level atomic flag. Store,
// Resize and Reset require external exclusive synchronization.
package vectorstore
