// Package model defines core types used throughout hnswgo.
//
// # Identity Types
//
//   - PrimaryKey: caller-supplied, stable identifier of a vector (uint64)
//   - RowID: dense, index-local slot assigned in insertion order (uint32)
//
// Graph adjacency is stored in RowIDs. PrimaryKeys only appear at the
// public API boundary.
package model
