// Package persistence provides the binary snapshot format of an HNSW index.
//
// A snapshot is a single self-describing blob:
//
//	+-------------+
//	| FileHeader  |  24 bytes - magic "HNSW", version, compression, sizes
//	+-------------+
//	| Body        |  BodySize bytes, optionally LZ4 or ZSTD compressed
//	+-------------+
//	| Checksum    |  4 bytes - CRC32C of the uncompressed body
//	+-------------+
//
// The uncompressed body holds the index metadata, primary keys, node
// levels, vectors, per-layer neighbor lists and the tombstone set as a
// serialized roaring bitmap.
//
// All integers and floats are little-endian. On little-endian hosts slices
// are copied as raw memory; big-endian hosts convert element by element.
package persistence
