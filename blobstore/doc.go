// Package blobstore provides storage abstraction for serialized index snapshots.
//
// Store is the interface for reading and writing whole blobs (snapshots and the
// CURRENT pointer). Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with atomic temp-file + rename writes
//   - MemoryStore: In-process map, mainly for tests
//   - s3.Store: Amazon S3 with multipart uploads
//   - s3.DDBCommitStore: S3 plus a DynamoDB-backed CURRENT pointer
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
// Implement the Store interface to support custom storage backends:
//
//	type Store interface {
//	    Get(ctx, name) ([]byte, error)
//	    Put(ctx, name, data) error         // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Missing blobs must be reported with an error satisfying errors.Is(err, ErrNotFound).
package blobstore
