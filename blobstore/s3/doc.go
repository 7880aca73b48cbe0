// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes/faces"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	mgr := snapshot.NewManager(store)
//	_, err = mgr.Save(ctx, idx)
//
// # Features
//
//   - CRC32C-validated single-part uploads for small snapshots
//   - Multipart uploads for large snapshots
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//   - DDBCommitStore: DynamoDB conditional writes for the CURRENT pointer
package s3
