// Package snapshot stores serialized indexes in a blobstore.Store.
//
// Each Save writes a new immutable blob under snapshots/ and then swaps the
// CURRENT pointer to it, so a reader never observes a partially written
// snapshot:
//
//	snapshots/00000000000000000001.hnsw
//	snapshots/00000000000000000002.hnsw
//	CURRENT -> snapshots/00000000000000000002.hnsw
//
// Usage:
//
//	mgr := snapshot.NewManager(blobstore.NewLocalStore("/var/lib/faces"))
//	info, err := mgr.Save(ctx, idx)
//	restored, err := mgr.Load(ctx)
//	_, err = mgr.Prune(ctx, 3)
package snapshot
