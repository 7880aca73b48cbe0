package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/hnswgo/blobstore"
	minioblob "github.com/hupe1980/hnswgo/blobstore/minio"
	s3blob "github.com/hupe1980/hnswgo/blobstore/s3"
	"github.com/hupe1980/hnswgo/snapshot"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const snapshotCacheSize = 4

// openStore resolves a --store value. A non-empty ddbTable commits CURRENT
// through DynamoDB and is only valid for s3:// stores.
func openStore(ctx context.Context, uri, ddbTable string) (blobstore.Store, error) {
	if ddbTable != "" && !strings.HasPrefix(uri, "s3://") {
		return nil, fmt.Errorf("--ddb-table requires an s3:// store, got %q", uri)
	}

	switch {
	case strings.HasPrefix(uri, "s3://"):
		bucket, prefix := splitBucket(strings.TrimPrefix(uri, "s3://"))
		if bucket == "" {
			return nil, fmt.Errorf("invalid store %q: missing bucket", uri)
		}
		if ddbTable != "" {
			store, err := s3blob.NewWithCommitTable(ctx, bucket, ddbTable, s3blob.WithPrefix(prefix))
			if err != nil {
				return nil, err
			}
			return cached(store)
		}
		store, err := s3blob.New(ctx, bucket, s3blob.WithPrefix(prefix))
		if err != nil {
			return nil, err
		}
		return cached(store)
	case strings.HasPrefix(uri, "minio://"):
		endpoint, rest := splitBucket(strings.TrimPrefix(uri, "minio://"))
		bucket, prefix := splitBucket(rest)
		if endpoint == "" || bucket == "" {
			return nil, fmt.Errorf("invalid store %q: want minio://host:port/bucket/prefix", uri)
		}
		client, err := minio.New(endpoint, &minio.Options{
			Creds: credentials.NewEnvMinio(),
		})
		if err != nil {
			return nil, err
		}
		return cached(minioblob.NewStore(client, bucket, prefix))
	default:
		return blobstore.NewLocalStore(uri), nil
	}
}

// cached keeps recently read snapshots of a remote store in memory.
// Snapshot keys are immutable once written; CURRENT and metadata are not.
func cached(store blobstore.Store) (blobstore.Store, error) {
	c, err := blobstore.NewCachingStore(store, snapshotCacheSize, blobstore.WithCacheFilter(func(name string) bool {
		_, ok := snapshot.ParseKey(name)
		return ok
	}))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// splitBucket splits "a/b/c" into "a" and "b/c".
func splitBucket(s string) (string, string) {
	head, tail, _ := strings.Cut(s, "/")
	return head, tail
}
