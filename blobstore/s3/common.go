package s3

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Client is the subset of the S3 API used by Store.
// *s3.Client satisfies it.
type Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// isNotFound reports whether err is an S3 missing-object error.
func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// listObjects is a shared helper for listing S3 objects.
// Keys are returned relative to rootPrefix and filtered by prefix.
func listObjects(ctx context.Context, client Client, bucket, rootPrefix, prefix string) ([]string, error) {
	fullPrefix := joinKey(rootPrefix, prefix)
	root := strings.TrimSuffix(rootPrefix, "/")

	var keys []string

	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(fullPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			relPath := aws.ToString(obj.Key)
			if root != "" {
				relPath = strings.TrimPrefix(strings.TrimPrefix(relPath, root), "/")
			}
			if relPath == "" || !strings.HasPrefix(relPath, prefix) {
				continue
			}
			keys = append(keys, relPath)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// joinKey joins a root prefix and a blob name without collapsing a trailing slash in name.
func joinKey(rootPrefix, name string) string {
	rootPrefix = strings.TrimSuffix(rootPrefix, "/")
	if rootPrefix == "" {
		return name
	}
	return rootPrefix + "/" + name
}
