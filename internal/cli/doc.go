// Package cli implements the hnswctl command tree.
//
//	hnswctl generate --dim 128 --count 10000 --output vectors.jsonl
//	hnswctl build --config index.yaml --input vectors.jsonl --store ./data
//	hnswctl query --input queries.jsonl -k 5 --store ./data
//	hnswctl stats --store ./data
//
// --store accepts a local directory, s3://bucket/prefix or
// minio://host:port/bucket/prefix (credentials from MINIO_ACCESS_KEY and
// MINIO_SECRET_KEY, or MINIO_ROOT_USER and MINIO_ROOT_PASSWORD). With
// --ddb-table an s3:// store commits CURRENT through a DynamoDB table so
// concurrent builds cannot overwrite each other's pointer.
package cli
