// Package hash provides the CRC32-Castagnoli checksum used by snapshots and
// S3 uploads.
//
// Go's hash/crc32 uses SSE4.2 or the ARM CRC extension when available.
//
//	sum := hash.CRC32C(body)
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	sum = h.Sum32()
package hash
