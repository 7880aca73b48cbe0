package persistence

import (
	"errors"
	"fmt"

	"github.com/hupe1980/hnswgo/internal/hash"
)

// ComputeChecksum returns the CRC32C of data. It detects accidental
// corruption only.
func ComputeChecksum(data []byte) uint32 {
	return hash.CRC32C(data)
}

// ChecksumMismatchError is returned when the trailer does not match the body.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// IsChecksumMismatch reports whether err wraps a ChecksumMismatchError.
func IsChecksumMismatch(err error) bool {
	var target *ChecksumMismatchError
	return errors.As(err, &target)
}
