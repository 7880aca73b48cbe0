package hnswgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/hnswgo/internal/graph"
	"github.com/hupe1980/hnswgo/internal/hnsw"
	"github.com/hupe1980/hnswgo/internal/resource"
	"github.com/hupe1980/hnswgo/internal/vectorstore"
	"github.com/hupe1980/hnswgo/persistence"
)

var (
	// ErrNotBuilt is returned by operations on an index before Build.
	ErrNotBuilt = errors.New("index not built")
	// ErrAlreadyBuilt is returned by a second call to Build.
	ErrAlreadyBuilt = errors.New("index already built")
	// ErrDuplicateID is returned when inserting an id that is already present.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrUnknownID is returned for an id that is absent or deleted.
	ErrUnknownID = errors.New("unknown id")
	// ErrCapacityExceeded is returned when an insert would exceed MaxElements.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
	// ErrEmptyIndex is returned when querying an index without live vectors.
	ErrEmptyIndex = errors.New("index is empty")
	// ErrInvalidConfig is returned for an invalid configuration value.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidArgument is returned for malformed call arguments.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidLevel is returned for a layer a node does not exist on.
	ErrInvalidLevel = errors.New("invalid level")
	// ErrMemoryLimitExceeded is returned when the resource controller refuses memory.
	ErrMemoryLimitExceeded = errors.New("memory limit exceeded")
	// ErrCorruptSnapshot is returned when serialized data cannot be restored.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *vectorstore.DimensionError
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	switch {
	case errors.Is(err, vectorstore.ErrDuplicateKey):
		return fmt.Errorf("%w: %w", ErrDuplicateID, err)
	case errors.Is(err, vectorstore.ErrCapacityExceeded):
		return fmt.Errorf("%w: %w", ErrCapacityExceeded, err)
	case errors.Is(err, vectorstore.ErrUnknownRow), errors.Is(err, graph.ErrUnknownNode):
		return fmt.Errorf("%w: %w", ErrUnknownID, err)
	case errors.Is(err, vectorstore.ErrInvalidCapacity):
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	case errors.Is(err, graph.ErrLevelOutOfRange):
		return fmt.Errorf("%w: %w", ErrInvalidLevel, err)
	case errors.Is(err, hnsw.ErrEmptyGraph):
		return fmt.Errorf("%w: %w", ErrEmptyIndex, err)
	case errors.Is(err, hnsw.ErrInvalidK):
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	case errors.Is(err, resource.ErrMemoryLimitExceeded):
		return fmt.Errorf("%w: %w", ErrMemoryLimitExceeded, err)
	case errors.Is(err, persistence.ErrCorrupt),
		errors.Is(err, persistence.ErrInvalidMagic),
		errors.Is(err, persistence.ErrInvalidVersion),
		persistence.IsChecksumMismatch(err):
		return fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	return err
}
