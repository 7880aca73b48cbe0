package hnswgo

import (
	"fmt"

	"github.com/hupe1980/hnswgo/distance"
)

const (
	// DefaultM is the default number of bidirectional links per node above layer 0.
	DefaultM = 16
	// DefaultEFConstruction is the default construction beam width.
	DefaultEFConstruction = 200
	// DefaultEFSearch is the default query beam width.
	DefaultEFSearch = 10
	// DefaultMaxElements is the default capacity.
	DefaultMaxElements = 10_000

	minimumM = 2
)

// Config holds the build parameters of an index. Only EFSearch and
// NumThreads can change after Build.
type Config struct {
	// Space is the distance metric.
	Space distance.Metric `json:"space" yaml:"space"`
	// Dimension is the vector length.
	Dimension int `json:"dimension" yaml:"dimension"`
	// M bounds the neighbors per node on layers above 0; layer 0 allows 2*M.
	M int `json:"m" yaml:"m"`
	// EFConstruction is the beam width used while inserting.
	EFConstruction int `json:"ef_construction" yaml:"ef_construction"`
	// EFSearch is the beam width used while querying; the effective width is max(k, EFSearch).
	EFSearch int `json:"ef_search" yaml:"ef_search"`
	// MaxElements is the capacity. Grow it with Resize.
	MaxElements int `json:"max_elements" yaml:"max_elements"`
	// NumThreads bounds the batch worker pool. 0 means runtime.NumCPU().
	NumThreads int `json:"num_threads" yaml:"num_threads"`
	// Seed makes level assignment reproducible. Nil seeds from the clock.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// DefaultConfig returns a configuration for vectors of the given dimension.
func DefaultConfig(dimension int) Config {
	return Config{
		Space:          distance.MetricL2,
		Dimension:      dimension,
		M:              DefaultM,
		EFConstruction: DefaultEFConstruction,
		EFSearch:       DefaultEFSearch,
		MaxElements:    DefaultMaxElements,
	}
}

// Validate checks c for invalid values.
func (c Config) Validate() error {
	switch {
	case !c.Space.Valid():
		return fmt.Errorf("%w: unknown space %v", ErrInvalidConfig, c.Space)
	case c.Dimension <= 0:
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, c.Dimension)
	case c.M < minimumM:
		return fmt.Errorf("%w: M must be >= %d, got %d", ErrInvalidConfig, minimumM, c.M)
	case c.EFConstruction < 1:
		return fmt.Errorf("%w: ef_construction must be positive, got %d", ErrInvalidConfig, c.EFConstruction)
	case c.EFSearch < 1:
		return fmt.Errorf("%w: ef_search must be positive, got %d", ErrInvalidConfig, c.EFSearch)
	case c.MaxElements < 1:
		return fmt.Errorf("%w: max_elements must be positive, got %d", ErrInvalidConfig, c.MaxElements)
	case c.NumThreads < 0:
		return fmt.Errorf("%w: num_threads must not be negative, got %d", ErrInvalidConfig, c.NumThreads)
	}
	return nil
}
