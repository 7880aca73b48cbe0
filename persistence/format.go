package persistence

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/hnswgo/distance"
)

const (
	// MagicNumber identifies snapshot files (ASCII: "HNSW", little-endian).
	MagicNumber = 0x57534E48
	// Version is the current file format version.
	Version = 1

	headerSize = 24
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrCorrupt        = errors.New("corrupt snapshot")
)

// FileHeader is the fixed-size header at the start of every snapshot.
type FileHeader struct {
	Magic       uint32
	Version     uint16
	Compression Compression
	Flags       uint8
	RawSize     uint64 // uncompressed body size
	BodySize    uint64 // stored body size
}

// meta is the fixed-size prefix of the body.
type meta struct {
	Metric         uint8
	Padding        [3]byte
	Dimension      uint32
	M              uint32
	EFConstruction uint32
	EFSearch       uint32
	EntryPoint     uint32
	MaxLevel       int32
	Padding2       [4]byte
	MaxElements    uint64
	Count          uint64
}

// Snapshot is the in-memory form of a serialized index. Row r of the index
// corresponds to index r of every per-node slice.
type Snapshot struct {
	Metric         distance.Metric
	Dimension      int
	M              int
	EFConstruction int
	EFSearch       int
	MaxElements    int

	// EntryPoint is only meaningful when MaxLevel >= 0.
	EntryPoint uint32
	MaxLevel   int

	PrimaryKeys []uint64
	Levels      []uint32
	// Vectors holds Count*Dimension values, row-major.
	Vectors []float32
	// Neighbors[r][l] is the neighbor list of row r on layer l.
	Neighbors [][][]uint32

	Tombstones *roaring.Bitmap
}

// Count returns the number of rows.
func (s *Snapshot) Count() int { return len(s.PrimaryKeys) }

// Vector returns the vector of row r.
func (s *Snapshot) Vector(r int) []float32 {
	return s.Vectors[r*s.Dimension : (r+1)*s.Dimension]
}

// Validate checks the structural consistency of s.
func (s *Snapshot) Validate() error {
	if !s.Metric.Valid() {
		return fmt.Errorf("%w: unknown metric %d", ErrCorrupt, s.Metric)
	}

	if s.Dimension <= 0 {
		return fmt.Errorf("%w: dimension %d", ErrCorrupt, s.Dimension)
	}

	count := s.Count()

	if len(s.Levels) != count || len(s.Neighbors) != count {
		return fmt.Errorf("%w: %d keys, %d levels, %d neighbor sets", ErrCorrupt, count, len(s.Levels), len(s.Neighbors))
	}

	if len(s.Vectors) != count*s.Dimension {
		return fmt.Errorf("%w: %d vector values for %d rows of dimension %d", ErrCorrupt, len(s.Vectors), count, s.Dimension)
	}

	if s.MaxElements < count {
		return fmt.Errorf("%w: %d rows exceed capacity %d", ErrCorrupt, count, s.MaxElements)
	}

	if count == 0 {
		if s.MaxLevel != -1 {
			return fmt.Errorf("%w: empty snapshot with max level %d", ErrCorrupt, s.MaxLevel)
		}
	} else {
		if int(s.EntryPoint) >= count {
			return fmt.Errorf("%w: entry point %d out of range", ErrCorrupt, s.EntryPoint)
		}
		if int(s.Levels[s.EntryPoint]) != s.MaxLevel {
			return fmt.Errorf("%w: entry point level %d != max level %d", ErrCorrupt, s.Levels[s.EntryPoint], s.MaxLevel)
		}
	}

	for row, layers := range s.Neighbors {
		level := int(s.Levels[row])
		if level > s.MaxLevel {
			return fmt.Errorf("%w: row %d level %d above max level %d", ErrCorrupt, row, level, s.MaxLevel)
		}
		if len(layers) != level+1 {
			return fmt.Errorf("%w: row %d has %d layers, want %d", ErrCorrupt, row, len(layers), level+1)
		}
		for l, list := range layers {
			for _, nb := range list {
				if int(nb) >= count {
					return fmt.Errorf("%w: row %d layer %d neighbor %d out of range", ErrCorrupt, row, l, nb)
				}
				if int(s.Levels[nb]) < l {
					return fmt.Errorf("%w: row %d layer %d neighbor %d has level %d", ErrCorrupt, row, l, nb, s.Levels[nb])
				}
			}
		}
	}

	if s.Tombstones != nil && !s.Tombstones.IsEmpty() && int(s.Tombstones.Maximum()) >= count {
		return fmt.Errorf("%w: tombstone %d out of range", ErrCorrupt, s.Tombstones.Maximum())
	}

	return nil
}
