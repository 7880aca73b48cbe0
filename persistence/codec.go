package persistence

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/hnswgo/distance"
)

// Encode writes s to w as a snapshot, compressing the body with c.
func Encode(w io.Writer, s *Snapshot, c Compression) error {
	if !c.Valid() {
		return fmt.Errorf("unknown compression %d", uint8(c))
	}

	if err := s.Validate(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := writeBody(&body, s); err != nil {
		return err
	}

	raw := body.Bytes()

	stored, used, err := compress(raw, c)
	if err != nil {
		return fmt.Errorf("compress body: %w", err)
	}

	bw := NewBinaryIndexWriter(w)

	header := FileHeader{
		Magic:       MagicNumber,
		Version:     Version,
		Compression: used,
		RawSize:     uint64(len(raw)),
		BodySize:    uint64(len(stored)),
	}
	if err := bw.WriteValue(&header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if _, err := w.Write(stored); err != nil {
		return fmt.Errorf("write body: %w", err)
	}

	return bw.WriteValue(ComputeChecksum(raw))
}

// Decode reads a snapshot written by Encode and validates its structure.
func Decode(r io.Reader) (*Snapshot, error) {
	br := NewBinaryIndexReader(r)

	var header FileHeader
	if err := br.ReadValue(&header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	if header.Magic != MagicNumber {
		return nil, ErrInvalidMagic
	}

	if header.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, header.Version)
	}

	if !header.Compression.Valid() {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, header.Compression)
	}

	if header.BodySize > math.MaxInt64 {
		return nil, fmt.Errorf("%w: body size %d", ErrCorrupt, header.BodySize)
	}

	if header.Compression == CompressionLZ4 && header.RawSize > header.BodySize*255+16 {
		return nil, fmt.Errorf("%w: raw size %d exceeds lz4 bound", ErrCorrupt, header.RawSize)
	}

	// CopyN grows the buffer with the data actually present, so a corrupt
	// size surfaces as an EOF rather than a huge allocation.
	var stored bytes.Buffer
	if _, err := io.CopyN(&stored, r, int64(header.BodySize)); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	raw, err := decompress(stored.Bytes(), header.Compression, header.RawSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	expected, err := br.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("read checksum: %w", err)
	}

	if actual := ComputeChecksum(raw); actual != expected {
		return nil, &ChecksumMismatchError{Expected: expected, Actual: actual}
	}

	s, err := readBody(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

func writeBody(w io.Writer, s *Snapshot) error {
	bw := NewBinaryIndexWriter(w)

	m := meta{
		Metric:         uint8(s.Metric),
		Dimension:      uint32(s.Dimension),
		M:              uint32(s.M),
		EFConstruction: uint32(s.EFConstruction),
		EFSearch:       uint32(s.EFSearch),
		EntryPoint:     s.EntryPoint,
		MaxLevel:       int32(s.MaxLevel),
		MaxElements:    uint64(s.MaxElements),
		Count:          uint64(s.Count()),
	}
	if err := bw.WriteValue(&m); err != nil {
		return err
	}

	if err := bw.WriteUint64Slice(s.PrimaryKeys); err != nil {
		return err
	}

	if err := bw.WriteUint32Slice(s.Levels); err != nil {
		return err
	}

	if err := bw.WriteFloat32Slice(s.Vectors); err != nil {
		return err
	}

	for _, layers := range s.Neighbors {
		for _, list := range layers {
			if err := bw.WriteValue(uint32(len(list))); err != nil {
				return err
			}
			if err := bw.WriteUint32Slice(list); err != nil {
				return err
			}
		}
	}

	tombstones := s.Tombstones
	if tombstones == nil {
		tombstones = roaring.New()
	}

	data, err := tombstones.ToBytes()
	if err != nil {
		return fmt.Errorf("serialize tombstones: %w", err)
	}

	if err := bw.WriteValue(uint32(len(data))); err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

func readBody(r *bytes.Reader) (*Snapshot, error) {
	br := NewBinaryIndexReader(r)

	var m meta
	if err := br.ReadValue(&m); err != nil {
		return nil, fmt.Errorf("%w: read metadata: %v", ErrCorrupt, err)
	}

	if m.Dimension == 0 {
		return nil, fmt.Errorf("%w: zero dimension", ErrCorrupt)
	}

	if err := checkCount(m.Count, 8+4+4*int(m.Dimension), r.Len()); err != nil {
		return nil, err
	}

	count := int(m.Count)

	s := &Snapshot{
		Metric:         distance.Metric(m.Metric),
		Dimension:      int(m.Dimension),
		M:              int(m.M),
		EFConstruction: int(m.EFConstruction),
		EFSearch:       int(m.EFSearch),
		MaxElements:    int(m.MaxElements),
		EntryPoint:     m.EntryPoint,
		MaxLevel:       int(m.MaxLevel),
	}

	var err error
	if s.PrimaryKeys, err = br.ReadUint64Slice(count); err != nil {
		return nil, fmt.Errorf("%w: read primary keys: %v", ErrCorrupt, err)
	}

	if s.Levels, err = br.ReadUint32Slice(count); err != nil {
		return nil, fmt.Errorf("%w: read levels: %v", ErrCorrupt, err)
	}

	if s.Vectors, err = br.ReadFloat32Slice(count * s.Dimension); err != nil {
		return nil, fmt.Errorf("%w: read vectors: %v", ErrCorrupt, err)
	}

	s.Neighbors = make([][][]uint32, count)
	for row, level := range s.Levels {
		if int64(level) > int64(m.MaxLevel) {
			return nil, fmt.Errorf("%w: row %d level %d above max level %d", ErrCorrupt, row, level, m.MaxLevel)
		}
		if err := checkCount(uint64(level)+1, 4, r.Len()); err != nil {
			return nil, err
		}

		layers := make([][]uint32, level+1)
		for l := range layers {
			n, err := br.ReadUint32()
			if err != nil {
				return nil, fmt.Errorf("%w: read neighbor count: %v", ErrCorrupt, err)
			}
			if err := checkCount(uint64(n), 4, r.Len()); err != nil {
				return nil, err
			}
			if layers[l], err = br.ReadUint32Slice(int(n)); err != nil {
				return nil, fmt.Errorf("%w: read neighbors: %v", ErrCorrupt, err)
			}
		}
		s.Neighbors[row] = layers
	}

	n, err := br.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("%w: read tombstone size: %v", ErrCorrupt, err)
	}
	if err := checkCount(uint64(n), 1, r.Len()); err != nil {
		return nil, err
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: read tombstones: %v", ErrCorrupt, err)
	}

	s.Tombstones = roaring.New()
	if err := s.Tombstones.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: decode tombstones: %v", ErrCorrupt, err)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes in body", ErrCorrupt, r.Len())
	}

	return s, nil
}
