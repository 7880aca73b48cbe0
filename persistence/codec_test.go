package persistence

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hnswgo/distance"
)

// testSnapshot builds a small consistent three-row graph:
// row 1 is the entry point on level 1, rows 0 and 2 live on level 0.
func testSnapshot() *Snapshot {
	tombstones := roaring.New()
	tombstones.Add(2)

	return &Snapshot{
		Metric:         distance.MetricL2,
		Dimension:      2,
		M:              4,
		EFConstruction: 32,
		EFSearch:       10,
		MaxElements:    8,
		EntryPoint:     1,
		MaxLevel:       1,
		PrimaryKeys:    []uint64{10, 20, 30},
		Levels:         []uint32{0, 1, 0},
		Vectors:        []float32{0, 0, 1, 1, 2, 2},
		Neighbors: [][][]uint32{
			{{1}},
			{{0, 2}, {}},
			{{1}},
		},
		Tombstones: tombstones,
	}
}

func encode(t *testing.T, s *Snapshot, c Compression) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, s, c))

	return buf.Bytes()
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			in := testSnapshot()

			out, err := Decode(bytes.NewReader(encode(t, in, c)))
			require.NoError(t, err)

			assert.Equal(t, in.Metric, out.Metric)
			assert.Equal(t, in.Dimension, out.Dimension)
			assert.Equal(t, in.M, out.M)
			assert.Equal(t, in.EFConstruction, out.EFConstruction)
			assert.Equal(t, in.EFSearch, out.EFSearch)
			assert.Equal(t, in.MaxElements, out.MaxElements)
			assert.Equal(t, in.EntryPoint, out.EntryPoint)
			assert.Equal(t, in.MaxLevel, out.MaxLevel)
			assert.Equal(t, in.PrimaryKeys, out.PrimaryKeys)
			assert.Equal(t, in.Levels, out.Levels)
			assert.Equal(t, in.Vectors, out.Vectors)
			assert.Equal(t, []float32{1, 1}, out.Vector(1))
			assert.Len(t, out.Neighbors, 3)
			assert.Equal(t, []uint32{0, 2}, out.Neighbors[1][0])
			assert.Empty(t, out.Neighbors[1][1])
			assert.True(t, in.Tombstones.Equals(out.Tombstones))
		})
	}
}

func TestEncodeCompressesRedundantBodies(t *testing.T) {
	s := &Snapshot{
		Metric:      distance.MetricCosine,
		Dimension:   64,
		M:           16,
		MaxElements: 256,
		MaxLevel:    0,
	}
	for i := 0; i < 256; i++ {
		s.PrimaryKeys = append(s.PrimaryKeys, uint64(i))
		s.Levels = append(s.Levels, 0)
		s.Vectors = append(s.Vectors, make([]float32, 64)...)
		s.Neighbors = append(s.Neighbors, [][]uint32{{}})
	}

	plain := encode(t, s, CompressionNone)
	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		data := encode(t, s, c)
		assert.Less(t, len(data), len(plain), c.String())
		assert.Equal(t, byte(c), data[6], "compression recorded in header")

		out, err := Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, s.Vectors, out.Vectors)
	}
}

func TestEncodeEmpty(t *testing.T) {
	s := &Snapshot{
		Metric:      distance.MetricInnerProduct,
		Dimension:   3,
		M:           16,
		MaxElements: 10,
		MaxLevel:    -1,
	}

	out, err := Decode(bytes.NewReader(encode(t, s, CompressionZSTD)))
	require.NoError(t, err)
	assert.Equal(t, 0, out.Count())
	assert.Equal(t, -1, out.MaxLevel)
	assert.True(t, out.Tombstones.IsEmpty())
}

func TestDecodeRejectsCorruption(t *testing.T) {
	t.Run("Magic", func(t *testing.T) {
		data := encode(t, testSnapshot(), CompressionNone)
		data[0] ^= 0xFF

		_, err := Decode(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("Version", func(t *testing.T) {
		data := encode(t, testSnapshot(), CompressionNone)
		binary.LittleEndian.PutUint16(data[4:], 99)

		_, err := Decode(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrInvalidVersion)
	})

	t.Run("Checksum", func(t *testing.T) {
		data := encode(t, testSnapshot(), CompressionNone)
		data[headerSize+20] ^= 0x01

		_, err := Decode(bytes.NewReader(data))
		assert.True(t, IsChecksumMismatch(err))
	})

	t.Run("Truncated", func(t *testing.T) {
		data := encode(t, testSnapshot(), CompressionLZ4)

		_, err := Decode(bytes.NewReader(data[:len(data)-10]))
		assert.Error(t, err)

		_, err = Decode(bytes.NewReader(data[:10]))
		assert.Error(t, err)
	})
}

func TestEncodeRejectsInconsistentSnapshots(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{"Metric", func(s *Snapshot) { s.Metric = distance.Metric(9) }},
		{"Dimension", func(s *Snapshot) { s.Dimension = 0 }},
		{"Vectors", func(s *Snapshot) { s.Vectors = s.Vectors[:4] }},
		{"Levels", func(s *Snapshot) { s.Levels = s.Levels[:2] }},
		{"Capacity", func(s *Snapshot) { s.MaxElements = 2 }},
		{"EntryPoint", func(s *Snapshot) { s.EntryPoint = 7 }},
		{"EntryLevel", func(s *Snapshot) { s.EntryPoint = 0 }},
		{"NeighborRange", func(s *Snapshot) { s.Neighbors[0][0] = []uint32{5} }},
		{"NeighborLevel", func(s *Snapshot) { s.Neighbors[1][1] = []uint32{0} }},
		{"Layers", func(s *Snapshot) { s.Neighbors[0] = [][]uint32{{1}, {1}} }},
		{"Tombstone", func(s *Snapshot) { s.Tombstones.Add(3) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSnapshot()
			tt.mutate(s)

			var buf bytes.Buffer
			assert.ErrorIs(t, Encode(&buf, s, CompressionNone), ErrCorrupt)
		})
	}

	var buf bytes.Buffer
	assert.Error(t, Encode(&buf, testSnapshot(), Compression(7)))
}

func TestCompression(t *testing.T) {
	for in, want := range map[string]Compression{
		"":     CompressionNone,
		"none": CompressionNone,
		"LZ4":  CompressionLZ4,
		"zstd": CompressionZSTD,
	} {
		got, err := ParseCompression(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseCompression("gzip")
	assert.Error(t, err)

	var c Compression
	require.NoError(t, c.UnmarshalText([]byte("zstd")))
	assert.Equal(t, CompressionZSTD, c)

	b, err := CompressionLZ4.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "lz4", string(b))

	assert.Equal(t, "unknown(9)", Compression(9).String())
}

func TestIncompressibleBodyStoredRaw(t *testing.T) {
	data := []byte{1, 2, 3}

	stored, used, err := compress(data, CompressionZSTD)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, used)
	assert.Equal(t, data, stored)
}
