package persistence

import (
	"encoding/binary"
	"fmt"
	"io"
	"unsafe"
)

// nativeLittleEndian reports whether slices can be copied as raw memory.
var nativeLittleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// asBytes views a slice of fixed-size numbers as its backing bytes.
func asBytes[T uint32 | uint64 | float32](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
}

// BinaryIndexWriter writes little-endian primitives and slices.
type BinaryIndexWriter struct {
	w io.Writer
}

// NewBinaryIndexWriter creates a new binary writer.
func NewBinaryIndexWriter(w io.Writer) *BinaryIndexWriter {
	return &BinaryIndexWriter{w: w}
}

// WriteValue writes a fixed-size value with binary.Write.
func (bw *BinaryIndexWriter) WriteValue(v any) error {
	return binary.Write(bw.w, binary.LittleEndian, v)
}

// WriteFloat32Slice writes vec without a length prefix.
func (bw *BinaryIndexWriter) WriteFloat32Slice(vec []float32) error { return writeSlice(bw.w, vec) }

// WriteUint32Slice writes s without a length prefix.
func (bw *BinaryIndexWriter) WriteUint32Slice(s []uint32) error { return writeSlice(bw.w, s) }

// WriteUint64Slice writes s without a length prefix.
func (bw *BinaryIndexWriter) WriteUint64Slice(s []uint64) error { return writeSlice(bw.w, s) }

func writeSlice[T uint32 | uint64 | float32](w io.Writer, s []T) error {
	if len(s) == 0 {
		return nil
	}
	if !nativeLittleEndian {
		return binary.Write(w, binary.LittleEndian, s)
	}
	_, err := w.Write(asBytes(s))
	return err
}

// BinaryIndexReader reads what BinaryIndexWriter writes.
type BinaryIndexReader struct {
	r io.Reader
}

// NewBinaryIndexReader creates a new binary reader.
func NewBinaryIndexReader(r io.Reader) *BinaryIndexReader {
	return &BinaryIndexReader{r: r}
}

// ReadValue reads a fixed-size value with binary.Read.
func (br *BinaryIndexReader) ReadValue(v any) error {
	return binary.Read(br.r, binary.LittleEndian, v)
}

// ReadFloat32Slice reads count float32 values.
func (br *BinaryIndexReader) ReadFloat32Slice(count int) ([]float32, error) {
	return readSlice[float32](br.r, count)
}

// ReadUint32Slice reads count uint32 values.
func (br *BinaryIndexReader) ReadUint32Slice(count int) ([]uint32, error) {
	return readSlice[uint32](br.r, count)
}

// ReadUint64Slice reads count uint64 values.
func (br *BinaryIndexReader) ReadUint64Slice(count int) ([]uint64, error) {
	return readSlice[uint64](br.r, count)
}

func readSlice[T uint32 | uint64 | float32](r io.Reader, count int) ([]T, error) {
	if count == 0 {
		return nil, nil
	}
	s := make([]T, count)
	if !nativeLittleEndian {
		if err := binary.Read(r, binary.LittleEndian, s); err != nil {
			return nil, err
		}
		return s, nil
	}
	if _, err := io.ReadFull(r, asBytes(s)); err != nil {
		return nil, err
	}
	return s, nil
}

// ReadUint32 reads a single uint32.
func (br *BinaryIndexReader) ReadUint32() (uint32, error) {
	var v uint32
	if err := br.ReadValue(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// checkCount rejects counts that cannot fit in the remaining input.
func checkCount(count uint64, elemSize, remaining int) error {
	if count > uint64(remaining/elemSize) {
		return fmt.Errorf("%w: %d elements of %d bytes exceed %d remaining bytes", ErrCorrupt, count, elemSize, remaining)
	}
	return nil
}
