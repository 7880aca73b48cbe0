package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/hnswgo/codec"
	"github.com/hupe1980/hnswgo/match"
)

// maxLineSize bounds a single JSON line; 4096-d float vectors fit comfortably.
const maxLineSize = 16 << 20

// vectorLine is one line of a vector file.
type vectorLine struct {
	ID     *uint64      `json:"id,omitempty"`
	Vector []float32    `json:"vector"`
	Record match.Record `json:"record,omitempty"`
}

// vectorFile is a decoded vector file. IDs is nil when no line carried an id.
type vectorFile struct {
	IDs     []uint64
	Vectors [][]float32
	Records map[uint64]match.Record
}

var errMixedIDs = errors.New("either every line or no line must carry an id")

// readVectors decodes JSON lines. Blank lines are skipped.
func readVectors(r io.Reader, c codec.Codec) (*vectorFile, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		f       vectorFile
		withIDs int
		records = make(map[int]match.Record)
	)

	for lineNo := 1; sc.Scan(); lineNo++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var v vectorLine
		if err := c.Unmarshal(line, &v); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if len(v.Vector) == 0 {
			return nil, fmt.Errorf("line %d: missing vector", lineNo)
		}

		if v.ID != nil {
			withIDs++
			f.IDs = append(f.IDs, *v.ID)
		}
		if v.Record != nil {
			records[len(f.Vectors)] = v.Record
		}
		f.Vectors = append(f.Vectors, v.Vector)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if withIDs != 0 && withIDs != len(f.Vectors) {
		return nil, errMixedIDs
	}

	if len(records) > 0 {
		f.Records = make(map[uint64]match.Record, len(records))
		for i, rec := range records {
			f.Records[f.id(i)] = rec
		}
	}

	return &f, nil
}

// id returns the id line i will be inserted under.
func (f *vectorFile) id(i int) uint64 {
	if f.IDs == nil {
		return uint64(i)
	}
	return f.IDs[i]
}

// writeVector encodes one JSON line.
func writeVector(w io.Writer, c codec.Codec, id uint64, vec []float32) error {
	data, err := c.Marshal(vectorLine{ID: &id, Vector: vec})
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
