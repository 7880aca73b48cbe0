package hnswgo

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hupe1980/hnswgo/model"
	"github.com/hupe1980/hnswgo/persistence"
)

// Serialize encodes the index into a single blob holding the configuration,
// every vector, node level, neighbor list and tombstone.
func (idx *Index) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := idx.Encode(&buf, idx.opts.compression); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Encode writes the serialized index to w using body compression c,
// regardless of the compression the index was configured with.
func (idx *Index) Encode(w io.Writer, c persistence.Compression) error {
	s, err := idx.snapshot()
	if err != nil {
		return err
	}

	return persistence.Encode(w, s, c)
}

// WriteTo writes the serialized index to w.
func (idx *Index) WriteTo(w io.Writer) (int64, error) {
	data, err := idx.Serialize()
	if err != nil {
		return 0, err
	}

	n, err := w.Write(data)

	return int64(n), err
}

// snapshot copies the index state under the read lock.
func (idx *Index) snapshot() (*persistence.Snapshot, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return nil, ErrNotBuilt
	}

	v, g := idx.vectors, idx.graph.Graph()
	n := v.Count()

	s := &persistence.Snapshot{
		Metric:         idx.cfg.Space,
		Dimension:      idx.cfg.Dimension,
		M:              idx.cfg.M,
		EFConstruction: idx.cfg.EFConstruction,
		EFSearch:       int(idx.efSearch.Load()),
		MaxElements:    v.Capacity(),
		MaxLevel:       g.MaxLevel(),
		PrimaryKeys:    make([]uint64, n),
		Levels:         make([]uint32, n),
		Vectors:        make([]float32, 0, n*idx.cfg.Dimension),
		Neighbors:      make([][][]uint32, n),
		Tombstones:     v.Tombstones(),
	}

	if ep, ok := g.EntryPoint(); ok {
		s.EntryPoint = uint32(ep)
	}

	for r := range n {
		row := model.RowID(r)

		s.PrimaryKeys[r] = uint64(v.PrimaryKey(row))
		s.Vectors = append(s.Vectors, v.Vector(row)...)

		lvl, err := g.Level(row)
		if err != nil {
			return nil, translateError(err)
		}
		s.Levels[r] = uint32(lvl)

		layers := make([][]uint32, lvl+1)
		for l := range layers {
			rows, err := g.Neighbors(row, l)
			if err != nil {
				return nil, translateError(err)
			}
			list := make([]uint32, len(rows))
			for i, nb := range rows {
				list[i] = uint32(nb)
			}
			layers[l] = list
		}
		s.Neighbors[r] = layers
	}

	return s, nil
}

// Deserialize restores an index written by Serialize.
func Deserialize(data []byte, optFns ...Option) (*Index, error) {
	return ReadIndex(bytes.NewReader(data), optFns...)
}

// ReadIndex restores an index from a serialized stream.
func ReadIndex(r io.Reader, optFns ...Option) (*Index, error) {
	s, err := persistence.Decode(r)
	if err != nil {
		return nil, translateError(err)
	}

	return restore(s, optFns)
}

func restore(s *persistence.Snapshot, optFns []Option) (*Index, error) {
	cfg := Config{
		Space:          s.Metric,
		Dimension:      s.Dimension,
		M:              s.M,
		EFConstruction: s.EFConstruction,
		EFSearch:       s.EFSearch,
		MaxElements:    s.MaxElements,
	}

	idx, err := NewIndex(cfg, optFns...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := s.Count()
	if err := idx.acquireMemory(n); err != nil {
		return nil, err
	}

	if err := idx.restoreLocked(s); err != nil {
		idx.releaseMemory(n)
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, translateError(err))
	}

	return idx, nil
}

func (idx *Index) restoreLocked(s *persistence.Snapshot) error {
	g := idx.graph.Graph()

	for r := range s.Count() {
		row, err := idx.vectors.Store(model.PrimaryKey(s.PrimaryKeys[r]), s.Vector(r))
		if err != nil {
			return err
		}
		if err := g.AddNode(row, int(s.Levels[r])); err != nil {
			return err
		}
	}

	for r, layers := range s.Neighbors {
		for l, list := range layers {
			rows := make([]model.RowID, len(list))
			for i, nb := range list {
				rows[i] = model.RowID(nb)
			}
			if err := g.SetNeighbors(model.RowID(r), l, rows); err != nil {
				return err
			}
		}
	}

	if ep, ok := g.EntryPoint(); ok && uint32(ep) != s.EntryPoint {
		return fmt.Errorf("entry point %d, want %d", s.EntryPoint, ep)
	}

	return idx.vectors.RestoreTombstones(s.Tombstones)
}
