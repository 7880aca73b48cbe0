package hnswgo

import (
	"fmt"
	"slices"

	"github.com/hupe1980/hnswgo/distance"
	"github.com/hupe1980/hnswgo/model"
)

// LevelStats describes one layer of the graph.
type LevelStats struct {
	Level          int     `json:"level" yaml:"level"`
	Nodes          int     `json:"nodes" yaml:"nodes"`
	Connections    int     `json:"connections" yaml:"connections"`
	AvgConnections float64 `json:"avg_connections" yaml:"avg_connections"`
	MaxConnections int     `json:"max_connections" yaml:"max_connections"`
}

// Stats describes an index.
type Stats struct {
	Space          distance.Metric `json:"space" yaml:"space"`
	Dimension      int             `json:"dimension" yaml:"dimension"`
	M              int             `json:"m" yaml:"m"`
	M0             int             `json:"m0" yaml:"m0"`
	EFConstruction int             `json:"ef_construction" yaml:"ef_construction"`
	EFSearch       int             `json:"ef_search" yaml:"ef_search"`
	MaxElements    int             `json:"max_elements" yaml:"max_elements"`
	Count          int             `json:"count" yaml:"count"`
	LiveCount      int             `json:"live_count" yaml:"live_count"`
	DeletedCount   int             `json:"deleted_count" yaml:"deleted_count"`
	MaxLevel       int             `json:"max_level" yaml:"max_level"`
	// EntryPoint is nil while the index is empty.
	EntryPoint *uint64      `json:"entry_point" yaml:"entry_point"`
	Levels     []LevelStats `json:"levels" yaml:"levels"`
}

// Stats returns statistics about the index and its graph layers.
func (idx *Index) Stats() (Stats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return Stats{}, ErrNotBuilt
	}

	hs := idx.graph.Stats()

	st := Stats{
		Space:          idx.cfg.Space,
		Dimension:      idx.cfg.Dimension,
		M:              hs.M,
		M0:             hs.M0,
		EFConstruction: hs.EFConstruction,
		EFSearch:       int(idx.efSearch.Load()),
		MaxElements:    idx.vectors.Capacity(),
		Count:          idx.vectors.Count(),
		LiveCount:      hs.LiveNodes,
		DeletedCount:   hs.DeletedNodes,
		MaxLevel:       hs.MaxLevel,
		Levels:         make([]LevelStats, len(hs.Levels)),
	}

	if hs.EntryPoint >= 0 {
		pk := uint64(idx.vectors.PrimaryKey(model.RowID(hs.EntryPoint)))
		st.EntryPoint = &pk
	}

	for i, l := range hs.Levels {
		st.Levels[i] = LevelStats(l)
	}

	return st, nil
}

// GetVector returns a copy of the vector stored under id.
func (idx *Index) GetVector(id uint64) ([]float32, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	row, err := idx.liveRow(model.PrimaryKey(id))
	if err != nil {
		return nil, err
	}

	return slices.Clone(idx.vectors.Vector(row)), nil
}

// Contains reports whether id is stored and not deleted.
func (idx *Index) Contains(id uint64) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	_, err := idx.liveRow(model.PrimaryKey(id))
	return err == nil
}

// IDs returns the live ids in ascending order.
func (idx *Index) IDs() []uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return nil
	}

	ids := make([]uint64, 0, idx.vectors.Live())
	for r := 0; r < idx.vectors.Count(); r++ {
		row := model.RowID(r)
		if !idx.vectors.IsDeleted(row) {
			ids = append(ids, uint64(idx.vectors.PrimaryKey(row)))
		}
	}
	slices.Sort(ids)

	return ids
}

// Neighbors returns the ids linked to id on the given layer. Deleted vectors
// keep their links and can be inspected.
func (idx *Index) Neighbors(id uint64, level int) ([]uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	row, err := idx.row(model.PrimaryKey(id))
	if err != nil {
		return nil, err
	}

	rows, err := idx.graph.Graph().Neighbors(row, level)
	if err != nil {
		return nil, translateError(err)
	}

	ids := make([]uint64, len(rows))
	for i, r := range rows {
		ids[i] = uint64(idx.vectors.PrimaryKey(r))
	}

	return ids, nil
}

// Level returns the top layer of id.
func (idx *Index) Level(id uint64) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	row, err := idx.row(model.PrimaryKey(id))
	if err != nil {
		return 0, err
	}

	lvl, err := idx.graph.Graph().Level(row)
	if err != nil {
		return 0, translateError(err)
	}

	return lvl, nil
}

// EntryPoint returns the id the searches start from.
func (idx *Index) EntryPoint() (uint64, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return 0, false
	}

	ep, _, ok := idx.graph.EntryPoint()
	if !ok {
		return 0, false
	}

	return uint64(idx.vectors.PrimaryKey(ep)), true
}

// MaxLevel returns the level of the entry point, or -1 when empty.
func (idx *Index) MaxLevel() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return -1
	}

	_, lvl, _ := idx.graph.EntryPoint()

	return lvl
}

func (idx *Index) row(pk model.PrimaryKey) (model.RowID, error) {
	if !idx.built {
		return 0, ErrNotBuilt
	}

	row, ok := idx.vectors.Row(pk)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownID, pk)
	}

	return row, nil
}

func (idx *Index) liveRow(pk model.PrimaryKey) (model.RowID, error) {
	row, err := idx.row(pk)
	if err != nil {
		return 0, err
	}

	if idx.vectors.IsDeleted(row) {
		return 0, fmt.Errorf("%w: %d deleted", ErrUnknownID, pk)
	}

	return row, nil
}
