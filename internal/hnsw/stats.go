package hnsw

import (
	"github.com/hupe1980/hnswgo/internal/graph"
)

// Stats describes the graph.
type Stats struct {
	M              int
	M0             int
	EFConstruction int
	Nodes          int
	LiveNodes      int
	DeletedNodes   int
	MaxLevel       int
	EntryPoint     int64 // -1 when empty
	Levels         []graph.LevelStats
}

// Stats returns statistics about the HNSW graph.
func (h *HNSW) Stats() Stats {
	st := Stats{
		M:              h.opts.M,
		M0:             h.graph.MaxDegree(0),
		EFConstruction: h.opts.EFConstruction,
		Nodes:          h.graph.Len(),
		LiveNodes:      h.vectors.Live(),
		MaxLevel:       h.graph.MaxLevel(),
		EntryPoint:     -1,
		Levels:         h.graph.Stats(),
	}
	st.DeletedNodes = h.vectors.Count() - st.LiveNodes
	if ep, ok := h.graph.EntryPoint(); ok {
		st.EntryPoint = int64(ep)
	}
	return st
}
