package hnsw

import (
	"fmt"

	"github.com/hupe1980/hnswgo/internal/selector"
	"github.com/hupe1980/hnswgo/model"
)

// Plan holds the neighbors chosen for a vector that is not yet linked.
type Plan struct {
	// Level is the level the new node will be inserted at.
	Level int
	// Neighbors[l] holds the selected neighbors on layer l, for
	// l in 0..min(Level, maxLevel at planning time).
	Neighbors [][]model.Candidate

	epoch    uint64
	maxLevel int
}

// Stale reports whether p must be recomputed before Commit: the graph was
// reset, or it gained layers (including going from empty to non-empty)
// since p was computed.
func (h *HNSW) Stale(p *Plan) bool {
	return p.epoch != h.epoch || p.maxLevel != h.graph.MaxLevel()
}

// Plan computes the neighbors of vec at level without mutating the graph.
// It only reads graph state and may run concurrently with other readers.
func (h *HNSW) Plan(vec []float32, lvl int) *Plan {
	p := &Plan{Level: lvl, epoch: h.epoch, maxLevel: h.graph.MaxLevel()}
	if p.maxLevel < 0 {
		return p
	}

	s := h.pool.Get(h.vectors.Count())
	defer h.pool.Put(s)

	dist := DistFunc(h.vectors.QueryDistance(vec))
	top := min(lvl, p.maxLevel)
	entries := h.descend(s, dist, top)

	p.Neighbors = make([][]model.Candidate, top+1)
	for l := top; l >= 0; l-- {
		found := h.BeamSearch(s, entries, l, h.opts.EFConstruction, dist, nil)

		live := make([]model.Candidate, 0, len(found))
		for _, c := range found {
			if !h.vectors.IsDeleted(c.Row) {
				live = append(live, c)
			}
		}
		p.Neighbors[l] = selector.Select(live, h.graph.MaxDegree(l), h.vectors.Distance)

		if len(found) > 0 {
			entries = found
		}
	}
	return p
}

// Commit adds row to the graph with the neighbors from p and links both
// directions. row must already be stored in the vector store. Neighbors
// tombstoned after planning are skipped. Requires exclusive access.
func (h *HNSW) Commit(row model.RowID, p *Plan) error {
	if h.Stale(p) {
		return fmt.Errorf("hnsw: stale plan for %v", row)
	}
	if err := h.graph.AddNode(row, p.Level); err != nil {
		return err
	}
	for l, neighbors := range p.Neighbors {
		for _, n := range neighbors {
			if h.vectors.IsDeleted(n.Row) {
				continue
			}
			if err := h.graph.Link(row, n.Row, l); err != nil {
				return err
			}
		}
	}
	return nil
}

// Insert plans and commits a stored row at the given level.
// Requires exclusive access.
func (h *HNSW) Insert(row model.RowID, lvl int) error {
	return h.Commit(row, h.Plan(h.vectors.Vector(row), lvl))
}
