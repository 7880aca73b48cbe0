package hnsw

import (
	"github.com/hupe1980/hnswgo/internal/searcher"
	"github.com/hupe1980/hnswgo/model"
)

// DistFunc returns the distance from the current query to a stored row.
type DistFunc func(model.RowID) float32

// AdmitFunc reports whether a row may enter the result set. Rows that are
// not admitted are still traversed.
type AdmitFunc func(model.RowID) bool

// BeamSearch runs a best-first search on one layer starting from entries
// (whose Distance fields must hold their distance to the query) and returns
// up to ef admitted rows in ascending (distance, row) order.
//
// The search stops when the closest unexplored candidate is farther than the
// worst row of a full result set, or when no candidates remain. admit may be
// nil to admit every row.
func (h *HNSW) BeamSearch(s *searcher.Searcher, entries []model.Candidate, level, ef int, dist DistFunc, admit AdmitFunc) []model.Candidate {
	s.Reset()
	s.Visited.EnsureCapacity(h.vectors.Count())

	candidates := s.Candidates
	results := s.Results
	visited := s.Visited

	for _, ep := range entries {
		if visited.Visited(ep.Row) {
			continue
		}
		visited.Visit(ep.Row)
		candidates.PushItem(ep)
		if admit == nil || admit(ep.Row) {
			results.PushItemBounded(ep, ef)
		}
	}

	for candidates.Len() > 0 {
		curr, _ := candidates.PopItem()

		if results.Len() >= ef {
			worst, _ := results.TopItem()
			if curr.Distance > worst.Distance {
				break
			}
		}

		neighbors, err := h.graph.Neighbors(curr.Row, level)
		if err != nil {
			continue
		}
		for _, next := range neighbors {
			if visited.Visited(next) {
				continue
			}
			visited.Visit(next)

			c := model.Candidate{Row: next, Distance: dist(next)}

			// Skip rows that cannot improve a full result set.
			if results.Len() >= ef {
				worst, _ := results.TopItem()
				if !c.Less(worst) {
					continue
				}
			}

			candidates.PushItem(c)
			if admit == nil || admit(next) {
				results.PushItemBounded(c, ef)
			}
		}
	}

	return results.AppendSorted(nil)
}

// descend walks greedily (ef=1) from the entry point down to stopLevel+1 and
// returns the closest row found on the last layer visited.
func (h *HNSW) descend(s *searcher.Searcher, dist DistFunc, stopLevel int) []model.Candidate {
	ep, ok := h.graph.EntryPoint()
	if !ok {
		return nil
	}
	entries := []model.Candidate{{Row: ep, Distance: dist(ep)}}
	for l := h.graph.MaxLevel(); l > stopLevel; l-- {
		if best := h.BeamSearch(s, entries, l, 1, dist, nil); len(best) > 0 {
			entries = best
		}
	}
	return entries
}

// Search returns up to ef live rows closest to query, in ascending
// (distance, row) order, where ef = max(k, efSearch).
func (h *HNSW) Search(query []float32, k, efSearch int) ([]model.Candidate, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if h.graph.Len() == 0 {
		return nil, ErrEmptyGraph
	}

	s := h.pool.Get(h.vectors.Count())
	defer h.pool.Put(s)

	dist := DistFunc(h.vectors.QueryDistance(query))
	entries := h.descend(s, dist, 0)

	live := func(row model.RowID) bool { return !h.vectors.IsDeleted(row) }
	return h.BeamSearch(s, entries, 0, max(k, efSearch), dist, live), nil
}
