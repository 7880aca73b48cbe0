// Package selector implements the HNSW neighbor-selection heuristic.
//
// Given the candidates found around a base point, Select keeps a candidate
// only if it is strictly closer to the base than to every neighbor already
// kept (the relative-neighborhood rule), which spreads edges over different
// directions. Remaining slots are then backfilled closest-first.
package selector

import (
	"slices"

	"github.com/hupe1980/hnswgo/model"
)

// DistFunc returns the distance between two stored rows.
type DistFunc func(a, b model.RowID) float32

// Select returns at most limit neighbors chosen from candidates, whose
// Distance fields hold the distance to the base point. The result is ordered
// by ascending (distance, row) within each of the two phases: heuristic picks
// first, backfill after.
//
// candidates is sorted in place.
func Select(candidates []model.Candidate, limit int, dist DistFunc) []model.Candidate {
	if limit <= 0 || len(candidates) == 0 {
		return nil
	}

	slices.SortFunc(candidates, compare)
	candidates = dedup(candidates)

	result := make([]model.Candidate, 0, min(limit, len(candidates)))
	taken := make([]bool, len(candidates))

	result = applyHeuristic(result, taken, candidates, limit, dist)
	if len(result) < limit {
		result = fillUp(result, taken, candidates, limit)
	}
	return result
}

func applyHeuristic(result []model.Candidate, taken []bool, candidates []model.Candidate, limit int, dist DistFunc) []model.Candidate {
	for i, cand := range candidates {
		if len(result) >= limit {
			break
		}
		good := true
		for _, r := range result {
			if dist(cand.Row, r.Row) <= cand.Distance {
				good = false
				break
			}
		}
		if good {
			result = append(result, cand)
			taken[i] = true
		}
	}
	return result
}

func fillUp(result []model.Candidate, taken []bool, candidates []model.Candidate, limit int) []model.Candidate {
	for i, cand := range candidates {
		if len(result) >= limit {
			break
		}
		if !taken[i] {
			result = append(result, cand)
			taken[i] = true
		}
	}
	return result
}

// dedup drops repeated rows from a sorted slice. A row always carries the
// same distance, so repeats are adjacent.
func dedup(sorted []model.Candidate) []model.Candidate {
	return slices.CompactFunc(sorted, func(a, b model.Candidate) bool {
		return a.Row == b.Row
	})
}

func compare(a, b model.Candidate) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}
