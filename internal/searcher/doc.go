// Package searcher provides the pooled scratch state used by graph traversal.
//
// A Searcher owns the reusable resources needed for one beam search:
//   - Priority queues (candidates to explore, bounded result set)
//   - A visited set (bitset with dirty list for O(touched) reset)
//
// Searchers are obtained from a Pool and returned after use.
package searcher
