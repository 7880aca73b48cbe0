// Package graph holds the layered adjacency lists of an HNSW index.
//
// Each node owns one neighbor list per layer 0..level. Lists hold at most
// M rows above layer 0 and 2M rows at layer 0; Link enforces the bound by
// re-running neighbor selection over an overflowing list.
//
// Graph is not safe for concurrent mutation. Concurrent reads are safe
// while no writer is active.
package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/hnswgo/internal/selector"
	"github.com/hupe1980/hnswgo/model"
)

var (
	// ErrUnknownNode is returned for a row that has no node.
	ErrUnknownNode = errors.New("unknown node")
	// ErrLevelOutOfRange is returned for a level above the node's level.
	ErrLevelOutOfRange = errors.New("level out of range")
	// ErrDegreeExceeded is returned when a list would exceed its bound.
	ErrDegreeExceeded = errors.New("degree bound exceeded")
	// ErrNodeExists is returned when adding a row twice.
	ErrNodeExists = errors.New("node already exists")
)

type node struct {
	level int
	links [][]model.RowID // links[l] for l in 0..level
}

// Graph is a multi-layer proximity graph over dense rows.
type Graph struct {
	m    int
	dist selector.DistFunc

	nodes    []*node
	count    int
	entry    model.RowID
	maxLevel int
}

// New creates an empty graph with per-layer bound m (2m at layer 0).
// dist is used to prune lists that overflow.
func New(m int, dist selector.DistFunc) *Graph {
	return &Graph{m: m, dist: dist, maxLevel: -1}
}

// M returns the per-layer bound above layer 0.
func (g *Graph) M() int { return g.m }

// MaxDegree returns the neighbor-list bound at level.
func (g *Graph) MaxDegree(level int) int {
	if level == 0 {
		return 2 * g.m
	}
	return g.m
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return g.count }

// EntryPoint returns the entry point, if the graph is non-empty.
func (g *Graph) EntryPoint() (model.RowID, bool) {
	return g.entry, g.maxLevel >= 0
}

// MaxLevel returns the level of the entry point, or -1 when empty.
func (g *Graph) MaxLevel() int { return g.maxLevel }

// AddNode adds row with empty lists on layers 0..level. The first node, and
// any node whose level exceeds the current maximum, becomes the entry point.
func (g *Graph) AddNode(row model.RowID, level int) error {
	if level < 0 {
		return fmt.Errorf("%w: %d", ErrLevelOutOfRange, level)
	}
	if int(row) < len(g.nodes) && g.nodes[row] != nil {
		return fmt.Errorf("%w: %v", ErrNodeExists, row)
	}
	if int(row) >= len(g.nodes) {
		g.nodes = append(g.nodes, make([]*node, int(row)+1-len(g.nodes))...)
	}

	n := &node{level: level, links: make([][]model.RowID, level+1)}
	for l := range n.links {
		n.links[l] = make([]model.RowID, 0, g.MaxDegree(l))
	}
	g.nodes[row] = n
	g.count++

	if level > g.maxLevel {
		g.entry = row
		g.maxLevel = level
	}
	return nil
}

func (g *Graph) node(row model.RowID) (*node, error) {
	if int(row) >= len(g.nodes) || g.nodes[row] == nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownNode, row)
	}
	return g.nodes[row], nil
}

func (g *Graph) nodeAt(row model.RowID, level int) (*node, error) {
	n, err := g.node(row)
	if err != nil {
		return nil, err
	}
	if level < 0 || level > n.level {
		return nil, fmt.Errorf("%w: level %d of %v (node level %d)", ErrLevelOutOfRange, level, row, n.level)
	}
	return n, nil
}

// Level returns the level of row.
func (g *Graph) Level(row model.RowID) (int, error) {
	n, err := g.node(row)
	if err != nil {
		return 0, err
	}
	return n.level, nil
}

// HasNodeAt reports whether row exists on layer level.
func (g *Graph) HasNodeAt(row model.RowID, level int) bool {
	_, err := g.nodeAt(row, level)
	return err == nil
}

// Neighbors returns the neighbor list of row at level. The slice aliases
// internal memory and is only valid until the next mutation.
func (g *Graph) Neighbors(row model.RowID, level int) ([]model.RowID, error) {
	n, err := g.nodeAt(row, level)
	if err != nil {
		return nil, err
	}
	return n.links[level], nil
}

// SetNeighbors replaces the neighbor list of row at level with a copy of ids.
func (g *Graph) SetNeighbors(row model.RowID, level int, ids []model.RowID) error {
	n, err := g.nodeAt(row, level)
	if err != nil {
		return err
	}
	if len(ids) > g.MaxDegree(level) {
		return fmt.Errorf("%w: %d > %d at level %d", ErrDegreeExceeded, len(ids), g.MaxDegree(level), level)
	}
	for _, id := range ids {
		if !g.HasNodeAt(id, level) {
			return fmt.Errorf("%w: neighbor %v at level %d", ErrUnknownNode, id, level)
		}
	}
	n.links[level] = append(n.links[level][:0], ids...)
	return nil
}

// Link adds b to a's list and a to b's list at level. A list that grows past
// its bound is replaced by the selection over its members plus the new row,
// with the list owner as the base point.
func (g *Graph) Link(a, b model.RowID, level int) error {
	if a == b {
		return nil
	}
	na, err := g.nodeAt(a, level)
	if err != nil {
		return err
	}
	nb, err := g.nodeAt(b, level)
	if err != nil {
		return err
	}
	g.addConnection(a, na, b, level)
	g.addConnection(b, nb, a, level)
	return nil
}

func (g *Graph) addConnection(src model.RowID, n *node, target model.RowID, level int) {
	conns := n.links[level]
	if slices.Contains(conns, target) {
		return
	}
	maxM := g.MaxDegree(level)
	if len(conns) < maxM {
		n.links[level] = append(conns, target)
		return
	}
	g.addConnectionPrune(src, n, target, level, maxM)
}

func (g *Graph) addConnectionPrune(src model.RowID, n *node, target model.RowID, level, maxM int) {
	conns := n.links[level]
	candidates := make([]model.Candidate, 0, len(conns)+1)
	for _, c := range conns {
		candidates = append(candidates, model.Candidate{Row: c, Distance: g.dist(src, c)})
	}
	candidates = append(candidates, model.Candidate{Row: target, Distance: g.dist(src, target)})

	kept := selector.Select(candidates, maxM, g.dist)

	conns = conns[:0]
	for _, k := range kept {
		conns = append(conns, k.Row)
	}
	n.links[level] = conns
}

// LevelStats describes one layer.
type LevelStats struct {
	Level          int
	Nodes          int
	Connections    int
	AvgConnections float64
	MaxConnections int
}

// Stats returns per-layer node and edge counts, from layer 0 up.
func (g *Graph) Stats() []LevelStats {
	if g.maxLevel < 0 {
		return nil
	}
	stats := make([]LevelStats, g.maxLevel+1)
	for l := range stats {
		stats[l].Level = l
	}
	for _, n := range g.nodes {
		if n == nil {
			continue
		}
		for l := 0; l <= n.level; l++ {
			deg := len(n.links[l])
			stats[l].Nodes++
			stats[l].Connections += deg
			stats[l].MaxConnections = max(stats[l].MaxConnections, deg)
		}
	}
	for l := range stats {
		if stats[l].Nodes > 0 {
			stats[l].AvgConnections = float64(stats[l].Connections) / float64(stats[l].Nodes)
		}
	}
	return stats
}

// Clone returns a deep copy that prunes with dist.
func (g *Graph) Clone(dist selector.DistFunc) *Graph {
	c := &Graph{
		m:        g.m,
		dist:     dist,
		nodes:    make([]*node, len(g.nodes)),
		count:    g.count,
		entry:    g.entry,
		maxLevel: g.maxLevel,
	}
	for i, n := range g.nodes {
		if n == nil {
			continue
		}
		cn := &node{level: n.level, links: make([][]model.RowID, len(n.links))}
		for l, links := range n.links {
			cn.links[l] = slices.Clone(links)
		}
		c.nodes[i] = cn
	}
	return c
}

// Reset removes all nodes.
func (g *Graph) Reset() {
	clear(g.nodes)
	g.nodes = g.nodes[:0]
	g.count = 0
	g.entry = 0
	g.maxLevel = -1
}
