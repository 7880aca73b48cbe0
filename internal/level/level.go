// Package level draws HNSW insertion levels.
package level

import (
	"math"
	"sync/atomic"
)

// Assigner samples node levels from floor(-ln(U) * mL) with mL = 1/ln(M),
// so each level holds about 1/M of the nodes of the level below.
//
// Assigner is safe for concurrent use. Two assigners with the same seed
// produce the same sequence when called sequentially.
type Assigner struct {
	mL    float64
	state atomic.Uint64
}

// New returns an assigner for the given M (must be >= 2) and seed.
func New(m int, seed uint64) *Assigner {
	a := &Assigner{mL: 1 / math.Log(float64(max(m, 2)))}
	a.state.Store(seed)
	return a
}

// Multiplier returns mL.
func (a *Assigner) Multiplier() float64 { return a.mL }

// Sample returns the next level.
func (a *Assigner) Sample() int {
	return int(math.Floor(-math.Log(a.uniform()) * a.mL))
}

// uniform returns a value in (0, 1].
func (a *Assigner) uniform() float64 {
	// Lock-free xorshift64* over a golden-ratio stepped state.
	x := a.state.Add(0x9E3779B97F4A7C15)
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	return float64((x*0x2545F4914F6CDD1D)>>11+1) / float64(1<<53)
}

// Clone returns an assigner that continues from the current state.
func (a *Assigner) Clone() *Assigner {
	c := &Assigner{mL: a.mL}
	c.state.Store(a.state.Load())
	return c
}
