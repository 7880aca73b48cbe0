package model

import (
	"fmt"
)

// RowID is a dense, index-local identifier for a stored vector.
// It is transient and may change during compaction.
type RowID uint32

// String returns a string representation of the RowID.
func (r RowID) String() string {
	return fmt.Sprintf("Row(%d)", uint32(r))
}

// PrimaryKey is the user-facing stable identifier.
type PrimaryKey uint64

// Candidate is a (row, distance) pair produced during graph traversal.
type Candidate struct {
	Row      RowID
	Distance float32
}

// Less orders candidates by distance, breaking ties by ascending row.
func (c Candidate) Less(o Candidate) bool {
	if c.Distance != o.Distance {
		return c.Distance < o.Distance
	}
	return c.Row < o.Row
}
