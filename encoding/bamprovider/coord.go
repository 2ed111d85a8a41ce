package bamprovider

import (
	"math"

	"github.com/grailbio/hts/sam"
)

// Coord is a (reference, position) pair. Unmapped records have RefID -1 and
// sort after every mapped record.
type Coord struct {
	RefID int32
	Pos   int32
}

// UnmappedRefID is the RefID of unmapped records.
const UnmappedRefID = int32(-1)

func sortableRefID(id int32) int32 {
	if id == UnmappedRefID {
		return math.MaxInt32
	}
	return id
}

// NewCoord creates the Coord of position pos on ref. A nil ref yields an
// unmapped coordinate.
func NewCoord(ref *sam.Reference, pos int) Coord {
	c := Coord{RefID: int32(ref.ID()), Pos: int32(pos)}
	if c.RefID == UnmappedRefID {
		c.Pos = 0
	}
	return c
}

// CoordFromRecord returns the alignment start of r.
func CoordFromRecord(r *sam.Record) Coord {
	return NewCoord(r.Ref, r.Pos)
}

// Compare returns a negative int, 0, or a positive int if c<c1, c=c1, or c>c1.
func (c Coord) Compare(c1 Coord) int {
	if r0, r1 := sortableRefID(c.RefID), sortableRefID(c1.RefID); r0 != r1 {
		if r0 < r1 {
			return -1
		}
		return 1
	}
	return int(c.Pos) - int(c1.Pos)
}

// LT returns true iff c < c1.
func (c Coord) LT(c1 Coord) bool { return c.Compare(c1) < 0 }

// LE returns true iff c <= c1.
func (c Coord) LE(c1 Coord) bool { return c.Compare(c1) <= 0 }

// GE returns true iff c >= c1.
func (c Coord) GE(c1 Coord) bool { return c.Compare(c1) >= 0 }
