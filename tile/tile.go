// Package tile provides common tile types and the Visitor interface.
package tile

import (
	"errors"
	"fmt"
)

var ErrInvalidID = errors.New("mbextract: invalid tile id")

// ID represents tile coordinates. Whether Y counts rows from the top (XYZ)
// or from the bottom (TMS) depends on where the ID came from.
type ID struct {
	X uint32
	Y uint32
	Z uint32
}

func (t ID) Valid() bool {
	return t.Z < 32 && t.X < (1<<t.Z) && t.Y < (1<<t.Z)
}

// FlipY converts the row between the TMS and XYZ conventions.
// The conversion is its own inverse. The result is undefined for invalid IDs.
func (t ID) FlipY() ID {
	t.Y = (1<<t.Z - 1) - t.Y
	return t
}

func (t ID) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Scheme selects the row numbering convention of written tiles.
type Scheme int

const (
	// XYZ numbers rows top to bottom (Tiled web map).
	XYZ Scheme = iota
	// TMS numbers rows bottom to top, as stored in MBTiles.
	TMS
)

func (s Scheme) String() string {
	switch s {
	case XYZ:
		return "xyz"
	case TMS:
		return "tms"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// FromTMS converts an ID read in the TMS convention to the scheme s.
func (s Scheme) FromTMS(tileID ID) ID {
	if s == TMS {
		return tileID
	}
	return tileID.FlipY()
}

// Visitor is implemented by tile sources that can stream their contents.
type Visitor interface {
	// VisitTiles visits all tiles in the tileset, calling the visitor for each.
	// It returns an error if visiting fails.
	// Order of tiles, upfront cpu and memory consumption are implementation-defined.
	VisitTiles(visitor func(ID, []byte) error) error
}
