// Package layout paginates posts onto fixed-size print pages.
//
// All coordinates are PDF points measured from the top-left corner of the
// full page, bleed included. Nothing is ever placed in the bleed or in the
// margins; every element lies inside the content rectangle of its page.
package layout

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry reports a page configuration that leaves no room for content.
var ErrInvalidGeometry = errors.New("layout: invalid page geometry")

// Rect is an axis-aligned rectangle in page coordinates.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Within reports whether r lies entirely inside outer, allowing for float drift.
func (r Rect) Within(outer Rect) bool {
	const eps = 1e-6
	return r.X >= outer.X-eps &&
		r.Y >= outer.Y-eps &&
		r.Right() <= outer.Right()+eps &&
		r.Bottom() <= outer.Bottom()+eps
}

// Geometry is the physical page: trim size, inner margin and bleed, in points.
type Geometry struct {
	TrimWidth  float64
	TrimHeight float64
	Margin     float64
	Bleed      float64
}

// Letter is US Letter with a half-inch margin and an eighth-inch bleed.
var Letter = Geometry{TrimWidth: 612, TrimHeight: 792, Margin: 36, Bleed: 9}

// Validate checks that the geometry leaves a positive content area.
func (g Geometry) Validate() error {
	switch {
	case g.TrimWidth <= 0 || g.TrimHeight <= 0:
		return fmt.Errorf("%w: trim size must be positive", ErrInvalidGeometry)
	case g.Margin < 0 || g.Bleed < 0:
		return fmt.Errorf("%w: margin and bleed must not be negative", ErrInvalidGeometry)
	case 2*g.Margin >= g.TrimWidth || 2*g.Margin >= g.TrimHeight:
		return fmt.Errorf("%w: margins leave no content area", ErrInvalidGeometry)
	}
	return nil
}

// PageWidth is the full sheet width including bleed on both sides.
func (g Geometry) PageWidth() float64 { return g.TrimWidth + 2*g.Bleed }

// PageHeight is the full sheet height including bleed on both sides.
func (g Geometry) PageHeight() float64 { return g.TrimHeight + 2*g.Bleed }

// ContentRect is the area available for placement.
func (g Geometry) ContentRect() Rect {
	return Rect{
		X: g.Bleed + g.Margin,
		Y: g.Bleed + g.Margin,
		W: g.TrimWidth - 2*g.Margin,
		H: g.TrimHeight - 2*g.Margin,
	}
}
