// Package geom holds the small value types shared by the overlay, cursor and
// annotation code.
package geom

import "math"

// Extent is a width/height pair. Units depend on context (logical or
// physical pixels).
type Extent struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether either dimension is zero.
func (e Extent) IsZero() bool { return e.Width == 0 || e.Height == 0 }

// Scale returns the extent multiplied by s.
func (e Extent) Scale(s float64) Extent {
	return Extent{Width: e.Width * s, Height: e.Height * s}
}

// Round returns the extent rounded to whole pixels.
func (e Extent) Round() Extent {
	return Extent{Width: math.Round(e.Width), Height: math.Round(e.Height)}
}

// Position is a point. Remote cursors and annotation points use screen
// percentages in [0,1]; window code uses pixels.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p+q.
func (p Position) Add(q Position) Position { return Position{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Position) Sub(q Position) Position { return Position{X: p.X - q.X, Y: p.Y - q.Y} }

// Clamp01 clamps both coordinates into [0,1].
func (p Position) Clamp01() Position {
	return Position{X: clamp(p.X, 0, 1), Y: clamp(p.Y, 0, 1)}
}

// Frame is a rectangle with an origin and a size.
type Frame struct {
	Origin Position `json:"origin"`
	Size   Extent   `json:"size"`
}

// Contains reports whether p lies inside f.
func (f Frame) Contains(p Position) bool {
	return p.X >= f.Origin.X && p.Y >= f.Origin.Y &&
		p.X < f.Origin.X+f.Size.Width && p.Y < f.Origin.Y+f.Size.Height
}

// Mapper converts between screen percentages and window pixels.
type Mapper interface {
	PixelPosition(x, y float64) Position
	LocalPercentageFromPixel(x, y float64) Position
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
