// Package raster draws the overlay primitives (strokes, discs, rings, badges)
// onto an RGBA canvas with an anti-aliasing scanline rasterizer.
package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"pairshare/internal/geom"
)

// circleSegments controls how round caps, joins and discs are approximated.
const circleSegments = 24

// Canvas is a drawable RGBA surface that reuses one rasterizer.
type Canvas struct {
	Img *image.RGBA
	r   *vector.Rasterizer
}

// NewCanvas allocates a transparent w×h canvas.
func NewCanvas(w, h int) *Canvas {
	return &Canvas{
		Img: image.NewRGBA(image.Rect(0, 0, w, h)),
		r:   vector.NewRasterizer(w, h),
	}
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() geom.Extent {
	b := c.Img.Bounds()
	return geom.Extent{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// Resize reallocates the canvas if the size changed.
func (c *Canvas) Resize(w, h int) {
	b := c.Img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return
	}
	c.Img = image.NewRGBA(image.Rect(0, 0, w, h))
	c.r = vector.NewRasterizer(w, h)
}

// Clear resets every pixel to transparent.
func (c *Canvas) Clear() {
	draw.Draw(c.Img, c.Img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// Composite draws src over the canvas.
func (c *Canvas) Composite(src image.Image) {
	draw.Draw(c.Img, c.Img.Bounds(), src, image.Point{}, draw.Over)
}

// Path accumulates polygons that are filled together, so overlapping parts
// are covered once.
type Path struct {
	c     *Canvas
	empty bool
}

// Begin starts a new path on the canvas.
func (c *Canvas) Begin() *Path {
	b := c.Img.Bounds()
	c.r.Reset(b.Dx(), b.Dy())
	return &Path{c: c, empty: true}
}

// Polygon adds a closed polygon. Winding is normalised so overlapping
// polygons add up instead of cancelling.
func (p *Path) Polygon(pts []geom.Position) {
	if len(pts) < 3 {
		return
	}
	if signedArea(pts) < 0 {
		rev := make([]geom.Position, len(pts))
		for i, q := range pts {
			rev[len(pts)-1-i] = q
		}
		pts = rev
	}
	p.addRing(pts)
}

// Hole adds a polygon with reversed winding, cutting it out of the shapes
// added before it.
func (p *Path) Hole(pts []geom.Position) {
	if len(pts) < 3 {
		return
	}
	if signedArea(pts) > 0 {
		rev := make([]geom.Position, len(pts))
		for i, q := range pts {
			rev[len(pts)-1-i] = q
		}
		pts = rev
	}
	p.addRing(pts)
}

func (p *Path) addRing(pts []geom.Position) {
	r := p.c.r
	r.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, q := range pts[1:] {
		r.LineTo(float32(q.X), float32(q.Y))
	}
	r.ClosePath()
	p.empty = false
}

// Disc adds a filled circle.
func (p *Path) Disc(center geom.Position, radius float64) {
	p.Polygon(circle(center, radius))
}

// Polyline adds a stroke of the given width through pts with round caps
// and round joins.
func (p *Path) Polyline(pts []geom.Position, width float64) {
	half := width / 2
	for i, q := range pts {
		p.Disc(q, half)
		if i == 0 {
			continue
		}
		a := pts[i-1]
		dx, dy := q.X-a.X, q.Y-a.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*half, dx/l*half
		p.Polygon([]geom.Position{
			{X: a.X + nx, Y: a.Y + ny},
			{X: q.X + nx, Y: q.Y + ny},
			{X: q.X - nx, Y: q.Y - ny},
			{X: a.X - nx, Y: a.Y - ny},
		})
	}
}

// Ring adds an annulus centred on center whose stroke is centred on radius.
func (p *Path) Ring(center geom.Position, radius, width float64) {
	outer := radius + width/2
	inner := radius - width/2
	p.Polygon(circle(center, outer))
	if inner > 0 {
		p.Hole(circle(center, inner))
	}
}

// RoundedRect adds a rectangle with rounded corners.
func (p *Path) RoundedRect(r geom.Frame, radius float64) {
	radius = math.Min(radius, math.Min(r.Size.Width, r.Size.Height)/2)
	x0, y0 := r.Origin.X, r.Origin.Y
	x1, y1 := x0+r.Size.Width, y0+r.Size.Height
	const steps = 6
	var pts []geom.Position
	corner := func(cx, cy, start float64) {
		for i := 0; i <= steps; i++ {
			a := start + float64(i)*(math.Pi/2)/steps
			pts = append(pts, geom.Position{X: cx + radius*math.Cos(a), Y: cy + radius*math.Sin(a)})
		}
	}
	corner(x1-radius, y0+radius, -math.Pi/2)
	corner(x1-radius, y1-radius, 0)
	corner(x0+radius, y1-radius, math.Pi/2)
	corner(x0+radius, y0+radius, math.Pi)
	p.Polygon(pts)
}

// Fill paints the accumulated path with col.
func (p *Path) Fill(col color.Color) {
	if p.empty {
		return
	}
	c := p.c
	c.r.DrawOp = draw.Over
	c.r.Draw(c.Img, c.Img.Bounds(), image.NewUniform(col), image.Point{})
}

// WithAlpha scales the alpha of c by a in [0,1].
func WithAlpha(c color.NRGBA, a float64) color.NRGBA {
	c.A = uint8(math.Round(float64(c.A) * a))
	return c
}

func circle(center geom.Position, radius float64) []geom.Position {
	pts := make([]geom.Position, circleSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / circleSegments
		pts[i] = geom.Position{X: center.X + radius*math.Cos(a), Y: center.Y + radius*math.Sin(a)}
	}
	return pts
}

func signedArea(pts []geom.Position) float64 {
	var s float64
	for i := range pts {
		j := (i + 1) % len(pts)
		s += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return s / 2
}
