package cursor

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/disintegration/imaging"

	"pairshare/internal/geom"
	"pairshare/internal/raster"
)

const (
	BadgeMaxWidth = 152.0
	BadgeHeight   = 20.0
	MaxNameRunes  = 17
	Ellipsis      = "…"

	// pointerAngle is the counter-clockwise rotation of the pointer variant.
	pointerAngle = 30.0
	spriteSide   = 48.0
)

var white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// arrow outline with the hotspot at the origin, in logical pixels.
var arrowShape = []geom.Position{
	{X: 0, Y: 0}, {X: 0, Y: 17}, {X: 4.5, Y: 13}, {X: 8, Y: 20.5},
	{X: 10.5, Y: 19.5}, {X: 7, Y: 12.5}, {X: 12.5, Y: 12.5},
}

// BoxWidth is the badge width in logical pixels for a label of n code points.
func BoxWidth(n int) float64 {
	return 8 + 8*float64(n)
}

// DisplayName truncates name so its badge fits BadgeMaxWidth.
func DisplayName(name string) string {
	n := utf8.RuneCountInString(name)
	if BoxWidth(n) <= BadgeMaxWidth {
		return name
	}
	runes := []rune(name)
	return string(runes[:MaxNameRunes]) + Ellipsis
}

// Sprite is a rasterised cursor with its hotspot.
type Sprite struct {
	Arrow   image.Image
	Hotspot image.Point
	Badge   image.Image
	scale   float64
}

type spriteKey struct {
	name  string
	color color.NRGBA
	mode  Mode
	scale float64
}

// Renderer rasterises cursor sprites once per name/colour/mode/scale and
// blits them at draw time.
type Renderer struct {
	sprites map[spriteKey]*Sprite
}

func NewRenderer() *Renderer {
	return &Renderer{sprites: make(map[spriteKey]*Sprite)}
}

// Forget drops cached sprites for name, e.g. when a participant leaves.
func (r *Renderer) Forget(name string) {
	for k := range r.sprites {
		if k.name == name {
			delete(r.sprites, k)
		}
	}
}

// Sprite returns the cached sprite, building it if needed.
func (r *Renderer) Sprite(name string, col color.NRGBA, mode Mode, scale float64) *Sprite {
	k := spriteKey{name: name, color: col, mode: mode, scale: scale}
	if sp, ok := r.sprites[k]; ok {
		return sp
	}
	sp := buildSprite(name, col, mode, scale)
	r.sprites[k] = sp
	return sp
}

// Draw blits the cursor with its hotspot at px. px is not clamped.
func (r *Renderer) Draw(c *raster.Canvas, name string, col color.NRGBA, mode Mode, px geom.Position, scale float64) {
	sp := r.Sprite(name, col, mode, scale)
	at := image.Pt(int(math.Round(px.X)), int(math.Round(px.Y)))

	ab := sp.Arrow.Bounds()
	dst := ab.Sub(ab.Min).Add(at.Sub(sp.Hotspot))
	draw.Draw(c.Img, dst, sp.Arrow, ab.Min, draw.Over)

	bb := sp.Badge.Bounds()
	off := image.Pt(int(12*scale), int(18*scale))
	draw.Draw(c.Img, bb.Sub(bb.Min).Add(at.Add(off)), sp.Badge, bb.Min, draw.Over)
}

func buildSprite(name string, col color.NRGBA, mode Mode, scale float64) *Sprite {
	side := int(math.Ceil(spriteSide * scale))
	center := geom.Position{X: float64(side) / 2, Y: float64(side) / 2}

	canvas := raster.NewCanvas(side, side)
	pts := make([]geom.Position, len(arrowShape))
	for i, p := range arrowShape {
		pts[i] = geom.Position{X: center.X + p.X*scale, Y: center.Y + p.Y*scale}
	}
	outline := canvas.Begin()
	outline.Polyline(append(pts, pts[0]), 3*scale)
	outline.Fill(white)
	body := canvas.Begin()
	body.Polygon(pts)
	body.Fill(col)

	var arrow image.Image = canvas.Img
	hotspot := image.Pt(side/2, side/2)
	if mode == ModePointer {
		rotated := imaging.Rotate(canvas.Img, pointerAngle, color.Transparent)
		b := rotated.Bounds()
		arrow = rotated
		hotspot = image.Pt(b.Dx()/2, b.Dy()/2)
	}

	return &Sprite{
		Arrow:   arrow,
		Hotspot: hotspot,
		Badge:   buildBadge(DisplayName(name), col, scale),
		scale:   scale,
	}
}

func buildBadge(label string, col color.NRGBA, scale float64) image.Image {
	w := int(math.Ceil(BoxWidth(utf8.RuneCountInString(label)) * scale))
	h := int(math.Ceil(BadgeHeight * scale))
	c := raster.NewCanvas(w, h)
	bg := c.Begin()
	bg.RoundedRect(geom.Frame{Size: geom.Extent{Width: float64(w), Height: float64(h)}}, 6*scale)
	bg.Fill(col)

	// The bitmap face has no ellipsis glyph.
	text := strings.Replace(label, Ellipsis, "...", 1)
	baseline := (float64(h) + 9) / 2
	c.Text(text, geom.Position{X: 4 * scale, Y: baseline}, white)
	return c.Img
}
