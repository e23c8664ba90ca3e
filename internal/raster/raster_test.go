package raster

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"pairshare/internal/geom"
)

var red = color.NRGBA{R: 255, A: 255}

func alphaAt(c *Canvas, x, y int) uint8 {
	return c.Img.RGBAAt(x, y).A
}

func TestPolylineCoversJoints(t *testing.T) {
	c := NewCanvas(100, 100)
	p := c.Begin()
	p.Polyline([]geom.Position{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 50, Y: 60}}, 6)
	p.Fill(red)

	assert.Equal(t, uint8(255), alphaAt(c, 30, 10))
	assert.Equal(t, uint8(255), alphaAt(c, 50, 10))
	assert.Equal(t, uint8(255), alphaAt(c, 50, 40))
	assert.Equal(t, uint8(0), alphaAt(c, 30, 40))
}

func TestRingHasHole(t *testing.T) {
	c := NewCanvas(100, 100)
	p := c.Begin()
	p.Ring(geom.Position{X: 50, Y: 50}, 20, 4)
	p.Fill(red)

	assert.Equal(t, uint8(0), alphaAt(c, 50, 50))
	assert.Equal(t, uint8(255), alphaAt(c, 70, 50))
	assert.Equal(t, uint8(0), alphaAt(c, 90, 50))
}

func TestOverlapDoesNotDoubleAlpha(t *testing.T) {
	c := NewCanvas(40, 40)
	p := c.Begin()
	p.Disc(geom.Position{X: 20, Y: 20}, 8)
	p.Disc(geom.Position{X: 22, Y: 20}, 8)
	p.Fill(WithAlpha(red, 0.6))

	assert.InDelta(t, 153, int(alphaAt(c, 21, 20)), 1)
}

func TestMeasureText(t *testing.T) {
	assert.Equal(t, 7*5.0, MeasureText("hello"))
}
