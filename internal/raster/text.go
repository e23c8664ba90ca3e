package raster

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"pairshare/internal/geom"
)

// Face is the bitmap face used for cursor badges.
var Face font.Face = basicfont.Face7x13

// MeasureText returns the advance width of s in pixels.
func MeasureText(s string) float64 {
	return float64(font.MeasureString(Face, s).Round())
}

// Text draws s with its baseline-left corner at origin.
func (c *Canvas) Text(s string, origin geom.Position, col color.Color) {
	d := &font.Drawer{
		Dst:  c.Img,
		Src:  image.NewUniform(col),
		Face: Face,
		Dot:  fixed.P(int(origin.X), int(origin.Y)),
	}
	d.DrawString(s)
}
