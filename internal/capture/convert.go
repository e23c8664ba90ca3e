package capture

import (
	"image"

	"github.com/disintegration/imaging"

	"pairshare/internal/types"
)

// NewI420 allocates a 4:2:0 frame. Odd dimensions are rounded down.
func NewI420(w, h int) *image.YCbCr {
	return image.NewYCbCr(image.Rect(0, 0, w&^1, h&^1), image.YCbCrSubsampleRatio420)
}

// BGRAToNRGBA wraps a BGRA frame as an opaque NRGBA image.
func BGRAToNRGBA(f *types.RawFrame) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		src := f.Data[y*f.Stride : y*f.Stride+f.Width*4]
		dst := img.Pix[y*img.Stride : y*img.Stride+f.Width*4]
		for x := 0; x < len(src); x += 4 {
			dst[x+0] = src[x+2]
			dst[x+1] = src[x+1]
			dst[x+2] = src[x+0]
			dst[x+3] = 0xFF
		}
	}
	return img
}

// ConvertFrame writes f into dst, resizing with imaging when the capture
// size differs from dst.
func ConvertFrame(f *types.RawFrame, dst *image.YCbCr) {
	b := dst.Bounds()
	if f.Width == b.Dx() && f.Height == b.Dy() {
		fillI420(dst, f.Data, f.Stride, 2, 1, 0)
		return
	}
	scaled := imaging.Resize(BGRAToNRGBA(f), b.Dx(), b.Dy(), imaging.Linear)
	fillI420(dst, scaled.Pix, scaled.Stride, 0, 1, 2)
}

// fillI420 converts packed 4-byte pixels to BT.601 limited-range I420.
// ri, gi and bi are the channel offsets within each pixel.
func fillI420(dst *image.YCbCr, pix []byte, stride, ri, gi, bi int) {
	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x += 2 {
			var sr, sg, sb int
			for dy := 0; dy < 2; dy++ {
				row := (y + dy) * stride
				for dx := 0; dx < 2; dx++ {
					o := row + (x+dx)*4
					r, g, b := int(pix[o+ri]), int(pix[o+gi]), int(pix[o+bi])
					dst.Y[(y+dy)*dst.YStride+x+dx] = luma(r, g, b)
					sr += r
					sg += g
					sb += b
				}
			}
			ci := (y/2)*dst.CStride + x/2
			dst.Cb[ci], dst.Cr[ci] = chroma(sr/4, sg/4, sb/4)
		}
	}
}

func luma(r, g, b int) uint8 {
	return uint8((66*r+129*g+25*b+128)>>8 + 16)
}

func chroma(r, g, b int) (uint8, uint8) {
	cb := (-38*r-74*g+112*b+128)>>8 + 128
	cr := (112*r-94*g-18*b+128)>>8 + 128
	return uint8(cb), uint8(cr)
}
