package room

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameWithLuma(w, h int, y uint8) *image.YCbCr {
	f := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	for i := range f.Y {
		f.Y[i] = y
	}
	return f
}

func TestVideoSourceLatestFrame(t *testing.T) {
	s := NewVideoSource(16, 8)
	_, ok := s.Next()
	assert.False(t, ok)

	s.WriteFrame(frameWithLuma(16, 8, 10), time.Now())
	s.WriteFrame(frameWithLuma(16, 8, 20), time.Now())
	f, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, uint8(20), f.Y[0])

	_, ok = s.Next()
	assert.False(t, ok)
	assert.EqualValues(t, 2, s.Written())
}

func TestVideoSourceDropsWrongSize(t *testing.T) {
	s := NewVideoSource(16, 8)
	s.WriteFrame(frameWithLuma(8, 8, 1), time.Now())
	assert.Zero(t, s.Written())
}

func TestVideoSourceClosed(t *testing.T) {
	s := NewVideoSource(16, 8)
	s.Close()
	s.WriteFrame(frameWithLuma(16, 8, 1), time.Now())
	_, ok := s.Next()
	assert.False(t, ok)
}

func TestVideoSourceCopiesFrame(t *testing.T) {
	s := NewVideoSource(4, 4)
	in := frameWithLuma(4, 4, 7)
	s.WriteFrame(in, time.Now())
	in.Y[0] = 99
	f, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, uint8(7), f.Y[0])
}
