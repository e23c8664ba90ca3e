package clickpulse

import (
	"image/color"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairshare/internal/geom"
	"pairshare/internal/raster"
)

var blue = color.NRGBA{B: 255, A: 255}

func newRing() *Ring {
	l := zerolog.Nop()
	return New(&l)
}

func checkInvariant(t *testing.T, r *Ring) {
	t.Helper()
	free, used := r.Len()
	require.Equal(t, Capacity, free+used)
	var prev *time.Time
	for _, idx := range r.used {
		at := r.slots[idx].enabledAt
		require.NotNil(t, at)
		if prev != nil {
			require.False(t, at.Before(*prev), "used queue must be FIFO by enable time")
		}
		prev = at
	}
	for _, idx := range r.free {
		require.Nil(t, r.slots[idx].enabledAt)
	}
}

func TestRingCapacityAndOverflow(t *testing.T) {
	r := newRing()
	now := time.Unix(100, 0)
	for i := 0; i < Capacity; i++ {
		assert.True(t, r.Enable(geom.Position{X: float64(i)}, blue, now.Add(time.Duration(i)*time.Millisecond)))
		checkInvariant(t, r)
	}
	assert.False(t, r.Enable(geom.Position{}, blue, now))
	checkInvariant(t, r)
}

func TestRingExpiresFIFO(t *testing.T) {
	r := newRing()
	start := time.Unix(100, 0)
	r.Enable(geom.Position{}, blue, start)
	r.Enable(geom.Position{}, blue, start.Add(500*time.Millisecond))

	r.Update(start.Add(999 * time.Millisecond))
	_, used := r.Len()
	assert.Equal(t, 2, used)

	r.Update(start.Add(1000 * time.Millisecond))
	_, used = r.Len()
	assert.Equal(t, 1, used)
	checkInvariant(t, r)

	r.Update(start.Add(1500 * time.Millisecond))
	assert.False(t, r.Active())
	checkInvariant(t, r)
}

func TestRingRadius(t *testing.T) {
	assert.Equal(t, DotRadius, RingRadius(100*time.Millisecond))
	assert.InDelta(t, 20.0, RingRadius(650*time.Millisecond), 1e-9)
	assert.Equal(t, RingMaxRadius, RingRadius(2*time.Second))
}

func TestDrawDotThenRing(t *testing.T) {
	r := newRing()
	start := time.Unix(100, 0)
	center := geom.Position{X: 50, Y: 50}
	r.Enable(center, blue, start)

	c := raster.NewCanvas(100, 100)
	r.Draw(c, start.Add(100*time.Millisecond), 1)
	assert.Equal(t, uint8(255), c.Img.RGBAAt(50, 50).A)

	c.Clear()
	r.Draw(c, start.Add(650*time.Millisecond), 1)
	assert.Equal(t, uint8(0), c.Img.RGBAAt(50, 50).A)
	assert.NotZero(t, c.Img.RGBAAt(70, 50).A)
}
