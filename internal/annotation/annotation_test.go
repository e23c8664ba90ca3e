package annotation

import (
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairshare/internal/geom"
	"pairshare/internal/protocol"
	"pairshare/internal/raster"
)

var green = color.NRGBA{G: 200, A: 255}

type scaleMapper struct{ w, h float64 }

func (m scaleMapper) PixelPosition(x, y float64) geom.Position {
	return geom.Position{X: x * m.w, Y: y * m.h}
}

func (m scaleMapper) LocalPercentageFromPixel(x, y float64) geom.Position {
	return geom.Position{X: x / m.w, Y: y / m.h}
}

func pt(x, y float64) geom.Position { return geom.Position{X: x, Y: y} }

func TestStartPathRequiresMode(t *testing.T) {
	s := New(green, false)
	assert.ErrorIs(t, s.StartPath(1, pt(0.1, 0.1)), ErrModeDisabled)
	assert.Nil(t, s.InProgress())

	s.SetMode(protocol.ClickPulse())
	require.NoError(t, s.StartPath(1, pt(0.1, 0.1)))
	assert.NotNil(t, s.InProgress())
}

func TestSecondStartDropsUnfinishedPath(t *testing.T) {
	s := New(green, false)
	s.SetMode(protocol.Draw(true))
	require.NoError(t, s.StartPath(1, pt(0.1, 0.1)))
	s.AddPoint(pt(0.2, 0.2))
	require.NoError(t, s.StartPath(2, pt(0.5, 0.5)))

	assert.Equal(t, uint64(2), s.InProgress().ID)
	assert.Equal(t, []geom.Position{pt(0.5, 0.5)}, s.InProgress().Points)
	assert.Empty(t, s.Completed())
}

func TestAddPointWithoutPathIgnored(t *testing.T) {
	s := New(green, false)
	s.SetMode(protocol.Draw(false))
	assert.False(t, s.AddPoint(pt(0.3, 0.3)))
	_, ok := s.EndPath(pt(0.3, 0.3), time.Now())
	assert.False(t, ok)
}

func TestEndPathMovesToCompleted(t *testing.T) {
	s := New(green, true)
	s.SetMode(protocol.Draw(false))
	now := time.Unix(10, 0)
	require.NoError(t, s.StartPath(9, pt(0.1, 0.1)))
	id, ok := s.EndPath(pt(0.2, 0.2), now)
	require.True(t, ok)
	assert.Equal(t, uint64(9), id)
	require.Len(t, s.Completed(), 1)
	p := s.Completed()[0]
	assert.Equal(t, []geom.Position{pt(0.1, 0.1), pt(0.2, 0.2)}, p.Points)
	require.NotNil(t, p.FinishedAt)
	assert.Equal(t, now, *p.FinishedAt)
	assert.True(t, s.Dirty())
}

func TestAutoClearEphemeralOnce(t *testing.T) {
	s := New(green, true)
	s.SetMode(protocol.Draw(false))
	start := time.Unix(10, 0)
	require.NoError(t, s.StartPath(3, pt(0.1, 0.1)))
	s.EndPath(pt(0.2, 0.2), start)

	assert.Empty(t, s.UpdateAutoClear(start.Add(ExpireAfter)))
	assert.Equal(t, []uint64{3}, s.UpdateAutoClear(start.Add(3001*time.Millisecond)))
	assert.Empty(t, s.UpdateAutoClear(start.Add(10*time.Second)))
	assert.Empty(t, s.Completed())
}

func TestAutoClearSkipsPermanentAndRemote(t *testing.T) {
	start := time.Unix(10, 0)

	perm := New(green, true)
	perm.SetMode(protocol.Draw(true))
	require.NoError(t, perm.StartPath(1, pt(0.1, 0.1)))
	perm.EndPath(pt(0.2, 0.2), start)
	assert.Empty(t, perm.UpdateAutoClear(start.Add(5*time.Second)))
	assert.Len(t, perm.Completed(), 1)

	remote := New(green, false)
	remote.SetMode(protocol.Draw(false))
	require.NoError(t, remote.StartPath(1, pt(0.1, 0.1)))
	remote.EndPath(pt(0.2, 0.2), start)
	assert.Empty(t, remote.UpdateAutoClear(start.Add(5*time.Second)))
}

func TestClearPathAndAll(t *testing.T) {
	s := New(green, false)
	s.SetMode(protocol.Draw(true))
	now := time.Unix(10, 0)
	for id := uint64(1); id <= 3; id++ {
		require.NoError(t, s.StartPath(id, pt(0.1, 0.1)))
		s.EndPath(pt(0.2, 0.2), now)
	}
	require.NoError(t, s.StartPath(4, pt(0.1, 0.1)))

	s.ClearPath(2)
	ids := []uint64{}
	for _, p := range s.Completed() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []uint64{1, 3}, ids)

	s.ClearPath(4)
	assert.Nil(t, s.InProgress())

	s.ClearAll()
	assert.False(t, s.HasPaths())
}

func TestDrawUsesCacheAndScratch(t *testing.T) {
	s := New(green, false)
	s.SetMode(protocol.Draw(true))
	m := scaleMapper{w: 100, h: 100}
	require.NoError(t, s.StartPath(1, pt(0.1, 0.5)))
	s.EndPath(pt(0.9, 0.5), time.Unix(1, 0))
	require.NoError(t, s.StartPath(2, pt(0.5, 0.1)))
	s.AddPoint(pt(0.5, 0.3))

	c := raster.NewCanvas(100, 100)
	s.Draw(c, m, 1)
	assert.False(t, s.Dirty())
	assert.Equal(t, uint8(255), c.Img.RGBAAt(30, 50).A)
	assert.Equal(t, uint8(255), c.Img.RGBAAt(50, 20).A)
	assert.Equal(t, uint8(0), c.Img.RGBAAt(30, 20).A)
}
