// Package annotation keeps the freehand ink paths of one participant and
// draws them onto the overlay.
package annotation

import (
	"errors"
	"image/color"
	"time"

	"pairshare/internal/geom"
	"pairshare/internal/protocol"
	"pairshare/internal/raster"
)

const (
	// ExpireAfter is how long an ephemeral completed path stays on screen.
	ExpireAfter = 3000 * time.Millisecond

	GlowWidth = 6.5
	GlowAlpha = 0.6
	CoreWidth = 5.0
)

var ErrModeDisabled = errors.New("annotation: drawing mode does not allow paths")

// Path is one stroke. Points are in screen percentages.
type Path struct {
	ID         uint64
	Points     []geom.Position
	FinishedAt *time.Time
}

// State is the annotation state of one participant.
type State struct {
	mode       protocol.DrawingMode
	autoClear  bool
	color      color.NRGBA
	inProgress *Path
	completed  []*Path

	dirty bool
	cache *raster.Canvas
}

// New returns a disabled state drawing in col. autoClear enables the
// expiry sweep for ephemeral paths.
func New(col color.NRGBA, autoClear bool) *State {
	return &State{mode: protocol.Disabled(), color: col, autoClear: autoClear}
}

func (s *State) Mode() protocol.DrawingMode { return s.mode }

// SetMode switches the drawing mode. Disabling drops the in-progress path.
func (s *State) SetMode(m protocol.DrawingMode) {
	s.mode = m
	if m.IsDisabled() {
		s.inProgress = nil
	}
}

func (s *State) AutoClear() bool      { return s.autoClear }
func (s *State) SetAutoClear(on bool) { s.autoClear = on }
func (s *State) Color() color.NRGBA   { return s.color }
func (s *State) InProgress() *Path    { return s.inProgress }
func (s *State) Completed() []*Path   { return s.completed }
func (s *State) Dirty() bool          { return s.dirty }
func (s *State) HasPaths() bool       { return s.inProgress != nil || len(s.completed) > 0 }

// StartPath opens a new in-progress path. Any unfinished path is dropped.
func (s *State) StartPath(id uint64, p geom.Position) error {
	if s.mode.IsDisabled() {
		return ErrModeDisabled
	}
	s.inProgress = &Path{ID: id, Points: []geom.Position{p}}
	return nil
}

// AddPoint extends the in-progress path. It reports whether a path existed.
func (s *State) AddPoint(p geom.Position) bool {
	if s.inProgress == nil {
		return false
	}
	s.inProgress.Points = append(s.inProgress.Points, p)
	return true
}

// EndPath appends p, stamps the finish time and moves the path to the
// completed list. It returns the finished path id.
func (s *State) EndPath(p geom.Position, now time.Time) (uint64, bool) {
	path := s.inProgress
	if path == nil {
		return 0, false
	}
	path.Points = append(path.Points, p)
	t := now
	path.FinishedAt = &t
	s.inProgress = nil
	s.completed = append(s.completed, path)
	s.dirty = true
	return path.ID, true
}

// ClearPath removes the path with the given id wherever it is.
func (s *State) ClearPath(id uint64) {
	if s.inProgress != nil && s.inProgress.ID == id {
		s.inProgress = nil
	}
	kept := s.completed[:0]
	for _, p := range s.completed {
		if p.ID == id {
			s.dirty = true
			continue
		}
		kept = append(kept, p)
	}
	s.completed = kept
}

// ClearAll removes every path.
func (s *State) ClearAll() {
	s.inProgress = nil
	if len(s.completed) > 0 {
		s.dirty = true
	}
	s.completed = nil
}

// UpdateAutoClear deletes expired ephemeral paths and returns their ids.
func (s *State) UpdateAutoClear(now time.Time) []uint64 {
	if !s.autoClear || s.mode.Kind != protocol.ModeDraw || s.mode.Permanent {
		return nil
	}
	var removed []uint64
	kept := s.completed[:0]
	for _, p := range s.completed {
		if p.FinishedAt != nil && now.Sub(*p.FinishedAt) > ExpireAfter {
			removed = append(removed, p.ID)
			continue
		}
		kept = append(kept, p)
	}
	s.completed = kept
	if len(removed) > 0 {
		s.dirty = true
	}
	return removed
}

// Draw renders completed paths from the cache and the in-progress path on
// top. scale converts logical stroke widths to pixels.
func (s *State) Draw(c *raster.Canvas, m geom.Mapper, scale float64) {
	size := c.Img.Bounds()
	if s.cache == nil {
		s.cache = raster.NewCanvas(size.Dx(), size.Dy())
		s.dirty = true
	} else if b := s.cache.Img.Bounds(); b.Dx() != size.Dx() || b.Dy() != size.Dy() {
		s.cache.Resize(size.Dx(), size.Dy())
		s.dirty = true
	}
	if s.dirty {
		s.cache.Clear()
		for _, p := range s.completed {
			stroke(s.cache, p, m, s.color, scale)
		}
		s.dirty = false
	}
	if len(s.completed) > 0 {
		c.Composite(s.cache.Img)
	}
	if s.inProgress != nil {
		stroke(c, s.inProgress, m, s.color, scale)
	}
}

func stroke(c *raster.Canvas, p *Path, m geom.Mapper, col color.NRGBA, scale float64) {
	if len(p.Points) == 0 {
		return
	}
	px := make([]geom.Position, len(p.Points))
	for i, q := range p.Points {
		px[i] = m.PixelPosition(q.X, q.Y)
	}
	glow := c.Begin()
	glow.Polyline(px, GlowWidth*scale)
	glow.Fill(raster.WithAlpha(col, GlowAlpha))

	core := c.Begin()
	core.Polyline(px, CoreWidth*scale)
	core.Fill(col)
}
