package session

import (
	"time"

	"pairshare/internal/geom"
)

func pos(x, y float64) geom.Position { return geom.Position{X: x, Y: y} }

// drawnCursor records where a remote cursor was painted.
type drawnCursor struct {
	SID string
	At  geom.Position
}

// render paints ink, click pulses and remote cursors onto the shared
// monitor's overlay and presents it.
func (s *Session) render() []drawnCursor {
	s.redrawPending.Store(false)
	sh := s.share
	if sh == nil || sh.window.Closed() {
		return nil
	}
	now := s.clock.Now()
	if len(s.sweepAutoClear(now)) > 0 {
		s.log.Debug().Msg("expired paths cleared")
	}

	w := sh.window
	c := w.Canvas()
	scale := w.Scale()
	c.Clear()
	for _, p := range s.participants.All() {
		p.Annotation.Draw(c, w, scale)
	}
	s.pulses.Update(now)
	s.pulses.Draw(c, now, scale)

	var drawn []drawnCursor
	for _, p := range s.participants.Remote() {
		if !s.cursors.ShouldRender(p.Cursor) {
			continue
		}
		px, ok := s.cursors.ToPixels(p.Cursor.Position)
		if !ok {
			continue
		}
		s.sprites.Draw(c, p.Name, p.Color, p.Cursor.Mode, px, scale)
		drawn = append(drawn, drawnCursor{SID: p.SID, At: px})
	}
	sh.visibleCursors = len(drawn)

	if err := w.Present(); err != nil {
		s.log.Debug().Err(err).Msg("present failed")
	}
	s.redraws.Add(1)
	return drawn
}

// sweepAutoClear drops expired ephemeral paths and tells the room, so the
// sharer purges on behalf of everyone.
func (s *Session) sweepAutoClear(now time.Time) []uint64 {
	var removed []uint64
	for _, p := range s.participants.All() {
		ids := p.Annotation.UpdateAutoClear(now)
		for _, id := range ids {
			s.room.PublishDrawClearPath(id)
		}
		removed = append(removed, ids...)
	}
	return removed
}

// housekeeping publishes the sharer's cursor, expires paths and redraws
// when a cursor faded out. Ticks of an ended share (other gen) are ignored.
func (s *Session) housekeeping(gen uint64) {
	s.housekeepPending.Store(false)
	sh := s.share
	if sh == nil || sh.gen != gen {
		return
	}
	changed := false
	if pct, ok := s.overlays.PointerPercentage(sh.window.MonitorID()); ok && (!sh.hasLocation || pct != sh.lastLocation) {
		sh.lastLocation, sh.hasLocation = pct, true
		s.room.PublishSharerLocation(pct.X, pct.Y)
	}
	if len(s.sweepAutoClear(s.clock.Now())) > 0 {
		changed = true
	}
	visible := 0
	for _, p := range s.participants.Remote() {
		if s.cursors.ShouldRender(p.Cursor) {
			visible++
		}
	}
	if visible != sh.visibleCursors {
		changed = true
	}
	if changed {
		s.requestRedraw()
	}
}
