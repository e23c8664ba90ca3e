package session

import (
	"pairshare/internal/ipc"
	"pairshare/internal/overlay"
	"pairshare/internal/protocol"
)

// startLocalDrawing lets the sharer draw on the overlay with the mouse.
// Remote control is suspended until drawing stops.
func (s *Session) startLocalDrawing(permanent bool) {
	sh := s.share
	if sh == nil {
		s.log.Warn().Msg("drawing enabled while not sharing, ignoring")
		return
	}
	if s.drawing == nil {
		s.drawing = &localDrawing{savedController: s.controllerEnabled}
		s.setControllerEnabled(false)
	}
	s.drawing.permanent = permanent
	sh.window.SetHitTest(true)
	sh.window.SetCursorIcon(overlay.IconPencil)

	mode := protocol.Draw(permanent)
	s.participants.Local().Annotation.SetMode(mode)
	s.room.PublishDrawingMode(mode)
	s.log.Info().Bool("permanent", permanent).Msg("local drawing enabled")
}

// stopLocalDrawing restores click-through and the remote control flag and
// wipes the sharer's ink everywhere. notifyHost is set when the sharer left
// drawing from the overlay itself.
func (s *Session) stopLocalDrawing(notifyHost bool) {
	d := s.drawing
	if d == nil {
		return
	}
	s.drawing = nil
	if sh := s.share; sh != nil {
		sh.window.SetHitTest(false)
		sh.window.SetCursorIcon(overlay.IconDefault)
	}
	local := s.participants.Local().Annotation
	local.ClearAll()
	local.SetMode(protocol.Disabled())
	s.room.PublishDrawClearAll()
	s.room.PublishDrawingMode(protocol.Disabled())
	s.setControllerEnabled(d.savedController)
	if notifyHost {
		s.send(ipc.DrawingDisabled{})
	}
	s.requestRedraw()
	s.log.Info().Msg("local drawing disabled")
}

func (s *Session) onWindow(ev overlay.Event) {
	switch e := ev.(type) {
	case overlay.MouseInput:
		s.onLocalMouse(e)
	case overlay.KeyInput:
		if e.Key == overlay.KeyEscape && s.drawing != nil {
			s.stopLocalDrawing(true)
		}
	case overlay.MonitorsChanged:
		s.onMonitorsChanged()
	}
}

func (s *Session) onLocalMouse(e overlay.MouseInput) {
	d, sh := s.drawing, s.share
	if d == nil || sh == nil || e.MonitorID != sh.window.MonitorID() {
		return
	}
	pct := sh.window.LocalPercentageFromPixel(e.Position.X, e.Position.Y)
	local := s.participants.Local()
	local.Cursor.MoveTo(pct, s.clock.Now())

	switch e.Kind {
	case overlay.MousePressed:
		switch e.Button {
		case protocol.ButtonRight:
			d.held = false
			local.Annotation.ClearAll()
			s.room.PublishDrawClearAll()
		case protocol.ButtonLeft:
			s.nextPathID++
			if err := local.Annotation.StartPath(s.nextPathID, pct); err != nil {
				s.log.Warn().Err(err).Msg("local path not started")
				return
			}
			d.held = true
			s.room.PublishDrawStart(pct, s.nextPathID)
		default:
			return
		}
	case overlay.MouseMoved:
		if !d.held {
			return
		}
		local.Annotation.AddPoint(pct)
		s.room.PublishDrawAddPoint(pct)
	case overlay.MouseReleased:
		if !d.held || e.Button != protocol.ButtonLeft {
			return
		}
		d.held = false
		local.Annotation.EndPath(pct, s.clock.Now())
		s.room.PublishDrawEnd(pct)
	}
	s.requestRedraw()
}

// onMonitorsChanged re-fits the overlays. A share whose monitor vanished
// is stopped.
func (s *Session) onMonitorsChanged() {
	sh := s.share
	if sh == nil {
		return
	}
	if err := s.overlays.Refresh(); err != nil {
		s.log.Warn().Err(err).Msg("overlay reconfiguration incomplete")
	}
	if _, ok := s.overlays.Window(sh.window.MonitorID()); !ok || sh.window.Closed() {
		s.stopShare(true)
		s.send(ipc.ScreenShareStopped{Reason: "shared monitor removed"})
		return
	}
	if _, err := s.overlays.Show(sh.window.MonitorID()); err != nil {
		s.log.Warn().Err(err).Msg("overlay not shown after reconfiguration")
	}
	s.requestRedraw()
}
