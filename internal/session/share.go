package session

import (
	"fmt"

	"pairshare/internal/cursor"
	"pairshare/internal/geom"
	"pairshare/internal/ipc"
	"pairshare/internal/redraw"
)

// startShare brings up overlay, capture, input and the published track for
// req. On failure everything already started is rolled back, the session
// returns to InCall and the reason goes to the host shell. Success is
// reported once the track is published.
func (s *Session) startShare(req ipc.StartScreenShare) {
	if s.share != nil {
		s.stopShare(true)
	}
	sh, err := s.setupShare(req)
	if err != nil {
		s.log.Error().Err(err).Uint32("monitor", req.Content.MonitorID).Msg("start screen share failed")
		s.phase = PhaseInCall
		s.send(ipc.StartScreenShareResult{Result: ipc.Fail(reason(err))})
		return
	}
	s.share = sh
	s.phase = PhaseSharing
	s.awaitingPublish = true
	s.room.PublishRemoteControlEnabled(s.controllerEnabled)
	s.log.Info().Uint32("monitor", req.Content.MonitorID).Str("content", string(req.Content.Kind)).Msg("screen share started")
}

func (s *Session) setupShare(req ipc.StartScreenShare) (sh *share, err error) {
	s.shareGen++
	sh = &share{gen: s.shareGen, req: req}
	defer func() {
		if err != nil {
			s.teardown(sh, true)
		}
	}()

	monitorID := req.Content.MonitorID
	refreshErr := s.overlays.Refresh()
	win, ok := s.overlays.Window(monitorID)
	if !ok {
		if refreshErr != nil {
			return nil, refreshErr
		}
		return nil, fmt.Errorf("%w: no overlay for monitor %d", ErrGraphicsContext, monitorID)
	}
	if _, err := s.overlays.Show(monitorID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGraphicsContext, err)
	}
	sh.window = win

	target := geom.Extent{Width: req.Resolution.Width, Height: req.Resolution.Height}
	if err := s.capture.StartCapture(req.Content, target, false); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamCreation, err)
	}
	sh.capturing = true
	extent := s.capture.StreamExtent()
	if extent.IsZero() {
		return nil, fmt.Errorf("%w: %vx%v", ErrStreamExtent, extent.Width, extent.Height)
	}

	sh.permitted = req.AccessibilityPermission
	if !sh.permitted {
		s.log.Error().Err(ErrCursorControllerPermission).Msg("remote control unavailable for this share")
	}
	if s.newInput != nil {
		sh.input = s.newInput(sh.permitted)
		sh.input.SetEnabled(s.controllerEnabled && sh.permitted)
	}

	src := s.room.PublishVideoTrack(int(extent.Width), int(extent.Height), req.UseAV1)
	sh.published = true
	s.capture.SetSink(src)

	sh.scheduler = redraw.New(redraw.Config{Clock: s.clock, Dispatch: s.dispatchRedraw, Logger: &s.log})
	sh.scheduler.Start()
	s.cursors.Attach(win)
	gen := sh.gen
	sh.housekeeper = startHousekeeper(s.clock, HousekeepPeriod, func() { s.dispatchHousekeep(gen) })
	return sh, nil
}

// stopShare ends the current share. unpublish is false when a remote
// participant took over sharing and the track is left to the room.
func (s *Session) stopShare(unpublish bool) {
	sh := s.share
	if sh == nil {
		return
	}
	s.stopLocalDrawing(false)
	s.share = nil
	s.awaitingPublish = false
	s.teardown(sh, unpublish)
	if s.phase == PhaseSharing {
		s.phase = PhaseInCall
	}
	s.log.Info().Bool("unpublished", unpublish).Msg("screen share stopped")
}

func (s *Session) teardown(sh *share, unpublish bool) {
	if sh.housekeeper != nil {
		sh.housekeeper.Stop()
	}
	if sh.scheduler != nil {
		sh.scheduler.Stop()
	}
	s.cursors.Detach()
	if sh.capturing {
		s.capture.SetSink(nil)
		s.capture.StopCapture()
	}
	if sh.published && unpublish {
		s.room.UnpublishVideoTrack()
	}
	if sh.input != nil {
		sh.input.Close()
	}
	s.overlays.Close()
	s.pulses.Clear()
	s.redrawPending.Store(false)
	s.housekeepPending.Store(false)
}

// leaveCall stops sharing, closes the room and forgets every participant.
func (s *Session) leaveCall() {
	s.stopShare(true)
	if s.phase != PhaseIdle || s.pendingCall || s.pendingShare != nil {
		s.room.CloseRoom()
	}
	s.participants.Reset()
	s.sprites = cursor.NewRenderer()
	s.pendingCall = false
	s.pendingShare = nil
	s.lastInControl = ""
	s.phase = PhaseIdle
}

// screenPoint converts a screen percentage on the shared monitor to an
// absolute screen pixel for input simulation.
func (s *Session) screenPoint(p geom.Position) (geom.Position, bool) {
	if s.share == nil {
		return geom.Position{}, false
	}
	f := s.share.window.PhysicalFrame()
	return geom.Position{
		X: f.Origin.X + p.X*f.Size.Width,
		Y: f.Origin.Y + p.Y*f.Size.Height,
	}, true
}
