package session

import (
	"fmt"

	"pairshare/internal/input"
	"pairshare/internal/ipc"
	"pairshare/internal/participant"
	"pairshare/internal/protocol"
	"pairshare/internal/room"
)

func (s *Session) onRoom(ev room.Event) {
	switch e := ev.(type) {
	case room.RoomCreated:
		s.onRoomCreated(e.Err)
	case room.VideoPublished:
		if !s.awaitingPublish {
			return
		}
		s.awaitingPublish = false
		if e.Err != nil {
			s.log.Error().Err(e.Err).Msg("publish video track failed")
			s.stopShare(true)
			s.send(ipc.StartScreenShareResult{Result: ipc.Fail(ErrPublishTrack.Error())})
			return
		}
		s.send(ipc.StartScreenShareResult{Result: ipc.Ok()})
	case room.RoomDisconnected:
		s.log.Warn().Err(e.Err).Stringer("phase", s.phase).Msg("room disconnected")
		if s.share != nil {
			s.send(ipc.ScreenShareStopped{Reason: "room disconnected"})
		}
		s.leaveCall()
	case room.ParticipantConnected:
		if _, err := s.participants.Add(e.SID, e.Name); err != nil {
			s.log.Warn().Err(err).Str("name", e.Name).Msg("participant ignored")
		}
	case room.ParticipantDisconnected:
		if e.SID == participant.LocalSID {
			return
		}
		if p, ok := s.participants.Get(e.SID); ok {
			s.sprites.Forget(p.Name)
		}
		if s.participants.Remove(e.SID) {
			s.requestRedraw()
		}
	case room.ControllerTakesScreenShare:
		if s.share == nil {
			return
		}
		s.log.Info().Str("sid", e.SID).Msg("controller started sharing")
		s.stopShare(false)
		s.send(ipc.ScreenShareStopped{Reason: "controller started sharing"})
	case room.Inbound:
		s.onInbound(e.SID, e.Event)
	}
}

func (s *Session) onRoomCreated(err error) {
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrRoomServiceNotFound, err)
		s.log.Error().Err(err).Msg("create room failed")
	}
	if s.pendingCall {
		s.pendingCall = false
		if err != nil {
			s.send(ipc.CallStartResult{Result: ipc.Fail(reason(err))})
			return
		}
		s.phase = PhaseInCall
		s.send(ipc.CallStartResult{Result: ipc.Ok()})
	}
	if req := s.pendingShare; req != nil {
		s.pendingShare = nil
		if err != nil {
			s.send(ipc.StartScreenShareResult{Result: ipc.Fail(reason(err))})
			return
		}
		s.phase = PhaseInCall
		s.startShare(*req)
	}
}

func (s *Session) simulator() *input.Simulator {
	if s.share == nil {
		return nil
	}
	return s.share.input
}

// markInControl publishes sid as the participant driving input, once per
// change.
func (s *Session) markInControl(sid string) {
	if s.lastInControl == sid {
		return
	}
	s.lastInControl = sid
	s.room.PublishParticipantInControl(sid)
}

func (s *Session) onInbound(sid string, ev protocol.ClientEvent) {
	p, ok := s.participants.Get(sid)
	if !ok || sid == participant.LocalSID {
		s.log.Warn().Str("sid", sid).Str("type", string(ev.Type())).Msg("event from unknown participant")
		return
	}
	now := s.clock.Now()
	sim := s.simulator()

	switch e := ev.Payload.(type) {
	case protocol.MouseMove:
		p.Cursor.MoveTo(pos(e.X, e.Y), now)
		s.requestRedraw()
	case protocol.MouseVisible:
		p.Cursor.Visible = e.Visible
		s.requestRedraw()
	case protocol.MouseClick:
		p.Cursor.MoveTo(pos(e.X, e.Y), now)
		s.requestRedraw()
		if sim == nil || !sim.Enabled() {
			return
		}
		at, _ := s.screenPoint(p.Cursor.Position)
		mods := input.Modifiers{Shift: e.Shift, Ctrl: e.Ctrl, Alt: e.Alt, Meta: e.Meta}
		if err := sim.Click(at.X, at.Y, e.Button, int(e.Clicks), e.Down, mods); err != nil {
			s.log.Debug().Err(err).Msg("click not simulated")
			return
		}
		s.markInControl(sid)
	case protocol.Keystroke:
		p.Cursor.Touch(now)
		if sim == nil || !sim.Enabled() {
			return
		}
		mods := input.Modifiers{Shift: e.Shift, Ctrl: e.Ctrl, Alt: e.Alt, Meta: e.Meta}
		if err := sim.Keystroke(e.Key, mods, e.Down); err != nil {
			s.log.Debug().Err(err).Strs("keys", e.Key).Msg("keystroke not simulated")
			return
		}
		s.markInControl(sid)
	case protocol.WheelEvent:
		p.Cursor.Touch(now)
		if sim == nil || !sim.Enabled() {
			return
		}
		if err := sim.Scroll(e.DeltaX, e.DeltaY); err != nil {
			s.log.Debug().Err(err).Msg("scroll not simulated")
		}
	case protocol.AddToClipboard:
		if sim == nil || !sim.Enabled() {
			return
		}
		if err := sim.Copy(e.IsCopy); err != nil {
			s.log.Debug().Err(err).Msg("copy not simulated")
		}
	case protocol.PasteFromClipboard:
		if sim == nil || !sim.Enabled() {
			return
		}
		if err := sim.Paste(e.Data); err != nil {
			s.log.Warn().Err(err).Msg("paste failed")
		}
	case protocol.Tick:
		s.room.PublishTickResponse(e.Time)
	case protocol.DrawingMode:
		p.Annotation.SetMode(e)
		s.requestRedraw()
	case protocol.DrawStart:
		if err := p.Annotation.StartPath(e.PathID, e.Point); err != nil {
			s.log.Warn().Err(err).Str("sid", sid).Msg("draw start ignored")
			return
		}
		s.requestRedraw()
	case protocol.DrawAddPoint:
		if p.Annotation.AddPoint(e.Point) {
			s.requestRedraw()
		}
	case protocol.DrawEnd:
		if _, ok := p.Annotation.EndPath(e.Point, now); ok {
			s.requestRedraw()
		}
	case protocol.DrawClearPath:
		p.Annotation.ClearPath(e.PathID)
		s.requestRedraw()
	case protocol.DrawClearAllPaths:
		p.Annotation.ClearAll()
		s.requestRedraw()
	case protocol.ClickAnimation:
		sh := s.share
		if sh == nil {
			return
		}
		px := sh.window.PixelPosition(e.Point.X, e.Point.Y)
		if s.pulses.Enable(px, p.Color, now) {
			sh.scheduler.ClickAnimation(true)
		}
	default:
		s.log.Debug().Str("type", string(ev.Type())).Msg("ignoring room event")
	}
}
