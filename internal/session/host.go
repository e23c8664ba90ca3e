package session

import (
	"fmt"

	"pairshare/internal/ipc"
	"pairshare/internal/types"
)

func (s *Session) onHost(p ipc.Payload) {
	switch m := p.(type) {
	case ipc.Ping:
	case ipc.GetAvailableContent:
		content, err := s.capture.Enumerate()
		if err != nil {
			s.log.Warn().Err(err).Msg("content enumeration failed")
		}
		if content == nil {
			content = []types.Content{}
		}
		s.send(ipc.AvailableContent{Content: content})
	case ipc.CallStart:
		if s.phase != PhaseIdle {
			s.leaveCall()
		}
		s.pendingCall = true
		s.room.CreateRoom(m.Token)
	case ipc.CallEnd:
		s.log.Info().Stringer("phase", s.phase).Msg("call ended")
		s.leaveCall()
	case ipc.Reset:
		s.log.Info().Stringer("phase", s.phase).Msg("reset")
		s.leaveCall()
		s.setControllerEnabled(true)
	case ipc.StartScreenShare:
		if s.phase == PhaseIdle {
			req := m
			s.pendingShare = &req
			s.room.CreateRoom(m.Token)
			return
		}
		s.startShare(m)
	case ipc.StopScreenshare:
		s.stopShare(true)
	case ipc.ControllerCursorEnabled:
		if s.drawing != nil {
			s.drawing.savedController = bool(m)
			return
		}
		s.setControllerEnabled(bool(m))
	case ipc.LivekitServerURL:
		s.room.SetServerURL(string(m))
	case ipc.DrawingEnabled:
		s.startLocalDrawing(m.Permanent)
	case ipc.SentryMetadata:
		s.reporter.SetMetadata(m.UserEmail, m.AppVersion)
	case ipc.GetAudioDevices:
		s.send(ipc.AudioDeviceList{Devices: []string{}})
	case ipc.GetCameras:
		s.send(ipc.CameraList{Cameras: []string{}})
	case ipc.StartAudioCapture:
		s.send(ipc.StartAudioCaptureResult{Result: ipc.Fail("audio capture is not handled by the core")})
	case ipc.StartCamera:
		s.send(ipc.StartCameraResult{Result: ipc.Fail("camera capture is not handled by the core")})
	default:
		s.log.Debug().Str("type", fmt.Sprintf("%T", p)).Msg("ignoring host message")
	}
}

// setControllerEnabled toggles remote control and tells the room.
func (s *Session) setControllerEnabled(on bool) {
	changed := s.controllerEnabled != on
	s.controllerEnabled = on
	s.cursors.SetEnabled(on)
	if sh := s.share; sh != nil {
		if sh.input != nil {
			sh.input.SetEnabled(on && sh.permitted)
		}
		if changed {
			s.room.PublishRemoteControlEnabled(on)
		}
	}
}
