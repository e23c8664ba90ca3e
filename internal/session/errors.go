package session

import (
	"errors"

	"pairshare/internal/overlay"
	"pairshare/internal/room"
)

// Reasons reported to the host shell in a failed result.
var (
	ErrRoomServiceNotFound        = errors.New("room-service-not-found")
	ErrStreamCreation             = errors.New("stream-creation")
	ErrStreamExtent               = errors.New("stream-extent")
	ErrPublishTrack               = errors.New("publish-track")
	ErrFullscreenTimeout          = errors.New("fullscreen-timeout")
	ErrGraphicsContext            = errors.New("graphics-context")
	ErrCursorControllerPermission = errors.New("cursor-controller-permission")
)

var reportable = []error{
	ErrRoomServiceNotFound,
	ErrStreamCreation,
	ErrStreamExtent,
	ErrPublishTrack,
	ErrFullscreenTimeout,
	ErrGraphicsContext,
	ErrCursorControllerPermission,
}

// Exit codes of the core process.
const (
	ExitOK            = 0
	ExitTerminated    = 1
	ExitCaptureFailed = 2
)

// reason maps err to the string sent to the host shell.
func reason(err error) string {
	for _, r := range reportable {
		if errors.Is(err, r) {
			return r.Error()
		}
	}
	switch {
	case errors.Is(err, overlay.ErrFullscreenTimeout):
		return ErrFullscreenTimeout.Error()
	case errors.Is(err, overlay.ErrGraphicsContext):
		return ErrGraphicsContext.Error()
	case errors.Is(err, room.ErrServiceNotFound):
		return ErrRoomServiceNotFound.Error()
	}
	return err.Error()
}
