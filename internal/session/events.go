package session

import (
	"pairshare/internal/ipc"
	"pairshare/internal/overlay"
	"pairshare/internal/room"
)

// Event is one item on the session queue.
type Event interface{ isEvent() }

// FromHost carries a message from the host shell.
type FromHost struct{ Payload ipc.Payload }

// FromRoom carries a room client event.
type FromRoom struct{ Event room.Event }

// FromWindow carries an overlay window event.
type FromWindow struct{ Event overlay.Event }

// CaptureFailed is posted when the capture watchdog gives up.
type CaptureFailed struct{ Reason string }

// Terminate stops the loop with Code.
type Terminate struct {
	Code   int
	Reason string
}

type redrawRequested struct{}

type housekeep struct{ gen uint64 }

func (FromHost) isEvent()        {}
func (FromRoom) isEvent()        {}
func (FromWindow) isEvent()      {}
func (CaptureFailed) isEvent()   {}
func (Terminate) isEvent()       {}
func (redrawRequested) isEvent() {}
func (housekeep) isEvent()       {}
