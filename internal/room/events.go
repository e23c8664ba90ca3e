package room

import (
	"pairshare/internal/geom"
	"pairshare/internal/protocol"
)

// Event is delivered to the session controller.
type Event interface{ isEvent() }

// Inbound is a data packet from a remote participant.
type Inbound struct {
	SID   string
	Event protocol.ClientEvent
}

type ParticipantConnected struct {
	SID  string
	Name string
}

type ParticipantDisconnected struct {
	SID string
}

// ControllerTakesScreenShare reports that a remote participant started
// publishing their own screen.
type ControllerTakesScreenShare struct {
	SID string
}

// RoomCreated completes CreateRoom. Err is nil on success.
type RoomCreated struct {
	Err error
}

// VideoPublished completes PublishVideoTrack.
type VideoPublished struct {
	Extent geom.Extent
	Err    error
}

// RoomDisconnected reports a connection lost outside CloseRoom.
type RoomDisconnected struct {
	Err error
}

func (Inbound) isEvent()                    {}
func (ParticipantConnected) isEvent()       {}
func (ParticipantDisconnected) isEvent()    {}
func (ControllerTakesScreenShare) isEvent() {}
func (RoomCreated) isEvent()                {}
func (VideoPublished) isEvent()             {}
func (RoomDisconnected) isEvent()           {}
