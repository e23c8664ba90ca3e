// Package room connects the core to the conferencing server: it joins a room
// with an opaque token, publishes the screen track and exchanges data packets
// with the other participants.
package room

import (
	"context"
	"errors"
	"time"

	"pairshare/internal/encode"
)

var (
	ErrNoRoom          = errors.New("room: not connected")
	ErrServiceNotFound = errors.New("room: service not found")
	ErrClosed          = errors.New("room: client closed")
)

// ParticipantInfo identifies a remote participant.
type ParticipantInfo struct {
	SID      string `json:"sid"`
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

// Room is a connected conferencing room.
type Room interface {
	LocalSID() string
	// Events yields connection-level events until the room closes.
	Events() <-chan RoomEvent
	PublishData(ctx context.Context, topic string, payload []byte, reliable bool) error
	PublishVideo(ctx context.Context, opts TrackOptions) (VideoTrack, error)
	UnpublishVideo(ctx context.Context) error
	Close() error
}

// Dialer joins a room on the server at url.
type Dialer func(ctx context.Context, url, token string) (Room, error)

// TrackOptions describe the published screen track.
type TrackOptions struct {
	Name          string
	Width, Height int
	Codec         encode.Codec
	MaxBitrate    int
	MaxFramerate  int
	Simulcast     bool
}

// VideoTrack accepts encoded samples for the published track.
type VideoTrack interface {
	WriteSample(data []byte, duration time.Duration) error
}

// RoomEvent is emitted by a Room.
type RoomEvent interface{ roomEvent() }

type DataPacket struct {
	From    ParticipantInfo
	Topic   string
	Payload []byte
}

type ParticipantJoined struct{ Participant ParticipantInfo }

type ParticipantLeft struct{ Participant ParticipantInfo }

type TrackPublished struct {
	Participant ParticipantInfo
	Kind        string
}

type ConnectionLost struct{ Err error }

func (DataPacket) roomEvent()        {}
func (ParticipantJoined) roomEvent() {}
func (ParticipantLeft) roomEvent()   {}
func (TrackPublished) roomEvent()    {}
func (ConnectionLost) roomEvent()    {}
