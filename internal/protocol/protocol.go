// Package protocol defines the JSON packets exchanged between participants
// over the room data channel.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownType = errors.New("protocol: unknown event type")
	ErrNoPayload   = errors.New("protocol: missing payload")
)

// Topics used when publishing on the data channel.
const (
	TopicParticipantLocation  = "participant_location"
	TopicRemoteControlEnabled = "remote_control_enabled"
	TopicParticipantInControl = "participant_in_control"
	TopicTickResponse         = "tick_response"
)

// EventType is the "type" discriminator of a ClientEvent.
type EventType string

const (
	TypeMouseMove            EventType = "MouseMove"
	TypeMouseClick           EventType = "MouseClick"
	TypeMouseVisible         EventType = "MouseVisible"
	TypeKeystroke            EventType = "Keystroke"
	TypeWheelEvent           EventType = "WheelEvent"
	TypeTick                 EventType = "Tick"
	TypeTickResponse         EventType = "TickResponse"
	TypeRemoteControlEnabled EventType = "RemoteControlEnabled"
	TypeParticipantInControl EventType = "ParticipantInControl"
	TypeAddToClipboard       EventType = "AddToClipboard"
	TypePasteFromClipboard   EventType = "PasteFromClipboard"
	TypeDrawingMode          EventType = "DrawingMode"
	TypeDrawStart            EventType = "DrawStart"
	TypeDrawAddPoint         EventType = "DrawAddPoint"
	TypeDrawEnd              EventType = "DrawEnd"
	TypeDrawClearPath        EventType = "DrawClearPath"
	TypeDrawClearAllPaths    EventType = "DrawClearAllPaths"
	TypeClickAnimation       EventType = "ClickAnimation"
)

// Payload is implemented by every packet body.
type Payload interface {
	EventType() EventType
}

// ClientEvent is the envelope published on the data channel:
// {"type": <EventType>, "payload": <body>}.
type ClientEvent struct {
	Payload Payload
}

// New wraps p in an envelope.
func New(p Payload) ClientEvent { return ClientEvent{Payload: p} }

// Type returns the discriminator, or "" for an empty envelope.
func (e ClientEvent) Type() EventType {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.EventType()
}

// Reliable reports whether the event must go over the reliable channel.
func (e ClientEvent) Reliable() bool {
	return e.Type() != TypeDrawAddPoint
}

type envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (e ClientEvent) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, ErrNoPayload
	}
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type(), err)
	}
	return json.Marshal(envelope{Type: e.Type(), Payload: body})
}

func (e *ClientEvent) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	ctor, ok := payloads[env.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: %s", ErrNoPayload, env.Type)
	}
	p := ctor()
	if err := json.Unmarshal(env.Payload, p); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	e.Payload = deref(p)
	return nil
}

// Decode parses a data-channel packet.
func Decode(data []byte) (ClientEvent, error) {
	var ev ClientEvent
	err := json.Unmarshal(data, &ev)
	return ev, err
}

// Encode serialises a packet for publishing.
func Encode(p Payload) ([]byte, error) {
	return json.Marshal(New(p))
}

var payloads = map[EventType]func() any{
	TypeMouseMove:            func() any { return new(MouseMove) },
	TypeMouseClick:           func() any { return new(MouseClick) },
	TypeMouseVisible:         func() any { return new(MouseVisible) },
	TypeKeystroke:            func() any { return new(Keystroke) },
	TypeWheelEvent:           func() any { return new(WheelEvent) },
	TypeTick:                 func() any { return new(Tick) },
	TypeTickResponse:         func() any { return new(TickResponse) },
	TypeRemoteControlEnabled: func() any { return new(RemoteControlEnabled) },
	TypeParticipantInControl: func() any { return new(ParticipantInControl) },
	TypeAddToClipboard:       func() any { return new(AddToClipboard) },
	TypePasteFromClipboard:   func() any { return new(PasteFromClipboard) },
	TypeDrawingMode:          func() any { return new(DrawingMode) },
	TypeDrawStart:            func() any { return new(DrawStart) },
	TypeDrawAddPoint:         func() any { return new(DrawAddPoint) },
	TypeDrawEnd:              func() any { return new(DrawEnd) },
	TypeDrawClearPath:        func() any { return new(DrawClearPath) },
	TypeDrawClearAllPaths:    func() any { return new(DrawClearAllPaths) },
	TypeClickAnimation:       func() any { return new(ClickAnimation) },
}

// deref turns the *T produced by a constructor back into the T value stored
// in the envelope so that type switches match on value types.
func deref(p any) Payload {
	switch v := p.(type) {
	case *MouseMove:
		return *v
	case *MouseClick:
		return *v
	case *MouseVisible:
		return *v
	case *Keystroke:
		return *v
	case *WheelEvent:
		return *v
	case *Tick:
		return *v
	case *TickResponse:
		return *v
	case *RemoteControlEnabled:
		return *v
	case *ParticipantInControl:
		return *v
	case *AddToClipboard:
		return *v
	case *PasteFromClipboard:
		return *v
	case *DrawingMode:
		return *v
	case *DrawStart:
		return *v
	case *DrawAddPoint:
		return *v
	case *DrawEnd:
		return *v
	case *DrawClearPath:
		return *v
	case *DrawClearAllPaths:
		return *v
	case *ClickAnimation:
		return *v
	}
	return nil
}
