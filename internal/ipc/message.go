// Package ipc is the framed JSON link between the host shell and the core.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"pairshare/internal/types"
)

var (
	ErrUnknownMessage = errors.New("ipc: unknown message type")
	ErrEmptyMessage   = errors.New("ipc: empty message")
)

// MessageType is the "type" discriminator of a Message.
type MessageType string

const (
	// Host to core.
	TypeGetAvailableContent     MessageType = "GetAvailableContent"
	TypeCallStart               MessageType = "CallStart"
	TypeCallEnd                 MessageType = "CallEnd"
	TypeStartScreenShare        MessageType = "StartScreenShare"
	TypeStopScreenshare         MessageType = "StopScreenshare"
	TypeReset                   MessageType = "Reset"
	TypePing                    MessageType = "Ping"
	TypeControllerCursorEnabled MessageType = "ControllerCursorEnabled"
	TypeLivekitServerURL        MessageType = "LivekitServerUrl"
	TypeDrawingEnabled          MessageType = "DrawingEnabled"
	TypeSentryMetadata          MessageType = "SentryMetadata"
	TypeGetAudioDevices         MessageType = "GetAudioDevices"
	TypeStartAudioCapture       MessageType = "StartAudioCapture"
	TypeGetCameras              MessageType = "GetCameras"
	TypeStartCamera             MessageType = "StartCamera"

	// Core to host.
	TypeAvailableContent        MessageType = "AvailableContent"
	TypeStartScreenShareResult  MessageType = "StartScreenShareResult"
	TypeCallStartResult         MessageType = "CallStartResult"
	TypeAudioDeviceList         MessageType = "AudioDeviceList"
	TypeStartAudioCaptureResult MessageType = "StartAudioCaptureResult"
	TypeCameraList              MessageType = "CameraList"
	TypeStartCameraResult       MessageType = "StartCameraResult"
	TypeScreenShareStopped      MessageType = "ScreenShareStopped"
	TypeDrawingDisabled         MessageType = "DrawingDisabled"
)

var responseTypes = map[MessageType]bool{
	TypeAvailableContent:        true,
	TypeStartScreenShareResult:  true,
	TypeCallStartResult:         true,
	TypeAudioDeviceList:         true,
	TypeStartAudioCaptureResult: true,
	TypeCameraList:              true,
	TypeStartCameraResult:       true,
}

// IsResponse reports whether t travels on the responses channel. Everything
// else is an event.
func IsResponse(t MessageType) bool { return responseTypes[t] }

// Payload is implemented by every message body.
type Payload interface {
	MessageType() MessageType
}

// Message is the envelope {"type": ..., "payload": ...}. Unit messages have
// no payload field.
type Message struct {
	Payload Payload
}

func (m Message) Type() MessageType {
	if m.Payload == nil {
		return ""
	}
	return m.Payload.MessageType()
}

type GetAvailableContent struct{}

type CallStart struct {
	Token string `json:"token"`
}

type CallEnd struct{}

type Resolution struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type StartScreenShare struct {
	Content                 types.Content `json:"content"`
	Token                   string        `json:"token"`
	Resolution              Resolution    `json:"resolution"`
	AccessibilityPermission bool          `json:"accessibility_permission"`
	UseAV1                  bool          `json:"use_av1"`
}

type StopScreenshare struct{}

type Reset struct{}

type Ping struct{}

type ControllerCursorEnabled bool

type LivekitServerURL string

type DrawingEnabled struct {
	Permanent bool `json:"permanent"`
}

type SentryMetadata struct {
	UserEmail  string `json:"user_email"`
	AppVersion string `json:"app_version"`
}

// Audio and camera commands are decoded so they can be answered, but the
// core does not implement them.
type GetAudioDevices struct{}

type StartAudioCapture struct {
	Device string `json:"device"`
}

type GetCameras struct{}

type StartCamera struct {
	Camera string `json:"camera"`
}

type AvailableContent struct {
	Content []types.Content `json:"content"`
}

// Result is serialized as {"Ok":null} or {"Err":"reason"}.
type Result struct {
	Err string
}

func Ok() Result                { return Result{} }
func Fail(reason string) Result { return Result{Err: reason} }
func (r Result) IsOk() bool     { return r.Err == "" }

func (r Result) MarshalJSON() ([]byte, error) {
	if r.IsOk() {
		return []byte(`{"Ok":null}`), nil
	}
	return json.Marshal(map[string]string{"Err": r.Err})
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if _, ok := obj["Ok"]; ok {
		*r = Ok()
		return nil
	}
	raw, ok := obj["Err"]
	if !ok {
		return fmt.Errorf("ipc: result without Ok or Err: %s", data)
	}
	var reason string
	if err := json.Unmarshal(raw, &reason); err != nil {
		return err
	}
	*r = Fail(reason)
	return nil
}

type StartScreenShareResult struct{ Result }

type CallStartResult struct{ Result }

type StartAudioCaptureResult struct{ Result }

type StartCameraResult struct{ Result }

type AudioDeviceList struct {
	Devices []string `json:"devices"`
}

type CameraList struct {
	Cameras []string `json:"cameras"`
}

// ScreenShareStopped tells the host that sharing ended without a
// StopScreenshare request.
type ScreenShareStopped struct {
	Reason string `json:"reason"`
}

// DrawingDisabled tells the host that local drawing was left, e.g. on Escape.
type DrawingDisabled struct{}

func (GetAvailableContent) MessageType() MessageType     { return TypeGetAvailableContent }
func (CallStart) MessageType() MessageType               { return TypeCallStart }
func (CallEnd) MessageType() MessageType                 { return TypeCallEnd }
func (StartScreenShare) MessageType() MessageType        { return TypeStartScreenShare }
func (StopScreenshare) MessageType() MessageType         { return TypeStopScreenshare }
func (Reset) MessageType() MessageType                   { return TypeReset }
func (Ping) MessageType() MessageType                    { return TypePing }
func (ControllerCursorEnabled) MessageType() MessageType { return TypeControllerCursorEnabled }
func (LivekitServerURL) MessageType() MessageType        { return TypeLivekitServerURL }
func (DrawingEnabled) MessageType() MessageType          { return TypeDrawingEnabled }
func (SentryMetadata) MessageType() MessageType          { return TypeSentryMetadata }
func (GetAudioDevices) MessageType() MessageType         { return TypeGetAudioDevices }
func (StartAudioCapture) MessageType() MessageType       { return TypeStartAudioCapture }
func (GetCameras) MessageType() MessageType              { return TypeGetCameras }
func (StartCamera) MessageType() MessageType             { return TypeStartCamera }
func (AvailableContent) MessageType() MessageType        { return TypeAvailableContent }
func (StartScreenShareResult) MessageType() MessageType  { return TypeStartScreenShareResult }
func (CallStartResult) MessageType() MessageType         { return TypeCallStartResult }
func (StartAudioCaptureResult) MessageType() MessageType { return TypeStartAudioCaptureResult }
func (StartCameraResult) MessageType() MessageType       { return TypeStartCameraResult }
func (AudioDeviceList) MessageType() MessageType         { return TypeAudioDeviceList }
func (CameraList) MessageType() MessageType              { return TypeCameraList }
func (ScreenShareStopped) MessageType() MessageType      { return TypeScreenShareStopped }
func (DrawingDisabled) MessageType() MessageType         { return TypeDrawingDisabled }

var registry = map[MessageType]func() Payload{}

func register(ps ...Payload) {
	for _, p := range ps {
		t := reflect.TypeOf(p)
		registry[p.MessageType()] = func() Payload {
			return reflect.New(t).Interface().(Payload)
		}
	}
}

func init() {
	register(
		GetAvailableContent{}, CallStart{}, CallEnd{}, StartScreenShare{},
		StopScreenshare{}, Reset{}, Ping{}, ControllerCursorEnabled(false),
		LivekitServerURL(""), DrawingEnabled{}, SentryMetadata{},
		GetAudioDevices{}, StartAudioCapture{}, GetCameras{}, StartCamera{},
		AvailableContent{}, StartScreenShareResult{}, CallStartResult{},
		StartAudioCaptureResult{}, StartCameraResult{}, AudioDeviceList{},
		CameraList{}, ScreenShareStopped{}, DrawingDisabled{},
	)
}

// isUnit reports whether p is an empty struct, which is sent without a
// payload field.
func isUnit(p Payload) bool {
	t := reflect.TypeOf(p)
	return t.Kind() == reflect.Struct && t.NumField() == 0
}

type envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	if m.Payload == nil {
		return nil, ErrEmptyMessage
	}
	env := envelope{Type: m.Type()}
	if !isUnit(m.Payload) {
		body, err := json.Marshal(m.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", m.Type(), err)
		}
		env.Payload = body
	}
	return json.Marshal(env)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	ctor, ok := registry[env.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
	p := ctor()
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
	}
	m.Payload = reflect.ValueOf(p).Elem().Interface().(Payload)
	return nil
}
