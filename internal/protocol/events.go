package protocol

import (
	"encoding/json"
	"fmt"

	"pairshare/internal/geom"
)

// MouseMove carries a cursor position in screen percentages.
type MouseMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Mouse buttons as sent by controllers.
const (
	ButtonLeft   uint32 = 0
	ButtonRight  uint32 = 1
	ButtonMiddle uint32 = 2
)

type MouseClick struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button uint32  `json:"button"`
	Clicks float64 `json:"clicks"`
	Down   bool    `json:"down"`
	Shift  bool    `json:"shift"`
	Meta   bool    `json:"meta"`
	Ctrl   bool    `json:"ctrl"`
	Alt    bool    `json:"alt"`
}

type MouseVisible struct {
	Visible bool `json:"visible"`
}

type Keystroke struct {
	Key   []string `json:"key"`
	Meta  bool     `json:"meta"`
	Ctrl  bool     `json:"ctrl"`
	Shift bool     `json:"shift"`
	Alt   bool     `json:"alt"`
	Down  bool     `json:"down"`
}

type WheelEvent struct {
	DeltaX float64 `json:"deltaX"`
	DeltaY float64 `json:"deltaY"`
}

// Tick is a latency probe; the sharer echoes Time back in a TickResponse.
type Tick struct {
	Time uint64 `json:"time"`
}

type TickResponse struct {
	Time uint64 `json:"time"`
}

type RemoteControlEnabled struct {
	Enabled bool `json:"enabled"`
}

type ParticipantInControl struct {
	SID string `json:"sid"`
}

type AddToClipboard struct {
	IsCopy bool `json:"is_copy"`
}

// ClipboardPayload is one chunk of a multi-packet paste.
type ClipboardPayload struct {
	PacketID     uint64 `json:"packet_id"`
	TotalPackets uint64 `json:"total_packets"`
	Data         string `json:"data"`
}

type PasteFromClipboard struct {
	Data *ClipboardPayload `json:"data,omitempty"`
}

type DrawStart struct {
	Point  geom.Position `json:"point"`
	PathID uint64        `json:"path_id"`
}

type DrawAddPoint struct {
	Point geom.Position `json:"point"`
}

type DrawEnd struct {
	Point geom.Position `json:"point"`
}

type DrawClearPath struct {
	PathID uint64 `json:"path_id"`
}

type DrawClearAllPaths struct{}

type ClickAnimation struct {
	Point geom.Position `json:"point"`
}

func (MouseMove) EventType() EventType            { return TypeMouseMove }
func (MouseClick) EventType() EventType           { return TypeMouseClick }
func (MouseVisible) EventType() EventType         { return TypeMouseVisible }
func (Keystroke) EventType() EventType            { return TypeKeystroke }
func (WheelEvent) EventType() EventType           { return TypeWheelEvent }
func (Tick) EventType() EventType                 { return TypeTick }
func (TickResponse) EventType() EventType         { return TypeTickResponse }
func (RemoteControlEnabled) EventType() EventType { return TypeRemoteControlEnabled }
func (ParticipantInControl) EventType() EventType { return TypeParticipantInControl }
func (AddToClipboard) EventType() EventType       { return TypeAddToClipboard }
func (PasteFromClipboard) EventType() EventType   { return TypePasteFromClipboard }
func (DrawingMode) EventType() EventType          { return TypeDrawingMode }
func (DrawStart) EventType() EventType            { return TypeDrawStart }
func (DrawAddPoint) EventType() EventType         { return TypeDrawAddPoint }
func (DrawEnd) EventType() EventType              { return TypeDrawEnd }
func (DrawClearPath) EventType() EventType        { return TypeDrawClearPath }
func (DrawClearAllPaths) EventType() EventType    { return TypeDrawClearAllPaths }
func (ClickAnimation) EventType() EventType       { return TypeClickAnimation }

// ModeKind enumerates the annotation modes.
type ModeKind int

const (
	ModeDisabled ModeKind = iota
	ModeDraw
	ModeClickAnimation
)

func (k ModeKind) String() string {
	switch k {
	case ModeDraw:
		return "Draw"
	case ModeClickAnimation:
		return "ClickAnimation"
	default:
		return "Disabled"
	}
}

// DrawingMode is the annotation mode of a participant. On the wire it is
// externally tagged: "Disabled", "ClickAnimation" or
// {"Draw":{"permanent":bool}}.
type DrawingMode struct {
	Kind      ModeKind
	Permanent bool
}

// Disabled, Draw and ClickPulse build the three mode variants.
func Disabled() DrawingMode            { return DrawingMode{Kind: ModeDisabled} }
func Draw(permanent bool) DrawingMode  { return DrawingMode{Kind: ModeDraw, Permanent: permanent} }
func ClickPulse() DrawingMode          { return DrawingMode{Kind: ModeClickAnimation} }
func (m DrawingMode) IsDraw() bool     { return m.Kind == ModeDraw }
func (m DrawingMode) IsDisabled() bool { return m.Kind == ModeDisabled }

func (m DrawingMode) String() string {
	if m.Kind == ModeDraw {
		return fmt.Sprintf("Draw{permanent:%t}", m.Permanent)
	}
	return m.Kind.String()
}

type drawSettings struct {
	Permanent bool `json:"permanent"`
}

func (m DrawingMode) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case ModeDraw:
		return json.Marshal(map[string]drawSettings{"Draw": {Permanent: m.Permanent}})
	case ModeClickAnimation:
		return json.Marshal("ClickAnimation")
	default:
		return json.Marshal("Disabled")
	}
}

func (m *DrawingMode) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		switch tag {
		case "Disabled":
			*m = Disabled()
		case "ClickAnimation":
			*m = ClickPulse()
		default:
			return fmt.Errorf("%w: drawing mode %q", ErrUnknownType, tag)
		}
		return nil
	}
	var obj map[string]drawSettings
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode drawing mode: %w", err)
	}
	s, ok := obj["Draw"]
	if !ok || len(obj) != 1 {
		return fmt.Errorf("%w: drawing mode %s", ErrUnknownType, string(data))
	}
	*m = Draw(s.Permanent)
	return nil
}
