package overlay

import "pairshare/internal/geom"

// Event is a notification from the window system.
type Event interface{ isEvent() }

// MouseInput is a pointer event on an input-capturing overlay. Position is
// in window pixels. Button is one of the protocol button codes and is only
// meaningful for presses and releases.
type MouseInput struct {
	MonitorID uint32
	Position  geom.Position
	Kind      MouseKind
	Button    uint32
}

type MouseKind int

const (
	MouseMoved MouseKind = iota
	MousePressed
	MouseReleased
)

// KeyInput is a key press on an overlay that has input focus.
type KeyInput struct {
	MonitorID uint32
	Key       string
}

// MonitorsChanged is posted when displays are added, removed or resized.
type MonitorsChanged struct{}

func (MouseInput) isEvent()      {}
func (KeyInput) isEvent()        {}
func (MonitorsChanged) isEvent() {}

// KeyEscape is the Key of an Escape press.
const KeyEscape = "Escape"
