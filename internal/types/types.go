package types

import (
	"image"
	"time"
)

// RawFrame is a captured screen frame in BGRA.
type RawFrame struct {
	Data   []byte
	Width  int
	Height int
	Stride int
}

type EncodedFrame struct {
	Data     []byte
	IsKey    bool
	Duration time.Duration
}

// Monitor describes one physical display.
type Monitor struct {
	ID     uint32
	Name   string
	X, Y   int
	Width  int
	Height int
	// Scale is the ratio of physical to logical pixels.
	Scale   float64
	Primary bool
}

// Content selects what to capture: a whole display, or a window on it.
type Content struct {
	Kind      ContentKind `json:"type"`
	ID        uint32      `json:"id"`
	MonitorID uint32      `json:"monitor_id"`
	Title     string      `json:"title,omitempty"`
}

type ContentKind string

const (
	ContentDisplay ContentKind = "Display"
	ContentWindow  ContentKind = "Window"
)

// ScreenGrabber copies the current contents of one capture target.
type ScreenGrabber interface {
	Width() int
	Height() int
	Grab() (*RawFrame, error)
	Close()
}

type VideoEncoder interface {
	Encode(frame *image.YCbCr) (*EncodedFrame, error)
	Close()
}

// Mouse buttons understood by InputBackend.
type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
)

// InputBackend synthesizes OS-level input events.
type InputBackend interface {
	Warp(x, y int) error
	Button(b Button, down bool) error
	Scroll(dx, dy float64) error
	Key(name string, down bool) error
	Close()
}

// ClipboardOwner takes ownership of the system clipboard and serves its text
// to other applications until another owner appears.
type ClipboardOwner interface {
	SetText(text string) error
	Run(stop <-chan struct{})
	Close()
}
