// Package overlay manages the transparent, always-on-top windows the core
// paints remote cursors and annotations into, one per monitor.
package overlay

import (
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"pairshare/internal/clock"
	"pairshare/internal/geom"
	"pairshare/internal/raster"
	"pairshare/internal/types"
)

const (
	FullscreenPoll    = 10 * time.Millisecond
	FullscreenTimeout = time.Second
)

var (
	ErrFullscreenTimeout = errors.New("overlay: window did not reach monitor size")
	ErrGraphicsContext   = errors.New("overlay: cannot create drawing surface")
	ErrWindowClosed      = errors.New("overlay: window closed")
)

type CursorIcon int

const (
	IconDefault CursorIcon = iota
	IconPencil
)

// Surface is one native top-level window. New surfaces start hidden and
// click-through.
type Surface interface {
	// SetFrame moves and resizes the window, in physical pixels.
	SetFrame(f geom.Frame)
	// PhysicalSize is the size the window system currently reports.
	PhysicalSize() (width, height int)
	SetVisible(visible bool)
	// SetHitTest makes the window receive pointer input when on, and
	// pass it through to the windows below when off.
	SetHitTest(on bool)
	SetCursorIcon(icon CursorIcon)
	Present(img *image.RGBA) error
	Close()
}

// Platform is the window system.
type Platform interface {
	Monitors() ([]types.Monitor, error)
	NewSurface(m types.Monitor) (Surface, error)
	// Pointer returns the OS cursor position in screen pixels.
	Pointer() (x, y int, ok bool)
	// Events delivers input and monitor-change notifications. The channel is
	// closed when the platform is closed.
	Events() <-chan Event
	Close()
}

// Window is the overlay for one monitor.
type Window struct {
	monitorID uint32
	scale     float64
	logical   geom.Frame
	physical  geom.Frame
	visible   bool
	hitTest   bool
	closed    bool

	surface Surface
	canvas  *raster.Canvas
	clock   clock.Clock
}

func physicalFrame(m types.Monitor) geom.Frame {
	return geom.Frame{
		Origin: geom.Position{X: float64(m.X), Y: float64(m.Y)},
		Size:   geom.Extent{Width: float64(m.Width), Height: float64(m.Height)},
	}
}

func scaleOf(m types.Monitor) float64 {
	if m.Scale <= 0 {
		return 1
	}
	return m.Scale
}

// NewWindow creates a hidden, click-through overlay covering m and waits for
// the window system to report the full monitor size before allocating the
// drawing surface.
func NewWindow(p Platform, m types.Monitor, clk clock.Clock) (*Window, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	s, err := p.NewSurface(m)
	if err != nil {
		return nil, fmt.Errorf("create overlay for monitor %d: %w", m.ID, err)
	}
	w := &Window{surface: s, clock: clk}
	if err := w.fit(m); err != nil {
		s.Close()
		return nil, err
	}
	return w, nil
}

func (w *Window) fit(m types.Monitor) error {
	w.monitorID = m.ID
	w.scale = scaleOf(m)
	w.physical = physicalFrame(m)
	w.logical = geom.Frame{
		Origin: geom.Position{X: w.physical.Origin.X / w.scale, Y: w.physical.Origin.Y / w.scale},
		Size:   w.physical.Size.Scale(1 / w.scale),
	}
	w.surface.SetFrame(w.physical)
	if err := w.waitFullscreen(); err != nil {
		return err
	}
	pw, ph := int(w.physical.Size.Width), int(w.physical.Size.Height)
	if pw <= 0 || ph <= 0 {
		return ErrGraphicsContext
	}
	if w.canvas == nil {
		w.canvas = raster.NewCanvas(pw, ph)
	} else {
		w.canvas.Resize(pw, ph)
	}
	return nil
}

func (w *Window) waitFullscreen() error {
	want := w.physical.Size
	start := w.clock.Now()
	for {
		pw, ph := w.surface.PhysicalSize()
		if float64(pw) == want.Width && float64(ph) == want.Height {
			return nil
		}
		if w.clock.Since(start) >= FullscreenTimeout {
			return fmt.Errorf("%w: got %dx%d, want %vx%v", ErrFullscreenTimeout, pw, ph, want.Width, want.Height)
		}
		w.clock.Sleep(FullscreenPoll)
	}
}

func (w *Window) MonitorID() uint32         { return w.monitorID }
func (w *Window) Scale() float64            { return w.scale }
func (w *Window) LogicalFrame() geom.Frame  { return w.logical }
func (w *Window) PhysicalFrame() geom.Frame { return w.physical }
func (w *Window) Visible() bool             { return w.visible }
func (w *Window) HitTest() bool             { return w.hitTest }
func (w *Window) Closed() bool              { return w.closed }
func (w *Window) Canvas() *raster.Canvas    { return w.canvas }

// PixelPosition maps a screen percentage to a window pixel.
func (w *Window) PixelPosition(x, y float64) geom.Position {
	return geom.Position{
		X: math.Round(x * w.physical.Size.Width),
		Y: math.Round(y * w.physical.Size.Height),
	}
}

// LocalPercentageFromPixel maps a window pixel back to a screen percentage.
func (w *Window) LocalPercentageFromPixel(x, y float64) geom.Position {
	if w.physical.Size.IsZero() {
		return geom.Position{}
	}
	return geom.Position{
		X: x / w.physical.Size.Width,
		Y: y / w.physical.Size.Height,
	}.Clamp01()
}

func (w *Window) setVisible(v bool) {
	if w.closed || w.visible == v {
		return
	}
	w.visible = v
	w.surface.SetVisible(v)
}

// SetHitTest switches between click-through and input-capturing.
func (w *Window) SetHitTest(on bool) {
	if w.closed || w.hitTest == on {
		return
	}
	w.hitTest = on
	w.surface.SetHitTest(on)
}

func (w *Window) SetCursorIcon(icon CursorIcon) {
	if w.closed {
		return
	}
	w.surface.SetCursorIcon(icon)
}

// Present pushes the canvas to the screen.
func (w *Window) Present() error {
	if w.closed {
		return ErrWindowClosed
	}
	return w.surface.Present(w.canvas.Img)
}

func (w *Window) Close() {
	if w.closed {
		return
	}
	w.closed = true
	w.visible = false
	w.surface.Close()
}
