// Package cursor tracks remote and local cursors and renders them as
// name badges on the overlay.
package cursor

import (
	"time"

	"github.com/rs/zerolog"

	"pairshare/internal/clock"
	"pairshare/internal/geom"
)

// DefaultInactivity hides a cursor that has not moved for this long.
const DefaultInactivity = 5 * time.Second

// Mode selects the sprite variant; it does not change hit behaviour.
type Mode int

const (
	ModeArrow Mode = iota
	ModePointer
)

// State is the cursor of one participant.
type State struct {
	Position     geom.Position // screen percentage
	LastActivity time.Time
	Mode         Mode
	Visible      bool
}

// NewState returns a visible cursor that has never moved.
func NewState() *State {
	return &State{Visible: true}
}

// Touch records activity without moving the cursor.
func (s *State) Touch(now time.Time) { s.LastActivity = now }

// MoveTo records a new position.
func (s *State) MoveTo(p geom.Position, now time.Time) {
	s.Position = p.Clamp01()
	s.LastActivity = now
}

// Target is the window the controller draws into. Closed reports whether
// the window was destroyed.
type Target interface {
	geom.Mapper
	Closed() bool
}

// Controller holds the settings shared by every remote cursor and a weak
// handle on the overlay window. When the window is detached or closed every
// pixel conversion fails and callers skip drawing.
type Controller struct {
	clock      clock.Clock
	inactivity time.Duration
	enabled    bool
	target     Target
	log        zerolog.Logger
}

type Config struct {
	Clock      clock.Clock
	Inactivity time.Duration
	Logger     *zerolog.Logger
}

func NewController(cfg Config) *Controller {
	if cfg.Inactivity <= 0 {
		cfg.Inactivity = DefaultInactivity
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	return &Controller{
		clock:      cfg.Clock,
		inactivity: cfg.Inactivity,
		enabled:    true,
		log:        cfg.Logger.With().Str("component", "cursor").Logger(),
	}
}

func (c *Controller) Attach(t Target) { c.target = t }
func (c *Controller) Detach()         { c.target = nil }

// Attached reports whether a live window is attached.
func (c *Controller) Attached() bool {
	return c.target != nil && !c.target.Closed()
}

func (c *Controller) Enabled() bool     { return c.enabled }
func (c *Controller) SetEnabled(v bool) { c.enabled = v }

// Inactivity returns the hide-after duration.
func (c *Controller) Inactivity() time.Duration { return c.inactivity }

// ToPixels converts a screen percentage to window pixels.
func (c *Controller) ToPixels(p geom.Position) (geom.Position, bool) {
	if !c.Attached() {
		c.log.Debug().Msg("cursor conversion without overlay window")
		return geom.Position{}, false
	}
	return c.target.PixelPosition(p.X, p.Y), true
}

// ToPercentage converts window pixels to a screen percentage.
func (c *Controller) ToPercentage(px geom.Position) (geom.Position, bool) {
	if !c.Attached() {
		c.log.Debug().Msg("cursor conversion without overlay window")
		return geom.Position{}, false
	}
	return c.target.LocalPercentageFromPixel(px.X, px.Y), true
}

// ShouldRender applies the visibility policy to s.
func (c *Controller) ShouldRender(s *State) bool {
	if s == nil || !s.Visible || s.LastActivity.IsZero() {
		return false
	}
	return c.clock.Since(s.LastActivity) <= c.inactivity
}
