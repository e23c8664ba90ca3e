// Package capture grabs the shared display, converts frames to I420 and
// recovers from capture failures.
package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"pairshare/internal/clock"
	"pairshare/internal/geom"
	"pairshare/internal/types"
)

const (
	DefaultFPS    = 40
	MaxRetries    = 5
	RetryInterval = 100 * time.Millisecond
	// FailureReason is reported through OnFatal when retries are exhausted.
	FailureReason = "Too many failures"
)

var ErrNoSource = errors.New("capture: no source")

// Source enumerates capture targets and opens grabbers for them.
type Source interface {
	Enumerate() ([]types.Content, error)
	Open(content types.Content, fallback bool) (types.ScreenGrabber, error)
}

// FrameSink receives converted frames. It must not retain frame after
// returning.
type FrameSink interface {
	WriteFrame(frame *image.YCbCr, at time.Time)
}

type Config struct {
	Source Source
	Clock  clock.Clock
	Logger *zerolog.Logger
	FPS    int
	// OnFatal is called once, from the watchdog, when recovery gives up.
	OnFatal func(reason string)
}

// Stats counts frames since the pipeline was created.
type Stats struct {
	Delivered uint64
	Failed    uint64
	Restarts  uint64
}

type Pipeline struct {
	source  Source
	clock   clock.Clock
	log     zerolog.Logger
	onFatal func(string)
	frame   time.Duration

	mu       sync.Mutex
	sink     FrameSink
	active   *stream
	failures int

	running atomic.Bool

	delivered, failed, restarts atomic.Uint64
}

type stream struct {
	content  types.Content
	fallback bool
	extent   geom.Extent
	grabber  types.ScreenGrabber
	buf      *image.YCbCr
	lastErr  error
	broken   bool
	// recovered is set by the first good frame after a restart.
	recovered bool

	frameTimer clock.Timer
	watchTimer clock.Timer
}

func NewPipeline(cfg Config) *Pipeline {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	return &Pipeline{
		source:  cfg.Source,
		clock:   cfg.Clock,
		log:     cfg.Logger.With().Str("component", "capture").Logger(),
		onFatal: cfg.OnFatal,
		frame:   time.Second / time.Duration(cfg.FPS),
	}
}

// Enumerate lists displays and, where supported, windows.
func (p *Pipeline) Enumerate() ([]types.Content, error) {
	if p.source == nil {
		return nil, ErrNoSource
	}
	return p.source.Enumerate()
}

// SetSink sets where frames go. A nil sink discards frames.
func (p *Pipeline) SetSink(s FrameSink) {
	p.mu.Lock()
	p.sink = s
	p.mu.Unlock()
}

// StartCapture stops any running stream and starts capturing content. A
// zero target keeps the native size.
func (p *Pipeline) StartCapture(content types.Content, target geom.Extent, fallback bool) error {
	if p.source == nil {
		return ErrNoSource
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	g, err := p.source.Open(content, fallback)
	if err != nil {
		return fmt.Errorf("capture: open %s %d: %w", content.Kind, content.ID, err)
	}
	extent := target.Round()
	if extent.IsZero() {
		extent = geom.Extent{Width: float64(g.Width()), Height: float64(g.Height())}
	}
	w, h := int(extent.Width)&^1, int(extent.Height)&^1
	s := &stream{
		content:  content,
		fallback: fallback,
		extent:   geom.Extent{Width: float64(w), Height: float64(h)},
		grabber:  g,
	}
	if w > 0 && h > 0 {
		s.buf = NewI420(w, h)
	}
	p.active = s
	p.failures = 0
	p.running.Store(true)
	p.log.Info().
		Str("kind", string(content.Kind)).
		Uint32("id", content.ID).
		Int("width", w).Int("height", h).
		Bool("fallback", fallback).
		Msg("capture started")

	s.frameTimer = p.clock.AfterFunc(p.frame, func() { p.captureFrame(s) })
	s.watchTimer = p.clock.AfterFunc(RetryInterval, func() { p.watch(s) })
	return nil
}

// StopCapture releases the grabber. StreamExtent is zero afterwards.
func (p *Pipeline) StopCapture() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Pipeline) stopLocked() {
	s := p.active
	if s == nil {
		return
	}
	p.active = nil
	p.running.Store(false)
	s.frameTimer.Stop()
	s.watchTimer.Stop()
	if s.grabber != nil {
		s.grabber.Close()
		s.grabber = nil
	}
	s.buf = nil
	p.log.Info().Msg("capture stopped")
}

// StreamExtent is the negotiated frame size, or zero when idle.
func (p *Pipeline) StreamExtent() geom.Extent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return geom.Extent{}
	}
	return p.active.extent
}

// Running reports whether a stream is active. Safe from any goroutine.
func (p *Pipeline) Running() bool { return p.running.Load() }

// Failures is the current consecutive failure count.
func (p *Pipeline) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Delivered: p.delivered.Load(),
		Failed:    p.failed.Load(),
		Restarts:  p.restarts.Load(),
	}
}

func (p *Pipeline) captureFrame(s *stream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != s || s.broken {
		return
	}
	f, err := s.grabber.Grab()
	if err != nil {
		p.failed.Add(1)
		s.broken = true
		s.lastErr = err
		p.log.Warn().Err(err).Msg("capture frame failed")
		return
	}
	if s.buf != nil && p.sink != nil {
		ConvertFrame(f, s.buf)
		p.sink.WriteFrame(s.buf, p.clock.Now())
	}
	p.delivered.Add(1)
	if !s.recovered {
		s.recovered = true
		if p.failures > 0 {
			p.log.Info().Int("failures", p.failures).Msg("capture recovered")
		}
		p.failures = 0
	}
	s.frameTimer = p.clock.AfterFunc(p.frame, func() { p.captureFrame(s) })
}

// watch polls the stream for failure and reopens it, giving up after
// MaxRetries consecutive failed attempts.
func (p *Pipeline) watch(s *stream) {
	p.mu.Lock()
	if p.active != s {
		p.mu.Unlock()
		return
	}
	if !s.broken {
		s.watchTimer = p.clock.AfterFunc(RetryInterval, func() { p.watch(s) })
		p.mu.Unlock()
		return
	}
	if p.failures >= MaxRetries {
		p.log.Error().Err(s.lastErr).Int("failures", p.failures).Msg("capture giving up")
		p.stopLocked()
		onFatal := p.onFatal
		p.mu.Unlock()
		if onFatal != nil {
			onFatal(FailureReason)
		}
		return
	}
	p.failures++
	p.restarts.Add(1)
	p.log.Debug().Err(s.lastErr).Int("attempt", p.failures).Msg("restarting capture")

	s.grabber.Close()
	g, err := p.source.Open(s.content, s.fallback)
	if err != nil {
		// Keep the stream marked broken so the next poll counts another failure.
		s.grabber = brokenGrabber{err}
		s.lastErr = err
	} else {
		s.grabber = g
		s.broken = false
		s.recovered = false
		s.frameTimer = p.clock.AfterFunc(p.frame, func() { p.captureFrame(s) })
	}
	s.watchTimer = p.clock.AfterFunc(RetryInterval, func() { p.watch(s) })
	p.mu.Unlock()
}

type brokenGrabber struct{ err error }

func (b brokenGrabber) Width() int                     { return 0 }
func (b brokenGrabber) Height() int                    { return 0 }
func (b brokenGrabber) Grab() (*types.RawFrame, error) { return nil, b.err }
func (b brokenGrabber) Close()                         {}
