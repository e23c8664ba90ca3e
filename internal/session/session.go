// Package session is the event loop of the core. It owns the overlay,
// participants, capture, input and room components and is the only
// goroutine that mutates them.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"pairshare/internal/capture"
	"pairshare/internal/clickpulse"
	"pairshare/internal/clock"
	"pairshare/internal/cursor"
	"pairshare/internal/geom"
	"pairshare/internal/input"
	"pairshare/internal/ipc"
	"pairshare/internal/overlay"
	"pairshare/internal/participant"
	"pairshare/internal/protocol"
	"pairshare/internal/redraw"
	"pairshare/internal/room"
	"pairshare/internal/telemetry"
	"pairshare/internal/types"
)

const (
	QueueSize       = 1024
	HousekeepPeriod = 50 * time.Millisecond
)

// RoomClient is the command surface of the room client.
type RoomClient interface {
	SetServerURL(url string)
	CreateRoom(token string)
	PublishVideoTrack(width, height int, useAV1 bool) *room.VideoSource
	UnpublishVideoTrack()
	PublishSharerLocation(x, y float64)
	PublishRemoteControlEnabled(enabled bool)
	PublishParticipantInControl(sid string)
	PublishDrawStart(p geom.Position, pathID uint64)
	PublishDrawAddPoint(p geom.Position)
	PublishDrawEnd(p geom.Position)
	PublishDrawClearPath(pathID uint64)
	PublishDrawClearAll()
	PublishDrawingMode(m protocol.DrawingMode)
	PublishTickResponse(t uint64)
	CloseRoom()
	Close()
}

// Capturer is the capture pipeline.
type Capturer interface {
	Enumerate() ([]types.Content, error)
	SetSink(s capture.FrameSink)
	StartCapture(content types.Content, target geom.Extent, fallback bool) error
	StopCapture()
	StreamExtent() geom.Extent
}

// HostLink is the connection to the host shell.
type HostLink interface {
	Send(p ipc.Payload) error
	ReadLoop(ctx context.Context, handle func(ipc.Message)) error
	Close() error
}

type (
	RoomFactory    func(deliver func(room.Event)) RoomClient
	CaptureFactory func(onFatal func(reason string)) Capturer
	// InputFactory builds the simulator for one share. permitted is the
	// accessibility permission reported by the host shell.
	InputFactory func(permitted bool) *input.Simulator
)

type Config struct {
	Host       HostLink
	Platform   overlay.Platform
	NewRoom    RoomFactory
	NewCapture CaptureFactory
	NewInput   InputFactory

	Reporter *telemetry.Reporter
	Sampler  *telemetry.Sampler // nil unless stats are enabled

	Clock      clock.Clock
	Logger     *zerolog.Logger
	Inactivity time.Duration
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInCall
	PhaseSharing
)

func (p Phase) String() string {
	switch p {
	case PhaseInCall:
		return "InCall"
	case PhaseSharing:
		return "Sharing"
	default:
		return "Idle"
	}
}

// share is everything that exists only while the screen is shared.
type share struct {
	gen       uint64
	req       ipc.StartScreenShare
	window    *overlay.Window
	scheduler *redraw.Scheduler
	input     *input.Simulator
	permitted bool

	capturing bool
	published bool

	housekeeper    *housekeeper
	lastLocation   geom.Position
	hasLocation    bool
	visibleCursors int
}

type localDrawing struct {
	permanent       bool
	savedController bool
	held            bool
}

type Session struct {
	clock    clock.Clock
	log      zerolog.Logger
	host     HostLink
	platform overlay.Platform
	room     RoomClient
	capture  Capturer
	newInput InputFactory
	reporter *telemetry.Reporter
	sampler  *telemetry.Sampler

	overlays     *overlay.Manager
	participants *participant.Registry
	cursors      *cursor.Controller
	sprites      *cursor.Renderer
	pulses       *clickpulse.Ring

	events           chan Event
	done             chan struct{}
	redrawPending    atomic.Bool
	housekeepPending atomic.Bool

	phase             Phase
	pendingCall       bool
	pendingShare      *ipc.StartScreenShare
	awaitingPublish   bool
	share             *share
	shareGen          uint64
	controllerEnabled bool
	lastInControl     string
	drawing           *localDrawing
	nextPathID        uint64

	handled atomic.Uint64
	redraws atomic.Uint64
}

func New(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Reporter == nil {
		cfg.Reporter = telemetry.NewReporter(cfg.Logger)
	}
	s := &Session{
		clock:             cfg.Clock,
		log:               cfg.Logger.With().Str("component", "session").Logger(),
		host:              cfg.Host,
		platform:          cfg.Platform,
		newInput:          cfg.NewInput,
		reporter:          cfg.Reporter,
		sampler:           cfg.Sampler,
		participants:      participant.NewRegistry(cfg.Logger),
		sprites:           cursor.NewRenderer(),
		pulses:            clickpulse.New(cfg.Logger),
		events:            make(chan Event, QueueSize),
		done:              make(chan struct{}),
		controllerEnabled: true,
	}
	s.overlays = overlay.NewManager(overlay.Config{Platform: cfg.Platform, Clock: cfg.Clock, Logger: cfg.Logger})
	s.cursors = cursor.NewController(cursor.Config{Clock: cfg.Clock, Inactivity: cfg.Inactivity, Logger: cfg.Logger})
	s.room = cfg.NewRoom(func(ev room.Event) { s.Post(FromRoom{Event: ev}) })
	s.capture = cfg.NewCapture(func(reason string) { s.Post(CaptureFailed{Reason: reason}) })
	if s.sampler != nil {
		s.sampler.Register("session", func() telemetry.Counters {
			return telemetry.Counters{"events": s.handled.Load(), "redraws": s.redraws.Load()}
		})
	}
	return s
}

func (s *Session) Phase() Phase { return s.phase }

// Post queues ev. It blocks while the queue is full and returns without
// queuing once the loop has exited.
func (s *Session) Post(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// tryPost queues ev unless the queue is full.
func (s *Session) tryPost(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// Run reads the host link and window events and processes the queue until
// a Terminate, a fatal capture failure or ctx cancellation. It returns the
// process exit code.
func (s *Session) Run(ctx context.Context) int {
	defer close(s.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		err := s.host.ReadLoop(ctx, func(m ipc.Message) { s.Post(FromHost{Payload: m.Payload}) })
		if ctx.Err() != nil {
			return
		}
		s.Post(Terminate{Code: ExitTerminated, Reason: fmt.Sprintf("host link: %v", err)})
	}()
	if s.platform != nil {
		go func() {
			for ev := range s.platform.Events() {
				select {
				case s.events <- FromWindow{Event: ev}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	if s.sampler != nil {
		s.sampler.Start()
		defer s.sampler.Stop()
	}

	s.log.Info().Msg("event loop started")
	for {
		select {
		case ev := <-s.events:
			if code, stop := s.Handle(ev); stop {
				s.log.Info().Int("code", code).Msg("event loop stopped")
				return code
			}
		case <-ctx.Done():
			s.shutdown()
			return ExitOK
		}
	}
}

// Handle processes one event. stop is true when the loop must exit with
// code. A panic in a handler is logged and turned into a shutdown with
// ExitTerminated.
func (s *Session) Handle(ev Event) (code int, stop bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("event", fmt.Sprintf("%T", ev)).Msg("handler panicked, terminating")
			s.shutdown()
			code, stop = ExitTerminated, true
		}
	}()
	s.handled.Add(1)

	switch e := ev.(type) {
	case FromHost:
		s.onHost(e.Payload)
	case FromRoom:
		s.onRoom(e.Event)
	case FromWindow:
		s.onWindow(e.Event)
	case redrawRequested:
		s.render()
	case housekeep:
		s.housekeeping(e.gen)
	case CaptureFailed:
		s.log.Error().Str("reason", e.Reason).Msg("capture failed permanently")
		if s.share != nil {
			s.send(ipc.ScreenShareStopped{Reason: e.Reason})
		}
		s.shutdown()
		return ExitCaptureFailed, true
	case Terminate:
		s.log.Info().Str("reason", e.Reason).Int("code", e.Code).Msg("terminating")
		s.shutdown()
		return e.Code, true
	}
	return 0, false
}

// send delivers p to the host shell. A failed send is logged; the reader
// goroutine notices a dead link and terminates the loop.
func (s *Session) send(p ipc.Payload) {
	if err := s.host.Send(p); err != nil {
		s.log.Warn().Err(err).Str("type", string(p.MessageType())).Msg("send to host failed")
	}
}

// requestRedraw asks the scheduler for a frame. It is a no-op while not
// sharing.
func (s *Session) requestRedraw() {
	if s.share != nil {
		s.share.scheduler.Redraw()
	}
}

// dispatchRedraw runs on the scheduler goroutine. At most one redraw is
// queued at a time.
func (s *Session) dispatchRedraw() {
	if s.redrawPending.CompareAndSwap(false, true) {
		if !s.tryPost(redrawRequested{}) {
			s.redrawPending.Store(false)
		}
	}
}

// dispatchHousekeep runs on the housekeeper's timer. At most one tick is
// queued at a time.
func (s *Session) dispatchHousekeep(gen uint64) {
	if s.housekeepPending.CompareAndSwap(false, true) {
		if !s.tryPost(housekeep{gen: gen}) {
			s.housekeepPending.Store(false)
		}
	}
}

func (s *Session) shutdown() {
	s.leaveCall()
	s.overlays.Close()
	s.room.Close()
	if err := s.host.Close(); err != nil && !errors.Is(err, ipc.ErrClosed) {
		s.log.Debug().Err(err).Msg("close host link")
	}
}
