// Package redraw throttles overlay redraw requests and drives the
// click-pulse animation train.
package redraw

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pairshare/internal/clock"
)

const (
	MinInterval   = 16 * time.Millisecond
	TrainDuration = 1500 * time.Millisecond
)

type kind int

const (
	cmdRedraw kind = iota
	cmdClickAnimation
	cmdStop
)

type command struct {
	kind   kind
	extend bool
}

// Scheduler runs on its own goroutine and calls Dispatch at most once per
// MinInterval for plain redraws.
type Scheduler struct {
	clock    clock.Clock
	dispatch func()
	log      zerolog.Logger

	cmds chan command
	// ticks carries pulse-train ticks. One buffered tick is enough: a tick
	// that finds it full is already represented.
	ticks chan struct{}
	done  chan struct{}
	once  sync.Once

	lastDispatch time.Time
	trainUntil   time.Time
	trainRunning bool

	dispatched, dropped int
}

type Config struct {
	Clock clock.Clock
	// Dispatch asks the event loop to service a redraw. It must not block.
	Dispatch func()
	Logger   *zerolog.Logger
}

func New(cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	return &Scheduler{
		clock:    cfg.Clock,
		dispatch: cfg.Dispatch,
		log:      cfg.Logger.With().Str("component", "redraw").Logger(),
		cmds:     make(chan command, 64),
		ticks:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the scheduler goroutine.
func (s *Scheduler) Start() {
	go s.run()
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		select {
		case cmd := <-s.cmds:
			if cmd.kind == cmdStop {
				s.log.Debug().Int("dispatched", s.dispatched).Int("dropped", s.dropped).Msg("scheduler stopped")
				return
			}
			s.handle(cmd)
		case <-s.ticks:
			s.tick(s.clock.Now())
		}
	}
}

// Redraw requests a throttled redraw.
func (s *Scheduler) Redraw() { s.send(command{kind: cmdRedraw}) }

// ClickAnimation starts or extends the pulse train when extend is true.
// With extend false it only advances a running train.
func (s *Scheduler) ClickAnimation(extend bool) {
	s.send(command{kind: cmdClickAnimation, extend: extend})
}

// Stop terminates the goroutine and waits for it.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		s.cmds <- command{kind: cmdStop}
		<-s.done
	})
}

func (s *Scheduler) send(cmd command) {
	select {
	case <-s.done:
	case s.cmds <- cmd:
	default:
		s.log.Debug().Msg("redraw queue full, request dropped")
	}
}

func (s *Scheduler) handle(cmd command) {
	now := s.clock.Now()
	switch cmd.kind {
	case cmdRedraw:
		if !s.lastDispatch.IsZero() && now.Sub(s.lastDispatch) < MinInterval {
			s.dropped++
			return
		}
		s.fire(now)
	case cmdClickAnimation:
		if !cmd.extend {
			s.tick(now)
			return
		}
		s.trainUntil = now.Add(TrainDuration)
		if s.trainRunning {
			return
		}
		s.trainRunning = true
		s.tick(now)
	}
}

// tick dispatches one train frame and arms the next, or ends the train.
func (s *Scheduler) tick(now time.Time) {
	if !s.trainRunning {
		return
	}
	if !now.Before(s.trainUntil) {
		s.trainRunning = false
		return
	}
	s.fire(now)
	s.clock.AfterFunc(MinInterval, func() {
		select {
		case s.ticks <- struct{}{}:
		default:
		}
	})
}

func (s *Scheduler) fire(now time.Time) {
	s.lastDispatch = now
	s.dispatched++
	if s.dispatch != nil {
		s.dispatch()
	}
}
