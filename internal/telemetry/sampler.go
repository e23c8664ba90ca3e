package telemetry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pairshare/internal/clock"
)

const DefaultInterval = 5 * time.Second

// Counters is a snapshot of monotonically increasing counters.
type Counters map[string]uint64

// Probe reads the current counters of one component.
type Probe func() Counters

type SamplerConfig struct {
	Clock    clock.Clock
	Interval time.Duration
	Logger   *zerolog.Logger
}

// Sampler logs the per-interval change of every registered counter.
type Sampler struct {
	clock    clock.Clock
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	probes  map[string]Probe
	last    map[string]Counters
	timer   clock.Timer
	running bool
}

func NewSampler(cfg SamplerConfig) *Sampler {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Sampler{
		clock:    cfg.Clock,
		interval: cfg.Interval,
		log:      cfg.Logger.With().Str("component", "stats").Str("run", uuid.NewString()).Logger(),
		probes:   make(map[string]Probe),
		last:     make(map[string]Counters),
	}
}

func (s *Sampler) Register(name string, p Probe) {
	s.mu.Lock()
	s.probes[name] = p
	s.mu.Unlock()
}

func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.timer = s.clock.AfterFunc(s.interval, s.tick)
}

func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Sampler) tick() {
	s.Sample()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.timer = s.clock.AfterFunc(s.interval, s.tick)
	}
}

// Sample logs and returns the change of every counter since the previous
// sample.
func (s *Sampler) Sample() map[string]Counters {
	s.mu.Lock()
	names := make([]string, 0, len(s.probes))
	probes := make(map[string]Probe, len(s.probes))
	for name, p := range s.probes {
		names = append(names, name)
		probes[name] = p
	}
	s.mu.Unlock()
	sort.Strings(names)

	out := make(map[string]Counters, len(names))
	for _, name := range names {
		cur := probes[name]()
		s.mu.Lock()
		prev := s.last[name]
		s.last[name] = cur
		s.mu.Unlock()

		delta := make(Counters, len(cur))
		dict := zerolog.Dict()
		for k, v := range cur {
			d := v - prev[k]
			if v < prev[k] {
				d = v
			}
			delta[k] = d
			dict.Uint64(k, d)
		}
		out[name] = delta
		s.log.Info().Dur("interval", s.interval).Dict(name, dict).Msg("stats")
	}
	return out
}
