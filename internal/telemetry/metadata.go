// Package telemetry carries crash-report metadata and the debug stats
// sampler.
package telemetry

import (
	"sync"

	"github.com/rs/zerolog"
)

type Metadata struct {
	UserEmail  string
	AppVersion string
}

// Reporter holds the metadata attached to crash reports. It can be set
// once per process; later calls are ignored.
type Reporter struct {
	once sync.Once
	mu   sync.Mutex
	md   *Metadata
	log  zerolog.Logger
}

func NewReporter(logger *zerolog.Logger) *Reporter {
	return &Reporter{log: logger.With().Str("component", "telemetry").Logger()}
}

// SetMetadata records the metadata and reports whether this call was the
// one that set it.
func (r *Reporter) SetMetadata(email, version string) bool {
	set := false
	r.once.Do(func() {
		r.mu.Lock()
		r.md = &Metadata{UserEmail: email, AppVersion: version}
		r.mu.Unlock()
		set = true
		r.log.Info().Str("app_version", version).Bool("has_email", email != "").Msg("crash report metadata set")
	})
	if !set {
		r.log.Debug().Msg("crash report metadata already set, ignoring")
	}
	return set
}

func (r *Reporter) Metadata() (Metadata, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.md == nil {
		return Metadata{}, false
	}
	return *r.md, true
}
