package overlay

import (
	"fmt"

	"github.com/rs/zerolog"

	"pairshare/internal/clock"
	"pairshare/internal/geom"
	"pairshare/internal/types"
)

type Config struct {
	Platform Platform
	Clock    clock.Clock
	Logger   *zerolog.Logger
}

// Manager owns one window per monitor and keeps at most one visible.
type Manager struct {
	platform Platform
	clock    clock.Clock
	log      zerolog.Logger
	windows  map[uint32]*Window
	monitors []types.Monitor
}

func NewManager(cfg Config) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	return &Manager{
		platform: cfg.Platform,
		clock:    cfg.Clock,
		log:      cfg.Logger.With().Str("component", "overlay").Logger(),
		windows:  make(map[uint32]*Window),
	}
}

// Monitors returns the monitors seen by the last Reconfigure.
func (m *Manager) Monitors() []types.Monitor { return m.monitors }

func (m *Manager) Window(id uint32) (*Window, bool) {
	w, ok := m.windows[id]
	return w, ok
}

// Visible returns the shown window, or nil.
func (m *Manager) Visible() *Window {
	for _, w := range m.windows {
		if w.visible {
			return w
		}
	}
	return nil
}

// PointerPercentage returns the OS cursor as a percentage of monitor id.
// ok is false when the cursor is on another monitor.
func (m *Manager) PointerPercentage(id uint32) (geom.Position, bool) {
	w, found := m.windows[id]
	if !found {
		return geom.Position{}, false
	}
	x, y, ok := m.platform.Pointer()
	if !ok {
		return geom.Position{}, false
	}
	pt := geom.Position{X: float64(x), Y: float64(y)}
	if !w.physical.Contains(pt) {
		return geom.Position{}, false
	}
	local := pt.Sub(w.physical.Origin)
	return w.LocalPercentageFromPixel(local.X, local.Y), true
}

// Refresh queries the platform for monitors and reconfigures.
func (m *Manager) Refresh() error {
	mons, err := m.platform.Monitors()
	if err != nil {
		return fmt.Errorf("list monitors: %w", err)
	}
	return m.Reconfigure(mons)
}

// Reconfigure re-fits windows of monitors that still exist, destroys those
// whose monitor is gone and creates hidden windows for new monitors. The
// first error is returned after every monitor was processed.
func (m *Manager) Reconfigure(mons []types.Monitor) error {
	m.monitors = mons
	seen := make(map[uint32]bool, len(mons))
	var first error
	for _, mon := range mons {
		seen[mon.ID] = true
		if w, ok := m.windows[mon.ID]; ok {
			if err := w.fit(mon); err != nil {
				m.log.Warn().Err(err).Uint32("monitor", mon.ID).Msg("refit failed, dropping window")
				w.Close()
				delete(m.windows, mon.ID)
				if first == nil {
					first = err
				}
			}
			continue
		}
		w, err := NewWindow(m.platform, mon, m.clock)
		if err != nil {
			m.log.Warn().Err(err).Uint32("monitor", mon.ID).Msg("create overlay failed")
			if first == nil {
				first = err
			}
			continue
		}
		m.windows[mon.ID] = w
	}
	for id, w := range m.windows {
		if !seen[id] {
			m.log.Info().Uint32("monitor", id).Msg("monitor removed")
			w.Close()
			delete(m.windows, id)
		}
	}
	return first
}

// Show makes the window of monitor id visible and hides all others.
func (m *Manager) Show(id uint32) (*Window, error) {
	target, ok := m.windows[id]
	if !ok {
		return nil, fmt.Errorf("overlay: no window for monitor %d", id)
	}
	for wid, w := range m.windows {
		if wid != id {
			w.setVisible(false)
			w.SetHitTest(false)
		}
	}
	target.setVisible(true)
	return target, nil
}

// HideAll hides every window and returns them to click-through.
func (m *Manager) HideAll() {
	for _, w := range m.windows {
		w.SetHitTest(false)
		w.SetCursorIcon(IconDefault)
		w.setVisible(false)
	}
}

func (m *Manager) Close() {
	for id, w := range m.windows {
		w.Close()
		delete(m.windows, id)
	}
}
