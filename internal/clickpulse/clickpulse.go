// Package clickpulse renders the ring animation acknowledging a click on the
// shared surface.
package clickpulse

import (
	"image/color"
	"time"

	"github.com/rs/zerolog"

	"pairshare/internal/geom"
	"pairshare/internal/raster"
)

const (
	Capacity = 30

	Lifetime      = 1000 * time.Millisecond
	DotDuration   = 300 * time.Millisecond
	DotRadius     = 5.0
	RingMaxRadius = 35.0
	RingWidth     = 2.0
)

type slot struct {
	pos       geom.Position // window pixels
	color     color.NRGBA
	enabledAt *time.Time
}

// Ring is a fixed-capacity set of pulse slots. Slot indices are partitioned
// between the free and used queues; used is ordered by enable time.
type Ring struct {
	slots [Capacity]slot
	free  []int
	used  []int
	log   zerolog.Logger
}

func New(logger *zerolog.Logger) *Ring {
	r := &Ring{
		free: make([]int, 0, Capacity),
		used: make([]int, 0, Capacity),
		log:  logger.With().Str("component", "clickpulse").Logger(),
	}
	for i := 0; i < Capacity; i++ {
		r.free = append(r.free, i)
	}
	return r
}

// Enable starts a pulse at pos. It returns false when every slot is busy.
func (r *Ring) Enable(pos geom.Position, col color.NRGBA, now time.Time) bool {
	if len(r.free) == 0 {
		r.log.Warn().Msg("click pulse dropped, no free slot")
		return false
	}
	idx := r.free[0]
	r.free = r.free[1:]
	t := now
	r.slots[idx] = slot{pos: pos, color: col, enabledAt: &t}
	r.used = append(r.used, idx)
	return true
}

// Update reclaims expired slots in FIFO order.
func (r *Ring) Update(now time.Time) {
	for len(r.used) > 0 {
		idx := r.used[0]
		s := &r.slots[idx]
		if s.enabledAt != nil && now.Sub(*s.enabledAt) < Lifetime {
			return
		}
		s.enabledAt = nil
		r.used = r.used[1:]
		r.free = append(r.free, idx)
	}
}

// Active reports whether any pulse is animating.
func (r *Ring) Active() bool { return len(r.used) > 0 }

// Len returns the number of free and used slots.
func (r *Ring) Len() (free, used int) { return len(r.free), len(r.used) }

// Clear releases every slot.
func (r *Ring) Clear() {
	for _, idx := range r.used {
		r.slots[idx].enabledAt = nil
		r.free = append(r.free, idx)
	}
	r.used = r.used[:0]
}

// Draw renders every active pulse. scale converts logical sizes to pixels.
func (r *Ring) Draw(c *raster.Canvas, now time.Time, scale float64) {
	for _, idx := range r.used {
		s := r.slots[idx]
		if s.enabledAt == nil {
			continue
		}
		age := now.Sub(*s.enabledAt)
		p := c.Begin()
		if age < DotDuration {
			p.Disc(s.pos, DotRadius*scale)
		} else {
			p.Ring(s.pos, RingRadius(age)*scale, RingWidth*scale)
		}
		p.Fill(s.color)
	}
}

// RingRadius returns the ring radius for a pulse of the given age. It grows
// linearly from DotRadius to RingMaxRadius over the ring phase.
func RingRadius(age time.Duration) float64 {
	if age <= DotDuration {
		return DotRadius
	}
	if age >= Lifetime {
		return RingMaxRadius
	}
	f := float64(age-DotDuration) / float64(Lifetime-DotDuration)
	return DotRadius + f*(RingMaxRadius-DotRadius)
}
