// Package participant keeps the per-participant state of a call: display
// name, colour, cursor and annotations.
package participant

import (
	"errors"
	"hash/fnv"
	"image/color"
	"sort"

	"github.com/rs/zerolog"

	"pairshare/internal/annotation"
	"pairshare/internal/cursor"
)

// LocalSID identifies the sharer's own cursor and ink.
const LocalSID = "local"

// ErrReservedSID is returned when the room announces a participant under
// LocalSID.
var ErrReservedSID = errors.New("participant: sid is reserved for the sharer")

// Palette is the fixed set of participant colours.
var Palette = []color.NRGBA{
	{R: 0xF5, G: 0x4E, B: 0x4E, A: 0xFF},
	{R: 0x3B, G: 0x82, B: 0xF6, A: 0xFF},
	{R: 0x10, G: 0xB9, B: 0x81, A: 0xFF},
	{R: 0xF5, G: 0x9E, B: 0x0B, A: 0xFF},
	{R: 0x8B, G: 0x5C, B: 0xF6, A: 0xFF},
	{R: 0xEC, G: 0x48, B: 0x99, A: 0xFF},
	{R: 0x06, G: 0xB6, B: 0xD4, A: 0xFF},
	{R: 0x84, G: 0xCC, B: 0x16, A: 0xFF},
}

// ColorFor returns the stable palette colour for sid.
func ColorFor(sid string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sid))
	return Palette[h.Sum32()%uint32(len(Palette))]
}

// Participant is one member of the call as seen by the sharer.
type Participant struct {
	SID        string
	Name       string
	Color      color.NRGBA
	Cursor     *cursor.State
	Annotation *annotation.State
}

// Registry maps sid to participant. The session controller is its only user.
type Registry struct {
	byID map[string]*Participant
	log  zerolog.Logger
}

func NewRegistry(logger *zerolog.Logger) *Registry {
	r := &Registry{
		byID: make(map[string]*Participant),
		log:  logger.With().Str("component", "participants").Logger(),
	}
	r.add(LocalSID, "You")
	return r
}

// Add registers a remote sid, or updates the name of an existing one.
func (r *Registry) Add(sid, name string) (*Participant, error) {
	if sid == LocalSID {
		return nil, ErrReservedSID
	}
	if p, ok := r.byID[sid]; ok {
		p.Name = name
		return p, nil
	}
	return r.add(sid, name), nil
}

func (r *Registry) add(sid, name string) *Participant {
	col := ColorFor(sid)
	p := &Participant{
		SID:        sid,
		Name:       name,
		Color:      col,
		Cursor:     cursor.NewState(),
		Annotation: annotation.New(col, sid == LocalSID),
	}
	r.byID[sid] = p
	r.log.Debug().Str("sid", sid).Str("name", name).Msg("participant added")
	return p
}

// Remove drops sid and everything it owns, including unfinished paths.
// The local participant cannot be removed.
func (r *Registry) Remove(sid string) bool {
	if sid == LocalSID {
		return false
	}
	p, ok := r.byID[sid]
	if !ok {
		return false
	}
	p.Annotation.ClearAll()
	delete(r.byID, sid)
	r.log.Debug().Str("sid", sid).Msg("participant removed")
	return true
}

// Get returns the participant for sid.
func (r *Registry) Get(sid string) (*Participant, bool) {
	p, ok := r.byID[sid]
	return p, ok
}

// Local returns the sharer's own participant.
func (r *Registry) Local() *Participant { return r.byID[LocalSID] }

// Len counts participants including the local one.
func (r *Registry) Len() int { return len(r.byID) }

// Remote returns remote participants sorted by sid for stable draw order.
func (r *Registry) Remote() []*Participant {
	out := make([]*Participant, 0, len(r.byID))
	for sid, p := range r.byID {
		if sid != LocalSID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SID < out[j].SID })
	return out
}

// All returns every participant, local last so its ink is on top.
func (r *Registry) All() []*Participant {
	return append(r.Remote(), r.Local())
}

// Reset removes every remote participant and clears local ink.
func (r *Registry) Reset() {
	for _, p := range r.Remote() {
		r.Remove(p.SID)
	}
	r.Local().Annotation.ClearAll()
}
