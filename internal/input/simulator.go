// Package input turns controller events into synthesized OS input.
package input

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pairshare/internal/clock"
	"pairshare/internal/protocol"
	"pairshare/internal/types"
)

var (
	ErrDisabled   = errors.New("input: simulator disabled")
	ErrUnknownKey = errors.New("input: unknown key")
	ErrNoBackend  = errors.New("input: no backend")
)

// ShortcutGap separates each synthesized step of a copy, cut or paste chord.
const ShortcutGap = 10 * time.Millisecond

type Modifiers struct {
	Shift, Ctrl, Alt, Meta bool
}

func (m Modifiers) keys() []string {
	var out []string
	if m.Shift {
		out = append(out, KeyShift)
	}
	if m.Ctrl {
		out = append(out, KeyControl)
	}
	if m.Alt {
		out = append(out, KeyAlt)
	}
	if m.Meta {
		out = append(out, KeyMeta)
	}
	return out
}

type Config struct {
	Backend   types.InputBackend
	Clipboard types.ClipboardOwner
	Clock     clock.Clock
	Logger    *zerolog.Logger
	// Permitted is false when the OS denied the accessibility capability.
	Permitted bool
	// ShortcutKey is the modifier used for copy, cut and paste chords.
	ShortcutKey string
}

// Simulator is owned by the session event loop and is not safe for
// concurrent use.
type Simulator struct {
	backend   types.InputBackend
	clipboard types.ClipboardOwner
	clock     clock.Clock
	log       zerolog.Logger
	shortcut  string
	enabled   bool

	paste pasteBuffer
}

func NewSimulator(cfg Config) *Simulator {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.ShortcutKey == "" {
		cfg.ShortcutKey = DefaultShortcutKey()
	}
	s := &Simulator{
		backend:   cfg.Backend,
		clipboard: cfg.Clipboard,
		clock:     cfg.Clock,
		log:       cfg.Logger.With().Str("component", "input").Logger(),
		shortcut:  cfg.ShortcutKey,
		enabled:   cfg.Permitted && cfg.Backend != nil,
	}
	if !cfg.Permitted {
		s.log.Warn().Msg("accessibility permission missing, input simulation disabled")
	}
	return s
}

// DefaultShortcutKey is Meta on macOS and Control elsewhere.
func DefaultShortcutKey() string {
	if runtime.GOOS == "darwin" {
		return KeyMeta
	}
	return KeyControl
}

func (s *Simulator) Enabled() bool { return s.enabled }

// SetEnabled toggles simulation. It cannot enable a simulator without a
// backend.
func (s *Simulator) SetEnabled(on bool) {
	s.enabled = on && s.backend != nil
}

func (s *Simulator) check() error {
	if s.backend == nil {
		return ErrNoBackend
	}
	if !s.enabled {
		return ErrDisabled
	}
	return nil
}

// Warp moves the OS cursor to a screen pixel.
func (s *Simulator) Warp(x, y float64) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.backend.Warp(int(x+0.5), int(y+0.5))
}

// Click warps to (x, y) and presses or releases button with the given
// modifiers held. clicks > 1 repeats the press-release for multi-clicks.
func (s *Simulator) Click(x, y float64, button uint32, clicks int, down bool, mods Modifiers) error {
	if err := s.check(); err != nil {
		return err
	}
	b, err := mapButton(button)
	if err != nil {
		return err
	}
	if err := s.backend.Warp(int(x+0.5), int(y+0.5)); err != nil {
		return err
	}
	held := mods.keys()
	if err := s.keys(held, true); err != nil {
		return err
	}
	var errs []error
	if down && clicks > 1 {
		// Earlier clicks of the series are complete press-release pairs.
		for i := 1; i < clicks; i++ {
			errs = append(errs, s.backend.Button(b, true), s.backend.Button(b, false))
		}
	}
	errs = append(errs, s.backend.Button(b, down))
	errs = append(errs, s.keys(reversed(held), false))
	return errors.Join(errs...)
}

func (s *Simulator) Scroll(dx, dy float64) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.backend.Scroll(dx, dy)
}

// Keystroke presses (down) or releases keys with mods. Modifiers go down
// before the keys and come up after them.
func (s *Simulator) Keystroke(keys []string, mods Modifiers, down bool) error {
	if err := s.check(); err != nil {
		return err
	}
	for _, k := range keys {
		if _, ok := Keysym(k); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownKey, k)
		}
	}
	held := withoutDuplicates(mods.keys(), keys)
	if down {
		return errors.Join(s.keys(held, true), s.keys(keys, true))
	}
	return errors.Join(s.keys(reversed(keys), false), s.keys(reversed(held), false))
}

// Copy synthesizes the copy chord, or cut when isCopy is false.
func (s *Simulator) Copy(isCopy bool) error {
	if err := s.check(); err != nil {
		return err
	}
	letter := "x"
	if isCopy {
		letter = "c"
	}
	return s.chord(letter)
}

// Paste handles a PasteFromClipboard request. A nil payload pastes whatever
// is already on the clipboard. Payload chunks are buffered until every
// packet_id up to total_packets has arrived, then written in packet order.
func (s *Simulator) Paste(p *protocol.ClipboardPayload) error {
	if err := s.check(); err != nil {
		return err
	}
	if p == nil {
		return s.chord("v")
	}
	text, complete := s.paste.add(*p)
	if !complete {
		s.log.Debug().Uint64("packet", p.PacketID).Uint64("total", p.TotalPackets).Msg("paste chunk buffered")
		return nil
	}
	if s.clipboard == nil {
		return fmt.Errorf("input: paste: %w", ErrNoBackend)
	}
	if err := s.clipboard.SetText(text); err != nil {
		return fmt.Errorf("input: set clipboard: %w", err)
	}
	return s.chord("v")
}

// PendingPaste reports how many chunks of an unfinished paste are buffered.
func (s *Simulator) PendingPaste() int { return len(s.paste.chunks) }

func (s *Simulator) chord(letter string) error {
	steps := []struct {
		key  string
		down bool
	}{
		{s.shortcut, true},
		{letter, true},
		{letter, false},
		{s.shortcut, false},
	}
	for i, st := range steps {
		if i > 0 {
			s.clock.Sleep(ShortcutGap)
		}
		if err := s.backend.Key(st.key, st.down); err != nil {
			return fmt.Errorf("input: %s+%s: %w", s.shortcut, letter, err)
		}
	}
	return nil
}

func (s *Simulator) keys(names []string, down bool) error {
	for _, k := range names {
		if err := s.backend.Key(k, down); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) Close() {
	if s.backend != nil {
		s.backend.Close()
	}
	if s.clipboard != nil {
		s.clipboard.Close()
	}
}

type pasteBuffer struct {
	total  uint64
	chunks map[uint64]string
}

func (b *pasteBuffer) add(p protocol.ClipboardPayload) (string, bool) {
	total := p.TotalPackets
	if total == 0 {
		total = 1
	}
	if b.chunks == nil || b.total != total {
		b.chunks = make(map[uint64]string, total)
		b.total = total
	}
	b.chunks[p.PacketID] = p.Data
	if uint64(len(b.chunks)) < b.total {
		return "", false
	}
	ids := make([]uint64, 0, len(b.chunks))
	for id := range b.chunks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(b.chunks[id])
	}
	b.chunks = nil
	b.total = 0
	return sb.String(), true
}

func mapButton(b uint32) (types.Button, error) {
	switch b {
	case protocol.ButtonLeft:
		return types.ButtonLeft, nil
	case protocol.ButtonRight:
		return types.ButtonRight, nil
	case protocol.ButtonMiddle:
		return types.ButtonMiddle, nil
	}
	return 0, fmt.Errorf("input: unknown button %d", b)
}

func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

// withoutDuplicates drops modifiers that are also listed as keys.
func withoutDuplicates(mods, keys []string) []string {
	out := mods[:0:0]
	for _, m := range mods {
		dup := false
		for _, k := range keys {
			if strings.EqualFold(m, k) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, m)
		}
	}
	return out
}
