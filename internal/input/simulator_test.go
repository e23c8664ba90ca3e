package input

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairshare/internal/clock"
	"pairshare/internal/protocol"
	"pairshare/internal/types"
)

type fakeBackend struct {
	events []string
	closed bool
}

func (f *fakeBackend) Warp(x, y int) error {
	f.events = append(f.events, fmt.Sprintf("warp %d,%d", x, y))
	return nil
}

func (f *fakeBackend) Button(b types.Button, down bool) error {
	f.events = append(f.events, fmt.Sprintf("button %d %v", b, down))
	return nil
}

func (f *fakeBackend) Scroll(dx, dy float64) error {
	f.events = append(f.events, fmt.Sprintf("scroll %g,%g", dx, dy))
	return nil
}

func (f *fakeBackend) Key(name string, down bool) error {
	f.events = append(f.events, fmt.Sprintf("key %s %v", name, down))
	return nil
}

func (f *fakeBackend) Close() { f.closed = true }

type fakeClipboard struct {
	writes []string
}

func (f *fakeClipboard) SetText(text string) error {
	f.writes = append(f.writes, text)
	return nil
}

func (f *fakeClipboard) Run(stop <-chan struct{}) { <-stop }
func (f *fakeClipboard) Close()                   {}

func newSim(t *testing.T) (*Simulator, *fakeBackend, *fakeClipboard, *clock.Fake) {
	t.Helper()
	b := &fakeBackend{}
	cb := &fakeClipboard{}
	clk := clock.NewFake(time.Unix(0, 0))
	l := zerolog.Nop()
	s := NewSimulator(Config{
		Backend:     b,
		Clipboard:   cb,
		Clock:       clk,
		Logger:      &l,
		Permitted:   true,
		ShortcutKey: KeyControl,
	})
	return s, b, cb, clk
}

func TestClickWithModifiers(t *testing.T) {
	s, b, _, _ := newSim(t)
	require.NoError(t, s.Click(10.4, 20.6, protocol.ButtonRight, 1, true, Modifiers{Shift: true, Ctrl: true}))
	assert.Equal(t, []string{
		"warp 10,21",
		"key Shift true",
		"key Control true",
		"button 1 true",
		"key Control false",
		"key Shift false",
	}, b.events)
}

func TestDoubleClick(t *testing.T) {
	s, b, _, _ := newSim(t)
	require.NoError(t, s.Click(0, 0, protocol.ButtonLeft, 2, true, Modifiers{}))
	assert.Equal(t, []string{"warp 0,0", "button 0 true", "button 0 false", "button 0 true"}, b.events)
}

func TestUnknownButton(t *testing.T) {
	s, _, _, _ := newSim(t)
	assert.Error(t, s.Click(0, 0, 9, 1, true, Modifiers{}))
}

func TestDisabledIsNoop(t *testing.T) {
	s, b, _, _ := newSim(t)
	s.SetEnabled(false)
	assert.ErrorIs(t, s.Click(1, 1, 0, 1, true, Modifiers{}), ErrDisabled)
	assert.ErrorIs(t, s.Scroll(0, 40), ErrDisabled)
	assert.ErrorIs(t, s.Keystroke([]string{"a"}, Modifiers{}, true), ErrDisabled)
	assert.ErrorIs(t, s.Paste(nil), ErrDisabled)
	assert.Empty(t, b.events)
}

func TestNotPermittedStartsDisabled(t *testing.T) {
	l := zerolog.Nop()
	s := NewSimulator(Config{Backend: &fakeBackend{}, Logger: &l})
	assert.False(t, s.Enabled())
	s.SetEnabled(true)
	assert.True(t, s.Enabled())

	none := NewSimulator(Config{Logger: &l, Permitted: true})
	none.SetEnabled(true)
	assert.False(t, none.Enabled())
	assert.ErrorIs(t, none.Warp(1, 1), ErrNoBackend)
}

func TestKeystrokeOrdering(t *testing.T) {
	s, b, _, _ := newSim(t)
	require.NoError(t, s.Keystroke([]string{"a"}, Modifiers{Meta: true}, true))
	require.NoError(t, s.Keystroke([]string{"a"}, Modifiers{Meta: true}, false))
	assert.Equal(t, []string{"key Meta true", "key a true", "key a false", "key Meta false"}, b.events)

	assert.ErrorIs(t, s.Keystroke([]string{"NotAKey"}, Modifiers{}, true), ErrUnknownKey)
}

func TestCopyCutChordTiming(t *testing.T) {
	s, b, _, clk := newSim(t)
	start := clk.Now()
	require.NoError(t, s.Copy(true))
	assert.Equal(t, []string{"key Control true", "key c true", "key c false", "key Control false"}, b.events)
	assert.Equal(t, 3*ShortcutGap, clk.Since(start))

	b.events = nil
	require.NoError(t, s.Copy(false))
	assert.Equal(t, "key x true", b.events[1])
}

func TestMultiPacketPaste(t *testing.T) {
	s, b, cb, _ := newSim(t)
	chunks := []protocol.ClipboardPayload{
		{PacketID: 2, TotalPackets: 3, Data: "baz"},
		{PacketID: 0, TotalPackets: 3, Data: "foo"},
		{PacketID: 1, TotalPackets: 3, Data: "bar"},
	}
	for i, c := range chunks {
		c := c
		require.NoError(t, s.Paste(&c))
		if i < 2 {
			assert.Empty(t, cb.writes)
			assert.Empty(t, b.events)
			assert.Equal(t, i+1, s.PendingPaste())
		}
	}
	assert.Equal(t, []string{"foobarbaz"}, cb.writes)
	assert.Equal(t, []string{"key Control true", "key v true", "key v false", "key Control false"}, b.events)
	assert.Zero(t, s.PendingPaste())
}

func TestPasteWithoutPayload(t *testing.T) {
	s, b, cb, _ := newSim(t)
	require.NoError(t, s.Paste(nil))
	assert.Empty(t, cb.writes)
	assert.Len(t, b.events, 4)
}

func TestKeysym(t *testing.T) {
	cases := map[string]uint32{
		"a":         'a',
		"Z":         'Z',
		"7":         '7',
		";":         ';',
		"Enter":     XK_Return,
		"Backspace": XK_BackSpace,
		"ArrowLeft": XK_Left,
		"Escape":    XK_Escape,
		"F1":        XK_F1,
		"F24":       XK_F1 + 23,
		" ":         XK_space,
		"€":         0x010020AC,
	}
	for name, want := range cases {
		got, ok := Keysym(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	for _, bad := range []string{"F25", "F0", "F1x", "Hyper", ""} {
		_, ok := Keysym(bad)
		assert.False(t, ok, bad)
	}
}
