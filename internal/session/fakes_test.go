package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pairshare/internal/capture"
	"pairshare/internal/clock"
	"pairshare/internal/geom"
	"pairshare/internal/input"
	"pairshare/internal/ipc"
	"pairshare/internal/overlay"
	"pairshare/internal/protocol"
	"pairshare/internal/room"
	"pairshare/internal/types"
)

type fakeHost struct {
	mu     sync.Mutex
	sent   []ipc.Payload
	hangup chan struct{}
	closed bool
}

func newFakeHost() *fakeHost { return &fakeHost{hangup: make(chan struct{})} }

func (h *fakeHost) Send(p ipc.Payload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, p)
	return nil
}

func (h *fakeHost) ReadLoop(ctx context.Context, handle func(ipc.Message)) error {
	select {
	case <-h.hangup:
		return ipc.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *fakeHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *fakeHost) messages() []ipc.Payload {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ipc.Payload(nil), h.sent...)
}

func (h *fakeHost) last() ipc.Payload {
	msgs := h.messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

type fakeRoom struct {
	calls  []string
	closed bool
}

func (r *fakeRoom) record(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *fakeRoom) count(call string) int {
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (r *fakeRoom) SetServerURL(url string) { r.record("SetServerURL %s", url) }
func (r *fakeRoom) CreateRoom(token string) { r.record("CreateRoom %s", token) }

func (r *fakeRoom) PublishVideoTrack(w, h int, useAV1 bool) *room.VideoSource {
	r.record("PublishVideoTrack %dx%d av1=%t", w, h, useAV1)
	return room.NewVideoSource(w, h)
}

func (r *fakeRoom) UnpublishVideoTrack()                { r.record("UnpublishVideoTrack") }
func (r *fakeRoom) PublishSharerLocation(x, y float64)  { r.record("SharerLocation %g,%g", x, y) }
func (r *fakeRoom) PublishRemoteControlEnabled(on bool) { r.record("RemoteControlEnabled %t", on) }
func (r *fakeRoom) PublishParticipantInControl(sid string) {
	r.record("ParticipantInControl %s", sid)
}
func (r *fakeRoom) PublishDrawStart(p geom.Position, id uint64) { r.record("DrawStart %d", id) }
func (r *fakeRoom) PublishDrawAddPoint(p geom.Position)         { r.record("DrawAddPoint") }
func (r *fakeRoom) PublishDrawEnd(p geom.Position)              { r.record("DrawEnd") }
func (r *fakeRoom) PublishDrawClearPath(id uint64)              { r.record("DrawClearPath %d", id) }
func (r *fakeRoom) PublishDrawClearAll()                        { r.record("DrawClearAll") }
func (r *fakeRoom) PublishDrawingMode(m protocol.DrawingMode)   { r.record("DrawingMode %s", m) }
func (r *fakeRoom) PublishTickResponse(t uint64)                { r.record("TickResponse %d", t) }
func (r *fakeRoom) CloseRoom()                                  { r.record("CloseRoom") }
func (r *fakeRoom) Close()                                      { r.closed = true }

type fakeCapture struct {
	content  []types.Content
	startErr error
	extent   geom.Extent
	running  bool
	sink     capture.FrameSink
	onFatal  func(string)
	panicky  bool
}

func (c *fakeCapture) Enumerate() ([]types.Content, error) {
	if c.panicky {
		panic("enumerate exploded")
	}
	return c.content, nil
}

func (c *fakeCapture) SetSink(s capture.FrameSink) { c.sink = s }

func (c *fakeCapture) StartCapture(content types.Content, target geom.Extent, fallback bool) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.running = true
	return nil
}

func (c *fakeCapture) StopCapture() { c.running = false }

func (c *fakeCapture) StreamExtent() geom.Extent {
	if !c.running {
		return geom.Extent{}
	}
	return c.extent
}

type fakeSurface struct {
	frame   geom.Frame
	stuck   bool
	visible bool
	hitTest bool
	icon    overlay.CursorIcon
	closed  bool
}

func (s *fakeSurface) SetFrame(f geom.Frame) { s.frame = f }

func (s *fakeSurface) PhysicalSize() (int, int) {
	if s.stuck {
		return 1, 1
	}
	return int(s.frame.Size.Width), int(s.frame.Size.Height)
}

func (s *fakeSurface) SetVisible(v bool)                     { s.visible = v }
func (s *fakeSurface) SetHitTest(on bool)                    { s.hitTest = on }
func (s *fakeSurface) SetCursorIcon(icon overlay.CursorIcon) { s.icon = icon }
func (s *fakeSurface) Present(*image.RGBA) error             { return nil }
func (s *fakeSurface) Close()                                { s.closed = true; s.visible = false }

type fakePlatform struct {
	monitors []types.Monitor
	surfaces map[uint32]*fakeSurface
	stuck    bool
	pointer  [2]int
	events   chan overlay.Event
}

func (p *fakePlatform) Monitors() ([]types.Monitor, error) { return p.monitors, nil }
func (p *fakePlatform) Events() <-chan overlay.Event       { return p.events }
func (p *fakePlatform) Pointer() (int, int, bool)          { return p.pointer[0], p.pointer[1], true }
func (p *fakePlatform) Close()                             {}

func (p *fakePlatform) NewSurface(m types.Monitor) (overlay.Surface, error) {
	s := &fakeSurface{stuck: p.stuck}
	p.surfaces[m.ID] = s
	return s, nil
}

type fakeBackend struct {
	events []string
}

func (f *fakeBackend) Warp(x, y int) error {
	f.events = append(f.events, fmt.Sprintf("warp %d,%d", x, y))
	return nil
}

func (f *fakeBackend) Button(b types.Button, down bool) error {
	f.events = append(f.events, fmt.Sprintf("button %d %t", b, down))
	return nil
}

func (f *fakeBackend) Scroll(dx, dy float64) error {
	f.events = append(f.events, fmt.Sprintf("scroll %g,%g", dx, dy))
	return nil
}

func (f *fakeBackend) Key(name string, down bool) error {
	f.events = append(f.events, fmt.Sprintf("key %s %t", name, down))
	return nil
}

func (f *fakeBackend) Close() {}

type fakeClipboard struct{ writes []string }

func (f *fakeClipboard) SetText(text string) error {
	f.writes = append(f.writes, text)
	return nil
}

func (f *fakeClipboard) Run(stop <-chan struct{}) { <-stop }
func (f *fakeClipboard) Close()                   {}

var errBoom = errors.New("boom")

type harness struct {
	t        *testing.T
	s        *Session
	clk      *clock.Fake
	host     *fakeHost
	room     *fakeRoom
	capture  *fakeCapture
	platform *fakePlatform
	backend  *fakeBackend
	clip     *fakeClipboard
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zerolog.Nop()
	clk := clock.NewFake(time.Unix(1000, 0))
	h := &harness{
		t:    t,
		clk:  clk,
		host: newFakeHost(),
		room: &fakeRoom{},
		capture: &fakeCapture{
			content: []types.Content{{Kind: types.ContentDisplay, ID: 1, MonitorID: 1}},
			extent:  geom.Extent{Width: 1920, Height: 1080},
		},
		platform: &fakePlatform{
			monitors: []types.Monitor{{ID: 1, Width: 1920, Height: 1080, Scale: 1, Primary: true}},
			surfaces: map[uint32]*fakeSurface{},
			events:   make(chan overlay.Event),
		},
		backend: &fakeBackend{},
		clip:    &fakeClipboard{},
	}
	h.s = New(Config{
		Host:     h.host,
		Platform: h.platform,
		NewRoom:  func(func(room.Event)) RoomClient { return h.room },
		NewCapture: func(onFatal func(string)) Capturer {
			h.capture.onFatal = onFatal
			return h.capture
		},
		NewInput: func(permitted bool) *input.Simulator {
			return input.NewSimulator(input.Config{
				Backend:     h.backend,
				Clipboard:   h.clip,
				Clock:       clk,
				Logger:      &logger,
				Permitted:   permitted,
				ShortcutKey: input.KeyControl,
			})
		},
		Clock:  clk,
		Logger: &logger,
	})
	t.Cleanup(func() { h.s.stopShare(true) })
	return h
}

func (h *harness) handle(ev Event) {
	h.t.Helper()
	_, stop := h.s.Handle(ev)
	require.False(h.t, stop)
}

func (h *harness) fromHost(p ipc.Payload)     { h.handle(FromHost{Payload: p}) }
func (h *harness) fromRoom(e room.Event)      { h.handle(FromRoom{Event: e}) }
func (h *harness) fromWindow(e overlay.Event) { h.handle(FromWindow{Event: e}) }

func (h *harness) inbound(sid string, p protocol.Payload) {
	h.fromRoom(room.Inbound{SID: sid, Event: protocol.New(p)})
}

func shareRequest() ipc.StartScreenShare {
	return ipc.StartScreenShare{
		Content:                 types.Content{Kind: types.ContentDisplay, ID: 1, MonitorID: 1},
		Token:                   "tok",
		Resolution:              ipc.Resolution{Width: 1920, Height: 1080},
		AccessibilityPermission: true,
	}
}

func (h *harness) joinCall() {
	h.t.Helper()
	h.fromHost(ipc.CallStart{Token: "tok"})
	h.fromRoom(room.RoomCreated{})
	require.Equal(h.t, PhaseInCall, h.s.Phase())
}

func (h *harness) startSharing() {
	h.t.Helper()
	h.joinCall()
	h.fromHost(shareRequest())
	h.fromRoom(room.VideoPublished{Extent: geom.Extent{Width: 1920, Height: 1080}})
	require.Equal(h.t, PhaseSharing, h.s.Phase())
	require.Equal(h.t, ipc.StartScreenShareResult{Result: ipc.Ok()}, h.host.last())
}
