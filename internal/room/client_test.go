package room

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairshare/internal/encode"
	"pairshare/internal/geom"
	"pairshare/internal/protocol"
	"pairshare/internal/types"
)

type sent struct {
	topic    string
	payload  []byte
	reliable bool
}

type fakeRoom struct {
	sid    string
	events chan RoomEvent

	mu          sync.Mutex
	sent        []sent
	published   *TrackOptions
	unpublished int
	closed      bool
	track       *fakeTrack
}

func newFakeRoom(sid string) *fakeRoom {
	return &fakeRoom{sid: sid, events: make(chan RoomEvent, 16), track: &fakeTrack{}}
}

func (r *fakeRoom) LocalSID() string         { return r.sid }
func (r *fakeRoom) Events() <-chan RoomEvent { return r.events }

func (r *fakeRoom) PublishData(ctx context.Context, topic string, payload []byte, reliable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{topic, payload, reliable})
	return nil
}

func (r *fakeRoom) PublishVideo(ctx context.Context, opts TrackOptions) (VideoTrack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = &opts
	return r.track, nil
}

func (r *fakeRoom) UnpublishVideo(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unpublished++
	return nil
}

func (r *fakeRoom) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeRoom) snapshot() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.sent...)
}

type fakeTrack struct {
	mu      sync.Mutex
	samples int
}

func (t *fakeTrack) WriteSample(data []byte, d time.Duration) error {
	t.mu.Lock()
	t.samples++
	t.mu.Unlock()
	return nil
}

func (t *fakeTrack) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.samples
}

type fakeEncoder struct{ closed bool }

func (e *fakeEncoder) Encode(f *image.YCbCr) (*types.EncodedFrame, error) {
	return &types.EncodedFrame{Data: []byte{1}, Duration: time.Second / MaxFramerate}, nil
}

func (e *fakeEncoder) Close() { e.closed = true }

type harness struct {
	client *Client
	room   *fakeRoom
	events chan Event
	params []encode.Params
}

func newHarness(t *testing.T, probe bool) *harness {
	t.Helper()
	h := &harness{room: newFakeRoom("me"), events: make(chan Event, 64)}
	l := zerolog.Nop()
	h.client = NewClient(Config{
		URL: "wss://example.invalid",
		Dial: func(ctx context.Context, url, token string) (Room, error) {
			if token == "bad" {
				return nil, errors.New("401")
			}
			return h.room, nil
		},
		NewEncoder: func(p encode.Params) (types.VideoEncoder, error) {
			h.params = append(h.params, p)
			return &fakeEncoder{}, nil
		},
		Deliver:      func(ev Event) { h.events <- ev },
		Logger:       &l,
		LatencyProbe: probe,
	})
	t.Cleanup(h.client.Close)
	return h
}

func (h *harness) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-h.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return nil
	}
}

func (h *harness) none(t *testing.T) {
	t.Helper()
	select {
	case ev := <-h.events:
		t.Fatalf("unexpected event %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func (h *harness) join(t *testing.T) {
	t.Helper()
	h.client.CreateRoom("ok")
	ev := h.next(t)
	require.IsType(t, RoomCreated{}, ev)
	require.NoError(t, ev.(RoomCreated).Err)
}

func packet(t *testing.T, sid string, p protocol.Payload) DataPacket {
	t.Helper()
	data, err := protocol.Encode(p)
	require.NoError(t, err)
	return DataPacket{From: ParticipantInfo{SID: sid, Identity: sid, Name: sid}, Payload: data}
}

func TestCreateRoomFailure(t *testing.T) {
	h := newHarness(t, false)
	h.client.CreateRoom("bad")
	ev := h.next(t).(RoomCreated)
	assert.ErrorIs(t, ev.Err, ErrServiceNotFound)
}

func TestEchoSuppression(t *testing.T) {
	h := newHarness(t, false)
	h.join(t)

	h.room.events <- packet(t, "me", protocol.MouseMove{X: 0.1, Y: 0.1})
	h.room.events <- packet(t, "B", protocol.MouseMove{X: 0.5, Y: 0.5})

	ev := h.next(t).(Inbound)
	assert.Equal(t, "B", ev.SID)
	assert.Equal(t, protocol.MouseMove{X: 0.5, Y: 0.5}, ev.Event.Payload)
	h.none(t)
	assert.EqualValues(t, 1, h.client.Stats().Suppressed)
}

func TestMalformedAndSharerOnlyPacketsDropped(t *testing.T) {
	h := newHarness(t, false)
	h.join(t)

	h.room.events <- DataPacket{From: ParticipantInfo{SID: "B"}, Payload: []byte("{nope")}
	h.room.events <- packet(t, "B", protocol.RemoteControlEnabled{Enabled: true})
	h.room.events <- packet(t, "B", protocol.Tick{Time: 5})
	h.none(t)
	assert.EqualValues(t, 1, h.client.Stats().Malformed)
}

func TestTickForwardedWithProbe(t *testing.T) {
	h := newHarness(t, true)
	h.join(t)
	h.room.events <- packet(t, "B", protocol.Tick{Time: 5})
	ev := h.next(t).(Inbound)
	assert.Equal(t, protocol.Tick{Time: 5}, ev.Event.Payload)
}

func TestParticipantFilters(t *testing.T) {
	h := newHarness(t, false)
	h.join(t)

	h.room.events <- ParticipantJoined{ParticipantInfo{SID: "A1", Identity: "alice-audio", Name: "Alice"}}
	h.room.events <- ParticipantJoined{ParticipantInfo{SID: "A2", Identity: "alice-camera", Name: "Alice"}}
	h.room.events <- ParticipantJoined{ParticipantInfo{SID: "A3", Identity: "alice", Name: ""}}
	h.room.events <- ParticipantJoined{ParticipantInfo{SID: "A", Identity: "alice", Name: "Alice"}}
	assert.Equal(t, ParticipantConnected{SID: "A", Name: "Alice"}, h.next(t))

	h.room.events <- ParticipantLeft{ParticipantInfo{SID: "A", Identity: "alice", Name: "Alice"}}
	assert.Equal(t, ParticipantDisconnected{SID: "A"}, h.next(t))

	h.room.events <- TrackPublished{Participant: ParticipantInfo{SID: "V", Identity: "alice-video", Name: "Alice"}, Kind: "video"}
	assert.Equal(t, ControllerTakesScreenShare{SID: "V"}, h.next(t))
	h.none(t)
}

func TestPublishOrderAndTopics(t *testing.T) {
	h := newHarness(t, false)
	h.join(t)

	h.client.PublishSharerLocation(0.25, 0.75)
	h.client.PublishDrawStart(geom.Position{X: 0.1, Y: 0.1}, 7)
	h.client.PublishDrawAddPoint(geom.Position{X: 0.2, Y: 0.2})
	h.client.PublishDrawEnd(geom.Position{X: 0.3, Y: 0.3})
	h.client.PublishRemoteControlEnabled(false)
	h.client.PublishParticipantInControl("B")
	h.client.PublishTickResponse(42)

	require.Eventually(t, func() bool { return len(h.room.snapshot()) == 7 }, 2*time.Second, 5*time.Millisecond)
	got := h.room.snapshot()

	topics := make([]string, len(got))
	for i, s := range got {
		topics[i] = s.topic
	}
	assert.Equal(t, []string{
		protocol.TopicParticipantLocation,
		protocol.TopicParticipantLocation,
		protocol.TopicParticipantLocation,
		protocol.TopicParticipantLocation,
		protocol.TopicRemoteControlEnabled,
		protocol.TopicParticipantInControl,
		protocol.TopicTickResponse,
	}, topics)
	assert.False(t, got[2].reliable, "DrawAddPoint is lossy")
	assert.True(t, got[3].reliable)

	ev, err := protocol.Decode(got[1].payload)
	require.NoError(t, err)
	assert.Equal(t, protocol.DrawStart{Point: geom.Position{X: 0.1, Y: 0.1}, PathID: 7}, ev.Payload)
}

func TestPublishWithoutRoomDropped(t *testing.T) {
	h := newHarness(t, false)
	h.client.PublishSharerLocation(0.5, 0.5)
	h.client.PublishVideoTrack(1920, 1080, false)
	ev := h.next(t).(VideoPublished)
	assert.ErrorIs(t, ev.Err, ErrNoRoom)
	assert.Empty(t, h.room.snapshot())
}

func TestPublishVideoTrack(t *testing.T) {
	h := newHarness(t, false)
	h.join(t)

	src := h.client.PublishVideoTrack(2560, 1440, true)
	ev := h.next(t).(VideoPublished)
	require.NoError(t, ev.Err)
	assert.Equal(t, geom.Extent{Width: 2560, Height: 1440}, ev.Extent)
	require.Len(t, h.params, 1)
	assert.Equal(t, encode.AV1, h.params[0].Codec)
	assert.Equal(t, 3_750_000, h.params[0].BitrateBps)
	assert.Equal(t, MaxFramerate, h.params[0].FPS)

	src.WriteFrame(image.NewYCbCr(image.Rect(0, 0, 2560, 1440), image.YCbCrSubsampleRatio420), time.Now())
	require.Eventually(t, func() bool { return h.room.track.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	h.client.UnpublishVideoTrack()
	h.client.CloseRoom()
	require.Eventually(t, func() bool {
		h.room.mu.Lock()
		defer h.room.mu.Unlock()
		return h.room.closed && h.room.unpublished == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCreateRoomTwiceClosesFirst(t *testing.T) {
	h := newHarness(t, false)
	h.join(t)
	first := h.room
	h.room = newFakeRoom("me2")
	h.join(t)
	first.mu.Lock()
	defer first.mu.Unlock()
	assert.True(t, first.closed)
}
