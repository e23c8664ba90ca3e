package ipc

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairshare/internal/types"
)

func TestMessageEncoding(t *testing.T) {
	cases := []struct {
		in   Payload
		want string
	}{
		{Ping{}, `{"type":"Ping"}`},
		{ControllerCursorEnabled(true), `{"type":"ControllerCursorEnabled","payload":true}`},
		{LivekitServerURL("wss://x"), `{"type":"LivekitServerUrl","payload":"wss://x"}`},
		{CallStartResult{Ok()}, `{"type":"CallStartResult","payload":{"Ok":null}}`},
		{StartScreenShareResult{Fail("publish-track")}, `{"type":"StartScreenShareResult","payload":{"Err":"publish-track"}}`},
		{ScreenShareStopped{Reason: "Too many failures"}, `{"type":"ScreenShareStopped","payload":{"reason":"Too many failures"}}`},
	}
	for _, c := range cases {
		b, err := json.Marshal(Message{Payload: c.in})
		require.NoError(t, err)
		assert.JSONEq(t, c.want, string(b))

		var back Message
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, c.in, back.Payload)
	}
}

func TestDecodeStartScreenShare(t *testing.T) {
	raw := `{"type":"StartScreenShare","payload":{"content":{"type":"Display","id":2,"monitor_id":2},
		"token":"tok","resolution":{"width":1920,"height":1080},"accessibility_permission":true,"use_av1":true}}`
	var m Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	s, ok := m.Payload.(StartScreenShare)
	require.True(t, ok)
	assert.Equal(t, "tok", s.Token)
	assert.Equal(t, types.ContentDisplay, s.Content.Kind)
	assert.Equal(t, 1920.0, s.Resolution.Width)
	assert.True(t, s.AccessibilityPermission)
	assert.True(t, s.UseAV1)
}

func TestDecodeUnknownType(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"type":"Bogus"}`), &m)
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestIsResponse(t *testing.T) {
	assert.True(t, IsResponse(TypeAvailableContent))
	assert.True(t, IsResponse(TypeCameraList))
	assert.False(t, IsResponse(TypeScreenShareStopped))
	assert.False(t, IsResponse(TypePing))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// stutterReader hands out one step per Read call.
type stutterReader struct {
	steps []any
}

func (r *stutterReader) Read(p []byte) (int, error) {
	if len(r.steps) == 0 {
		return 0, io.EOF
	}
	step := r.steps[0]
	r.steps = r.steps[1:]
	switch s := step.(type) {
	case []byte:
		return copy(p, s), nil
	case error:
		return 0, s
	}
	return 0, nil
}

func frame(body string) []byte {
	var b bytesWriter
	_ = WriteFrame(&b, []byte(body))
	return b
}

type bytesWriter []byte

func (b *bytesWriter) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

func TestFrameReaderSurvivesTimeouts(t *testing.T) {
	f1 := frame(`{"type":"Ping"}`)
	f2 := frame(`{"type":"CallEnd"}`)
	both := append(append([]byte{}, f1...), f2...)

	r := &stutterReader{steps: []any{
		both[:3], timeoutErr{}, both[3:12], timeoutErr{}, both[12:],
	}}
	fr := newFrameReader()

	_, err := fr.next(r)
	assert.ErrorIs(t, err, timeoutErr{})
	_, err = fr.next(r)
	assert.ErrorIs(t, err, timeoutErr{})

	body, err := fr.next(r)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"Ping"}`, string(body))

	body, err = fr.next(r)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"CallEnd"}`, string(body))

	_, err = fr.next(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameTooLarge(t *testing.T) {
	hdr := []byte{0, 0, 0, 0, 0, 0, 0, 1}
	_, err := newFrameReader().next(&stutterReader{steps: []any{hdr}})
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func newTestConn(t *testing.T, c net.Conn) *Conn {
	logger := zerolog.Nop()
	return NewConn(c, Config{
		Logger:      &logger,
		ReadTimeout: 5 * time.Millisecond,
		IdleTimeout: 40 * time.Millisecond,
	})
}

func TestReadLoopDeliversUntilClosed(t *testing.T) {
	local, peer := net.Pipe()
	conn := newTestConn(t, local)
	defer conn.Close()

	go func() {
		_ = WriteFrame(peer, []byte(`{"type":"CallStart","payload":{"token":"abc"}}`))
		_ = WriteFrame(peer, []byte(`{"type":"Bogus"}`))
		_ = WriteFrame(peer, []byte(`{"type":"ControllerCursorEnabled","payload":false}`))
		peer.Close()
	}()

	var got []Message
	err := conn.ReadLoop(context.Background(), func(m Message) { got = append(got, m) })
	assert.ErrorIs(t, err, ErrClosed)
	require.Len(t, got, 2)
	assert.Equal(t, CallStart{Token: "abc"}, got[0].Payload)
	assert.Equal(t, ControllerCursorEnabled(false), got[1].Payload)
}

func TestReadLoopIdle(t *testing.T) {
	local, peer := net.Pipe()
	defer peer.Close()
	conn := newTestConn(t, local)
	defer conn.Close()

	start := time.Now()
	err := conn.ReadLoop(context.Background(), func(Message) {})
	assert.ErrorIs(t, err, ErrIdle)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestReadLoopContextCancel(t *testing.T) {
	local, peer := net.Pipe()
	defer peer.Close()
	conn := newTestConn(t, local)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, conn.ReadLoop(ctx, func(Message) {}), context.Canceled)
}

func TestSend(t *testing.T) {
	local, peer := net.Pipe()
	defer peer.Close()
	conn := newTestConn(t, local)
	defer conn.Close()

	errc := make(chan error, 1)
	go func() {
		errc <- conn.Send(AvailableContent{Content: []types.Content{{Kind: types.ContentDisplay, ID: 1, MonitorID: 1}}})
	}()

	body, err := newFrameReader().next(peer)
	require.NoError(t, err)
	require.NoError(t, <-errc)

	var m Message
	require.NoError(t, json.Unmarshal(body, &m))
	ac, ok := m.Payload.(AvailableContent)
	require.True(t, ok)
	require.Len(t, ac.Content, 1)
	assert.Equal(t, uint32(1), ac.Content[0].MonitorID)
}
