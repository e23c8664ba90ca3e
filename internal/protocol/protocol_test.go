package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairshare/internal/geom"
)

func TestClientEventRoundTrip(t *testing.T) {
	events := []Payload{
		MouseMove{X: 0.25, Y: 0.75},
		MouseClick{X: 0.1, Y: 0.2, Button: ButtonRight, Clicks: 2, Down: true, Shift: true, Ctrl: true},
		MouseVisible{Visible: true},
		Keystroke{Key: []string{"Enter"}, Meta: true, Down: true},
		WheelEvent{DeltaX: -3, DeltaY: 12.5},
		Tick{Time: 1700000000123},
		TickResponse{Time: 42},
		RemoteControlEnabled{Enabled: true},
		ParticipantInControl{SID: "PA_1"},
		AddToClipboard{IsCopy: true},
		PasteFromClipboard{},
		PasteFromClipboard{Data: &ClipboardPayload{PacketID: 1, TotalPackets: 3, Data: "bar"}},
		Disabled(),
		Draw(true),
		Draw(false),
		ClickPulse(),
		DrawStart{Point: geom.Position{X: 0.5, Y: 0.5}, PathID: 7},
		DrawAddPoint{Point: geom.Position{X: 0.6, Y: 0.5}},
		DrawEnd{Point: geom.Position{X: 0.7, Y: 0.5}},
		DrawClearPath{PathID: 7},
		DrawClearAllPaths{},
		ClickAnimation{Point: geom.Position{X: 0.3, Y: 0.9}},
	}
	for _, p := range events {
		t.Run(string(p.EventType()), func(t *testing.T) {
			data, err := Encode(p)
			require.NoError(t, err)
			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, p, got.Payload)
		})
	}
}

func TestDrawingModeWireFormat(t *testing.T) {
	data, err := json.Marshal(Draw(true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Draw":{"permanent":true}}`, string(data))

	data, err = json.Marshal(ClickPulse())
	require.NoError(t, err)
	assert.JSONEq(t, `"ClickAnimation"`, string(data))

	var m DrawingMode
	require.NoError(t, json.Unmarshal([]byte(`"Disabled"`), &m))
	assert.True(t, m.IsDisabled())
	assert.Error(t, json.Unmarshal([]byte(`"Scribble"`), &m))
}

func TestDecodeEnvelope(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"WheelEvent","payload":{"deltaX":1,"deltaY":-2}}`))
	require.NoError(t, err)
	assert.Equal(t, WheelEvent{DeltaX: 1, DeltaY: -2}, ev.Payload)

	_, err = Decode([]byte(`{"type":"Teleport","payload":{}}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Decode([]byte(`{"type":"MouseMove"}`))
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestReliability(t *testing.T) {
	assert.False(t, New(DrawAddPoint{}).Reliable())
	assert.True(t, New(DrawEnd{}).Reliable())
}
