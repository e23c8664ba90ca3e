package redraw

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"pairshare/internal/clock"
)

type harness struct {
	s     *Scheduler
	clock *clock.Fake
	count int
}

func newHarness() *harness {
	h := &harness{clock: clock.NewFake(time.Unix(500, 0))}
	l := zerolog.Nop()
	h.s = New(Config{Clock: h.clock, Dispatch: func() { h.count++ }, Logger: &l})
	return h
}

// pump processes queued commands and train ticks synchronously instead of
// on the goroutine.
func (h *harness) pump() {
	for {
		select {
		case cmd := <-h.s.cmds:
			h.s.handle(cmd)
		case <-h.s.ticks:
			h.s.tick(h.clock.Now())
		default:
			return
		}
	}
}

func (h *harness) advance(d time.Duration) {
	for step := time.Duration(0); step < d; step += time.Millisecond {
		h.clock.Advance(time.Millisecond)
		h.pump()
	}
}

func TestRedrawThrottle(t *testing.T) {
	h := newHarness()
	h.s.Redraw()
	h.s.Redraw()
	h.pump()
	assert.Equal(t, 1, h.count)

	h.clock.Advance(15 * time.Millisecond)
	h.s.Redraw()
	h.pump()
	assert.Equal(t, 1, h.count)

	h.clock.Advance(time.Millisecond)
	h.s.Redraw()
	h.pump()
	assert.Equal(t, 2, h.count)
}

func TestPulseTrainRunsAndStops(t *testing.T) {
	h := newHarness()
	h.s.ClickAnimation(true)
	h.pump()
	assert.True(t, h.s.trainRunning)

	h.advance(1000 * time.Millisecond)
	mid := h.count
	assert.InDelta(t, 1000/16, mid, 3)

	h.advance(600 * time.Millisecond)
	assert.False(t, h.s.trainRunning)
	assert.InDelta(t, 1500/16, h.count, 3)

	stopped := h.count
	h.advance(200 * time.Millisecond)
	assert.Equal(t, stopped, h.count)
	assert.Zero(t, h.clock.Pending())
}

func TestPulseTrainExtends(t *testing.T) {
	h := newHarness()
	h.s.ClickAnimation(true)
	h.pump()
	h.advance(1000 * time.Millisecond)
	h.s.ClickAnimation(true)
	h.pump()
	h.advance(1000 * time.Millisecond)
	assert.True(t, h.s.trainRunning, "extended train still running 2s after the first click")
	h.advance(600 * time.Millisecond)
	assert.False(t, h.s.trainRunning)
}

func TestPulseTrainSurvivesFullQueue(t *testing.T) {
	h := newHarness()
	h.s.ClickAnimation(true)
	h.pump()
	assert.Equal(t, 1, h.count)

	for len(h.s.cmds) < cap(h.s.cmds) {
		h.s.Redraw()
	}
	h.clock.Advance(MinInterval)
	h.pump()
	assert.Greater(t, h.count, 1, "train tick delivered while the command queue was full")

	h.advance(TrainDuration)
	assert.False(t, h.s.trainRunning)

	before := h.count
	h.s.ClickAnimation(true)
	h.pump()
	assert.True(t, h.s.trainRunning)
	assert.Equal(t, before+1, h.count)
}

func TestStopJoinsGoroutine(t *testing.T) {
	l := zerolog.Nop()
	done := make(chan struct{}, 1)
	s := New(Config{Dispatch: func() { done <- struct{}{} }, Logger: &l})
	s.Start()
	s.Redraw()
	<-done
	s.Stop()
	s.Stop()
	s.Redraw()
}
