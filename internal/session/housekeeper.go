package session

import (
	"sync"
	"time"

	"pairshare/internal/clock"
)

// housekeeper calls post every period until stopped. It re-arms itself from
// the timer callback, so a post the loop could not accept does not end it.
type housekeeper struct {
	clock  clock.Clock
	period time.Duration
	post   func()

	mu      sync.Mutex
	timer   clock.Timer
	stopped bool
}

func startHousekeeper(clk clock.Clock, period time.Duration, post func()) *housekeeper {
	h := &housekeeper{clock: clk, period: period, post: post}
	h.mu.Lock()
	h.timer = clk.AfterFunc(period, h.fire)
	h.mu.Unlock()
	return h
}

func (h *housekeeper) fire() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.post()
	h.timer = h.clock.AfterFunc(h.period, h.fire)
}

func (h *housekeeper) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	if h.timer != nil {
		h.timer.Stop()
	}
}
