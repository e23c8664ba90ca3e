// Package framebuf provides a lock-free triple buffer so a single writer can
// publish frames without ever blocking a single reader.
package framebuf

import "sync/atomic"

const freshBit = 1 << 2

// Triple holds three slots. The writer owns back, the reader owns front and
// the middle slot is exchanged atomically. The fresh bit on the shared index
// marks a middle slot that the reader has not consumed yet.
type Triple[T any] struct {
	slots  [3]T
	middle atomic.Uint32
	back   uint32
	front  uint32
}

func NewTriple[T any]() *Triple[T] {
	t := &Triple[T]{back: 0, front: 2}
	t.middle.Store(1)
	return t
}

// Back returns the slot the writer may fill before calling Publish.
func (t *Triple[T]) Back() *T { return &t.slots[t.back] }

// Publish makes the back slot visible to the reader.
func (t *Triple[T]) Publish() {
	prev := t.middle.Swap(t.back | freshBit)
	t.back = prev &^ freshBit
}

// Write stores v and publishes it.
func (t *Triple[T]) Write(v T) {
	*t.Back() = v
	t.Publish()
}

// Read returns the most recently published value and whether it is new
// since the previous Read.
func (t *Triple[T]) Read() (T, bool) {
	if t.middle.Load()&freshBit == 0 {
		return t.slots[t.front], false
	}
	prev := t.middle.Swap(t.front)
	t.front = prev &^ freshBit
	return t.slots[t.front], true
}
