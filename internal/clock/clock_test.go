package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeAdvanceFiresInOrder(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	var got []int
	c.AfterFunc(20*time.Millisecond, func() { got = append(got, 2) })
	c.AfterFunc(10*time.Millisecond, func() { got = append(got, 1) })
	c.AfterFunc(50*time.Millisecond, func() { got = append(got, 3) })

	c.Advance(30 * time.Millisecond)
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 1, c.Pending())

	c.Advance(30 * time.Millisecond)
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, time.Unix(0, 0).Add(60*time.Millisecond), c.Now())
}

func TestFakeRescheduleWithinAdvance(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	n := 0
	var tick func()
	tick = func() {
		n++
		c.AfterFunc(10*time.Millisecond, tick)
	}
	c.AfterFunc(10*time.Millisecond, tick)
	c.Advance(55 * time.Millisecond)
	assert.Equal(t, 5, n)
}

func TestFakeStop(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	c.Advance(2 * time.Second)
	assert.False(t, fired)
}
