package controller

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerCoalescesBursts(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(40*time.Millisecond, func() { runs.Add(1) })

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, d.Pending())
	assert.Equal(t, int32(0), runs.Load())

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending())
}

func TestDebouncerCancel(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { runs.Add(1) })

	assert.False(t, d.Cancel())
	d.Trigger()
	assert.True(t, d.Cancel())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())

	d.Trigger()
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDebouncerStopIgnoresTriggers(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(10*time.Millisecond, func() { runs.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
	assert.False(t, d.Pending())
}

func TestDebouncerSupersededTimerDoesNotClearPending(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(time.Hour, func() { runs.Add(1) })

	d.Trigger()
	d.Trigger()

	// the first timer already expired and is blocked on the lock when the second Trigger lands
	d.fire(1)
	assert.True(t, d.Pending())
	assert.Equal(t, int32(0), runs.Load())

	d.fire(2)
	assert.False(t, d.Pending())
	assert.Equal(t, int32(1), runs.Load())
}

func TestDebouncerCancelledTimerDoesNotRun(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(time.Hour, func() { runs.Add(1) })

	d.Trigger()
	assert.True(t, d.Cancel())
	d.fire(1)
	assert.Equal(t, int32(0), runs.Load())
}
