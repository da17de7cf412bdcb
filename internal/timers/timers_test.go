package timers

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleRuns(t *testing.T) {
	tm := New()
	var fired atomic.Int32
	tm.Schedule(1, "test", 5*time.Millisecond, func() { fired.Add(1) })
	assert.Equal(t, 1, tm.Pending(1))

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return tm.Pending(1) == 0 }, time.Second, 5*time.Millisecond)
}

func TestCancelRendersTasksInert(t *testing.T) {
	tm := New()
	var fired atomic.Int32
	tm.Schedule(1, "a", 20*time.Millisecond, func() { fired.Add(1) })
	tm.Schedule(1, "b", 20*time.Millisecond, func() { fired.Add(1) })
	tm.Schedule(2, "c", 20*time.Millisecond, func() { fired.Add(10) })

	tm.Cancel(1)
	assert.Zero(t, tm.Pending(1))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(10), fired.Load(), "only the other owner's task runs")
}

func TestTasksAfterCancelStillRun(t *testing.T) {
	tm := New()
	tm.Cancel(1)
	var fired atomic.Int32
	tm.Schedule(1, "after", time.Millisecond, func() { fired.Add(1) })
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestTaskPanicIsRecovered(t *testing.T) {
	tm := New()
	var fired atomic.Int32
	tm.Schedule(1, "panic", time.Millisecond, func() { panic("boom") })
	tm.Schedule(1, "ok", 5*time.Millisecond, func() { fired.Add(1) })
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestStopCancelsEverything(t *testing.T) {
	tm := New()
	var fired atomic.Int32
	for owner := int64(1); owner <= 3; owner++ {
		tm.Schedule(owner, "x", 20*time.Millisecond, func() { fired.Add(1) })
	}
	tm.Stop()
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fired.Load())
}
