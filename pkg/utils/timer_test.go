package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer("test")
	assert.NotNil(t, timer)
	assert.Equal(t, "test", timer.name)
}

func TestTimerPhases(t *testing.T) {
	mockClock := NewMockClock(time.Now())
	timer := NewTimer("test", WithClock(mockClock))

	pt1 := timer.Start("phase1")
	mockClock.Advance(100 * time.Millisecond)
	d1 := pt1.Stop()

	pt2 := timer.Start("phase2")
	mockClock.Advance(200 * time.Millisecond)
	d2 := pt2.Stop()

	assert.Equal(t, 100*time.Millisecond, d1)
	assert.Equal(t, 200*time.Millisecond, d2)
}

func TestTimerDeferPattern(t *testing.T) {
	mockClock := NewMockClock(time.Now())
	timer := NewTimer("test", WithClock(mockClock))

	var duration time.Duration
	func() {
		pt := timer.Start("deferred")
		defer func() { duration = pt.Stop() }()
		mockClock.Advance(150 * time.Millisecond)
	}()

	assert.Equal(t, 150*time.Millisecond, duration)
}

func TestTimerSummary(t *testing.T) {
	mockClock := NewMockClock(time.Now())
	timer := NewTimer("TestOp", WithClock(mockClock))

	pt1 := timer.Start("phase1")
	mockClock.Advance(100 * time.Millisecond)
	pt1.Stop()

	pt2 := timer.Start("phase2")
	mockClock.Advance(200 * time.Millisecond)
	pt2.Stop()

	summary := timer.Summary()
	assert.Contains(t, summary, "TestOp")
	assert.Contains(t, summary, "phase1")
	assert.Contains(t, summary, "phase2")
	assert.Contains(t, summary, "total:")
}

func TestTimerStopIdempotent(t *testing.T) {
	mockClock := NewMockClock(time.Now())
	timer := NewTimer("test", WithClock(mockClock))

	pt := timer.Start("phase1")
	mockClock.Advance(100 * time.Millisecond)
	d1 := pt.Stop()

	mockClock.Advance(100 * time.Millisecond)
	d2 := pt.Stop()

	assert.Equal(t, d1, d2)
	assert.Equal(t, 100*time.Millisecond, d1)
}

func TestTimerStopUnknownPhaseIsNoop(t *testing.T) {
	timer := NewTimer("test")
	pt := &PhaseTimer{timer: timer, phaseName: "never-started"}
	assert.Equal(t, time.Duration(0), pt.Stop())
}

func TestTimerConcurrency(t *testing.T) {
	timer := NewTimer("concurrent")
	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func(id int) {
			phaseName := strings.Repeat("x", id+1)
			pt := timer.Start(phaseName)
			time.Sleep(time.Millisecond)
			pt.Stop()
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Len(t, timer.phaseOrder, 10)
}
