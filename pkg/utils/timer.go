package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase is one named, non-overlapping span recorded by a Timer.
type Phase struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	completed bool
}

// PhaseTimer is returned by Timer.Start and stops the phase it names.
type PhaseTimer struct {
	timer     *Timer
	phaseName string
}

// Stop stops the phase timer and records its duration. Safe to call more
// than once; only the first call has effect.
func (pt *PhaseTimer) Stop() time.Duration {
	return pt.timer.stopPhase(pt.phaseName)
}

// Timer records a sequence of named construction phases and renders them
// as a summary (rcforest.New's construction trace). It is meant for
// one-shot, multi-phase work done once per call, not for timing something
// that runs once per ingested point: every phase name is recorded in
// start order, so reusing Start with a fresh name on every call of a hot
// loop would grow that order unboundedly.
type Timer struct {
	mu         sync.Mutex
	name       string
	startTime  time.Time
	phases     map[string]*Phase
	phaseOrder []string
	clock      Clock
}

// TimerOption configures a Timer instance.
type TimerOption func(*Timer)

// WithClock injects a Clock, for deterministic phase-duration tests.
func WithClock(clock Clock) TimerOption {
	return func(t *Timer) {
		t.clock = clock
	}
}

// NewTimer creates a Timer with the given name and starts its clock.
func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		name:       name,
		phases:     make(map[string]*Phase),
		phaseOrder: make([]string, 0),
		clock:      NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.startTime = t.clock.Now()
	return t
}

// Start begins timing a new phase and returns a handle to stop it.
func (t *Timer) Start(phaseName string) *PhaseTimer {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.phases[phaseName] = &Phase{Name: phaseName, StartTime: t.clock.Now()}
	t.phaseOrder = append(t.phaseOrder, phaseName)
	return &PhaseTimer{timer: t, phaseName: phaseName}
}

func (t *Timer) stopPhase(phaseName string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	phase, ok := t.phases[phaseName]
	if !ok {
		return 0
	}
	if phase.completed {
		return phase.Duration
	}
	phase.EndTime = t.clock.Now()
	phase.Duration = phase.EndTime.Sub(phase.StartTime)
	phase.completed = true
	return phase.Duration
}

// TotalDuration returns the time elapsed since the Timer was created.
func (t *Timer) TotalDuration() time.Duration {
	return t.clock.Since(t.startTime)
}

// Summary renders every phase in start order, followed by the total
// elapsed time.
func (t *Timer) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== %s ===\n", t.name))
	for i, name := range t.phaseOrder {
		phase := t.phases[name]
		sb.WriteString(fmt.Sprintf("%d. %s: %v\n", i+1, phase.Name, phase.Duration))
	}
	sb.WriteString(fmt.Sprintf("total: %v\n", t.TotalDuration()))
	return sb.String()
}
