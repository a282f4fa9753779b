package plugin

import (
	"context"
	"sync"
)

// Phase is a step of a single install attempt.
type Phase string

// Install phases. Aborted and Failed are terminal alongside Done.
const (
	PhaseIdle                  Phase = "idle"
	PhaseResolved              Phase = "resolved"
	PhaseBuildingFromSource    Phase = "building_from_source"
	PhaseDownloading           Phase = "downloading"
	PhaseArtifactProduced      Phase = "artifact_produced"
	PhaseSlotOccupancyChecked  Phase = "slot_occupancy_checked"
	PhaseInstalled             Phase = "installed"
	PhaseReinitializeRequested Phase = "reinitialize_requested"
	PhaseDone                  Phase = "done"
	PhaseAborted               Phase = "aborted"
	PhaseFailed                Phase = "failed"
)

// Terminal reports whether no further transition follows p.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseAborted || p == PhaseFailed
}

// Tracker observes phase transitions.
type Tracker interface {
	Transition(Phase)
}

// TrackerFunc adapts a function to Tracker.
type TrackerFunc func(Phase)

// Transition calls f.
func (f TrackerFunc) Transition(p Phase) { f(p) }

// History is a Tracker that records every transition in order.
type History struct {
	mu     sync.Mutex
	phases []Phase
}

// Transition records p.
func (h *History) Transition(p Phase) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.phases = append(h.phases, p)
}

// Phases returns a copy of the recorded transitions.
func (h *History) Phases() []Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Phase(nil), h.phases...)
}

// Last returns the most recent phase, or PhaseIdle if none was recorded.
func (h *History) Last() Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.phases) == 0 {
		return PhaseIdle
	}
	return h.phases[len(h.phases)-1]
}

type trackerKey struct{}

// WithTracker returns a context that reports phase transitions to t.
func WithTracker(ctx context.Context, t Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// Track reports p to the tracker carried by ctx, if any.
func Track(ctx context.Context, p Phase) {
	if t, ok := ctx.Value(trackerKey{}).(Tracker); ok && t != nil {
		t.Transition(p)
	}
}

// TrackerFrom returns the tracker carried by ctx, or nil.
func TrackerFrom(ctx context.Context) Tracker {
	t, _ := ctx.Value(trackerKey{}).(Tracker)
	return t
}
