package engine

import "videowall/internal/controller"

// State is a point-in-time snapshot of the running session.
type State struct {
	RunID        string
	Screens      int
	MappedLayout bool
	Phase        string
	LastPosition float64
	HealthChecks int64
	Resyncs      int64
}

// State snapshots the session. Safe to call from any goroutine, including
// before Run has started the sync loop.
func (e *Engine) State() State {
	e.mu.Lock()
	ctl := e.ctl
	e.mu.Unlock()

	st := State{
		RunID:        e.runID,
		Screens:      len(e.slots),
		MappedLayout: e.mapped,
		Phase:        controller.PhaseIdle.String(),
	}
	if ctl != nil {
		st.Phase = ctl.Phase().String()
		st.LastPosition = ctl.LastPosition()
		st.HealthChecks = ctl.HealthChecks()
		st.Resyncs = ctl.Resyncs()
	}
	return st
}
