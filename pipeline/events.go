package pipeline

import "github.com/conveyor-ci/conveyor/types"

// EventKind identifies a run lifecycle event.
type EventKind string

const (
	EventRunStarted    EventKind = "run_started"
	EventStageStarted  EventKind = "stage_started"
	EventStageFinished EventKind = "stage_finished"
	EventStageSkipped  EventKind = "stage_skipped"
	EventGateEvaluated EventKind = "gate_evaluated"
	EventRunFinished   EventKind = "run_finished"
	EventNotified      EventKind = "notified"
)

// Event is a run lifecycle notification, emitted for progress display.
// Emission is best-effort: a full or nil sink never blocks the run.
type Event struct {
	Kind       EventKind
	RunID      string
	Pipeline   string
	Stage      string
	StageKind  types.StageKind
	StageIndex int
	Status     Status
	Result     *StageResult
	Verdict    *GateVerdict
	Err        string
}

// emit sends an event without blocking. Events are dropped when the sink
// is nil or full; the TUI tolerates gaps.
func (e *Engine) emit(ev Event) {
	if e.events == nil {
		return
	}
	select {
	case e.events <- ev:
	default:
	}
}
