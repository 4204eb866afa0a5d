// Package pipeline implements the conveyor orchestration core: a strictly
// sequential stage engine with run-scoped state, quality gating, and a
// guaranteed terminal notification.
package pipeline

import (
	"context"
	"time"

	"github.com/conveyor-ci/conveyor/types"
)

// Capability executes one kind of stage against external tooling. A
// capability treats the stage command as an opaque external process: it
// returns the produced artifacts and captured output, and an error from the
// run's taxonomy on failure.
type Capability interface {
	Kind() types.StageKind
	Run(ctx context.Context, rc *RunContext, stage types.StageSpec) (*CapabilityResult, error)
}

// CapabilityResult is what a capability hands back to the stage runner.
type CapabilityResult struct {
	// Output is the captured stdout/stderr text of the invoked command.
	Output string
	// Artifacts maps artifact names to absolute file paths produced by
	// this capability.
	Artifacts map[string]string
	// ExitCode is the external command's exit status, 0 on success.
	ExitCode int
}

// GateVerdict is the outcome of a quality-gate evaluation. It is produced
// once per gated stage and consumed immediately.
type GateVerdict struct {
	Pass   bool   `json:"pass"`
	Reason string `json:"reason"`
}

// GateReasonTimeout is the verdict reason when the external system did not
// report before the gate's timeout.
const GateReasonTimeout = "timeout"

// GateEvaluator blocks until an external quality system reports a verdict
// for the named signal, or the timeout elapses. On timeout it returns
// {Pass: false, Reason: "timeout"} and no error; the engine applies the
// stage's on_timeout policy.
type GateEvaluator interface {
	Evaluate(ctx context.Context, signal string, timeout time.Duration) (GateVerdict, error)
}

// Notification is the terminal summary handed to the dispatcher.
type Notification struct {
	Pipeline    string
	RunID       string
	Status      Status
	Reason      string
	Summary     RunSummary
	Recipients  []string
	Attachments map[string]string // artifact name -> path
}

// Dispatcher sends exactly one terminal notification per run. A returned
// error is logged by the engine and never fails the run.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}
