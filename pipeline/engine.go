package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/conveyor-ci/conveyor/types"
)

// Engine executes a pipeline definition: stages run strictly in declared
// order, gate stages consult the GateEvaluator, and the Dispatcher fires
// exactly once per run on every terminal transition.
type Engine struct {
	spec       types.PipelineSpec
	runner     *StageRunner
	gate       GateEvaluator
	dispatcher Dispatcher
	logger     *slog.Logger
	events     chan<- Event
}

// EngineOptions carries optional engine collaborators.
type EngineOptions struct {
	// Logger receives structured run logs; defaults to slog.Default().
	Logger *slog.Logger
	// Events receives lifecycle events for progress display. Sends never
	// block; a slow consumer drops events.
	Events chan<- Event
}

// NewEngine constructs an Engine. All configuration is injected here: the
// engine never reads ambient global state. gate may be nil when the
// pipeline has no gate stages; dispatcher may be nil to skip notification.
func NewEngine(spec types.PipelineSpec, caps map[types.StageKind]Capability, gate GateEvaluator, dispatcher Dispatcher, opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		spec:       spec,
		runner:     NewStageRunner(caps, logger),
		gate:       gate,
		dispatcher: dispatcher,
		logger:     logger,
		events:     opts.Events,
	}
}

// Run executes the pipeline against rc. It returns the run summary and the
// first fatal error, if any. The dispatcher is always invoked exactly once
// before Run returns, regardless of where failure occurred; a notification
// delivery failure is logged and never surfaces to the caller.
func (e *Engine) Run(ctx context.Context, rc *RunContext) (RunSummary, error) {
	if err := rc.transition(StatusRunning); err != nil {
		return RunSummary{}, fmt.Errorf("starting run: %w", err)
	}
	rc.StartedAt = time.Now().UTC()

	e.logger.Info("run started", "run", rc.RunID, "pipeline", rc.Pipeline, "stages", len(e.spec.Stages))
	e.emit(Event{Kind: EventRunStarted, RunID: rc.RunID, Pipeline: rc.Pipeline, Status: StatusRunning})

	status, reason, runErr := e.runStages(ctx, rc)

	if err := rc.transition(status); err != nil {
		// Unreachable on the normal path; keep the first failure visible.
		e.logger.Error("terminal transition rejected", "run", rc.RunID, "error", err)
	}

	summary := summarize(rc, status, reason, time.Now().UTC())
	if _, err := WriteSummary(rc, summary); err != nil {
		e.logger.Warn("writing run summary failed", "run", rc.RunID, "error", err)
	}

	e.logger.Info("run finished", "run", rc.RunID, "status", status, "reason", reason)
	e.emit(Event{Kind: EventRunFinished, RunID: rc.RunID, Pipeline: rc.Pipeline, Status: status, Err: errString(runErr)})

	e.notify(ctx, rc, summary)

	return summary, runErr
}

// runStages walks the stage list and returns the terminal status, the
// human-readable reason for a non-success, and the fatal error if any.
func (e *Engine) runStages(ctx context.Context, rc *RunContext) (Status, string, error) {
	for i, stage := range e.spec.Stages {
		// Cancellation is checked between stages only: stage commands are
		// opaque external processes.
		if err := ctx.Err(); err != nil {
			e.logger.Warn("run aborted", "run", rc.RunID, "before_stage", stage.Name)
			e.emitSkipped(rc, i, stage, "run aborted")
			return StatusAborted, "aborted", fmt.Errorf("run aborted before stage %s: %w", stage.Name, err)
		}

		// The notify kind configures the terminal dispatch; it is not an
		// executable stage.
		if stage.Kind == types.KindNotify {
			continue
		}

		if stage.Kind == types.KindGate {
			verdict, err := e.evaluateGate(ctx, rc, i, stage)
			if err != nil {
				return StatusFailed, "gate evaluation failed", err
			}
			if !verdict.Pass {
				if stage.Gate != nil && stage.Gate.AbortOnFail {
					reason := gateReason(verdict)
					return StatusAborted, reason, &GateFailure{Stage: stage.Name, Reason: verdict.Reason}
				}
				e.logger.Warn("gate failed, continuing under report-only policy",
					"run", rc.RunID, "stage", stage.Name, "reason", verdict.Reason)
			}
			continue
		}

		e.emit(Event{Kind: EventStageStarted, RunID: rc.RunID, Pipeline: rc.Pipeline,
			Stage: stage.Name, StageKind: stage.Kind, StageIndex: i, Status: StatusRunning})

		result, err := e.runner.Run(ctx, rc, stage)
		if err != nil {
			if stage.ContinueOnFailure {
				result.Status = StageAdvisory
				patchLastResult(rc, result.Status)
				e.logger.Warn("stage failed, continuing under advisory policy",
					"run", rc.RunID, "stage", stage.Name, "error", err)
				e.emitFinished(rc, i, stage, result)
				continue
			}
			e.emitFinished(rc, i, stage, result)
			return StatusFailed, fmt.Sprintf("stage %s failed", stage.Name), err
		}
		e.emitFinished(rc, i, stage, result)
	}
	return StatusSucceeded, "", nil
}

// evaluateGate records the verdict as an artifact-visible result and applies
// the on_timeout policy. A transport-level evaluation error is fatal.
func (e *Engine) evaluateGate(ctx context.Context, rc *RunContext, index int, stage types.StageSpec) (GateVerdict, error) {
	if e.gate == nil {
		return GateVerdict{}, fmt.Errorf("stage %s: no gate evaluator configured", stage.Name)
	}

	timeout, err := stage.Gate.TimeoutDuration()
	if err != nil {
		return GateVerdict{}, fmt.Errorf("stage %s: %w", stage.Name, err)
	}

	signal := stage.With["project_key"]
	if signal == "" {
		signal = rc.Pipeline
	}

	started := time.Now().UTC()
	verdict, err := e.gate.Evaluate(ctx, signal, timeout)
	if err != nil {
		return GateVerdict{}, fmt.Errorf("stage %s: evaluating gate: %w", stage.Name, err)
	}

	if !verdict.Pass && verdict.Reason == GateReasonTimeout && stage.Gate.TimeoutPasses() {
		e.logger.Warn("gate timed out, treated as pass by policy", "run", rc.RunID, "stage", stage.Name)
		verdict = GateVerdict{Pass: true, Reason: GateReasonTimeout}
	}

	status := StageSucceeded
	if !verdict.Pass {
		status = StageFailed
	}
	rc.addResult(StageResult{
		Stage:     stage.Name,
		Kind:      stage.Kind,
		Status:    status,
		StartedAt: started,
		Duration:  time.Since(started),
		Error:     gateResultError(verdict),
	})

	e.logger.Info("gate evaluated", "run", rc.RunID, "stage", stage.Name, "pass", verdict.Pass, "reason", verdict.Reason)
	e.emit(Event{Kind: EventGateEvaluated, RunID: rc.RunID, Pipeline: rc.Pipeline,
		Stage: stage.Name, StageKind: stage.Kind, StageIndex: index, Verdict: &verdict})

	return verdict, nil
}

// notify invokes the dispatcher exactly once and transitions the run to
// Notified. Dispatch failure is logged and swallowed: notification never
// reopens or changes the run's outcome.
func (e *Engine) notify(ctx context.Context, rc *RunContext, summary RunSummary) {
	defer func() {
		if err := rc.transition(StatusNotified); err != nil {
			e.logger.Error("notified transition rejected", "run", rc.RunID, "error", err)
		}
		e.emit(Event{Kind: EventNotified, RunID: rc.RunID, Pipeline: rc.Pipeline, Status: rc.Status()})
	}()

	if e.dispatcher == nil {
		return
	}

	n := Notification{
		Pipeline:    rc.Pipeline,
		RunID:       rc.RunID,
		Status:      summary.Status,
		Reason:      summary.Reason,
		Summary:     summary,
		Recipients:  e.notifyRecipients(),
		Attachments: e.notifyAttachments(rc),
	}

	if err := e.dispatcher.Dispatch(ctx, n); err != nil {
		delivery := &NotificationDeliveryError{Recipients: n.Recipients, Err: err}
		e.logger.Error("notification delivery failed", "run", rc.RunID, "error", delivery)
	}
}

// notifyRecipients reads the recipient list from the pipeline's notify
// stage, if declared.
func (e *Engine) notifyRecipients() []string {
	for _, stage := range e.spec.Stages {
		if stage.Kind != types.KindNotify {
			continue
		}
		if to := splitList(stage.With["to"]); len(to) > 0 {
			return to
		}
	}
	return nil
}

// notifyAttachments resolves the notify stage's attach list (artifact
// names) against the run's artifacts. Missing attachments are dropped: the
// notification must still go out.
func (e *Engine) notifyAttachments(rc *RunContext) map[string]string {
	out := make(map[string]string)
	for _, stage := range e.spec.Stages {
		if stage.Kind != types.KindNotify {
			continue
		}
		for _, name := range splitList(stage.With["attach"]) {
			if path, ok := rc.Artifact(name); ok && rc.HasArtifact(name) {
				out[name] = path
			} else {
				e.logger.Warn("notification attachment missing", "run", rc.RunID, "artifact", name)
			}
		}
	}
	if path, ok := rc.Artifact("run-summary"); ok {
		out["run-summary"] = path
	}
	return out
}

func (e *Engine) emitFinished(rc *RunContext, index int, stage types.StageSpec, result StageResult) {
	r := result
	e.emit(Event{Kind: EventStageFinished, RunID: rc.RunID, Pipeline: rc.Pipeline,
		Stage: stage.Name, StageKind: stage.Kind, StageIndex: index, Result: &r, Err: r.Error})
}

func (e *Engine) emitSkipped(rc *RunContext, index int, stage types.StageSpec, reason string) {
	e.emit(Event{Kind: EventStageSkipped, RunID: rc.RunID, Pipeline: rc.Pipeline,
		Stage: stage.Name, StageKind: stage.Kind, StageIndex: index, Err: reason})
}

// patchLastResult rewrites the status of the most recent result. The runner
// records failures before the engine applies the advisory policy.
func patchLastResult(rc *RunContext, status StageStatus) {
	if n := len(rc.results); n > 0 {
		rc.results[n-1].Status = status
	}
}

func gateReason(v GateVerdict) string {
	if v.Reason == GateReasonTimeout {
		return GateReasonTimeout
	}
	return "quality-gate-failed"
}

func gateResultError(v GateVerdict) string {
	if v.Pass {
		return ""
	}
	return v.Reason
}

// splitList splits a comma-separated stage parameter into trimmed entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
