package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conveyor-ci/conveyor/types"
)

// fakeGate returns canned verdicts per signal.
type fakeGate struct {
	verdict GateVerdict
	err     error
	calls   int
}

func (g *fakeGate) Evaluate(ctx context.Context, signal string, timeout time.Duration) (GateVerdict, error) {
	g.calls++
	return g.verdict, g.err
}

// countingDispatcher records dispatches and optionally fails delivery.
type countingDispatcher struct {
	count  atomic.Int32
	last   Notification
	failed error
}

func (d *countingDispatcher) Dispatch(ctx context.Context, n Notification) error {
	d.count.Add(1)
	d.last = n
	return d.failed
}

// okCapability produces every declared artifact as an empty workspace file.
func okCapability(t *testing.T, kind types.StageKind) Capability {
	return &fakeCapability{
		kind: kind,
		run: func(ctx context.Context, rc *RunContext, stage types.StageSpec) (*CapabilityResult, error) {
			arts := make(map[string]string, len(stage.Produces))
			for _, name := range stage.Produces {
				arts[name] = writeArtifact(t, rc.Workspace, name, "content of "+name)
			}
			return &CapabilityResult{Artifacts: arts}, nil
		},
	}
}

// failCapability always fails with a CommandError.
func failCapability(kind types.StageKind) Capability {
	return &fakeCapability{
		kind: kind,
		run: func(ctx context.Context, rc *RunContext, stage types.StageSpec) (*CapabilityResult, error) {
			return &CapabilityResult{ExitCode: 1},
				&CommandError{Command: string(kind), ExitCode: 1, Stderr: "boom"}
		},
	}
}

func allOKCaps(t *testing.T) map[types.StageKind]Capability {
	t.Helper()
	caps := make(map[types.StageKind]Capability)
	for _, k := range []types.StageKind{
		types.KindCheckout, types.KindStaticAnalysis, types.KindDependencyScan,
		types.KindImageScan, types.KindBuild, types.KindDeploy,
	} {
		caps[k] = okCapability(t, k)
	}
	return caps
}

func fullSpec() types.PipelineSpec {
	return types.PipelineSpec{
		Name: "app",
		Stages: []types.StageSpec{
			{Name: "checkout", Kind: types.KindCheckout, Produces: []string{"source"}},
			{Name: "sonar", Kind: types.KindStaticAnalysis, Requires: []string{"source"}, Produces: []string{"sonar-log"}},
			{Name: "quality-gate", Kind: types.KindGate, Gate: &types.GateSpec{AbortOnFail: true, Timeout: "1s"}},
			{Name: "image", Kind: types.KindBuild, Requires: []string{"source"}, Produces: []string{"image-ref"}},
			{Name: "deploy", Kind: types.KindDeploy, Requires: []string{"image-ref"}, Produces: []string{"deploy-log"}},
			{Name: "mail", Kind: types.KindNotify, With: map[string]string{"to": "ops@example.com", "attach": "sonar-log"}},
		},
	}
}

func TestEngine_SuccessfulRun(t *testing.T) {
	spec := fullSpec()
	gate := &fakeGate{verdict: GateVerdict{Pass: true, Reason: "OK"}}
	dispatcher := &countingDispatcher{}
	rc := NewRunContext(spec.Name, t.TempDir(), nil)

	engine := NewEngine(spec, allOKCaps(t), gate, dispatcher, EngineOptions{Logger: testLogger()})
	summary, err := engine.Run(context.Background(), rc)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if summary.Status != StatusSucceeded {
		t.Errorf("status = %s, want succeeded", summary.Status)
	}
	if rc.Status() != StatusNotified {
		t.Errorf("context status = %s, want notified", rc.Status())
	}
	if got := dispatcher.count.Load(); got != 1 {
		t.Errorf("dispatches = %d, want exactly 1", got)
	}
	for _, name := range []string{"source", "sonar-log", "image-ref", "deploy-log"} {
		if !rc.HasArtifact(name) {
			t.Errorf("artifact %q missing after successful run", name)
		}
	}
	if gate.calls != 1 {
		t.Errorf("gate evaluated %d times, want 1", gate.calls)
	}
	if dispatcher.last.Recipients[0] != "ops@example.com" {
		t.Errorf("recipients = %v", dispatcher.last.Recipients)
	}
	if _, ok := dispatcher.last.Attachments["sonar-log"]; !ok {
		t.Error("sonar-log attachment missing from notification")
	}
	if _, ok := dispatcher.last.Attachments["run-summary"]; !ok {
		t.Error("run-summary attachment missing from notification")
	}
}

func TestEngine_AbortingGateHaltsRun(t *testing.T) {
	spec := fullSpec()
	gate := &fakeGate{verdict: GateVerdict{Pass: false, Reason: "coverage below threshold"}}
	dispatcher := &countingDispatcher{}
	rc := NewRunContext(spec.Name, t.TempDir(), nil)

	engine := NewEngine(spec, allOKCaps(t), gate, dispatcher, EngineOptions{Logger: testLogger()})
	summary, err := engine.Run(context.Background(), rc)

	var gateErr *GateFailure
	if !errors.As(err, &gateErr) {
		t.Fatalf("error = %v, want GateFailure", err)
	}
	if summary.Status != StatusAborted {
		t.Errorf("status = %s, want aborted", summary.Status)
	}
	if summary.Reason != "quality-gate-failed" {
		t.Errorf("reason = %q, want quality-gate-failed", summary.Reason)
	}
	if rc.HasArtifact("image-ref") {
		t.Error("build ran after aborting gate")
	}
	if got := dispatcher.count.Load(); got != 1 {
		t.Errorf("dispatches = %d, want exactly 1", got)
	}
}

func TestEngine_ReportOnlyGateContinues(t *testing.T) {
	spec := fullSpec()
	spec.Stages[2].Gate = &types.GateSpec{AbortOnFail: false, Timeout: "1s"}
	gate := &fakeGate{verdict: GateVerdict{Pass: false, Reason: "coverage below threshold"}}
	dispatcher := &countingDispatcher{}
	rc := NewRunContext(spec.Name, t.TempDir(), nil)

	engine := NewEngine(spec, allOKCaps(t), gate, dispatcher, EngineOptions{Logger: testLogger()})
	summary, err := engine.Run(context.Background(), rc)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if summary.Status != StatusSucceeded {
		t.Errorf("status = %s, want succeeded", summary.Status)
	}
	for _, name := range []string{"source", "sonar-log", "image-ref", "deploy-log"} {
		if !rc.HasArtifact(name) {
			t.Errorf("artifact %q missing", name)
		}
	}
	if got := dispatcher.count.Load(); got != 1 {
		t.Errorf("dispatches = %d, want exactly 1", got)
	}
}

func TestEngine_GateTimeoutPolicies(t *testing.T) {
	tests := []struct {
		name       string
		onTimeout  string
		wantStatus Status
		wantReason string
	}{
		{"timeout fails by default", "", StatusAborted, "timeout"},
		{"timeout passes under policy", "pass", StatusSucceeded, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := fullSpec()
			spec.Stages[2].Gate = &types.GateSpec{AbortOnFail: true, Timeout: "1s", OnTimeout: tt.onTimeout}
			gate := &fakeGate{verdict: GateVerdict{Pass: false, Reason: GateReasonTimeout}}
			dispatcher := &countingDispatcher{}
			rc := NewRunContext(spec.Name, t.TempDir(), nil)

			engine := NewEngine(spec, allOKCaps(t), gate, dispatcher, EngineOptions{Logger: testLogger()})
			summary, _ := engine.Run(context.Background(), rc)

			if summary.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", summary.Status, tt.wantStatus)
			}
			if summary.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", summary.Reason, tt.wantReason)
			}
			if got := dispatcher.count.Load(); got != 1 {
				t.Errorf("dispatches = %d, want exactly 1", got)
			}
		})
	}
}

func TestEngine_FatalStageFailureStopsRun(t *testing.T) {
	spec := fullSpec()
	caps := allOKCaps(t)
	caps[types.KindBuild] = failCapability(types.KindBuild)
	gate := &fakeGate{verdict: GateVerdict{Pass: true}}
	dispatcher := &countingDispatcher{}
	rc := NewRunContext(spec.Name, t.TempDir(), nil)

	engine := NewEngine(spec, caps, gate, dispatcher, EngineOptions{Logger: testLogger()})
	summary, err := engine.Run(context.Background(), rc)

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error = %v, want CommandError", err)
	}
	if summary.Status != StatusFailed {
		t.Errorf("status = %s, want failed", summary.Status)
	}
	if rc.HasArtifact("deploy-log") {
		t.Error("deploy ran after fatal build failure")
	}
	if got := dispatcher.count.Load(); got != 1 {
		t.Errorf("dispatches = %d, want exactly 1", got)
	}
}

func TestEngine_AdvisoryFailureContinues(t *testing.T) {
	spec := types.PipelineSpec{
		Name: "app",
		Stages: []types.StageSpec{
			{Name: "checkout", Kind: types.KindCheckout, Produces: []string{"source"}},
			{Name: "dep-scan", Kind: types.KindDependencyScan, ContinueOnFailure: true},
			{Name: "image", Kind: types.KindBuild, Requires: []string{"source"}, Produces: []string{"image-ref"}},
		},
	}
	caps := allOKCaps(t)
	caps[types.KindDependencyScan] = failCapability(types.KindDependencyScan)
	dispatcher := &countingDispatcher{}
	rc := NewRunContext(spec.Name, t.TempDir(), nil)

	engine := NewEngine(spec, caps, nil, dispatcher, EngineOptions{Logger: testLogger()})
	summary, err := engine.Run(context.Background(), rc)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if summary.Status != StatusSucceeded {
		t.Errorf("status = %s, want succeeded", summary.Status)
	}
	results := rc.Results()
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[1].Status != StageAdvisory {
		t.Errorf("dep-scan status = %s, want advisory", results[1].Status)
	}
}

func TestEngine_FailedProducerSkipsDownstream(t *testing.T) {
	// The build stage fails before producing image-ref; deploy requires it
	// and must fail with ArtifactMissingError without executing.
	spec := types.PipelineSpec{
		Name: "app",
		Stages: []types.StageSpec{
			{Name: "image", Kind: types.KindBuild, ContinueOnFailure: true, Produces: []string{"image-ref"}},
			{Name: "deploy", Kind: types.KindDeploy, Requires: []string{"image-ref"}},
		},
	}

	deployed := false
	caps := map[types.StageKind]Capability{
		types.KindBuild: failCapability(types.KindBuild),
		types.KindDeploy: &fakeCapability{
			kind: types.KindDeploy,
			run: func(ctx context.Context, rc *RunContext, stage types.StageSpec) (*CapabilityResult, error) {
				deployed = true
				return &CapabilityResult{}, nil
			},
		},
	}

	dispatcher := &countingDispatcher{}
	rc := NewRunContext(spec.Name, t.TempDir(), nil)
	engine := NewEngine(spec, caps, nil, dispatcher, EngineOptions{Logger: testLogger()})
	summary, err := engine.Run(context.Background(), rc)

	var missing *ArtifactMissingError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want ArtifactMissingError", err)
	}
	if deployed {
		t.Error("deploy executed despite missing required artifact")
	}
	if summary.Status != StatusFailed {
		t.Errorf("status = %s, want failed", summary.Status)
	}
	if got := dispatcher.count.Load(); got != 1 {
		t.Errorf("dispatches = %d, want exactly 1", got)
	}
}

func TestEngine_CancellationBetweenStages(t *testing.T) {
	spec := fullSpec()
	ctx, cancel := context.WithCancel(context.Background())

	caps := allOKCaps(t)
	caps[types.KindCheckout] = &fakeCapability{
		kind: types.KindCheckout,
		run: func(ctx context.Context, rc *RunContext, stage types.StageSpec) (*CapabilityResult, error) {
			cancel() // abort request arrives while the first stage runs
			return &CapabilityResult{Artifacts: map[string]string{
				"source": writeArtifact(t, rc.Workspace, "source", "x"),
			}}, nil
		},
	}

	gate := &fakeGate{verdict: GateVerdict{Pass: true}}
	dispatcher := &countingDispatcher{}
	rc := NewRunContext(spec.Name, t.TempDir(), nil)

	engine := NewEngine(spec, caps, gate, dispatcher, EngineOptions{Logger: testLogger()})
	summary, err := engine.Run(ctx, rc)

	if err == nil {
		t.Fatal("Run() error = nil, want abort error")
	}
	if summary.Status != StatusAborted {
		t.Errorf("status = %s, want aborted", summary.Status)
	}
	// Checkout finished; nothing after the cancellation point ran.
	if gate.calls != 0 {
		t.Errorf("gate evaluated %d times after abort, want 0", gate.calls)
	}
	if got := dispatcher.count.Load(); got != 1 {
		t.Errorf("dispatches = %d, want exactly 1", got)
	}
}

func TestEngine_DispatchFailureDoesNotSurface(t *testing.T) {
	spec := fullSpec()
	gate := &fakeGate{verdict: GateVerdict{Pass: true}}
	dispatcher := &countingDispatcher{failed: errors.New("smtp connection refused")}
	rc := NewRunContext(spec.Name, t.TempDir(), nil)

	engine := NewEngine(spec, allOKCaps(t), gate, dispatcher, EngineOptions{Logger: testLogger()})
	summary, err := engine.Run(context.Background(), rc)
	if err != nil {
		t.Fatalf("Run() error = %v, delivery failure must not surface", err)
	}

	if summary.Status != StatusSucceeded {
		t.Errorf("status = %s, want succeeded despite delivery failure", summary.Status)
	}
	if rc.Status() != StatusNotified {
		t.Errorf("context status = %s, want notified", rc.Status())
	}
}

func TestEngine_EmitsLifecycleEvents(t *testing.T) {
	spec := fullSpec()
	events := make(chan Event, 64)
	gate := &fakeGate{verdict: GateVerdict{Pass: true}}
	rc := NewRunContext(spec.Name, t.TempDir(), nil)

	engine := NewEngine(spec, allOKCaps(t), gate, &countingDispatcher{}, EngineOptions{
		Logger: testLogger(),
		Events: events,
	})
	if _, err := engine.Run(context.Background(), rc); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	close(events)

	var kinds []EventKind
	for ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	if kinds[0] != EventRunStarted {
		t.Errorf("first event = %s, want run_started", kinds[0])
	}
	if kinds[len(kinds)-1] != EventNotified {
		t.Errorf("last event = %s, want notified", kinds[len(kinds)-1])
	}
	var gates, finished int
	for _, k := range kinds {
		switch k {
		case EventGateEvaluated:
			gates++
		case EventStageFinished:
			finished++
		}
	}
	if gates != 1 {
		t.Errorf("gate events = %d, want 1", gates)
	}
	if finished != 4 {
		t.Errorf("stage_finished events = %d, want 4", finished)
	}
}
