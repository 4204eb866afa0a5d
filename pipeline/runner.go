package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/conveyor-ci/conveyor/types"
)

// StageRunner executes one stage at a time against a RunContext. Invocations
// for the same run never overlap: the engine calls Run sequentially.
type StageRunner struct {
	caps   map[types.StageKind]Capability
	logger *slog.Logger
}

// NewStageRunner creates a StageRunner over the given capability table.
func NewStageRunner(caps map[types.StageKind]Capability, logger *slog.Logger) *StageRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &StageRunner{caps: caps, logger: logger}
}

// Run executes stage against rc, capturing exit status, duration, and
// produced artifacts. Before execution it checks every required input
// artifact; a missing input fails with ArtifactMissingError without
// invoking the capability. After execution it checks every declared output.
// The returned StageResult is always recorded on rc.
func (r *StageRunner) Run(ctx context.Context, rc *RunContext, stage types.StageSpec) (StageResult, error) {
	result := StageResult{
		Stage:     stage.Name,
		Kind:      stage.Kind,
		StartedAt: time.Now().UTC(),
	}

	for _, req := range stage.Requires {
		if !rc.HasArtifact(req) {
			err := &ArtifactMissingError{Stage: stage.Name, Artifact: req, Input: true}
			result.Status = StageSkipped
			result.Error = err.Error()
			rc.addResult(result)
			return result, err
		}
	}

	c, ok := r.caps[stage.Kind]
	if !ok {
		err := fmt.Errorf("stage %s: no capability registered for kind %q", stage.Name, stage.Kind)
		result.Status = StageFailed
		result.Error = err.Error()
		rc.addResult(result)
		return result, err
	}

	r.logger.Info("stage started", "run", rc.RunID, "stage", stage.Name, "kind", stage.Kind)

	capResult, runErr := c.Run(ctx, rc, stage)
	result.Duration = time.Since(result.StartedAt)

	if capResult != nil {
		result.ExitCode = capResult.ExitCode
		for name, path := range capResult.Artifacts {
			rc.AddArtifact(name, path)
			result.Artifacts = append(result.Artifacts, name)
		}
		if stage.CaptureOutput != "" && capResult.Output != "" {
			if path, err := r.captureOutput(rc, stage, capResult.Output); err != nil {
				r.logger.Warn("capturing stage output failed", "stage", stage.Name, "error", err)
			} else {
				rc.AddArtifact(stage.CaptureOutput, path)
				result.Artifacts = append(result.Artifacts, stage.CaptureOutput)
			}
		}
	}

	if runErr != nil {
		var cmdErr *CommandError
		if errors.As(runErr, &cmdErr) {
			result.ExitCode = cmdErr.ExitCode
		}
		result.Status = StageFailed
		result.Error = runErr.Error()
		rc.addResult(result)
		r.logger.Error("stage failed", "run", rc.RunID, "stage", stage.Name, "error", runErr)
		return result, runErr
	}

	for _, art := range stage.Produces {
		if !rc.HasArtifact(art) {
			err := &ArtifactMissingError{Stage: stage.Name, Artifact: art}
			result.Status = StageFailed
			result.Error = err.Error()
			rc.addResult(result)
			return result, err
		}
	}

	result.Status = StageSucceeded
	rc.addResult(result)
	r.logger.Info("stage finished", "run", rc.RunID, "stage", stage.Name, "duration", result.Duration)
	return result, nil
}

// captureOutput persists the command output as a workspace file so it can
// be registered as an artifact (scan logs, reports written to stdout).
func (r *StageRunner) captureOutput(rc *RunContext, stage types.StageSpec, output string) (string, error) {
	path := filepath.Join(rc.Workspace, stage.CaptureOutput+".log")
	if err := os.WriteFile(path, []byte(output), 0644); err != nil {
		return "", fmt.Errorf("writing output artifact %s: %w", stage.CaptureOutput, err)
	}
	return path, nil
}
