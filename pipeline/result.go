package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/conveyor-ci/conveyor/types"
)

// StageStatus is the per-stage outcome.
type StageStatus string

const (
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	// StageAdvisory marks a failed stage whose continue_on_failure policy
	// let the run proceed.
	StageAdvisory StageStatus = "advisory"
	StageSkipped  StageStatus = "skipped"
)

// StageResult records one stage execution.
type StageResult struct {
	Stage     string          `json:"stage"`
	Kind      types.StageKind `json:"kind"`
	Status    StageStatus     `json:"status"`
	ExitCode  int             `json:"exit_code"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Artifacts []string        `json:"artifacts,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// RunSummary is the terminal record of a run, written as the
// run-summary.json artifact and attached to notifications.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Pipeline   string        `json:"pipeline"`
	Status     Status        `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Stages     []StageResult `json:"stages"`
	Artifacts  []string      `json:"artifacts"`
}

// summarize builds a RunSummary from the run context. The status reflects
// the pre-notification terminal state.
func summarize(rc *RunContext, status Status, reason string, finishedAt time.Time) RunSummary {
	names := make([]string, 0, len(rc.artifacts))
	for name := range rc.artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	return RunSummary{
		RunID:      rc.RunID,
		Pipeline:   rc.Pipeline,
		Status:     status,
		Reason:     reason,
		StartedAt:  rc.StartedAt,
		FinishedAt: finishedAt,
		Stages:     rc.Results(),
		Artifacts:  names,
	}
}

// WriteSummary writes the run summary into the workspace and registers it
// as the run-summary artifact.
func WriteSummary(rc *RunContext, summary RunSummary) (string, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshalling run summary: %w", err)
	}
	outPath := filepath.Join(rc.Workspace, "run-summary.json")
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing run summary: %w", err)
	}
	rc.AddArtifact("run-summary", outPath)
	return outPath, nil
}
