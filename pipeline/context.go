package pipeline

import (
	"os"
	"time"

	"github.com/conveyor-ci/conveyor/types"
	"github.com/google/uuid"
)

// RunContext carries all mutable state for one pipeline run. It is owned by
// a single Engine.Run call; stages execute strictly sequentially, so no
// synchronization is needed. Artifacts are files on disk, registered by
// name; the map value is an absolute path.
type RunContext struct {
	RunID     string
	Pipeline  string
	Workspace string
	Env       map[string]string
	StartedAt time.Time

	artifacts map[string]string
	status    Status
	results   []StageResult
}

// NewRunContext creates a RunContext in status Pending with a fresh run ID.
func NewRunContext(pipeline, workspace string, env map[string]string) *RunContext {
	if env == nil {
		env = make(map[string]string)
	}
	return &RunContext{
		RunID:     uuid.NewString(),
		Pipeline:  pipeline,
		Workspace: workspace,
		Env:       env,
		artifacts: make(map[string]string),
		status:    StatusPending,
	}
}

// Status returns the current run status.
func (rc *RunContext) Status() Status { return rc.status }

// transition moves the run to the next status, rejecting any move out of a
// terminal state or otherwise off the lifecycle path.
func (rc *RunContext) transition(to Status) error {
	if err := checkTransition(rc.status, to); err != nil {
		return err
	}
	rc.status = to
	return nil
}

// AddArtifact registers a produced artifact under name.
func (rc *RunContext) AddArtifact(name, path string) {
	rc.artifacts[name] = path
}

// Artifact returns the registered path for name.
func (rc *RunContext) Artifact(name string) (string, bool) {
	p, ok := rc.artifacts[name]
	return p, ok
}

// HasArtifact reports whether name is registered and its file exists.
func (rc *RunContext) HasArtifact(name string) bool {
	p, ok := rc.artifacts[name]
	if !ok {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}

// Artifacts returns a copy of the artifact map.
func (rc *RunContext) Artifacts() map[string]string {
	out := make(map[string]string, len(rc.artifacts))
	for k, v := range rc.artifacts {
		out[k] = v
	}
	return out
}

// addResult records a completed stage result.
func (rc *RunContext) addResult(r StageResult) {
	rc.results = append(rc.results, r)
}

// Results returns the stage results recorded so far, in execution order.
func (rc *RunContext) Results() []StageResult {
	out := make([]StageResult, len(rc.results))
	copy(out, rc.results)
	return out
}

// ExpandWith resolves ${VAR} references in the stage's with parameters
// against the run environment. Process environment variables are not
// consulted: the run env is injected configuration, never ambient state.
func (rc *RunContext) ExpandWith(stage types.StageSpec) map[string]string {
	out := make(map[string]string, len(stage.With))
	for k, v := range stage.With {
		out[k] = os.Expand(v, func(name string) string {
			return rc.Env[name]
		})
	}
	return out
}
