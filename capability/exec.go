// Package capability implements the external tool invocations behind each
// stage kind. Every capability shells out to a CLI the orchestrator does
// not own (git, sonar-scanner, dependency-check, trivy, a container
// builder, kubectl) and reports results through the pipeline taxonomy.
package capability

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/conveyor-ci/conveyor/pipeline"
	"github.com/conveyor-ci/conveyor/types"
)

// runTool executes an external binary, returning its combined output. A
// non-zero exit is reported as a pipeline.CommandError carrying the exit
// code and the tail of the output.
func runTool(ctx context.Context, dir string, extraEnv []string, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	if len(extraEnv) > 0 {
		cmd.Env = append(cmd.Environ(), extraEnv...)
	}

	out, err := cmd.CombinedOutput()
	output := string(out)
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return output, &pipeline.CommandError{
			Command:  bin,
			ExitCode: exitCode,
			Stderr:   tail(output, 2048),
			Err:      err,
		}
	}
	return output, nil
}

// exitCodeOf extracts the command exit code from an error chain, or -1.
func exitCodeOf(err error) int {
	var cmdErr *pipeline.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return -1
}

// tail returns the last max bytes of s, on a line boundary where possible.
func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	s = s[len(s)-max:]
	if idx := strings.IndexByte(s, '\n'); idx >= 0 && idx < len(s)-1 {
		s = s[idx+1:]
	}
	return s
}

// primaryArtifact returns the stage's first declared output name, or "".
func primaryArtifact(stage types.StageSpec) string {
	if len(stage.Produces) > 0 {
		return stage.Produces[0]
	}
	return ""
}

// workdirFor resolves the directory a tool should run in: an explicit path
// parameter, else the stage's first required artifact, else the workspace.
func workdirFor(rc *pipeline.RunContext, stage types.StageSpec, params map[string]string) string {
	if p := params["path"]; p != "" {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(rc.Workspace, p)
	}
	for _, req := range stage.Requires {
		if p, ok := rc.Artifact(req); ok {
			return p
		}
	}
	return rc.Workspace
}
