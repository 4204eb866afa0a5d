package capability

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/conveyor-ci/conveyor/pipeline"
	"github.com/conveyor-ci/conveyor/types"
)

// Checkout clones a git repository into the run workspace.
type Checkout struct {
	// Bin overrides the git binary, for tests.
	Bin    string
	Logger *slog.Logger
}

func (c *Checkout) Kind() types.StageKind { return types.KindCheckout }

func (c *Checkout) bin() string {
	if c.Bin != "" {
		return c.Bin
	}
	return "git"
}

func (c *Checkout) Run(ctx context.Context, rc *pipeline.RunContext, stage types.StageSpec) (*pipeline.CapabilityResult, error) {
	params := rc.ExpandWith(stage)

	repo := params["repo"]
	if repo == "" {
		return nil, fmt.Errorf("stage %s: with.repo is required", stage.Name)
	}
	branch := params["branch"]
	if branch == "" {
		branch = "main"
	}

	dest := filepath.Join(rc.Workspace, "src")
	if d := params["dir"]; d != "" {
		dest = filepath.Join(rc.Workspace, d)
	}

	args := []string{"clone", "--depth", "1", "--branch", branch, repo, dest}
	out, err := runTool(ctx, rc.Workspace, nil, c.bin(), args...)
	if err != nil {
		return &pipeline.CapabilityResult{Output: out, ExitCode: exitCodeOf(err)},
			&pipeline.CheckoutError{Repo: repo, Err: err}
	}

	result := &pipeline.CapabilityResult{Output: out, Artifacts: map[string]string{}}
	if name := primaryArtifact(stage); name != "" {
		result.Artifacts[name] = dest
	}
	return result, nil
}
