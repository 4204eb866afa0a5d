package capability

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/conveyor-ci/conveyor/config"
	"github.com/conveyor-ci/conveyor/pipeline"
	"github.com/conveyor-ci/conveyor/types"
)

// Deploy applies Kubernetes manifests with kubectl. Cluster credentials
// come from the injected kube settings, never from ambient environment.
type Deploy struct {
	Bin      string
	Settings config.KubeSettings
	Logger   *slog.Logger
}

func (d *Deploy) Kind() types.StageKind { return types.KindDeploy }

func (d *Deploy) bin() string {
	if d.Bin != "" {
		return d.Bin
	}
	return "kubectl"
}

// splitList splits a comma-separated parameter into trimmed entries.
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

func (d *Deploy) Run(ctx context.Context, rc *pipeline.RunContext, stage types.StageSpec) (*pipeline.CapabilityResult, error) {
	params := rc.ExpandWith(stage)

	manifests := splitList(params["manifests"])
	if len(manifests) == 0 {
		return nil, fmt.Errorf("stage %s: with.manifests is required", stage.Name)
	}

	baseDir := workdirFor(rc, stage, params)

	var env []string
	if d.Settings.Kubeconfig != "" {
		env = append(env, "KUBECONFIG="+d.Settings.Kubeconfig)
	}

	var combined strings.Builder
	for _, manifest := range manifests {
		path := manifest
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, manifest)
		}

		args := []string{"apply", "-f", path}
		if d.Settings.Context != "" {
			args = append(args, "--context", d.Settings.Context)
		}

		out, err := runTool(ctx, baseDir, env, d.bin(), args...)
		combined.WriteString(out)
		if err != nil {
			return &pipeline.CapabilityResult{Output: combined.String(), ExitCode: exitCodeOf(err)},
				&pipeline.DeployError{Manifest: manifest, Err: err}
		}
	}

	return &pipeline.CapabilityResult{Output: combined.String()}, nil
}
