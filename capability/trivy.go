package capability

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/conveyor-ci/conveyor/pipeline"
	"github.com/conveyor-ci/conveyor/types"
)

// ImageScan runs trivy against a filesystem tree or an image reference and
// publishes the text report as an artifact. The scan's exit status is not
// gating: vulnerabilities are reported, not fatal.
type ImageScan struct {
	Bin    string
	Logger *slog.Logger
}

func (t *ImageScan) Kind() types.StageKind { return types.KindImageScan }

func (t *ImageScan) bin() string {
	if t.Bin != "" {
		return t.Bin
	}
	return "trivy"
}

// scanArgs picks the trivy subcommand from the stage parameters: an image
// parameter scans an image reference, otherwise the source tree is scanned.
func (t *ImageScan) scanArgs(rc *pipeline.RunContext, stage types.StageSpec, params map[string]string, reportPath string) ([]string, error) {
	if image := params["image"]; image != "" {
		return []string{"image", "--format", "table", "--output", reportPath, image}, nil
	}
	if ref := params["image_artifact"]; ref != "" {
		path, ok := rc.Artifact(ref)
		if !ok {
			return nil, fmt.Errorf("stage %s: image_artifact %q is not registered", stage.Name, ref)
		}
		image, err := readImageRef(path)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		return []string{"image", "--format", "table", "--output", reportPath, image}, nil
	}
	dir := workdirFor(rc, stage, params)
	return []string{"fs", "--format", "table", "--output", reportPath, dir}, nil
}

func (t *ImageScan) Run(ctx context.Context, rc *pipeline.RunContext, stage types.StageSpec) (*pipeline.CapabilityResult, error) {
	params := rc.ExpandWith(stage)

	name := primaryArtifact(stage)
	if name == "" {
		name = "trivy-report"
	}
	reportPath := filepath.Join(rc.Workspace, name+".txt")

	args, err := t.scanArgs(rc, stage, params, reportPath)
	if err != nil {
		return nil, err
	}

	out, err := runTool(ctx, rc.Workspace, nil, t.bin(), args...)
	if err != nil {
		return &pipeline.CapabilityResult{Output: out, ExitCode: exitCodeOf(err)}, err
	}

	result := &pipeline.CapabilityResult{Output: out, Artifacts: map[string]string{}}
	if artName := primaryArtifact(stage); artName != "" {
		result.Artifacts[artName] = reportPath
	}
	return result, nil
}
