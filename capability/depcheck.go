package capability

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/conveyor-ci/conveyor/pipeline"
	"github.com/conveyor-ci/conveyor/types"
)

// depcheckReportFile is the report name the tool writes for XML output.
const depcheckReportFile = "dependency-check-report.xml"

// DependencyScan runs OWASP Dependency-Check over a source tree. The scan
// report is published as an artifact; the exit status is not consulted for
// gating (the tool is run with failures reported, not fatal).
type DependencyScan struct {
	Bin    string
	Logger *slog.Logger
}

func (d *DependencyScan) Kind() types.StageKind { return types.KindDependencyScan }

func (d *DependencyScan) bin() string {
	if d.Bin != "" {
		return d.Bin
	}
	return "dependency-check.sh"
}

func (d *DependencyScan) scanArgs(scanDir, outDir string, params map[string]string) []string {
	args := []string{
		"--scan", scanDir,
		"--format", "XML",
		"--out", outDir,
	}
	if params["disable_yarn_audit"] == "true" {
		args = append(args, "--disableYarnAudit")
	}
	if params["disable_node_audit"] == "true" {
		args = append(args, "--disableNodeAudit")
	}
	return args
}

func (d *DependencyScan) Run(ctx context.Context, rc *pipeline.RunContext, stage types.StageSpec) (*pipeline.CapabilityResult, error) {
	params := rc.ExpandWith(stage)

	scanDir := workdirFor(rc, stage, params)
	outDir := filepath.Join(rc.Workspace, "dependency-check")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	out, err := runTool(ctx, scanDir, nil, d.bin(), d.scanArgs(scanDir, outDir, params)...)
	if err != nil {
		return &pipeline.CapabilityResult{Output: out, ExitCode: exitCodeOf(err)}, err
	}

	result := &pipeline.CapabilityResult{Output: out, Artifacts: map[string]string{}}
	if name := primaryArtifact(stage); name != "" {
		result.Artifacts[name] = filepath.Join(outDir, depcheckReportFile)
	}
	return result, nil
}
