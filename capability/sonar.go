package capability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conveyor-ci/conveyor/config"
	"github.com/conveyor-ci/conveyor/pipeline"
	"github.com/conveyor-ci/conveyor/types"
)

// StaticAnalysis submits a project to the analysis server with the
// sonar-scanner CLI. The quality-gate verdict is read separately by the
// gate evaluator; this capability only submits the scan.
type StaticAnalysis struct {
	Bin      string
	Settings config.SonarSettings
	Logger   *slog.Logger
}

func (s *StaticAnalysis) Kind() types.StageKind { return types.KindStaticAnalysis }

func (s *StaticAnalysis) bin() string {
	if s.Bin != "" {
		return s.Bin
	}
	return "sonar-scanner"
}

// scannerArgs assembles the sonar-scanner property flags.
func (s *StaticAnalysis) scannerArgs(stage types.StageSpec, params map[string]string) ([]string, error) {
	projectKey := params["project_key"]
	if projectKey == "" {
		return nil, fmt.Errorf("stage %s: with.project_key is required", stage.Name)
	}
	if s.Settings.HostURL == "" {
		return nil, fmt.Errorf("stage %s: sonar.host_url is not configured", stage.Name)
	}

	projectName := params["project_name"]
	if projectName == "" {
		projectName = projectKey
	}

	args := []string{
		"-Dsonar.projectKey=" + projectKey,
		"-Dsonar.projectName=" + projectName,
		"-Dsonar.host.url=" + s.Settings.HostURL,
	}
	if s.Settings.Token != "" {
		args = append(args, "-Dsonar.token="+s.Settings.Token)
	}
	if sources := params["sources"]; sources != "" {
		args = append(args, "-Dsonar.sources="+sources)
	}
	return args, nil
}

func (s *StaticAnalysis) Run(ctx context.Context, rc *pipeline.RunContext, stage types.StageSpec) (*pipeline.CapabilityResult, error) {
	params := rc.ExpandWith(stage)

	args, err := s.scannerArgs(stage, params)
	if err != nil {
		return nil, err
	}

	dir := workdirFor(rc, stage, params)
	out, err := runTool(ctx, dir, nil, s.bin(), args...)
	if err != nil {
		return &pipeline.CapabilityResult{Output: out, ExitCode: exitCodeOf(err)}, err
	}
	return &pipeline.CapabilityResult{Output: out}, nil
}
