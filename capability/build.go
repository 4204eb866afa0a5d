package capability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/conveyor-ci/conveyor/config"
	"github.com/conveyor-ci/conveyor/container"
	"github.com/conveyor-ci/conveyor/pipeline"
	"github.com/conveyor-ci/conveyor/types"
)

// ImageBuild builds a container image from the checked-out source and
// optionally pushes it. The resulting image reference is written to a
// workspace file and registered as the stage's artifact so later stages
// (image scan, deploy) can consume it.
type ImageBuild struct {
	// Builder overrides builder selection, for tests.
	Builder  container.Builder
	Settings config.Settings
	Logger   *slog.Logger
}

func (b *ImageBuild) Kind() types.StageKind { return types.KindBuild }

func (b *ImageBuild) builder() (container.Builder, error) {
	if b.Builder != nil {
		return b.Builder, nil
	}
	if name := b.Settings.Builder; name != "" {
		builder := container.Get(name)
		if builder == nil {
			return nil, fmt.Errorf("unknown container builder %q", name)
		}
		return builder, nil
	}
	builder := container.Detect()
	if builder == nil {
		return nil, fmt.Errorf("no container builder found (docker, podman, or buildah)")
	}
	return builder, nil
}

func (b *ImageBuild) Run(ctx context.Context, rc *pipeline.RunContext, stage types.StageSpec) (*pipeline.CapabilityResult, error) {
	params := rc.ExpandWith(stage)

	tag := params["tag"]
	if tag == "" {
		return nil, fmt.Errorf("stage %s: with.tag is required", stage.Name)
	}

	builder, err := b.builder()
	if err != nil {
		return nil, &pipeline.BuildError{Image: tag, Err: err}
	}

	reg := b.Settings.Registry
	if reg.Username != "" {
		registry := reg.URL
		if registry == "" {
			registry = strings.SplitN(tag, "/", 2)[0]
		}
		if err := builder.Login(ctx, registry, reg.Username, reg.Password); err != nil {
			return nil, &pipeline.PushError{Image: tag, Err: err}
		}
	}

	buildArgs := map[string]string{}
	for k, v := range params {
		if name, ok := strings.CutPrefix(k, "build_arg_"); ok {
			buildArgs[name] = v
		}
	}

	opts := container.BuildOptions{
		ContextDir: workdirFor(rc, stage, params),
		Dockerfile: params["dockerfile"],
		Tag:        tag,
		NoCache:    params["no_cache"] == "true",
		BuildArgs:  buildArgs,
		Labels:     map[string]string{"conveyor.run-id": rc.RunID},
	}

	buildResult, err := builder.Build(ctx, opts)
	if err != nil {
		return nil, &pipeline.BuildError{Image: tag, Err: err}
	}

	if params["push"] == "true" {
		if err := builder.Push(ctx, tag); err != nil {
			return nil, &pipeline.PushError{Image: tag, Err: err}
		}
	}

	refPath := filepath.Join(rc.Workspace, "image-ref.txt")
	if err := writeImageRef(refPath, tag, buildResult.ImageID); err != nil {
		return nil, err
	}

	result := &pipeline.CapabilityResult{
		Output:    fmt.Sprintf("built %s (%s) in %s", tag, buildResult.ImageID, buildResult.Duration),
		Artifacts: map[string]string{},
	}
	if name := primaryArtifact(stage); name != "" {
		result.Artifacts[name] = refPath
	}
	return result, nil
}

// writeImageRef records a built image as "<tag> <id>" for later stages.
func writeImageRef(path, tag, imageID string) error {
	content := tag
	if imageID != "" {
		content += " " + imageID
	}
	if err := os.WriteFile(path, []byte(content+"\n"), 0644); err != nil {
		return fmt.Errorf("writing image reference: %w", err)
	}
	return nil
}

// readImageRef reads the tag back from an image reference artifact.
func readImageRef(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image reference %s: %w", path, err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", fmt.Errorf("image reference %s is empty", path)
	}
	return fields[0], nil
}
