package container

import (
	"context"
	"os/exec"
	"time"
)

// BuildahBuilder builds container images using the buildah CLI.
type BuildahBuilder struct{}

func (b *BuildahBuilder) Name() string { return "buildah" }

func (b *BuildahBuilder) Available() bool {
	return exec.Command("buildah", "version").Run() == nil
}

func (b *BuildahBuilder) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	started := time.Now()
	out, err := run(ctx, "buildah", buildArgs("bud", opts)...)
	if err != nil {
		return nil, err
	}
	return &BuildResult{
		ImageID:  parseImageID(out),
		Tag:      opts.Tag,
		Duration: time.Since(started),
	}, nil
}

func (b *BuildahBuilder) Push(ctx context.Context, image string) error {
	_, err := run(ctx, "buildah", "push", image)
	return err
}

func (b *BuildahBuilder) Login(ctx context.Context, registry, username, password string) error {
	return login(ctx, "buildah", registry, username, password)
}
