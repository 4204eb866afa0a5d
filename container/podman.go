package container

import (
	"context"
	"os/exec"
	"time"
)

// PodmanBuilder builds container images using the podman CLI.
type PodmanBuilder struct{}

func (b *PodmanBuilder) Name() string { return "podman" }

func (b *PodmanBuilder) Available() bool {
	return exec.Command("podman", "version").Run() == nil
}

func (b *PodmanBuilder) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	started := time.Now()
	out, err := run(ctx, "podman", buildArgs("build", opts)...)
	if err != nil {
		return nil, err
	}
	return &BuildResult{
		ImageID:  parseImageID(out),
		Tag:      opts.Tag,
		Duration: time.Since(started),
	}, nil
}

func (b *PodmanBuilder) Push(ctx context.Context, image string) error {
	_, err := run(ctx, "podman", "push", image)
	return err
}

func (b *PodmanBuilder) Login(ctx context.Context, registry, username, password string) error {
	return login(ctx, "podman", registry, username, password)
}
