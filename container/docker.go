package container

import (
	"context"
	"os/exec"
	"time"
)

// DockerBuilder builds container images using the docker CLI.
type DockerBuilder struct{}

func (b *DockerBuilder) Name() string { return "docker" }

func (b *DockerBuilder) Available() bool {
	return exec.Command("docker", "info").Run() == nil
}

func (b *DockerBuilder) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	started := time.Now()
	out, err := run(ctx, "docker", buildArgs("build", opts)...)
	if err != nil {
		return nil, err
	}
	return &BuildResult{
		ImageID:  parseImageID(out),
		Tag:      opts.Tag,
		Duration: time.Since(started),
	}, nil
}

func (b *DockerBuilder) Push(ctx context.Context, image string) error {
	_, err := run(ctx, "docker", "push", image)
	return err
}

func (b *DockerBuilder) Login(ctx context.Context, registry, username, password string) error {
	return login(ctx, "docker", registry, username, password)
}
