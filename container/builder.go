// Package container builds and pushes container images via the docker,
// podman, or buildah CLIs.
package container

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Builder is the interface for container image builders.
type Builder interface {
	Build(ctx context.Context, opts BuildOptions) (*BuildResult, error)
	Push(ctx context.Context, image string) error
	Login(ctx context.Context, registry, username, password string) error
	Available() bool
	Name() string
}

// BuildOptions configures a container image build.
type BuildOptions struct {
	ContextDir string
	Dockerfile string
	Tag        string
	Platform   string
	NoCache    bool
	BuildArgs  map[string]string
	Labels     map[string]string
}

// BuildResult holds the result of a container image build.
type BuildResult struct {
	ImageID  string
	Tag      string
	Duration time.Duration
}

// Detect returns the first available builder in order: docker, podman,
// buildah. Returns nil if none is installed.
func Detect() Builder {
	for _, b := range []Builder{&DockerBuilder{}, &PodmanBuilder{}, &BuildahBuilder{}} {
		if b.Available() {
			return b
		}
	}
	return nil
}

// Get returns a builder by name, or nil if the name is unknown.
func Get(name string) Builder {
	switch name {
	case "docker":
		return &DockerBuilder{}
	case "podman":
		return &PodmanBuilder{}
	case "buildah":
		return &BuildahBuilder{}
	default:
		return nil
	}
}

// buildArgs assembles the common build argument list shared by docker and
// podman; buildah diverges only in the subcommand name.
func buildArgs(subcommand string, opts BuildOptions) []string {
	args := []string{subcommand}

	if opts.Tag != "" {
		args = append(args, "-t", opts.Tag)
	}
	if opts.Dockerfile != "" {
		args = append(args, "-f", opts.Dockerfile)
	}
	if opts.Platform != "" {
		args = append(args, "--platform", opts.Platform)
	}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	for k, v := range opts.BuildArgs {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, v))
	}
	for k, v := range opts.Labels {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, v))
	}

	contextDir := opts.ContextDir
	if contextDir == "" {
		contextDir = "."
	}
	return append(args, contextDir)
}

// run executes the builder binary, returning stdout and including captured
// stderr in the error on failure.
func run(ctx context.Context, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%s %s failed: %s: %w",
			bin, args[0], strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

// login performs a registry login with the password on stdin so it never
// appears in the process table.
func login(ctx context.Context, bin, registry, username, password string) error {
	cmd := exec.CommandContext(ctx, bin, "login", "-u", username, "--password-stdin", registry)
	cmd.Stdin = strings.NewReader(password)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s login to %s failed: %s: %w",
			bin, registry, strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// parseImageID extracts the image ID from builder output. Classic docker
// prints "Successfully built <id>", BuildKit and buildah print a bare
// sha256 hash or image ID on the last line.
func parseImageID(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if after, ok := strings.CutPrefix(line, "Successfully built "); ok {
			return after
		}
		if strings.HasPrefix(line, "sha256:") {
			return line
		}
		if after, ok := strings.CutPrefix(line, "writing image "); ok {
			// BuildKit: "writing image sha256:... done"
			return strings.TrimSuffix(strings.TrimSpace(after), " done")
		}
	}
	if len(lines) > 0 {
		return strings.TrimSpace(lines[len(lines)-1])
	}
	return ""
}
