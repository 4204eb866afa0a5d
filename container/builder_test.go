package container

import (
	"strings"
	"testing"
)

func TestGet_KnownBuilders(t *testing.T) {
	for _, name := range []string{"docker", "podman", "buildah"} {
		b := Get(name)
		if b == nil {
			t.Errorf("Get(%q) returned nil", name)
			continue
		}
		if b.Name() != name {
			t.Errorf("Get(%q).Name() = %q", name, b.Name())
		}
	}
}

func TestGet_UnknownBuilder(t *testing.T) {
	if b := Get("img"); b != nil {
		t.Errorf("Get(\"img\") = %v, want nil", b)
	}
}

func TestDetect_ReturnsBuilderOrNil(t *testing.T) {
	// What is installed varies by host; only check the result is coherent.
	b := Detect()
	if b != nil {
		switch b.Name() {
		case "docker", "podman", "buildah":
		default:
			t.Errorf("Detect() returned unexpected builder %q", b.Name())
		}
	}
}

func TestBuildArgs(t *testing.T) {
	opts := BuildOptions{
		ContextDir: "/src/app",
		Dockerfile: "Dockerfile.prod",
		Tag:        "reg.example.com/app:v1",
		NoCache:    true,
		BuildArgs:  map[string]string{"TMDB_V3_API_KEY": "secret"},
		Labels:     map[string]string{"run-id": "abc"},
	}

	args := buildArgs("build", opts)
	joined := strings.Join(args, " ")

	if args[0] != "build" {
		t.Errorf("args[0] = %q, want build", args[0])
	}
	if args[len(args)-1] != "/src/app" {
		t.Errorf("context dir = %q, want /src/app", args[len(args)-1])
	}
	for _, want := range []string{
		"-t reg.example.com/app:v1",
		"-f Dockerfile.prod",
		"--no-cache",
		"--build-arg TMDB_V3_API_KEY=secret",
		"--label run-id=abc",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
}

func TestBuildArgs_DefaultContextDir(t *testing.T) {
	args := buildArgs("bud", BuildOptions{Tag: "app:latest"})
	if args[len(args)-1] != "." {
		t.Errorf("default context dir = %q, want .", args[len(args)-1])
	}
}

func TestParseImageID(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{
			name:   "classic docker",
			output: "Step 1/5 : FROM node:16\nSuccessfully built abc123def",
			want:   "abc123def",
		},
		{
			name:   "bare sha256",
			output: "Step 1/5 : FROM node:16\nsha256:abc123def456",
			want:   "sha256:abc123def456",
		},
		{
			name:   "buildkit writing image",
			output: "#8 exporting layers\nwriting image sha256:feedface done",
			want:   "sha256:feedface",
		},
		{
			name:   "last line fallback",
			output: "some-image-id",
			want:   "some-image-id",
		},
		{
			name:   "empty output",
			output: "",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseImageID(tt.output); got != tt.want {
				t.Errorf("parseImageID() = %q, want %q", got, tt.want)
			}
		})
	}
}
