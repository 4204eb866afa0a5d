// Package config loads the conveyor orchestrator settings file. Settings
// are injected explicitly into engine construction; nothing in conveyor
// reads them from ambient global state.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the top-level conveyor settings document. All fields are
// optional; capabilities that need a missing section fail at stage time
// with a descriptive error.
type Settings struct {
	Sonar    SonarSettings    `yaml:"sonar,omitempty"`
	Registry RegistrySettings `yaml:"registry,omitempty"`
	Kube     KubeSettings     `yaml:"kube,omitempty"`
	SMTP     SMTPSettings     `yaml:"smtp,omitempty"`
	Store    StoreSettings    `yaml:"store,omitempty"`

	// Builder selects the container builder: docker, podman, or buildah.
	// Empty means autodetect.
	Builder string `yaml:"builder,omitempty"`

	// Env is the run environment used for ${VAR} expansion in stage
	// parameters. Process environment variables are never consulted.
	Env map[string]string `yaml:"env,omitempty"`
}

// SonarSettings configures the static-analysis server and gate queries.
type SonarSettings struct {
	HostURL      string `yaml:"host_url"`
	Token        string `yaml:"token,omitempty"`
	PollInterval string `yaml:"poll_interval,omitempty"`
}

// PollIntervalDuration returns the parsed poll interval, or zero when unset.
func (s SonarSettings) PollIntervalDuration() (time.Duration, error) {
	if s.PollInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("parsing sonar poll_interval %q: %w", s.PollInterval, err)
	}
	return d, nil
}

// RegistrySettings configures container registry authentication.
type RegistrySettings struct {
	URL      string `yaml:"url,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// KubeSettings configures cluster deployment.
type KubeSettings struct {
	Kubeconfig string `yaml:"kubeconfig,omitempty"`
	Context    string `yaml:"context,omitempty"`
}

// SMTPSettings configures the mail dispatcher.
type SMTPSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port,omitempty"`
	From     string `yaml:"from"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// Configured reports whether mail delivery is set up.
func (s SMTPSettings) Configured() bool { return s.Host != "" && s.From != "" }

// StoreSettings configures remote artifact persistence.
type StoreSettings struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	UseSSL    bool   `yaml:"use_ssl,omitempty"`
}

// Configured reports whether a remote store is set up.
func (s StoreSettings) Configured() bool { return s.Endpoint != "" && s.Bucket != "" }

// Load reads and parses a settings file. A missing file is not an error:
// it returns zero Settings, and capabilities requiring configuration fail
// individually with descriptive errors.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw settings YAML and validates field formats.
func Parse(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}

	if _, err := s.Sonar.PollIntervalDuration(); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	if s.SMTP.Host != "" && s.SMTP.From == "" {
		return nil, fmt.Errorf("settings: smtp.from is required when smtp.host is set")
	}
	if s.SMTP.Port < 0 || s.SMTP.Port > 65535 {
		return nil, fmt.Errorf("settings: smtp.port %d out of range", s.SMTP.Port)
	}
	switch s.Builder {
	case "", "docker", "podman", "buildah":
	default:
		return nil, fmt.Errorf("settings: unknown builder %q", s.Builder)
	}
	if s.Store.Endpoint != "" && s.Store.Bucket == "" {
		return nil, fmt.Errorf("settings: store.bucket is required when store.endpoint is set")
	}

	return &s, nil
}
