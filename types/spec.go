// Package types holds the pipeline definition types for conveyor.yaml.
package types

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// StageKind identifies the capability a stage invokes. The set is closed:
// stages dispatch through an explicit capability table, never reflection.
type StageKind string

const (
	KindCheckout       StageKind = "checkout"
	KindStaticAnalysis StageKind = "static-analysis"
	KindGate           StageKind = "gate"
	KindDependencyScan StageKind = "dependency-scan"
	KindImageScan      StageKind = "image-scan"
	KindBuild          StageKind = "build"
	KindDeploy         StageKind = "deploy"
	KindNotify         StageKind = "notify"
)

var knownKinds = map[StageKind]bool{
	KindCheckout:       true,
	KindStaticAnalysis: true,
	KindGate:           true,
	KindDependencyScan: true,
	KindImageScan:      true,
	KindBuild:          true,
	KindDeploy:         true,
	KindNotify:         true,
}

// PipelineSpec is the top-level conveyor.yaml pipeline definition.
type PipelineSpec struct {
	Name   string      `yaml:"name"`
	Stages []StageSpec `yaml:"stages"`
}

// StageSpec describes one pipeline stage. It is immutable once parsed.
type StageSpec struct {
	Name              string            `yaml:"name"`
	Kind              StageKind         `yaml:"kind"`
	ContinueOnFailure bool              `yaml:"continue_on_failure,omitempty"`
	Produces          []string          `yaml:"produces,omitempty"`
	Requires          []string          `yaml:"requires,omitempty"`
	With              map[string]string `yaml:"with,omitempty"`
	CaptureOutput     string            `yaml:"capture_output,omitempty"`
	Gate              *GateSpec         `yaml:"gate,omitempty"`
}

// GateSpec configures a quality-gate stage.
type GateSpec struct {
	AbortOnFail bool   `yaml:"abort_on_fail"`
	Timeout     string `yaml:"timeout,omitempty"`
	OnTimeout   string `yaml:"on_timeout,omitempty"` // pass or fail (default fail)
}

// DefaultGateTimeout bounds the wait for an external quality-gate verdict
// when the stage does not set one.
const DefaultGateTimeout = 5 * time.Minute

// TimeoutDuration returns the parsed gate timeout, or DefaultGateTimeout
// when unset.
func (g *GateSpec) TimeoutDuration() (time.Duration, error) {
	if g == nil || g.Timeout == "" {
		return DefaultGateTimeout, nil
	}
	d, err := time.ParseDuration(g.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing gate timeout %q: %w", g.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("gate timeout must be positive, got %q", g.Timeout)
	}
	return d, nil
}

// ParsePipelineSpec parses raw YAML bytes into a PipelineSpec and validates
// required fields.
func ParsePipelineSpec(data []byte) (*PipelineSpec, error) {
	var spec PipelineSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing pipeline spec: %w", err)
	}

	if spec.Name == "" {
		return nil, fmt.Errorf("pipeline spec: name is required")
	}
	if len(spec.Stages) == 0 {
		return nil, fmt.Errorf("pipeline spec: at least one stage is required")
	}

	seen := make(map[string]bool, len(spec.Stages))
	for i := range spec.Stages {
		s := &spec.Stages[i]
		if s.Name == "" {
			return nil, fmt.Errorf("pipeline spec: stages[%d]: name is required", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("pipeline spec: duplicate stage name %q", s.Name)
		}
		seen[s.Name] = true

		if !knownKinds[s.Kind] {
			return nil, fmt.Errorf("pipeline spec: stage %q: unknown kind %q", s.Name, s.Kind)
		}
		if s.Gate != nil && s.Kind != KindGate {
			return nil, fmt.Errorf("pipeline spec: stage %q: gate block is only valid on gate stages", s.Name)
		}
		if s.Kind == KindGate {
			if _, err := s.Gate.TimeoutDuration(); err != nil {
				return nil, fmt.Errorf("pipeline spec: stage %q: %w", s.Name, err)
			}
			if ot := gateOnTimeout(s.Gate); ot != "pass" && ot != "fail" {
				return nil, fmt.Errorf("pipeline spec: stage %q: on_timeout must be pass or fail, got %q", s.Name, ot)
			}
		}
	}

	if err := spec.ValidateDataflow(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func gateOnTimeout(g *GateSpec) string {
	if g == nil || g.OnTimeout == "" {
		return "fail"
	}
	return g.OnTimeout
}

// TimeoutPasses reports whether a gate treats an evaluation timeout as a
// passing verdict.
func (g *GateSpec) TimeoutPasses() bool {
	return gateOnTimeout(g) == "pass"
}

// ValidateDataflow checks that every artifact a stage requires is produced
// by an earlier stage. The same check is repeated at runtime before each
// stage executes, since a producing stage may have failed.
func (p *PipelineSpec) ValidateDataflow() error {
	produced := make(map[string]string) // artifact -> producing stage
	for i := range p.Stages {
		s := &p.Stages[i]
		for _, req := range s.Requires {
			if _, ok := produced[req]; !ok {
				return fmt.Errorf("pipeline spec: stage %q requires artifact %q, which no earlier stage produces", s.Name, req)
			}
		}
		for _, art := range s.Produces {
			if prev, ok := produced[art]; ok {
				return fmt.Errorf("pipeline spec: stage %q produces artifact %q already produced by %q", s.Name, art, prev)
			}
			produced[art] = s.Name
		}
	}
	return nil
}

// Stage returns the stage with the given name, or nil.
func (p *PipelineSpec) Stage(name string) *StageSpec {
	for i := range p.Stages {
		if p.Stages[i].Name == name {
			return &p.Stages[i]
		}
	}
	return nil
}
