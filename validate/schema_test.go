package validate

import (
	"strings"
	"testing"
)

func TestValidatePipelineYAML_Valid(t *testing.T) {
	doc := `
name: app
stages:
  - name: checkout
    kind: checkout
    produces: [source]
  - name: gate
    kind: gate
    gate:
      abort_on_fail: true
      timeout: 5m
      on_timeout: fail
`
	errs, err := ValidatePipelineYAML([]byte(doc))
	if err != nil {
		t.Fatalf("ValidatePipelineYAML() error: %v", err)
	}
	if len(errs) != 0 {
		t.Errorf("validation errors: %v", errs)
	}
}

func TestValidatePipelineYAML_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "missing stages",
			doc:  "name: app\n",
		},
		{
			name: "unknown kind",
			doc:  "name: app\nstages:\n  - name: a\n    kind: warp\n",
		},
		{
			name: "unknown top-level field",
			doc:  "name: app\ntriggers: []\nstages:\n  - name: a\n    kind: checkout\n",
		},
		{
			name: "bad on_timeout enum",
			doc:  "name: app\nstages:\n  - name: g\n    kind: gate\n    gate:\n      on_timeout: maybe\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, err := ValidatePipelineYAML([]byte(tt.doc))
			if err != nil {
				t.Fatalf("ValidatePipelineYAML() error: %v", err)
			}
			if len(errs) == 0 {
				t.Error("expected validation errors, got none")
			}
		})
	}
}

func TestValidatePipelineYAML_NotYAML(t *testing.T) {
	_, err := ValidatePipelineYAML([]byte("\tname: {"))
	if err == nil || !strings.Contains(err.Error(), "decoding pipeline yaml") {
		t.Errorf("error = %v, want decoding failure", err)
	}
}
