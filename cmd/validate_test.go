package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

const testPipelineYAML = `
name: netflix-clone
stages:
  - name: checkout
    kind: checkout
    with:
      repo: https://github.com/example/netflix-clone.git
    produces: [source]
  - name: sonar
    kind: static-analysis
    requires: [source]
  - name: quality-gate
    kind: gate
    with:
      project_key: netflix-clone
    gate:
      abort_on_fail: true
      timeout: 2m
      on_timeout: fail
`

func writeTestPipeline(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "conveyor.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing conveyor.yaml: %v", err)
	}
	return path
}

func overridePipelineFile(t *testing.T, path string) {
	t.Helper()
	old := pipelineFile
	pipelineFile = path
	t.Cleanup(func() { pipelineFile = old })
}

func TestRunValidate_ValidPipeline(t *testing.T) {
	dir := t.TempDir()
	overridePipelineFile(t, writeTestPipeline(t, dir, testPipelineYAML))

	if err := runValidate(nil, nil); err != nil {
		t.Fatalf("runValidate() error: %v", err)
	}
}

func TestRunValidate_UnknownKind(t *testing.T) {
	dir := t.TempDir()
	overridePipelineFile(t, writeTestPipeline(t, dir, `
name: broken
stages:
  - name: compile
    kind: make-all
`))

	if err := runValidate(nil, nil); err == nil {
		t.Fatal("expected error for unknown stage kind")
	}
}

func TestRunValidate_DataflowError(t *testing.T) {
	dir := t.TempDir()
	overridePipelineFile(t, writeTestPipeline(t, dir, `
name: broken
stages:
  - name: sonar
    kind: static-analysis
    requires: [source]
`))

	if err := runValidate(nil, nil); err == nil {
		t.Fatal("expected error for unsatisfied requires")
	}
}

func TestRunValidate_StrictTreatsWarningsAsErrors(t *testing.T) {
	dir := t.TempDir()
	overridePipelineFile(t, writeTestPipeline(t, dir, `
name: warned
stages:
  - name: quality-gate
    kind: gate
`))

	oldStrict := strict
	strict = true
	t.Cleanup(func() { strict = oldStrict })

	if err := runValidate(nil, nil); err == nil {
		t.Fatal("expected error in strict mode for gate stage without gate block")
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	overridePipelineFile(t, filepath.Join(t.TempDir(), "absent.yaml"))

	if err := runValidate(nil, nil); err == nil {
		t.Fatal("expected error for missing pipeline file")
	}
}
