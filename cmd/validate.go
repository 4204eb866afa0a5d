package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/conveyor-ci/conveyor/types"
	"github.com/conveyor-ci/conveyor/validate"
	"github.com/spf13/cobra"
)

var strict bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the pipeline definition",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")
}

// loadPipeline resolves, schema-checks, and parses the pipeline file. It is
// shared by validate, plan, and run.
func loadPipeline() (*types.PipelineSpec, *validate.ValidationResult, error) {
	path := pipelineFile
	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, nil, fmt.Errorf("getting working directory: %w", err)
		}
		path = filepath.Join(wd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading pipeline file: %w", err)
	}

	result := &validate.ValidationResult{}
	schemaErrs, err := validate.ValidatePipelineYAML(data)
	if err != nil {
		return nil, nil, fmt.Errorf("validating pipeline file: %w", err)
	}
	result.Errors = append(result.Errors, schemaErrs...)
	if len(result.Errors) > 0 {
		return nil, result, nil
	}

	spec, err := types.ParsePipelineSpec(data)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return nil, result, nil
	}
	if err := spec.ValidateDataflow(); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return nil, result, nil
	}

	for _, st := range spec.Stages {
		if st.Kind == types.KindGate && st.Gate == nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("stage %q: no gate block, defaults apply (report-only, timeout 5m, fail on timeout)", st.Name))
		}
	}

	return spec, result, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, result, err := loadPipeline()
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "WARNING: %s\n", w)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", e)
	}

	if strict && len(result.Warnings) > 0 {
		return fmt.Errorf("validation failed: %d warning(s) treated as errors in strict mode", len(result.Warnings))
	}
	if !result.IsValid() {
		return fmt.Errorf("validation failed: %d error(s)", len(result.Errors))
	}

	fmt.Println("Validation passed.")
	return nil
}
