package cmd

import (
	"fmt"
	"strings"

	"github.com/conveyor-ci/conveyor/types"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the resolved stage order and artifact dataflow",
	RunE:  runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	spec, result, err := loadPipeline()
	if err != nil {
		return err
	}
	if !result.IsValid() {
		for _, e := range result.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "ERROR: %s\n", e)
		}
		return fmt.Errorf("pipeline invalid: %d error(s)", len(result.Errors))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "pipeline: %s (%d stages)\n\n", spec.Name, len(spec.Stages))

	for i, st := range spec.Stages {
		fmt.Fprintf(out, "%2d. %-22s %s%s\n", i+1, st.Name, st.Kind, planNotes(st))
		if len(st.Requires) > 0 {
			fmt.Fprintf(out, "      requires: %s\n", strings.Join(st.Requires, ", "))
		}
		if len(st.Produces) > 0 {
			fmt.Fprintf(out, "      produces: %s\n", strings.Join(st.Produces, ", "))
		}
	}
	return nil
}

func planNotes(st types.StageSpec) string {
	var notes []string
	if st.ContinueOnFailure {
		notes = append(notes, "advisory")
	}
	if st.Kind == types.KindGate {
		// A missing gate block defaults to report-only, same as
		// abort_on_fail: false.
		if st.Gate != nil && st.Gate.AbortOnFail {
			notes = append(notes, "aborts on fail")
		} else {
			notes = append(notes, "report-only")
		}
	}
	if len(notes) == 0 {
		return ""
	}
	return "  [" + strings.Join(notes, ", ") + "]"
}
