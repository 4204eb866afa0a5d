// Package cmd implements the conveyor CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	pipelineFile  string
	settingsFile  string
	verbose       bool
	themeOverride string

	appVersion = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "conveyor",
	Short: "Conveyor — run CI/CD pipelines from a declarative definition",
	Long:  "Conveyor validates, plans, and executes sequential CI/CD pipelines defined in YAML.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&pipelineFile, "pipeline", "p", "conveyor.yaml", "pipeline definition file")
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "conveyor-settings.yaml", "orchestrator settings file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&themeOverride, "theme", "", "TUI color theme: dark or light")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
}

// SetVersionInfo sets the version and commit for display.
func SetVersionInfo(version, commit string) {
	appVersion = version
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("conveyor %s (commit: %s)\n", version, commit))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
