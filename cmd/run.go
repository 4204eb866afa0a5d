package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/conveyor-ci/conveyor/artifact"
	"github.com/conveyor-ci/conveyor/capability"
	"github.com/conveyor-ci/conveyor/config"
	"github.com/conveyor-ci/conveyor/gate"
	"github.com/conveyor-ci/conveyor/internal/tui"
	"github.com/conveyor-ci/conveyor/notify"
	"github.com/conveyor-ci/conveyor/pipeline"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	runWorkspace    string
	runArtifactsDir string
	runWatch        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the pipeline",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runWorkspace, "workspace", "", "run workspace directory (default: a fresh temp dir)")
	runCmd.Flags().StringVar(&runArtifactsDir, "artifacts-dir", ".conveyor/artifacts", "local artifact store root")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "show live stage progress (requires a terminal)")
}

func runRun(cmd *cobra.Command, args []string) error {
	spec, result, err := loadPipeline()
	if err != nil {
		return err
	}
	if !result.IsValid() {
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", e)
		}
		return fmt.Errorf("pipeline invalid: %d error(s)", len(result.Errors))
	}

	settings, err := config.Load(settingsFile)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	workspace := runWorkspace
	if workspace == "" {
		workspace, err = os.MkdirTemp("", "conveyor-*")
		if err != nil {
			return fmt.Errorf("creating workspace: %w", err)
		}
	} else {
		if !filepath.IsAbs(workspace) {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting working directory: %w", err)
			}
			workspace = filepath.Join(wd, workspace)
		}
		if err := os.MkdirAll(workspace, 0o755); err != nil {
			return fmt.Errorf("creating workspace: %w", err)
		}
	}

	caps := capability.Table(*settings, logger)

	var gateEval pipeline.GateEvaluator
	if settings.Sonar.HostURL != "" {
		interval, err := settings.Sonar.PollIntervalDuration()
		if err != nil {
			return err
		}
		ev, err := gate.New(gate.Config{
			HostURL:      settings.Sonar.HostURL,
			Token:        settings.Sonar.Token,
			PollInterval: interval,
		}, logger)
		if err != nil {
			return err
		}
		gateEval = ev
	}

	var dispatcher pipeline.Dispatcher
	if settings.SMTP.Configured() {
		dispatcher, err = notify.NewMailDispatcher(settings.SMTP, logger)
		if err != nil {
			return err
		}
	} else {
		dispatcher = &notify.ConsoleDispatcher{Out: os.Stderr}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rc := pipeline.NewRunContext(spec.Name, workspace, settings.Env)
	logger.Info("starting run", "pipeline", spec.Name, "run", rc.RunID, "workspace", workspace)

	var summary pipeline.RunSummary
	var runErr error

	if runWatch && term.IsTerminal(int(os.Stdout.Fd())) {
		events := make(chan pipeline.Event, 64)
		engine := pipeline.NewEngine(*spec, caps, gateEval, dispatcher, pipeline.EngineOptions{
			Logger: logger,
			Events: events,
		})

		done := make(chan struct{})
		go func() {
			defer close(done)
			defer close(events)
			summary, runErr = engine.Run(ctx, rc)
		}()

		view := tui.NewRunView(*spec, events, tui.DetectTheme(themeOverride))
		if _, err := tea.NewProgram(view).Run(); err != nil {
			return fmt.Errorf("progress display: %w", err)
		}
		<-done
	} else {
		engine := pipeline.NewEngine(*spec, caps, gateEval, dispatcher, pipeline.EngineOptions{Logger: logger})
		summary, runErr = engine.Run(ctx, rc)
	}

	if err := persistArtifacts(ctx, settings, rc, logger); err != nil {
		logger.Error("persisting artifacts", "error", err)
	}

	if runErr != nil {
		return fmt.Errorf("run %s: %w", rc.RunID, runErr)
	}
	if summary.Status != pipeline.StatusSucceeded {
		return fmt.Errorf("run %s finished %s: %s", rc.RunID, summary.Status, summary.Reason)
	}
	logger.Info("run succeeded", "run", rc.RunID, "stages", len(summary.Stages))
	return nil
}

// persistArtifacts copies the run's file artifacts into the configured
// store: the remote object store when one is set up, a local directory
// store otherwise.
func persistArtifacts(ctx context.Context, settings *config.Settings, rc *pipeline.RunContext, logger *slog.Logger) error {
	var store artifact.Store
	if settings.Store.Configured() {
		s, err := artifact.NewMinioStore(ctx, settings.Store)
		if err != nil {
			return err
		}
		store = s
	} else {
		s, err := artifact.NewDirStore(runArtifactsDir)
		if err != nil {
			return err
		}
		store = s
	}

	locations, err := artifact.PersistAll(ctx, store, rc.RunID, rc.Artifacts())
	if err != nil {
		return err
	}
	for name, loc := range locations {
		logger.Debug("artifact stored", "name", name, "location", loc)
	}
	return nil
}
