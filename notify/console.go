package notify

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/conveyor-ci/conveyor/pipeline"
)

var (
	consoleTitle   = lipgloss.NewStyle().Bold(true)
	consoleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	consoleFailure = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	consoleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
	consoleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// ConsoleDispatcher renders the run summary to a terminal writer. It is the
// default dispatcher for local runs without SMTP configured.
type ConsoleDispatcher struct {
	Out io.Writer
}

func (d *ConsoleDispatcher) Dispatch(ctx context.Context, n pipeline.Notification) error {
	statusStyle := consoleSuccess
	switch n.Status {
	case pipeline.StatusFailed:
		statusStyle = consoleFailure
	case pipeline.StatusAborted:
		statusStyle = consoleWarn
	}

	fmt.Fprintf(d.Out, "\n%s %s\n",
		consoleTitle.Render(fmt.Sprintf("%s #%s", n.Pipeline, shortID(n.RunID))),
		statusStyle.Render(strings.ToUpper(string(n.Status))))
	if n.Reason != "" {
		fmt.Fprintf(d.Out, "%s\n", consoleDim.Render("reason: "+n.Reason))
	}

	for _, s := range n.Summary.Stages {
		glyph := consoleSuccess.Render("✓")
		switch s.Status {
		case pipeline.StageFailed:
			glyph = consoleFailure.Render("✗")
		case pipeline.StageAdvisory:
			glyph = consoleWarn.Render("!")
		case pipeline.StageSkipped:
			glyph = consoleDim.Render("-")
		}
		fmt.Fprintf(d.Out, "  %s %-20s %s\n", glyph, s.Stage,
			consoleDim.Render(s.Duration.Round(shownPrecision).String()))
	}

	if len(n.Summary.Artifacts) > 0 {
		fmt.Fprintf(d.Out, "%s\n", consoleDim.Render(
			fmt.Sprintf("artifacts: %s", strings.Join(n.Summary.Artifacts, ", "))))
	}
	return nil
}
