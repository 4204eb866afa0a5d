// Package tui renders a live view of a pipeline run.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/conveyor-ci/conveyor/pipeline"
	"github.com/conveyor-ci/conveyor/types"
)

type stageRow struct {
	name    string
	kind    types.StageKind
	status  string // pending, running, succeeded, failed, advisory, skipped, gate-pass, gate-fail
	detail  string
	elapsed string
}

// RunView is the bubbletea model for a live run.
type RunView struct {
	theme  Theme
	spin   spinner.Model
	events <-chan pipeline.Event
	rows   []stageRow

	pipeline  string
	runStatus pipeline.Status
	done      bool
}

// NewRunView builds the model over the engine's event channel. The stage
// list comes from the pipeline spec so pending stages render immediately.
func NewRunView(spec types.PipelineSpec, events <-chan pipeline.Event, theme Theme) *RunView {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.Accent)

	rows := make([]stageRow, 0, len(spec.Stages))
	for _, st := range spec.Stages {
		if st.Kind == types.KindNotify {
			continue
		}
		rows = append(rows, stageRow{name: st.Name, kind: st.Kind, status: "pending"})
	}

	return &RunView{
		theme:    theme,
		spin:     s,
		events:   events,
		rows:     rows,
		pipeline: spec.Name,
	}
}

func (m *RunView) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, waitForEvent(m.events))
}

func (m *RunView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(pipeline.Event(msg))
		if m.done {
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case doneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// apply folds one engine event into the view state.
func (m *RunView) apply(ev pipeline.Event) {
	switch ev.Kind {
	case pipeline.EventRunStarted:
		m.runStatus = pipeline.StatusRunning

	case pipeline.EventStageStarted:
		if i := m.rowIndex(ev.Stage); i >= 0 {
			m.rows[i].status = "running"
		}

	case pipeline.EventStageFinished:
		if i := m.rowIndex(ev.Stage); i >= 0 && ev.Result != nil {
			m.rows[i].status = string(ev.Result.Status)
			m.rows[i].elapsed = ev.Result.Duration.Round(shownPrecision).String()
			m.rows[i].detail = ev.Result.Error
		}

	case pipeline.EventStageSkipped:
		if i := m.rowIndex(ev.Stage); i >= 0 {
			m.rows[i].status = "skipped"
			m.rows[i].detail = ev.Err
		}

	case pipeline.EventGateEvaluated:
		if i := m.rowIndex(ev.Stage); i >= 0 && ev.Verdict != nil {
			if ev.Verdict.Pass {
				m.rows[i].status = "gate-pass"
			} else {
				m.rows[i].status = "gate-fail"
			}
			m.rows[i].detail = ev.Verdict.Reason
		}

	case pipeline.EventRunFinished:
		m.runStatus = ev.Status

	case pipeline.EventNotified:
		m.runStatus = ev.Status
		m.done = true
	}
}

func (m *RunView) rowIndex(stage string) int {
	for i := range m.rows {
		if m.rows[i].name == stage {
			return i
		}
	}
	return -1
}

func (m *RunView) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Primary)
	dim := lipgloss.NewStyle().Foreground(m.theme.Dim)
	success := lipgloss.NewStyle().Foreground(m.theme.Success)
	warn := lipgloss.NewStyle().Foreground(m.theme.Warning)
	failed := lipgloss.NewStyle().Foreground(m.theme.Error)

	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s %s\n\n", title.Render(m.pipeline), dim.Render(string(m.runStatus)))

	for _, row := range m.rows {
		var glyph string
		switch row.status {
		case "pending":
			glyph = dim.Render("·")
		case "running":
			glyph = m.spin.View()
		case "succeeded", "gate-pass":
			glyph = success.Render("✓")
		case "advisory":
			glyph = warn.Render("!")
		case "gate-fail":
			glyph = failed.Render("⊘")
		case "skipped":
			glyph = dim.Render("-")
		default:
			glyph = failed.Render("✗")
		}

		fmt.Fprintf(&b, "  %s %-22s %s\n", glyph, row.name, dim.Render(row.elapsed))
		if row.detail != "" {
			fmt.Fprintf(&b, "     %s\n", dim.Render(row.detail))
		}
	}

	b.WriteString("\n  " + dim.Render("q to quit") + "\n")
	return b.String()
}

const shownPrecision = 10 * time.Millisecond
