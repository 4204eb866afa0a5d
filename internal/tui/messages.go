package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/conveyor-ci/conveyor/pipeline"
)

// eventMsg wraps an engine lifecycle event for the bubbletea loop.
type eventMsg pipeline.Event

// doneMsg signals that the event channel closed.
type doneMsg struct{}

// waitForEvent returns a command that delivers the next engine event.
func waitForEvent(events <-chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}
