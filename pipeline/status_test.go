package pipeline

import "testing"

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusSucceeded, false},
		{StatusRunning, StatusSucceeded, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusAborted, true},
		{StatusRunning, StatusPending, false},
		{StatusSucceeded, StatusNotified, true},
		{StatusFailed, StatusNotified, true},
		{StatusAborted, StatusNotified, true},
		{StatusSucceeded, StatusRunning, false},
		{StatusFailed, StatusRunning, false},
		{StatusAborted, StatusFailed, false},
		{StatusNotified, StatusRunning, false},
		{StatusNotified, StatusNotified, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.ok {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusSucceeded, StatusFailed, StatusAborted, StatusNotified} {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusRunning} {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
}

func TestRunContext_TransitionRejectsTerminalExit(t *testing.T) {
	rc := NewRunContext("p", t.TempDir(), nil)
	if err := rc.transition(StatusRunning); err != nil {
		t.Fatalf("Pending -> Running: %v", err)
	}
	if err := rc.transition(StatusFailed); err != nil {
		t.Fatalf("Running -> Failed: %v", err)
	}
	if err := rc.transition(StatusRunning); err == nil {
		t.Error("Failed -> Running accepted, want rejection")
	}
	if rc.Status() != StatusFailed {
		t.Errorf("status = %s, want failed after rejected transition", rc.Status())
	}
}
