package pipeline

import "fmt"

// Status is the run-level lifecycle state. Transitions are monotonic:
// Pending -> Running -> {Succeeded, Failed, Aborted} -> Notified.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
	StatusNotified  Status = "notified"
)

// Terminal reports whether the status ends stage execution. Notified is the
// post-notification record; no transition leaves it.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusAborted, StatusNotified:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusRunning},
	StatusRunning:   {StatusSucceeded, StatusFailed, StatusAborted},
	StatusSucceeded: {StatusNotified},
	StatusFailed:    {StatusNotified},
	StatusAborted:   {StatusNotified},
	StatusNotified:  nil,
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// checkTransition returns an error describing an illegal transition.
func checkTransition(from, to Status) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	return nil
}
