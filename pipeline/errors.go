package pipeline

import "fmt"

// CheckoutError reports a failed version-control checkout.
type CheckoutError struct {
	Repo string
	Err  error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout of %s failed: %v", e.Repo, e.Err)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

// CommandError reports a non-zero exit from a stage command.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command %s exited with code %d: %s", e.Command, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("command %s exited with code %d", e.Command, e.ExitCode)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ArtifactMissingError reports a declared artifact that is absent: either a
// required input before a stage executes, or a declared output after it.
type ArtifactMissingError struct {
	Stage    string
	Artifact string
	Input    bool
}

func (e *ArtifactMissingError) Error() string {
	if e.Input {
		return fmt.Sprintf("stage %s: required artifact %q is missing", e.Stage, e.Artifact)
	}
	return fmt.Sprintf("stage %s: declared artifact %q was not produced", e.Stage, e.Artifact)
}

// GateFailure reports a quality-gate verdict of false under an abort policy.
type GateFailure struct {
	Stage  string
	Reason string
}

func (e *GateFailure) Error() string {
	return fmt.Sprintf("gate %s failed: %s", e.Stage, e.Reason)
}

// BuildError reports a failed container image build.
type BuildError struct {
	Image string
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building image %s: %v", e.Image, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// PushError reports a failed container image push.
type PushError struct {
	Image string
	Err   error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("pushing image %s: %v", e.Image, e.Err)
}

func (e *PushError) Unwrap() error { return e.Err }

// DeployError reports a failed manifest apply.
type DeployError struct {
	Manifest string
	Err      error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("applying manifest %s: %v", e.Manifest, e.Err)
}

func (e *DeployError) Unwrap() error { return e.Err }

// NotificationDeliveryError reports a failed notification delivery. It is
// the one non-fatal error in the taxonomy: the engine logs it and the run
// keeps its terminal status.
type NotificationDeliveryError struct {
	Recipients []string
	Err        error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("delivering notification to %v: %v", e.Recipients, e.Err)
}

func (e *NotificationDeliveryError) Unwrap() error { return e.Err }
