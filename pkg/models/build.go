package models

import (
	"time"
)

// ExitStatus is the terminal session's exit code and the signal that ended
// it, if any. A nil *ExitStatus means the status is not known.
type ExitStatus struct {
	Code   int    `json:"code"`
	Signal string `json:"signal,omitempty"`
}

// Success reports whether the session exited with code 0.
func (s ExitStatus) Success() bool {
	return s.Code == 0
}

// BuildOutcome classifies how a build run ended.
type BuildOutcome string

const (
	BuildSuccess       BuildOutcome = "SUCCESS"
	BuildFailed        BuildOutcome = "FAILED"
	BuildIndeterminate BuildOutcome = "INDETERMINATE"
)

// OutcomeOf maps an exit status to a build outcome.
func OutcomeOf(status *ExitStatus) BuildOutcome {
	switch {
	case status == nil:
		return BuildIndeterminate
	case status.Success():
		return BuildSuccess
	default:
		return BuildFailed
	}
}

// BuildResult is the reported view of a finished build.
type BuildResult struct {
	Command    string        `json:"command"`
	TerminalID string        `json:"terminal_id"`
	Status     *ExitStatus   `json:"status"`
	Outcome    BuildOutcome  `json:"outcome"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Output     string        `json:"output,omitempty"`
}
