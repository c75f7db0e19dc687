// Package terminal manages terminal sessions: shells that run text sent to
// them, expose their exit status and announce when they close.
package terminal

import (
	"context"

	"scope/pkg/models"
)

// Location is where the host displays a terminal.
type Location string

const (
	LocationPanel  Location = "panel"
	LocationEditor Location = "editor"
)

// Options configures a new terminal session.
type Options struct {
	Name     string
	Location Location
	Cwd      string // empty uses the manager's default
}

// Terminal is a single session.
type Terminal interface {
	// ID identifies the session; close events are matched on it.
	ID() string
	Name() string

	// Show reveals the session in its location.
	Show()

	// SendText writes text to the session's shell, followed by a newline
	// when addNewLine is set.
	SendText(text string, addNewLine bool) error

	// ExitStatus is nil while the session runs, and stays nil when the
	// host could not determine how it ended.
	ExitStatus() *models.ExitStatus
}

// Transcripter is implemented by terminals that keep their output.
type Transcripter interface {
	Transcript() string
}

// CloseListener receives every terminal close event.
type CloseListener func(Terminal)

// Disposable deregisters something. Dispose is safe to call more than once.
type Disposable interface {
	Dispose()
}

// Manager creates sessions and broadcasts their close events.
type Manager interface {
	CreateTerminal(ctx context.Context, opts Options) (Terminal, error)

	// OnDidCloseTerminal registers fn for the close events of all sessions.
	OnDidCloseTerminal(fn CloseListener) Disposable
}
