package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scope/pkg/logger"
	"scope/pkg/metrics"
	"scope/pkg/models"
)

// ShellConfig configures the process behind each session.
type ShellConfig struct {
	Shell  string    // default "sh"
	Args   []string  // arguments passed to Shell
	Cwd    string    // default working directory
	Output io.Writer // where shown sessions echo their output; default os.Stderr
}

// ShellManager backs every session with its own shell process that reads
// commands from stdin.
type ShellManager struct {
	cfg    ShellConfig
	logger *zap.Logger
	events Emitter

	mu       sync.Mutex
	sessions map[string]*ShellTerminal
}

// NewShellManager creates a ShellManager. A nil logger uses the global logger.
func NewShellManager(cfg ShellConfig, log *zap.Logger) *ShellManager {
	if cfg.Shell == "" {
		cfg.Shell = "sh"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	return &ShellManager{
		cfg:      cfg,
		logger:   logger.OrGlobal(log).Named("terminal"),
		sessions: make(map[string]*ShellTerminal),
	}
}

// OnDidCloseTerminal registers fn for the close events of all sessions.
func (m *ShellManager) OnDidCloseTerminal(fn CloseListener) Disposable {
	return m.events.Subscribe(fn)
}

// CreateTerminal starts a shell for a new session. The shell outlives ctx;
// it ends when it reads an exit instruction or is killed.
func (m *ShellManager) CreateTerminal(ctx context.Context, opts Options) (Terminal, error) {
	if opts.Location == "" {
		opts.Location = LocationPanel
	}
	cwd := opts.Cwd
	if cwd == "" {
		cwd = m.cfg.Cwd
	}

	cmd := exec.Command(m.cfg.Shell, m.cfg.Args...)
	cmd.Dir = cwd
	// Own process group so Kill reaches the build tool's children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open terminal input: %w", err)
	}

	t := &ShellTerminal{
		id:       uuid.NewString(),
		name:     opts.Name,
		location: opts.Location,
		cmd:      cmd,
		stdin:    stdin,
		panel:    newPanel(m.cfg.Output),
		done:     make(chan struct{}),
		logger:   m.logger,
	}
	cmd.Stdout = t.panel
	cmd.Stderr = t.panel

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start shell %q: %w", m.cfg.Shell, err)
	}
	t.startedAt = time.Now()

	m.mu.Lock()
	m.sessions[t.id] = t
	m.mu.Unlock()
	metrics.TerminalsOpen.Inc()

	m.logger.Debug("Terminal created",
		zap.String("terminal_id", t.id),
		zap.String("name", t.name),
		zap.String("location", string(t.location)),
		zap.Int("pid", cmd.Process.Pid),
	)

	go m.wait(t)
	return t, nil
}

// wait reaps the shell, records its status and announces the close.
func (m *ShellManager) wait(t *ShellTerminal) {
	err := t.cmd.Wait()
	status := exitStatusOf(t.cmd.ProcessState)

	t.mu.Lock()
	t.exitStatus = status
	t.mu.Unlock()
	close(t.done)

	m.mu.Lock()
	delete(m.sessions, t.id)
	m.mu.Unlock()
	metrics.TerminalsOpen.Dec()

	fields := []zap.Field{
		zap.String("terminal_id", t.id),
		zap.Duration("duration", time.Since(t.startedAt)),
	}
	if status != nil {
		fields = append(fields, zap.Int("exit_code", status.Code))
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fields = append(fields, zap.Error(err))
	}
	m.logger.Debug("Terminal closed", fields...)

	m.events.Fire(t)
}

// Close kills every live session and waits for their close events to be
// delivered, or for ctx to end.
func (m *ShellManager) Close(ctx context.Context) error {
	m.mu.Lock()
	live := make([]*ShellTerminal, 0, len(m.sessions))
	for _, t := range m.sessions {
		live = append(live, t)
	}
	m.mu.Unlock()

	for _, t := range live {
		if err := t.Kill(); err != nil {
			m.logger.Warn("Failed to kill terminal", zap.String("terminal_id", t.id), zap.Error(err))
		}
	}
	for _, t := range live {
		select {
		case <-t.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// exitStatusOf converts a reaped process state. A process killed by a
// signal reports 128+signal, as shells do.
func exitStatusOf(ps *os.ProcessState) *models.ExitStatus {
	if ps == nil {
		return nil
	}
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		return &models.ExitStatus{Code: ps.ExitCode()}
	}
	switch {
	case ws.Exited():
		return &models.ExitStatus{Code: ws.ExitStatus()}
	case ws.Signaled():
		return &models.ExitStatus{Code: 128 + int(ws.Signal()), Signal: ws.Signal().String()}
	default:
		return nil
	}
}

// ShellTerminal is a session backed by a shell process.
type ShellTerminal struct {
	id       string
	name     string
	location Location
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	panel    *panel
	logger   *zap.Logger

	startedAt time.Time
	done      chan struct{}

	mu         sync.Mutex
	exitStatus *models.ExitStatus
}

func (t *ShellTerminal) ID() string   { return t.id }
func (t *ShellTerminal) Name() string { return t.name }

// Show starts echoing the session's output, replaying what it printed so far.
func (t *ShellTerminal) Show() {
	if t.panel.show() {
		t.logger.Debug("Terminal shown", zap.String("terminal_id", t.id), zap.String("location", string(t.location)))
	}
}

// SendText writes text to the shell's stdin.
func (t *ShellTerminal) SendText(text string, addNewLine bool) error {
	if addNewLine {
		text += "\n"
	}
	if _, err := io.WriteString(t.stdin, text); err != nil {
		return fmt.Errorf("failed to write to terminal %s: %w", t.id, err)
	}
	return nil
}

func (t *ShellTerminal) ExitStatus() *models.ExitStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exitStatus == nil {
		return nil
	}
	s := *t.exitStatus
	return &s
}

// Transcript returns everything the session has printed.
func (t *ShellTerminal) Transcript() string {
	return t.panel.String()
}

// Done is closed once the shell has exited and its status is recorded.
func (t *ShellTerminal) Done() <-chan struct{} {
	return t.done
}

// Kill ends the session's process group.
func (t *ShellTerminal) Kill() error {
	select {
	case <-t.done:
		return nil
	default:
	}
	if err := syscall.Kill(-t.cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}
