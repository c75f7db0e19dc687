// Package build runs an external build command in a terminal session and
// reports how it exited.
package build

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"scope/pkg/logger"
	"scope/pkg/metrics"
	"scope/pkg/models"
	"scope/pkg/notify"
	"scope/pkg/terminal"
)

const (
	DefaultTerminalName    = "burner"
	DefaultAdvisoryTimeout = 10 * time.Second

	// AdvisoryMessage is shown when a build exits non-zero.
	AdvisoryMessage = "Error with compilation; try running `forge build` in your terminal and then pressing the 'Compile' button again in the extension."

	// exitInstruction follows the command on the same line, so the session
	// ends with the command's status whether it passed or failed.
	exitInstruction = "; exit"
)

// ErrIndeterminateExit is returned when the terminal closed without an exit
// status.
var ErrIndeterminateExit = errors.New("terminal exited with undefined status")

// Config holds build runner settings.
type Config struct {
	TerminalName    string
	Location        terminal.Location
	Cwd             string
	AdvisoryTimeout time.Duration
}

// DefaultConfig returns the settings the editor extension uses.
func DefaultConfig() Config {
	return Config{
		TerminalName:    DefaultTerminalName,
		Location:        terminal.LocationPanel,
		AdvisoryTimeout: DefaultAdvisoryTimeout,
	}
}

// Runner starts builds. Runs are independent: concurrent calls get
// separate terminals and are not serialized.
type Runner struct {
	terminals terminal.Manager
	notifier  notify.Presenter
	cfg       Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewRunner creates a Runner. A nil logger uses the global logger.
func NewRunner(terminals terminal.Manager, notifier notify.Presenter, cfg Config, log *zap.Logger) *Runner {
	if cfg.TerminalName == "" {
		cfg.TerminalName = DefaultTerminalName
	}
	if cfg.Location == "" {
		cfg.Location = terminal.LocationPanel
	}
	if cfg.AdvisoryTimeout <= 0 {
		cfg.AdvisoryTimeout = DefaultAdvisoryTimeout
	}
	return &Runner{
		terminals: terminals,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.OrGlobal(log).Named("build"),
		tracer:    otel.Tracer("scope"),
	}
}

// Run starts command and waits for its terminal to close. A non-zero exit
// is not an error: the status is returned and an advisory is shown in the
// background. If ctx ends first the run is abandoned and ctx.Err() is
// returned; the terminal keeps running.
func (r *Runner) Run(ctx context.Context, command string) (*models.ExitStatus, error) {
	h, err := r.Start(ctx, command)
	if err != nil {
		return nil, err
	}
	status, err := h.Wait(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		h.Abandon(ctxErr)
	}
	return status, err
}

// Start opens a terminal, arms the close listener and submits the command
// followed by the exit instruction. The command is sent verbatim; screening
// it is up to the caller.
func (r *Runner) Start(ctx context.Context, command string) (*Handle, error) {
	spanCtx, span := r.tracer.Start(ctx, "build.run", trace.WithAttributes(
		attribute.String("build.command", command),
	))

	term, err := r.terminals.CreateTerminal(spanCtx, terminal.Options{
		Name:     r.cfg.TerminalName,
		Location: r.cfg.Location,
		Cwd:      r.cfg.Cwd,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "terminal creation failed")
		span.End()
		return nil, err
	}
	term.Show()
	span.SetAttributes(attribute.String("build.terminal_id", term.ID()))

	h := &Handle{
		Terminal:  term,
		Command:   command,
		StartedAt: time.Now(),
		closed:    make(chan terminal.Terminal, 1),
		abandoned: make(chan error, 1),
		done:      make(chan struct{}),
		advised:   make(chan struct{}),
		span:      span,
	}

	// Armed before any text is sent: the shell may exit as soon as it reads
	// the exit instruction.
	id := term.ID()
	h.sub = r.terminals.OnDidCloseTerminal(func(t terminal.Terminal) {
		if t.ID() != id {
			return
		}
		select {
		case h.closed <- t:
		default:
		}
	})

	metrics.BuildsRunning.Inc()
	go r.watch(h)

	r.logger.Info("Build started", zap.String("terminal_id", id), zap.String("command", command))

	if err := term.SendText(command, false); err != nil {
		h.Abandon(err)
		return nil, err
	}
	if err := term.SendText(exitInstruction, true); err != nil {
		h.Abandon(err)
		return nil, err
	}
	return h, nil
}

// watch settles h on its terminal's close or on abandonment, whichever
// comes first. The listener is removed before anything else happens.
func (r *Runner) watch(h *Handle) {
	defer metrics.BuildsRunning.Dec()
	defer h.span.End()

	var closedTerm terminal.Terminal
	select {
	case closedTerm = <-h.closed:
	case err := <-h.abandoned:
		h.sub.Dispose()
		close(h.advised)
		h.span.RecordError(err)
		h.span.SetStatus(codes.Error, "abandoned")
		r.logger.Warn("Stopped waiting for build", zap.String("terminal_id", h.Terminal.ID()), zap.Error(err))
		h.settle(nil, err)
		return
	}
	h.sub.Dispose()

	status := closedTerm.ExitStatus()
	duration := time.Since(h.StartedAt)
	outcome := models.OutcomeOf(status)
	metrics.RecordBuild(string(outcome), duration.Seconds())
	h.span.SetAttributes(attribute.String("build.outcome", string(outcome)))

	fields := []zap.Field{
		zap.String("terminal_id", h.Terminal.ID()),
		zap.String("outcome", string(outcome)),
		zap.Duration("duration", duration),
	}

	if outcome != models.BuildFailed {
		close(h.advised)
	}

	switch outcome {
	case models.BuildIndeterminate:
		h.span.RecordError(ErrIndeterminateExit)
		h.span.SetStatus(codes.Error, ErrIndeterminateExit.Error())
		r.logger.Error("Build terminal closed without exit status", fields...)
		h.settle(nil, ErrIndeterminateExit)
	case models.BuildFailed:
		h.span.SetAttributes(attribute.Int("build.exit_code", status.Code))
		r.logger.Warn("Build failed", append(fields, zap.Int("exit_code", status.Code))...)
		go func() {
			defer close(h.advised)
			r.advise()
		}()
		h.settle(status, nil)
	default:
		h.span.SetAttributes(attribute.Int("build.exit_code", status.Code))
		r.logger.Info("Build finished", fields...)
		h.settle(status, nil)
	}
}

// advise shows the rebuild advisory. Nothing waits for it.
func (r *Runner) advise() {
	if r.notifier == nil {
		return
	}
	err := r.notifier.Show(context.Background(), notify.Notification{
		Message:     AdvisoryMessage,
		Cancellable: true,
		Timeout:     r.cfg.AdvisoryTimeout,
	})
	if err != nil {
		r.logger.Warn("Failed to show build advisory", zap.Error(err))
	}
}

// Handle is a started build. It settles exactly once.
type Handle struct {
	Terminal  terminal.Terminal
	Command   string
	StartedAt time.Time

	sub       terminal.Disposable
	closed    chan terminal.Terminal
	abandoned chan error
	span      trace.Span

	advised chan struct{}

	once     sync.Once
	done     chan struct{}
	status   *models.ExitStatus
	err      error
	finished time.Time
}

// Done is closed once the handle has settled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Advised is closed once the failure advisory has been dismissed, or right
// after settling when there is nothing to advise. Nothing needs to wait on
// it; a short-lived process can, so the advisory is seen before it exits.
func (h *Handle) Advised() <-chan struct{} {
	return h.advised
}

// Wait blocks until the handle settles or ctx ends. Ending ctx does not
// settle the handle.
func (h *Handle) Wait(ctx context.Context) (*models.ExitStatus, error) {
	select {
	case <-h.done:
		return h.status, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result reports the settled build. It must only be called after Done.
func (h *Handle) Result() *models.BuildResult {
	<-h.done
	res := &models.BuildResult{
		Command:    h.Command,
		TerminalID: h.Terminal.ID(),
		Status:     h.status,
		Outcome:    models.OutcomeOf(h.status),
		StartedAt:  h.StartedAt,
		Duration:   h.finished.Sub(h.StartedAt),
	}
	if t, ok := h.Terminal.(terminal.Transcripter); ok {
		res.Output = t.Transcript()
	}
	return res
}

// Abandon stops waiting for the terminal and settles h with err, unless the
// close event got there first. The terminal itself is left running.
func (h *Handle) Abandon(err error) {
	select {
	case h.abandoned <- err:
	default:
	}
}

func (h *Handle) settle(status *models.ExitStatus, err error) {
	h.once.Do(func() {
		h.status = status
		h.err = err
		h.finished = time.Now()
		close(h.done)
	})
}
