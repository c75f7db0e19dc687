package build_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	. "scope/pkg/build"
	"scope/pkg/models"
	"scope/pkg/notify"
	"scope/pkg/terminal"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeTerminal records what was sent; its exit status is set by the test.
type fakeTerminal struct {
	id   string
	name string

	mu     sync.Mutex
	shown  bool
	sent   []string
	status *models.ExitStatus
}

func (f *fakeTerminal) ID() string   { return f.id }
func (f *fakeTerminal) Name() string { return f.name }

func (f *fakeTerminal) Show() {
	f.mu.Lock()
	f.shown = true
	f.mu.Unlock()
}

func (f *fakeTerminal) SendText(text string, addNewLine bool) error {
	if addNewLine {
		text += "\n"
	}
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeTerminal) ExitStatus() *models.ExitStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTerminal) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// fakeManager hands out fakeTerminals and lets the test close them.
type fakeManager struct {
	events terminal.Emitter

	mu        sync.Mutex
	terminals []*fakeTerminal
	createErr error
}

func (m *fakeManager) CreateTerminal(ctx context.Context, opts terminal.Options) (terminal.Terminal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	t := &fakeTerminal{id: fmt.Sprintf("term-%d", len(m.terminals)+1), name: opts.Name}
	m.terminals = append(m.terminals, t)
	return t, nil
}

func (m *fakeManager) OnDidCloseTerminal(fn terminal.CloseListener) terminal.Disposable {
	return m.events.Subscribe(fn)
}

func (m *fakeManager) terminal(i int) *fakeTerminal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminals[i]
}

// close ends a terminal with status; nil status means undetermined.
func (m *fakeManager) close(t terminal.Terminal, status *models.ExitStatus) {
	if ft, ok := t.(*fakeTerminal); ok {
		ft.mu.Lock()
		ft.status = status
		ft.mu.Unlock()
	}
	m.events.Fire(t)
}

type otherTerminal struct{ id string }

func (o otherTerminal) ID() string                     { return o.id }
func (o otherTerminal) Name() string                   { return "other" }
func (o otherTerminal) Show()                          {}
func (o otherTerminal) SendText(string, bool) error    { return nil }
func (o otherTerminal) ExitStatus() *models.ExitStatus { return &models.ExitStatus{Code: 0} }

// recordingPresenter blocks each Show until release is closed.
type recordingPresenter struct {
	mu      sync.Mutex
	shown   []notify.Notification
	release chan struct{}
}

func newRecordingPresenter() *recordingPresenter {
	return &recordingPresenter{release: make(chan struct{})}
}

func (p *recordingPresenter) Show(ctx context.Context, n notify.Notification) error {
	p.mu.Lock()
	p.shown = append(p.shown, n)
	p.mu.Unlock()
	<-p.release
	return nil
}

func (p *recordingPresenter) Shown() []notify.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.Notification(nil), p.shown...)
}

func newTestRunner(m *fakeManager, p notify.Presenter) *Runner {
	return NewRunner(m, p, DefaultConfig(), zap.NewNop())
}

func waitSettled(t *testing.T, h *Handle) (*models.ExitStatus, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := h.Wait(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "build handle never settled")
	return status, err
}

func TestRunner_SendsCommandThenExit(t *testing.T) {
	m := &fakeManager{}
	p := newRecordingPresenter()
	defer close(p.release)
	r := newTestRunner(m, p)

	h, err := r.Start(context.Background(), "forge build")
	require.NoError(t, err)

	term := m.terminal(0)
	assert.Equal(t, "burner", term.Name())
	assert.True(t, term.shown)
	assert.Equal(t, []string{"forge build", "; exit\n"}, term.Sent())

	m.close(term, &models.ExitStatus{Code: 0})
	_, err = waitSettled(t, h)
	require.NoError(t, err)
}

func TestRunner_SuccessResolvesWithoutAdvisory(t *testing.T) {
	m := &fakeManager{}
	p := newRecordingPresenter()
	defer close(p.release)
	r := newTestRunner(m, p)

	h, err := r.Start(context.Background(), "forge build")
	require.NoError(t, err)
	m.close(m.terminal(0), &models.ExitStatus{Code: 0})

	status, err := waitSettled(t, h)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, 0, status.Code)

	res := h.Result()
	assert.Equal(t, models.BuildSuccess, res.Outcome)
	assert.Equal(t, "term-1", res.TerminalID)

	// Give a stray advisory goroutine the chance to show up.
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, p.Shown())
	assert.Equal(t, 0, m.events.Len())

	select {
	case <-h.Advised():
	case <-time.After(time.Second):
		t.Fatal("Advised not closed for a successful build")
	}
}

func TestRunner_FailureResolvesAndAdvisesInBackground(t *testing.T) {
	m := &fakeManager{}
	p := newRecordingPresenter()
	r := newTestRunner(m, p)

	h, err := r.Start(context.Background(), "forge build")
	require.NoError(t, err)
	m.close(m.terminal(0), &models.ExitStatus{Code: 1})

	// The presenter is still blocked, so the handle settling proves the
	// advisory does not delay the result.
	status, err := waitSettled(t, h)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, 1, status.Code)
	assert.Equal(t, models.BuildFailed, h.Result().Outcome)

	require.Eventually(t, func() bool { return len(p.Shown()) == 1 }, time.Second, 5*time.Millisecond)
	n := p.Shown()[0]
	assert.Equal(t, AdvisoryMessage, n.Message)
	assert.Equal(t, 10*time.Second, n.Timeout)
	assert.True(t, n.Cancellable)

	select {
	case <-h.Advised():
		t.Fatal("Advised closed while the advisory is still shown")
	default:
	}

	close(p.release)
	select {
	case <-h.Advised():
	case <-time.After(time.Second):
		t.Fatal("Advised not closed after the advisory was dismissed")
	}
	assert.Len(t, p.Shown(), 1)
}

func TestRunner_UndefinedStatusRejects(t *testing.T) {
	m := &fakeManager{}
	p := newRecordingPresenter()
	defer close(p.release)
	r := newTestRunner(m, p)

	h, err := r.Start(context.Background(), "forge build")
	require.NoError(t, err)
	assert.Equal(t, 1, m.events.Len())

	m.close(m.terminal(0), nil)

	status, err := waitSettled(t, h)
	assert.Nil(t, status)
	assert.ErrorIs(t, err, ErrIndeterminateExit)
	assert.Equal(t, models.BuildIndeterminate, h.Result().Outcome)

	// Deregistered; later closes reach nobody and change nothing.
	assert.Equal(t, 0, m.events.Len())
	m.close(otherTerminal{id: "unrelated"}, nil)
	m.close(m.terminal(0), &models.ExitStatus{Code: 0})
	status, err = h.Wait(context.Background())
	assert.Nil(t, status)
	assert.ErrorIs(t, err, ErrIndeterminateExit)
	assert.Empty(t, p.Shown())
}

func TestRunner_IgnoresOtherTerminals(t *testing.T) {
	m := &fakeManager{}
	p := newRecordingPresenter()
	defer close(p.release)
	r := newTestRunner(m, p)

	h, err := r.Start(context.Background(), "forge build")
	require.NoError(t, err)

	m.close(otherTerminal{id: "someone-elses"}, nil)
	select {
	case <-h.Done():
		t.Fatal("settled on an unrelated terminal")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, 1, m.events.Len(), "listener should stay armed")

	m.close(m.terminal(0), &models.ExitStatus{Code: 0})
	_, err = waitSettled(t, h)
	assert.NoError(t, err)
}

func TestRunner_SequentialRunsAreIndependent(t *testing.T) {
	m := &fakeManager{}
	p := newRecordingPresenter()
	defer close(p.release)
	r := newTestRunner(m, p)

	first, err := r.Start(context.Background(), "forge build")
	require.NoError(t, err)
	second, err := r.Start(context.Background(), "forge build")
	require.NoError(t, err)
	assert.NotEqual(t, first.Terminal.ID(), second.Terminal.ID())

	m.close(m.terminal(0), &models.ExitStatus{Code: 0})
	_, err = waitSettled(t, first)
	require.NoError(t, err)

	select {
	case <-second.Done():
		t.Fatal("second run settled by the first terminal's close")
	case <-time.After(20 * time.Millisecond):
	}

	m.close(m.terminal(1), &models.ExitStatus{Code: 2})
	status, err := waitSettled(t, second)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Code)
}

func TestRunner_RunBlocksUntilClose(t *testing.T) {
	m := &fakeManager{}
	p := newRecordingPresenter()
	defer close(p.release)
	r := newTestRunner(m, p)

	go func() {
		assert.Eventually(t, func() bool {
			m.mu.Lock()
			defer m.mu.Unlock()
			return len(m.terminals) == 1 && len(m.terminals[0].Sent()) == 2
		}, time.Second, time.Millisecond)
		m.close(m.terminal(0), &models.ExitStatus{Code: 0})
	}()

	status, err := r.Run(context.Background(), "forge build")
	require.NoError(t, err)
	assert.Equal(t, 0, status.Code)
}

func TestRunner_RunCancelledDeregisters(t *testing.T) {
	m := &fakeManager{}
	r := newTestRunner(m, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	status, err := r.Run(ctx, "forge build")

	assert.Nil(t, status)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Eventually(t, func() bool { return m.events.Len() == 0 }, time.Second, time.Millisecond)
}

func TestRunner_CommandSentVerbatim(t *testing.T) {
	m := &fakeManager{}
	r := newTestRunner(m, nil)

	h, err := r.Start(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "; exit\n"}, m.terminal(0).Sent())

	// The shell rejects the lone "; exit" and reports its own status.
	m.close(m.terminal(0), &models.ExitStatus{Code: 2})
	status, err := waitSettled(t, h)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Code)
	<-h.Advised()

	h, err = r.Start(context.Background(), "forge build \n")
	require.NoError(t, err)
	assert.Equal(t, []string{"forge build \n", "; exit\n"}, m.terminal(1).Sent())
	m.close(m.terminal(1), &models.ExitStatus{Code: 0})
	_, err = waitSettled(t, h)
	require.NoError(t, err)
}

func TestRunner_CreateTerminalError(t *testing.T) {
	boom := errors.New("no shell")
	m := &fakeManager{createErr: boom}
	r := newTestRunner(m, nil)

	_, err := r.Start(context.Background(), "forge build")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.events.Len())
}
