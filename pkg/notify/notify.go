// Package notify displays advisory notifications to the user.
package notify

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scope/pkg/logger"
	"scope/pkg/metrics"
)

// Notification is a message shown to the user. Timeout is how long it stays
// visible; zero keeps it until dismissed.
type Notification struct {
	ID          string        `json:"id"`
	Message     string        `json:"message"`
	Cancellable bool          `json:"cancellable"`
	Timeout     time.Duration `json:"timeout"`
	ShownAt     time.Time     `json:"shown_at"`
}

// ExpiresAt returns when the notification auto-dismisses, or the zero time.
func (n Notification) ExpiresAt() time.Time {
	if n.Timeout <= 0 {
		return time.Time{}
	}
	return n.ShownAt.Add(n.Timeout)
}

// Presenter displays notifications. Show blocks while the notification is
// visible.
type Presenter interface {
	Show(ctx context.Context, n Notification) error
}

// ConsolePresenter prints notifications to a terminal and returns at once;
// a printed line never needs dismissing.
type ConsolePresenter struct {
	out    io.Writer
	logger *zap.Logger
}

// NewConsolePresenter creates a ConsolePresenter writing to out. A nil
// logger uses the global logger.
func NewConsolePresenter(out io.Writer, log *zap.Logger) *ConsolePresenter {
	return &ConsolePresenter{out: out, logger: logger.OrGlobal(log).Named("notify")}
}

func (p *ConsolePresenter) Show(ctx context.Context, n Notification) error {
	metrics.NotificationsShown.Inc()
	p.logger.Debug("Notification", zap.String("message", n.Message))
	_, err := fmt.Fprintln(p.out, n.Message)
	return err
}

// Feed keeps notifications in memory while they are visible, so a front end
// can poll them.
type Feed struct {
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]*entry
}

type entry struct {
	n         Notification
	dismissed chan struct{}
	once      sync.Once
}

func (e *entry) dismiss() {
	e.once.Do(func() { close(e.dismissed) })
}

// NewFeed creates an empty Feed. A nil logger uses the global logger.
func NewFeed(log *zap.Logger) *Feed {
	return &Feed{
		logger: logger.OrGlobal(log).Named("notify"),
		active: make(map[string]*entry),
	}
}

// Show adds n to the feed and blocks until it expires, is dismissed, or ctx
// ends. It returns ctx.Err() only in the last case.
func (f *Feed) Show(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.ShownAt = time.Now()

	e := &entry{n: n, dismissed: make(chan struct{})}
	f.mu.Lock()
	f.active[n.ID] = e
	f.mu.Unlock()
	defer f.remove(n.ID)

	metrics.NotificationsShown.Inc()
	f.logger.Warn(n.Message, zap.String("notification_id", n.ID), zap.Duration("timeout", n.Timeout))

	var expired <-chan time.Time
	if n.Timeout > 0 {
		timer := time.NewTimer(n.Timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-expired:
		return nil
	case <-e.dismissed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dismiss hides a visible notification. It reports whether id was visible.
func (f *Feed) Dismiss(id string) bool {
	f.mu.Lock()
	e, ok := f.active[id]
	f.mu.Unlock()
	if ok {
		e.dismiss()
	}
	return ok
}

// Active returns the visible notifications, oldest first.
func (f *Feed) Active() []Notification {
	f.mu.Lock()
	out := make([]Notification, 0, len(f.active))
	for _, e := range f.active {
		out = append(out, e.n)
	}
	f.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ShownAt.Before(out[j].ShownAt) })
	return out
}

func (f *Feed) remove(id string) {
	f.mu.Lock()
	delete(f.active, id)
	f.mu.Unlock()
}
