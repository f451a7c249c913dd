package clock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tmhi/discord-bot/telemetry"
	"github.com/tmhi/discord-bot/tmhi"
)

// Target is where widgets render. Implementations return an error wrapping
// tmhi.ErrNotFound when the channel or message is gone.
type Target interface {
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	RenameChannel(ctx context.Context, channelID, name string) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithAfter overrides the wait between ticks (tests).
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(m *Manager) { m.after = after }
}

// OnGone is called when a widget's target no longer exists; the widget has
// already been stopped. Typically deletes the persisted row.
func OnGone(fn func(context.Context, Widget)) Option { return func(m *Manager) { m.onGone = fn } }

// OnFinish is called once a timer or stopwatch reaches its final state.
func OnFinish(fn func(context.Context, Widget)) Option { return func(m *Manager) { m.onFinish = fn } }

// Manager owns the running widgets, one goroutine each.
type Manager struct {
	target   Target
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
	onGone   func(context.Context, Widget)
	onFinish func(context.Context, Widget)
	log      *slog.Logger

	mu      sync.Mutex
	running map[string]*runner
	wg      sync.WaitGroup
}

type runner struct {
	w      Widget
	cancel context.CancelFunc
	once   sync.Once
}

// stop is idempotent.
func (r *runner) stop() { r.once.Do(r.cancel) }

// NewManager returns a manager rendering into target.
func NewManager(target Target, opts ...Option) *Manager {
	m := &Manager{
		target:  target,
		now:     time.Now,
		after:   time.After,
		log:     slog.Default().With(slog.String("component", "clock")),
		running: make(map[string]*runner),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start validates w and begins rendering it immediately, then on every
// interval boundary. A widget already running on the same target is replaced.
func (m *Manager) Start(ctx context.Context, w Widget) error {
	if err := w.Validate(); err != nil {
		return err
	}
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &runner{w: w, cancel: cancel}

	m.mu.Lock()
	if old, ok := m.running[w.ID()]; ok {
		old.stop()
	}
	m.running[w.ID()] = r
	n := len(m.running)
	m.mu.Unlock()
	telemetry.SetActiveWidgets(n)

	m.wg.Add(1)
	go m.run(rctx, r)
	return nil
}

// Stop halts the widget with id. It reports whether one was running.
func (m *Manager) Stop(id string) bool {
	m.mu.Lock()
	r, ok := m.running[id]
	if ok {
		delete(m.running, id)
	}
	n := len(m.running)
	m.mu.Unlock()
	if ok {
		r.stop()
		telemetry.SetActiveWidgets(n)
	}
	return ok
}

// StopAll halts every widget and waits for their goroutines to exit.
func (m *Manager) StopAll() {
	m.mu.Lock()
	for id, r := range m.running {
		r.stop()
		delete(m.running, id)
	}
	m.mu.Unlock()
	telemetry.SetActiveWidgets(0)
	m.wg.Wait()
}

// Len returns the number of running widgets.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// Get returns the running widget with id.
func (m *Manager) Get(id string) (Widget, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.running[id]
	if !ok {
		return Widget{}, false
	}
	return r.w, true
}

func (m *Manager) run(ctx context.Context, r *runner) {
	defer m.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		now := m.now()
		text, done := r.w.Render(now)
		if err := m.push(ctx, r.w, text); err != nil {
			if errors.Is(err, tmhi.ErrNotFound) {
				m.log.Info("widget target gone, stopping", slog.String("widget", r.w.ID()))
				m.release(r)
				if m.onGone != nil {
					m.onGone(context.WithoutCancel(ctx), r.w)
				}
				return
			}
			telemetry.CountWidgetFailure()
			m.log.Warn("widget update failed", slog.String("widget", r.w.ID()), slog.Any("err", err))
		}
		if done {
			m.release(r)
			if m.onFinish != nil {
				m.onFinish(context.WithoutCancel(ctx), r.w)
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-m.after(NextBoundary(now, r.w.Interval()).Sub(now)):
		}
	}
}

// push runs the platform call detached from the runner context so a Stop
// never aborts an update already in flight.
func (m *Manager) push(ctx context.Context, w Widget, text string) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if w.InMessage() {
		return m.target.EditMessage(cctx, w.ChannelID, w.MessageID, text)
	}
	return m.target.RenameChannel(cctx, w.ChannelID, text)
}

// release drops r from the registry if it is still the registered runner.
func (m *Manager) release(r *runner) {
	m.mu.Lock()
	if cur, ok := m.running[r.w.ID()]; ok && cur == r {
		delete(m.running, r.w.ID())
	}
	n := len(m.running)
	m.mu.Unlock()
	r.stop()
	telemetry.SetActiveWidgets(n)
}
