// Package presence owns the Discord IPC connection. A Publisher keeps
// trying to connect at a fixed interval, reconnects when Discord goes
// away, and replays the most recent payload once it is back.
package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tools.zach/dev/mediacord/internal/activity"
	"tools.zach/dev/mediacord/internal/discord"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Conn is the subset of *discord.Client the publisher drives.
type Conn interface {
	Connect() error
	SetActivity(*discord.Activity) error
	ClearActivity() error
	Close() error
	Closed() <-chan struct{}
}

// State is the connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// defaultTolerance is how far a timer may move before a payload with
// otherwise identical content is resent.
const defaultTolerance = 2 * time.Second

// Option configures a Publisher.
type Option func(*Publisher)

// WithDialer replaces the Discord client constructor.
func WithDialer(dial func(appID string) Conn) Option {
	return func(p *Publisher) { p.dial = dial }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// WithTolerance sets the timer tolerance used to suppress resends.
func WithTolerance(d time.Duration) Option {
	return func(p *Publisher) { p.tolerance = d }
}

// ///////////////////////////////////////////////
// Publisher
// ///////////////////////////////////////////////

// Publisher is the sole owner of a Discord connection.
type Publisher struct {
	appID      string
	retryDelay time.Duration
	tolerance  time.Duration
	dial       func(appID string) Conn
	logger     *slog.Logger

	mu     sync.Mutex
	state  State
	conn   Conn
	latest *activity.Payload // what should be shown; nil means nothing
	shown  *activity.Payload // what was last sent on conn
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPublisher creates a publisher for a Discord application. It does not
// connect until Start.
func NewPublisher(appID string, retryDelay time.Duration, opts ...Option) *Publisher {
	p := &Publisher{
		appID:      appID,
		retryDelay: retryDelay,
		tolerance:  defaultTolerance,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	p.logger = p.logger.With("component", "presence", "app_id", appID)
	if p.dial == nil {
		logger := p.logger
		p.dial = func(id string) Conn { return discord.NewClient(id, logger) }
	}
	return p
}

// AppID returns the Discord application id.
func (p *Publisher) AppID() string { return p.appID }

// State returns the connection state.
func (p *Publisher) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start launches the connect loop and returns immediately. A Publisher
// runs at most once; later calls do nothing.
func (p *Publisher) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

// Stop ends the connect loop and closes the connection, which clears the
// presence on Discord's side.
func (p *Publisher) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Debug("close discord connection", "error", err)
		}
		p.conn = nil
	}
	p.state = Disconnected
	p.latest, p.shown = nil, nil
}

// Publish makes payload the current presence. While disconnected it is
// kept and sent after the next connect. A payload equal to the one already
// shown is not resent.
func (p *Publisher) Publish(payload activity.Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = &payload
	if p.state != Connected {
		return nil
	}
	if p.shown != nil && activity.Same(*p.shown, payload, p.tolerance) {
		return nil
	}
	return p.sendLocked()
}

// Clear removes the presence. It is a no-op when nothing is shown.
func (p *Publisher) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = nil
	if p.state != Connected || p.shown == nil {
		return nil
	}
	if err := p.conn.ClearActivity(); err != nil {
		p.logger.Warn("failed to clear activity", "error", err)
		return err
	}
	p.shown = nil
	p.logger.Debug("presence cleared")
	return nil
}

func (p *Publisher) sendLocked() error {
	payload := *p.latest
	if err := p.conn.SetActivity(payload.Activity()); err != nil {
		p.logger.Warn("failed to set activity", "error", err)
		return err
	}
	p.shown = &payload
	p.logger.Debug("presence updated",
		"details", payload.Details,
		"state", payload.State,
		"timer", payload.Timer.Mode.String(),
	)
	return nil
}

// ///////////////////////////////////////////////
// Connect Loop
// ///////////////////////////////////////////////

func (p *Publisher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		closed, ok := p.connect()
		if ok {
			select {
			case <-ctx.Done():
				return
			case <-closed:
				p.logger.Warn("discord connection lost", "retry_in", p.retryDelay)
				p.mu.Lock()
				p.conn = nil
				p.shown = nil
				p.state = Disconnected
				p.mu.Unlock()
			}
		}

		t := time.NewTimer(p.retryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// connect makes one attempt. On success the latest payload is replayed.
func (p *Publisher) connect() (<-chan struct{}, bool) {
	p.mu.Lock()
	p.state = Connecting
	p.mu.Unlock()

	conn := p.dial(p.appID)
	if err := conn.Connect(); err != nil {
		if errors.Is(err, discord.ErrIPCNotAvailable) {
			p.logger.Debug("discord not running", "retry_in", p.retryDelay)
		} else {
			p.logger.Warn("discord connect failed", "error", err, "retry_in", p.retryDelay)
		}
		p.mu.Lock()
		p.state = Disconnected
		p.mu.Unlock()
		return nil, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn = conn
	p.shown = nil
	p.state = Connected
	p.logger.Info("connected to discord")
	if p.latest != nil {
		_ = p.sendLocked()
	}
	return conn.Closed(), true
}
