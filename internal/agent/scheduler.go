package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tools.zach/dev/mediacord/internal/activity"
	"tools.zach/dev/mediacord/internal/config"
	"tools.zach/dev/mediacord/internal/logger"
	"tools.zach/dev/mediacord/internal/mediaserver"
)

// ///////////////////////////////////////////////
// Collaborators
// ///////////////////////////////////////////////

// MediaServer is the media-server API the agent drives. *mediaserver.Breaker
// and *mediaserver.Client satisfy it.
type MediaServer interface {
	Authenticated() bool
	Login(ctx context.Context, creds mediaserver.Credentials) (*mediaserver.AuthResult, error)
	Logout(ctx context.Context) error
	Sessions(ctx context.Context, maxInactivity time.Duration) ([]mediaserver.Session, error)
	ItemLibraryID(ctx context.Context, itemID string) (string, error)
	UserViews(ctx context.Context) ([]mediaserver.View, error)
	WebSocketURL() (string, error)
}

// Presence receives presence updates. *presence.Publisher satisfies it.
type Presence interface {
	Publish(activity.Payload) error
	Clear() error
}

// EventSource is a live notification stream. *mediaserver.EventStream
// satisfies it.
type EventSource interface {
	Run(ctx context.Context) error
	Events() <-chan struct{}
}

// ///////////////////////////////////////////////
// Scheduler
// ///////////////////////////////////////////////

const (
	defaultDebounce = 500 * time.Millisecond
	fallbackPoll    = 15 * time.Second
)

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	// ServerID is the configured server this scheduler serves.
	ServerID string
	Server   MediaServer
	Presence Presence
	// Load returns the current config. It is called at the start of every
	// cycle.
	Load func() (*config.Config, error)
	// OnLogin is called after every successful login with the server ID
	// the scheduler was using at the time.
	OnLogin func(serverID string, res mediaserver.AuthResult)
	// LiveUpdates opens the server's event stream after login.
	LiveUpdates bool
	// NewStream builds the event stream for a websocket URL.
	NewStream func(url string) EventSource
	// Debounce delays a nudged cycle so bursts of events run one cycle.
	Debounce time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

// Scheduler runs the presence loop for one server. A cycle fetches
// sessions, publishes or clears presence, and returns the delay before the
// next cycle. Cycles never overlap.
type Scheduler struct {
	server   MediaServer
	presence Presence
	load     func() (*config.Config, error)
	onLogin  func(string, mediaserver.AuthResult)
	live     bool
	stream   func(string) EventSource
	debounce time.Duration
	logger   *slog.Logger
	now      func() time.Time
	nudge    chan struct{}

	mu       sync.Mutex
	serverID string

	// Event stream state, owned by the Run goroutine.
	streamCancel context.CancelFunc
	streamWG     sync.WaitGroup
}

// NewScheduler creates a scheduler. Run starts it.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	s := &Scheduler{
		serverID: opts.ServerID,
		server:   opts.Server,
		presence: opts.Presence,
		load:     opts.Load,
		onLogin:  opts.OnLogin,
		live:     opts.LiveUpdates,
		stream:   opts.NewStream,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		now:      opts.Now,
		nudge:    make(chan struct{}, 1),
	}
	if s.debounce <= 0 {
		s.debounce = defaultDebounce
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.With("component", "scheduler")
	return s
}

// ServerID returns the ID of the server being served. It changes if the
// server reports a different ID at login.
func (s *Scheduler) ServerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverID
}

// Nudge asks for a cycle soon. Nudges arriving within the debounce window
// collapse into one cycle.
func (s *Scheduler) Nudge() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// Run executes cycles until ctx is cancelled. The first cycle runs
// immediately. Run returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.stopStream()

	timer := time.NewTimer(0)
	defer timer.Stop()
	deadline := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.nudge:
			if time.Until(deadline) > s.debounce {
				timer.Reset(s.debounce)
				deadline = time.Now().Add(s.debounce)
			}
			continue
		case <-timer.C:
		}

		next := s.RunCycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("next refresh scheduled", "in", next.Round(time.Millisecond))
		timer.Reset(next)
		deadline = time.Now().Add(next)
	}
}

// RunCycle performs one refresh and returns the delay before the next.
func (s *Scheduler) RunCycle(ctx context.Context) time.Duration {
	cfg, err := s.load()
	if err != nil {
		s.logger.Warn("config unreadable, skipping refresh", "error", err)
		return fallbackPoll
	}
	poll := seconds(cfg.Behavior.PollIntervalSeconds)
	retry := seconds(cfg.Behavior.RetryIntervalSeconds)

	if !cfg.Display.Enabled {
		s.clear()
		return poll
	}
	srv, ok := cfg.Server(s.ServerID())
	if !ok {
		s.logger.Warn("server no longer configured", "server_id", s.ServerID())
		s.clear()
		return poll
	}

	if !s.server.Authenticated() {
		if err := s.login(ctx, srv); err != nil {
			return retry
		}
	}

	inactivity := seconds(cfg.Behavior.MaxSessionInactivitySeconds)
	sessions, err := s.server.Sessions(ctx, inactivity)
	if errors.Is(err, mediaserver.ErrAuthExpired) {
		s.logger.Info("media server token rejected, logging in again")
		if err := s.login(ctx, srv); err != nil {
			return retry
		}
		sessions, err = s.server.Sessions(ctx, inactivity)
	}
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("session fetch failed", "error", err)
		}
		return poll
	}
	logger.Trace(s.logger, "sessions fetched", "count", len(sessions))

	session, ok := activity.SelectSession(sessions, activity.Selector{
		Username:      srv.Username,
		OwnDeviceID:   cfg.DeviceID,
		IgnoreDevices: cfg.Privacy.IgnoreDevices,
		Logger:        s.logger,
	})
	if !ok {
		s.clear()
		return poll
	}

	libraryID, err := s.server.ItemLibraryID(ctx, session.NowPlayingItem.ID)
	switch {
	case errors.Is(err, mediaserver.ErrLibraryNotFound):
		s.logger.Debug("item has no library", "item", session.NowPlayingItem.ID)
	case err != nil:
		if ctx.Err() == nil {
			s.logger.Warn("library lookup failed", "error", err)
		}
		return poll
	case srv.IsViewIgnored(libraryID):
		s.logger.Debug("library ignored", "library", libraryID)
		s.clear()
		return poll
	}

	if ctx.Err() != nil {
		return poll
	}

	now := s.now()
	payload := activity.Build(*session, now, activity.Options{
		Timestamps:   cfg.Display.Timestamps,
		LargeImage:   cfg.Display.LargeImage,
		PausedImage:  cfg.Display.PausedImage,
		PlayingImage: cfg.Display.PlayingImage,
	})
	_ = s.presence.Publish(payload)

	if session.PlayState.IsPaused {
		return poll
	}
	_, end := activity.Timing(*session, now)
	if end.IsZero() {
		return poll
	}
	return end.Sub(now) + time.Duration(cfg.Behavior.RefreshBufferMS)*time.Millisecond
}

func (s *Scheduler) clear() {
	_ = s.presence.Clear()
}

// login authenticates and, with live updates on, reopens the event stream
// with the new token.
func (s *Scheduler) login(ctx context.Context, srv config.Server) error {
	res, err := s.server.Login(ctx, mediaserver.Credentials{Username: srv.Username, Password: srv.Password})
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("media server login failed", "server", srv.Address, "error", err)
		}
		return err
	}

	s.mu.Lock()
	prev := s.serverID
	if res.ServerID != "" {
		s.serverID = res.ServerID
	}
	s.mu.Unlock()
	if s.onLogin != nil {
		s.onLogin(prev, *res)
	}

	if s.live && s.stream != nil {
		s.startStream(ctx)
	}
	return nil
}

func (s *Scheduler) startStream(ctx context.Context) {
	s.stopStream()
	url, err := s.server.WebSocketURL()
	if err != nil {
		s.logger.Warn("live updates unavailable", "error", err)
		return
	}
	src := s.stream(url)
	sctx, cancel := context.WithCancel(ctx)
	s.streamCancel = cancel
	s.streamWG.Add(2)
	go func() {
		defer s.streamWG.Done()
		_ = src.Run(sctx)
	}()
	go func() {
		defer s.streamWG.Done()
		for {
			select {
			case <-sctx.Done():
				return
			case <-src.Events():
				s.Nudge()
			}
		}
	}()
}

func (s *Scheduler) stopStream() {
	if s.streamCancel != nil {
		s.streamCancel()
		s.streamCancel = nil
	}
	s.streamWG.Wait()
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
