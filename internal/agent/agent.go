// Package agent owns the presence pipeline: one media-server client, one
// Discord publisher and one scheduler for the selected server. It also
// implements the server-management operations the CLI exposes.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tools.zach/dev/mediacord/internal/config"
	"tools.zach/dev/mediacord/internal/mediaserver"
	"tools.zach/dev/mediacord/internal/paths"
	"tools.zach/dev/mediacord/internal/presence"
)

const (
	logoutTimeout = 5 * time.Second
	// cliDeviceSuffix marks the device id of logins made by management
	// commands.
	cliDeviceSuffix = "-cli"
)

// Publisher is a Presence with a connection lifecycle.
type Publisher interface {
	Presence
	Start(ctx context.Context)
	Stop()
}

// Options configures an Agent. Store is required; the constructors default
// to the real media-server client, Discord publisher and event stream.
type Options struct {
	Store   *config.Store
	Version string
	// IconURL maps a server type to the device icon shown on its dashboard.
	IconURL func(serverType string) string
	Logger  *slog.Logger

	NewServer    func(cfg *config.Config, srv config.Server) (MediaServer, error)
	NewPublisher func(appID string, retry time.Duration) Publisher
	NewStream    func(url string, reconnect time.Duration) EventSource
	Debounce     time.Duration
}

// Agent runs at most one scheduler at a time, for the selected server.
type Agent struct {
	store        *config.Store
	logger       *slog.Logger
	newServer    func(*config.Config, config.Server) (MediaServer, error)
	newPublisher func(string, time.Duration) Publisher
	newStream    func(string, time.Duration) EventSource
	debounce     time.Duration

	mu   sync.Mutex
	base context.Context
	cur  *runHandle
}

// runHandle is one running pipeline.
type runHandle struct {
	key       runKey
	cancel    context.CancelFunc
	done      chan struct{}
	server    MediaServer
	publisher Publisher
	scheduler *Scheduler
}

// serverKey holds the connection settings of a server. The ID is left out
// so a server re-identifying itself at login does not restart the pipeline.
type serverKey struct {
	address  string
	port     int
	protocol string
	username string
	password string
	typ      string
}

// runKey captures every setting a running pipeline was built from. A config
// change that alters the key restarts the pipeline; anything else is read
// fresh by the scheduler each cycle.
type runKey struct {
	enabled   bool
	server    serverKey
	appID     string
	deviceID  string
	reconnect int
	live      bool
	timeout   int
	retries   int
}

func keyFor(cfg *config.Config) runKey {
	srv, ok := cfg.SelectedServer()
	if !ok {
		return runKey{}
	}
	return runKey{
		enabled: cfg.Display.Enabled,
		server: serverKey{
			address:  srv.Address,
			port:     srv.Port,
			protocol: srv.Protocol,
			username: srv.Username,
			password: srv.Password,
			typ:      srv.Type,
		},
		appID:     cfg.AppID(srv.Type),
		deviceID:  cfg.DeviceID,
		reconnect: cfg.Behavior.ReconnectIntervalSeconds,
		live:      cfg.Behavior.LiveUpdates,
		timeout:   cfg.Behavior.RequestTimeoutSeconds,
		retries:   cfg.Behavior.RequestRetries,
	}
}

func (k runKey) active() bool {
	return k.enabled && k.server != serverKey{}
}

// New creates an Agent. Nothing runs until Start.
func New(opts Options) *Agent {
	a := &Agent{
		store:        opts.Store,
		logger:       opts.Logger,
		newServer:    opts.NewServer,
		newPublisher: opts.NewPublisher,
		newStream:    opts.NewStream,
		debounce:     opts.Debounce,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.newServer == nil {
		a.newServer = defaultServer(opts.Version, opts.IconURL, a.logger)
	}
	if a.newPublisher == nil {
		logger := a.logger
		a.newPublisher = func(appID string, retry time.Duration) Publisher {
			return presence.NewPublisher(appID, retry, presence.WithLogger(logger))
		}
	}
	if a.newStream == nil {
		logger := a.logger
		a.newStream = func(url string, reconnect time.Duration) EventSource {
			return mediaserver.NewEventStream(url, reconnect, logger)
		}
	}
	return a
}

// defaultServer builds a breaker-wrapped media-server client.
func defaultServer(version string, iconURL func(string) string, logger *slog.Logger) func(*config.Config, config.Server) (MediaServer, error) {
	return func(cfg *config.Config, srv config.Server) (MediaServer, error) {
		var icon string
		if iconURL != nil {
			icon = iconURL(srv.Type)
		}
		c, err := mediaserver.NewClient(mediaserver.Options{
			BaseURL:    srv.BaseURL(),
			Type:       mediaserver.ServerType(srv.Type),
			DeviceID:   cfg.DeviceID,
			DeviceName: paths.DeviceName,
			Version:    version,
			IconURL:    icon,
			Timeout:    seconds(cfg.Behavior.RequestTimeoutSeconds),
			Retries:    cfg.Behavior.RequestRetries,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return mediaserver.NewBreaker(c, mediaserver.BreakerSettings{Name: srv.Address, Logger: logger}), nil
	}
}

// ///////////////////////////////////////////////
// Lifecycle
// ///////////////////////////////////////////////

// Start brings up the pipeline for the current config. Pipelines started
// later by Reload are bound to ctx.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	a.base = ctx
	a.mu.Unlock()
	return a.Reload(ctx)
}

// Stop tears down the running pipeline and clears presence. The media
// server session is kept.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked(false)
	a.base = nil
}

// Reload re-reads the config and restarts the pipeline if any setting it
// was built from changed. Switching or removing the selected server logs
// the old one out. Reload before Start does nothing.
func (a *Agent) Reload(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.base == nil {
		return nil
	}

	cfg, err := a.store.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	key := keyFor(cfg)
	if a.cur != nil && a.cur.key == key {
		a.cur.scheduler.Nudge()
		return nil
	}
	if a.cur != nil {
		a.stopLocked(a.cur.key.server != key.server)
	}
	if !key.active() {
		if !key.enabled && key.server != (serverKey{}) {
			a.logger.Info("presence display disabled")
		}
		return nil
	}
	return a.startLocked(cfg, key)
}

func (a *Agent) startLocked(cfg *config.Config, key runKey) error {
	srv, _ := cfg.SelectedServer()
	server, err := a.newServer(cfg, srv)
	if err != nil {
		return fmt.Errorf("create media server client: %w", err)
	}
	reconnect := seconds(cfg.Behavior.ReconnectIntervalSeconds)
	pub := a.newPublisher(key.appID, reconnect)

	ctx, cancel := context.WithCancel(a.base)
	sched := NewScheduler(SchedulerOptions{
		ServerID:    srv.ID,
		Server:      server,
		Presence:    pub,
		Load:        a.store.Load,
		OnLogin:     a.loggedIn,
		LiveUpdates: cfg.Behavior.LiveUpdates,
		NewStream: func(url string) EventSource {
			return a.newStream(url, reconnect)
		},
		Debounce: a.debounce,
		Logger:   a.logger,
	})

	h := &runHandle{
		key:       key,
		cancel:    cancel,
		done:      make(chan struct{}),
		server:    server,
		publisher: pub,
		scheduler: sched,
	}
	pub.Start(ctx)
	go func() {
		defer close(h.done)
		_ = sched.Run(ctx)
	}()
	a.cur = h
	a.logger.Info("presence started", "server", srv.Address, "type", srv.Type)
	return nil
}

// stopLocked cancels the pipeline and waits for its cycle to finish, so no
// publish from the old pipeline can land after it returns.
func (a *Agent) stopLocked(logout bool) {
	h := a.cur
	if h == nil {
		return
	}
	a.cur = nil
	h.cancel()
	<-h.done
	_ = h.publisher.Clear()
	h.publisher.Stop()
	if logout && h.server.Authenticated() {
		ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
		if err := h.server.Logout(ctx); err != nil {
			a.logger.Debug("logout failed", "error", err)
		}
		cancel()
	}
	a.logger.Info("presence stopped")
}

// loggedIn persists a server ID change reported at login. It runs on the
// scheduler goroutine and must not take a.mu.
func (a *Agent) loggedIn(prevID string, res mediaserver.AuthResult) {
	if res.ServerID == "" || res.ServerID == prevID {
		return
	}
	_, err := a.store.Update(func(c *config.Config) error {
		return c.RenameServer(prevID, res.ServerID)
	})
	if err != nil {
		a.logger.Warn("failed to store new server id", "old", prevID, "new", res.ServerID, "error", err)
		return
	}
	a.logger.Info("server id changed", "old", prevID, "new", res.ServerID)
}

// Nudge asks the running scheduler for an early cycle.
func (a *Agent) Nudge() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cur != nil {
		a.cur.scheduler.Nudge()
	}
}

// ///////////////////////////////////////////////
// Server Management
// ///////////////////////////////////////////////

// AddServer validates in, logs in to prove the credentials, and stores the
// server as the selected one. It returns the server's ID. The config is not
// touched if validation or login fails.
func (a *Agent) AddServer(ctx context.Context, in config.ServerInput) (string, error) {
	in = in.Normalize()
	if err := config.ValidateServerInput(in); err != nil {
		return "", err
	}
	cfg, err := a.store.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	srv := config.Server{
		Address:  in.Address,
		Port:     in.Port,
		Protocol: in.Protocol,
		Username: in.Username,
		Password: in.Password,
		Type:     in.Type,
	}

	probe, err := a.newServer(shortLived(cfg), srv)
	if err != nil {
		return "", err
	}
	res, err := probe.Login(ctx, mediaserver.Credentials{Username: in.Username, Password: in.Password})
	if err != nil {
		return "", err
	}
	if err := probe.Logout(ctx); err != nil {
		a.logger.Debug("probe logout failed", "error", err)
	}

	srv.ID = res.ServerID
	if srv.ID == "" {
		srv.ID = uuid.NewString()
	}
	if _, err := a.store.Update(func(c *config.Config) error {
		c.AddServer(srv)
		return nil
	}); err != nil {
		return "", err
	}
	a.logger.Info("server added", "id", srv.ID, "server", srv.Address)
	return srv.ID, a.Reload(ctx)
}

// shortLived returns cfg with the device id used by one-off logins. Jellyfin
// revokes a device's existing tokens on login, so these must not share the
// daemon's device.
func shortLived(cfg *config.Config) *config.Config {
	c := cfg.Clone()
	c.DeviceID += cliDeviceSuffix
	return c
}

// SelectServer makes id the selected server.
func (a *Agent) SelectServer(ctx context.Context, id string) error {
	if _, err := a.store.Update(func(c *config.Config) error {
		return c.SelectServer(id)
	}); err != nil {
		return err
	}
	return a.Reload(ctx)
}

// RemoveServer deletes a server. If it is the one presence runs for, that
// pipeline is then stopped and logged out. A failed update leaves the
// pipeline running.
func (a *Agent) RemoveServer(ctx context.Context, id string) error {
	if _, err := a.store.Update(func(c *config.Config) error {
		_, err := c.RemoveServer(id)
		return err
	}); err != nil {
		return err
	}

	a.mu.Lock()
	if a.cur != nil && a.cur.scheduler.ServerID() == id {
		a.stopLocked(true)
	}
	a.mu.Unlock()
	return a.Reload(ctx)
}

// ToggleIgnoredLibrary flips whether a library is hidden from presence and
// reports the new state. The change takes effect on the next cycle, which
// is requested immediately.
func (a *Agent) ToggleIgnoredLibrary(serverID, libraryID string) (bool, error) {
	var ignored bool
	if _, err := a.store.Update(func(c *config.Config) error {
		var err error
		ignored, err = c.ToggleIgnoredView(serverID, libraryID)
		return err
	}); err != nil {
		return false, err
	}
	a.Nudge()
	return ignored, nil
}

// UserViews lists the libraries of a configured server. The running client
// is reused when it serves that server; otherwise a short-lived login is
// made.
func (a *Agent) UserViews(ctx context.Context, serverID string) ([]mediaserver.View, error) {
	a.mu.Lock()
	var running MediaServer
	if a.cur != nil && a.cur.scheduler.ServerID() == serverID && a.cur.server.Authenticated() {
		running = a.cur.server
	}
	a.mu.Unlock()
	if running != nil {
		return running.UserViews(ctx)
	}

	cfg, err := a.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	srv, ok := cfg.Server(serverID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", config.ErrServerNotFound, serverID)
	}
	server, err := a.newServer(shortLived(cfg), srv)
	if err != nil {
		return nil, err
	}
	if _, err := server.Login(ctx, mediaserver.Credentials{Username: srv.Username, Password: srv.Password}); err != nil {
		return nil, err
	}
	defer func() {
		if err := server.Logout(context.WithoutCancel(ctx)); err != nil {
			a.logger.Debug("logout failed", "error", err)
		}
	}()
	return server.UserViews(ctx)
}

// SetDisplay turns presence display on or off.
func (a *Agent) SetDisplay(ctx context.Context, on bool) error {
	if _, err := a.store.Update(func(c *config.Config) error {
		c.Display.Enabled = on
		return nil
	}); err != nil {
		return err
	}
	return a.Reload(ctx)
}

// Reset logs out of the running server and removes every configured server.
func (a *Agent) Reset(ctx context.Context) error {
	a.mu.Lock()
	a.stopLocked(true)
	a.mu.Unlock()

	if _, err := a.store.Update(func(c *config.Config) error {
		c.Servers = nil
		return nil
	}); err != nil {
		return err
	}
	return a.Reload(ctx)
}

// IsLoginError reports whether err came from the media server rejecting or
// failing a login, as opposed to bad input.
func IsLoginError(err error) bool {
	return errors.Is(err, mediaserver.ErrAuth) || errors.Is(err, mediaserver.ErrNetwork)
}
