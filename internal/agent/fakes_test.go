package agent

import (
	"context"
	"sync"
	"time"

	"tools.zach/dev/mediacord/internal/activity"
	"tools.zach/dev/mediacord/internal/config"
	"tools.zach/dev/mediacord/internal/mediaserver"
)

// ///////////////////////////////////////////////
// Fake media server
// ///////////////////////////////////////////////

type fakeServer struct {
	mu        sync.Mutex
	authed    bool
	serverID  string
	loginErrs []error
	sessErrs  []error
	sessions  []mediaserver.Session
	libs      map[string]string
	libErr    error
	views     []mediaserver.View
	logins    int
	logouts   int
	fetches   int
	// block, when set, holds Sessions until closed or ctx is done.
	block chan struct{}
}

func (f *fakeServer) Authenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authed
}

func (f *fakeServer) Login(_ context.Context, _ mediaserver.Credentials) (*mediaserver.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if len(f.loginErrs) > 0 {
		err := f.loginErrs[0]
		f.loginErrs = f.loginErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.authed = true
	return &mediaserver.AuthResult{AccessToken: "tok", ServerID: f.serverID, UserID: "u1"}, nil
}

func (f *fakeServer) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	f.authed = false
	return nil
}

func (f *fakeServer) Sessions(ctx context.Context, _ time.Duration) ([]mediaserver.Session, error) {
	f.mu.Lock()
	f.fetches++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessErrs) > 0 {
		err := f.sessErrs[0]
		f.sessErrs = f.sessErrs[1:]
		if err != nil {
			if err == mediaserver.ErrAuthExpired {
				f.authed = false
			}
			return nil, err
		}
	}
	return f.sessions, nil
}

func (f *fakeServer) ItemLibraryID(_ context.Context, itemID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.libErr != nil {
		return "", f.libErr
	}
	id, ok := f.libs[itemID]
	if !ok {
		return "", mediaserver.ErrLibraryNotFound
	}
	return id, nil
}

func (f *fakeServer) UserViews(context.Context) ([]mediaserver.View, error) {
	return f.views, nil
}

func (f *fakeServer) WebSocketURL() (string, error) {
	return "ws://media.test/socket", nil
}

func (f *fakeServer) counts() (logins, logouts, fetches int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins, f.logouts, f.fetches
}

// ///////////////////////////////////////////////
// Fake presence
// ///////////////////////////////////////////////

type fakePresence struct {
	mu        sync.Mutex
	published []activity.Payload
	clears    int
	started   bool
	stopped   bool
	appID     string
}

func (p *fakePresence) Publish(payload activity.Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, payload)
	return nil
}

func (p *fakePresence) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
	return nil
}

func (p *fakePresence) Start(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = true
}

func (p *fakePresence) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
}

func (p *fakePresence) snapshot() (published []activity.Payload, clears int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]activity.Payload(nil), p.published...), p.clears
}

// ///////////////////////////////////////////////
// Fake event stream
// ///////////////////////////////////////////////

type fakeStream struct {
	url    string
	events chan struct{}
	ran    chan struct{}
}

func newFakeStream(url string) *fakeStream {
	return &fakeStream{url: url, events: make(chan struct{}, 1), ran: make(chan struct{})}
}

func (s *fakeStream) Run(ctx context.Context) error {
	close(s.ran)
	<-ctx.Done()
	return ctx.Err()
}

func (s *fakeStream) Events() <-chan struct{} { return s.events }

// ///////////////////////////////////////////////
// Fixtures
// ///////////////////////////////////////////////

var testNow = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.DeviceID = "agent-device"
	cfg.AddServer(config.Server{
		ID:       "srv1",
		Address:  "media.lan",
		Port:     8096,
		Protocol: "http",
		Username: "alice",
		Password: "pw",
		Type:     config.TypeJellyfin,
	})
	return cfg
}

func playing(runtime, position time.Duration, paused bool) mediaserver.Session {
	return mediaserver.Session{
		ID:       "s1",
		UserName: "Alice",
		Client:   "Jellyfin Web",
		DeviceID: "browser",
		NowPlayingItem: &mediaserver.MediaItem{
			ID:           "item1",
			Type:         mediaserver.ItemMovie,
			Name:         "Arrival",
			RunTimeTicks: int64(runtime / 100),
		},
		PlayState: mediaserver.PlayState{
			IsPaused:      paused,
			PositionTicks: int64(position / 100),
		},
	}
}
