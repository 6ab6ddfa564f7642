//go:build !windows

// Package integration runs the daemon pipeline end to end: a fake Jellyfin
// server over HTTP on one side and a fake Discord client listening on an IPC
// socket on the other.
package integration

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tools.zach/dev/mediacord/internal/agent"
	"tools.zach/dev/mediacord/internal/config"
	"tools.zach/dev/mediacord/internal/discord"
)

// ///////////////////////////////////////////////
// Fake Jellyfin
// ///////////////////////////////////////////////

type jellyfin struct {
	*httptest.Server

	mu      sync.Mutex
	logins  int
	logouts int
}

func newJellyfin(t *testing.T) *jellyfin {
	t.Helper()
	jf := &jellyfin{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /Users/AuthenticateByName", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Username, Pw string }
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username != "alice" || body.Pw != "hunter2" {
			http.Error(w, "Invalid username or password", http.StatusUnauthorized)
			return
		}
		jf.mu.Lock()
		jf.logins++
		jf.mu.Unlock()
		writeJSON(w, map[string]any{
			"AccessToken": "tok-1",
			"ServerId":    "jf-server",
			"User":        map[string]any{"Id": "user-1", "Name": "alice"},
		})
	})
	mux.HandleFunc("POST /Sessions/Capabilities/Full", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /Sessions/Logout", func(w http.ResponseWriter, r *http.Request) {
		jf.mu.Lock()
		jf.logouts++
		jf.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /Sessions", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Authorization"), `Token="tok-1"`) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, []map[string]any{
			{
				"Id":               "own",
				"UserName":         "alice",
				"DeviceId":         "mediacord-it",
				"DeviceName":       "Mediacord",
				"LastActivityDate": time.Now().UTC().Format(time.RFC3339),
				"NowPlayingItem":   map[string]any{"Id": "item-0", "Type": "Movie", "Name": "Self", "RunTimeTicks": 1},
			},
			{
				"Id":               "tv",
				"UserName":         "Alice",
				"DeviceId":         "living-room",
				"DeviceName":       "Living Room TV",
				"Client":           "Jellyfin Android TV",
				"LastActivityDate": time.Now().UTC().Format(time.RFC3339),
				"NowPlayingItem": map[string]any{
					"Id":             "item-1",
					"Type":           "Movie",
					"Name":           "Heat",
					"ProductionYear": 1995,
					"RunTimeTicks":   int64(2*time.Hour) / 100,
				},
				"PlayState": map[string]any{"PositionTicks": int64(10*time.Minute) / 100},
			},
		})
	})
	mux.HandleFunc("GET /Items/{id}/Ancestors", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{
			{"Id": "folder-9", "Type": "Folder"},
			{"Id": "lib-movies", "Type": "CollectionFolder"},
		})
	})

	jf.Server = httptest.NewServer(mux)
	t.Cleanup(jf.Close)
	return jf
}

func (jf *jellyfin) counts() (logins, logouts int) {
	jf.mu.Lock()
	defer jf.mu.Unlock()
	return jf.logins, jf.logouts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// ///////////////////////////////////////////////
// Fake Discord
// ///////////////////////////////////////////////

type command struct {
	Cmd  string `json:"cmd"`
	Args struct {
		Activity *discord.Activity `json:"activity"`
	} `json:"args"`
}

type fakeDiscord struct {
	appIDs   chan string
	commands chan command
}

// listenDiscord serves the IPC socket Discord would create under
// XDG_RUNTIME_DIR.
func listenDiscord(t *testing.T) *fakeDiscord {
	t.Helper()
	// Unix socket paths are length-limited; t.TempDir can be too deep.
	dir, err := os.MkdirTemp("", "mcipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	t.Setenv("XDG_RUNTIME_DIR", dir)

	ln, err := net.Listen("unix", filepath.Join(dir, "discord-ipc-0"))
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	d := &fakeDiscord{appIDs: make(chan string, 4), commands: make(chan command, 64)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go d.serve(conn)
		}
	}()
	return d
}

func (d *fakeDiscord) serve(conn net.Conn) {
	defer conn.Close()

	op, payload, err := discord.DecodeFrame(conn)
	if err != nil || op != discord.OpHandshake {
		return
	}
	var hs struct {
		ClientID string `json:"client_id"`
	}
	_ = json.Unmarshal(payload, &hs)
	d.appIDs <- hs.ClientID

	ready, _ := discord.EncodeFrame(discord.OpFrame, []byte(`{"cmd":"DISPATCH","evt":"READY","data":{"v":1}}`))
	if _, err := conn.Write(ready); err != nil {
		return
	}

	for {
		op, payload, err := discord.DecodeFrame(conn)
		if err != nil {
			return
		}
		if op != discord.OpFrame {
			continue
		}
		var c command
		if json.Unmarshal(payload, &c) == nil {
			d.commands <- c
		}
	}
}

func (d *fakeDiscord) next(t *testing.T) command {
	t.Helper()
	select {
	case c := <-d.commands:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a discord command")
		return command{}
	}
}

// ///////////////////////////////////////////////
// Tests
// ///////////////////////////////////////////////

func TestPlaybackReachesDiscord(t *testing.T) {
	jf := newJellyfin(t)
	dc := listenDiscord(t)

	u, err := url.Parse(jf.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	store := config.NewStore(t.TempDir())
	cfg := config.DefaultConfig()
	cfg.DeviceID = "mediacord-it"
	cfg.Behavior.LiveUpdates = false
	cfg.Behavior.CheckUpdates = false
	cfg.Behavior.ReconnectIntervalSeconds = 1
	cfg.AddServer(config.Server{
		ID:       "pending",
		Address:  u.Hostname(),
		Port:     port,
		Protocol: "http",
		Username: "alice",
		Password: "hunter2",
		Type:     "jellyfin",
	})
	require.NoError(t, cfg.Save(store.Path()))

	a := agent.New(agent.Options{Store: store, Version: "test"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	select {
	case id := <-dc.appIDs:
		assert.Equal(t, config.DefaultJellyfinAppID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("publisher never connected")
	}

	cmd := dc.next(t)
	require.Equal(t, "SET_ACTIVITY", cmd.Cmd)
	act := cmd.Args.Activity
	require.NotNil(t, act)
	assert.Equal(t, "Watching a Movie", act.Details)
	assert.Equal(t, "Heat (1995)", act.State)
	require.NotNil(t, act.Assets)
	assert.Equal(t, "large", act.Assets.LargeImage)
	assert.Equal(t, "play", act.Assets.SmallImage)
	require.NotNil(t, act.Timestamps)
	// Remaining mode: 110 minutes left.
	assert.InDelta(t, time.Now().Add(110*time.Minute).Unix(), act.Timestamps.End, 5)

	// The login reported the server's real ID.
	require.Eventually(t, func() bool {
		c, err := store.Load()
		if err != nil {
			return false
		}
		srv, ok := c.SelectedServer()
		return ok && srv.ID == "jf-server"
	}, 5*time.Second, 20*time.Millisecond)

	// Reset clears the presence and ends the server session.
	require.NoError(t, a.Reset(ctx))
	defer a.Stop()

	cleared := dc.next(t)
	assert.Equal(t, "SET_ACTIVITY", cleared.Cmd)
	assert.Nil(t, cleared.Args.Activity)

	logins, logouts := jf.counts()
	assert.Equal(t, 1, logins)
	assert.Equal(t, 1, logouts)
}

func TestWrongPasswordPublishesNothing(t *testing.T) {
	jf := newJellyfin(t)
	dc := listenDiscord(t)

	u, _ := url.Parse(jf.URL)
	port, _ := strconv.Atoi(u.Port())

	store := config.NewStore(t.TempDir())
	cfg := config.DefaultConfig()
	cfg.Behavior.LiveUpdates = false
	cfg.AddServer(config.Server{
		ID: "s", Address: u.Hostname(), Port: port, Protocol: "http",
		Username: "alice", Password: "wrong", Type: "jellyfin",
	})
	require.NoError(t, cfg.Save(store.Path()))

	a := agent.New(agent.Options{Store: store, Version: "test"})
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	select {
	case c := <-dc.commands:
		if c.Args.Activity != nil {
			t.Fatalf("published %+v without a login", c.Args.Activity)
		}
	case <-time.After(500 * time.Millisecond):
	}
	logins, _ := jf.counts()
	assert.Zero(t, logins)
}
