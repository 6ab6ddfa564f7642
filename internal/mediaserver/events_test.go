package mediaserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket?api_key=tok&deviceId=dev"
}

func drain(ch <-chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func waitEvent(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventStream_SubscribesAndNudges(t *testing.T) {
	subscribed := make(chan wsMessage, 1)
	send := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("api_key"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsMessage
		_ = json.Unmarshal(data, &msg)
		subscribed <- msg
		for m := range send {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
	}))
	defer srv.Close()
	defer close(send)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewEventStream(wsURL(srv), 10*time.Millisecond, discardLogger())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case msg := <-subscribed:
		assert.Equal(t, "SessionsStart", msg.MessageType)
		var data string
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		assert.Equal(t, "0,1500,900", data)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription message")
	}

	waitEvent(t, s.Events()) // connect nudge
	drain(s.Events())

	send <- `{"MessageType":"UserDataChanged","Data":{}}`
	waitEvent(t, s.Events())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEventStream_Reconnects(t *testing.T) {
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns.Add(1)
		_, _, _ = conn.ReadMessage()
		conn.Close()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewEventStream(wsURL(srv), 10*time.Millisecond, discardLogger())
	go func() { _ = s.Run(ctx) }()

	assert.Eventually(t, func() bool { return conns.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestEventStream_Handle(t *testing.T) {
	tests := []struct {
		msg   string
		nudge bool
	}{
		{`{"MessageType":"UserDataChanged","Data":{}}`, true},
		{`{"MessageType":"Playstate","Data":{"Command":"Pause"}}`, true},
		{`{"MessageType":"PlaybackStopped"}`, true},
		{`{"MessageType":"ForceKeepAlive","Data":60}`, false},
		{`{"MessageType":"KeepAlive"}`, false},
		{`not json`, false},
	}
	for _, tt := range tests {
		s := NewEventStream("ws://unused", time.Second, discardLogger())
		s.handle([]byte(tt.msg))
		got := len(s.events) == 1
		assert.Equal(t, tt.nudge, got, tt.msg)
	}
}

func TestEventStream_SessionsChanged(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewEventStream("ws://unused", time.Second, discardLogger())
	s.now = func() time.Time { return now }
	s.seen = map[string]sessionMark{}

	push := func(item string, paused bool, posSeconds int64) json.RawMessage {
		data, _ := json.Marshal([]Session{{
			ID:             "s1",
			NowPlayingItem: &MediaItem{ID: item, RunTimeTicks: 3600 * TicksPerSecond},
			PlayState:      PlayState{IsPaused: paused, PositionTicks: posSeconds * TicksPerSecond},
		}})
		return data
	}

	assert.True(t, s.sessionsChanged(push("a", false, 0)), "new session")

	now = now.Add(1500 * time.Millisecond)
	assert.False(t, s.sessionsChanged(push("a", false, 1)), "normal progress")

	now = now.Add(1500 * time.Millisecond)
	assert.True(t, s.sessionsChanged(push("a", false, 600)), "seek")

	assert.True(t, s.sessionsChanged(push("a", true, 600)), "pause")
	assert.False(t, s.sessionsChanged(push("a", true, 600)), "still paused")
	assert.True(t, s.sessionsChanged(push("b", true, 0)), "new item")

	assert.True(t, s.sessionsChanged(json.RawMessage(`[]`)), "session gone")
	assert.False(t, s.sessionsChanged(json.RawMessage(`[]`)), "still empty")
}
