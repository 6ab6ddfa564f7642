package mediaserver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout  = 10 * time.Second
	readTimeout       = 60 * time.Second
	writeTimeout      = 10 * time.Second
	keepAliveInterval = 30 * time.Second

	// sessionsStartData asks for Sessions pushes: initial delay 0 ms,
	// interval 1500 ms, and 900 ms of inactivity before a push is skipped.
	sessionsStartData = "0,1500,900"

	// seekTolerance is how far a session's projected end may drift before
	// a Sessions push counts as a change.
	seekTolerance = 5 * time.Second
)

type wsMessage struct {
	MessageType string          `json:"MessageType"`
	Data        json.RawMessage `json:"Data,omitempty"`
}

type sessionMark struct {
	itemID string
	paused bool
	end    time.Time
}

// EventStream subscribes to a server's websocket and turns playback
// notifications into nudges on Events. It reconnects after a fixed delay
// until its context is cancelled.
type EventStream struct {
	url       string
	reconnect time.Duration
	logger    *slog.Logger
	dialer    *websocket.Dialer
	events    chan struct{}
	now       func() time.Time

	// seen is only touched from the Run goroutine.
	seen map[string]sessionMark
}

// NewEventStream creates a stream for url (see Client.WebSocketURL).
func NewEventStream(url string, reconnect time.Duration, logger *slog.Logger) *EventStream {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventStream{
		url:       url,
		reconnect: reconnect,
		logger:    logger.With("component", "events"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
			Proxy:            websocket.DefaultDialer.Proxy,
		},
		events: make(chan struct{}, 1),
		now:    time.Now,
	}
}

// Events delivers a value whenever server-side playback may have changed.
// Nudges coalesce: a slow reader sees at most one pending value.
func (s *EventStream) Events() <-chan struct{} { return s.events }

// Run connects and reads until ctx is cancelled, reconnecting after every
// disconnect. It always returns ctx.Err().
func (s *EventStream) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("event stream disconnected", "error", err, "retry_in", s.reconnect)
		t := time.NewTimer(s.reconnect)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (s *EventStream) session(ctx context.Context) error {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", RedactURL(s.url), err)
	}
	defer conn.Close()

	var wmu sync.Mutex
	write := func(msg wsMessage) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	start, _ := json.Marshal(sessionsStartData)
	if err := write(wsMessage{MessageType: "SessionsStart", Data: start}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info("event stream connected")
	s.seen = make(map[string]sessionMark)
	// Anything may have changed while disconnected.
	s.nudge()

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(keepAliveInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				conn.Close()
				return
			case <-t.C:
				if err := write(wsMessage{MessageType: "KeepAlive"}); err != nil {
					return
				}
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handle(data)
	}
}

func (s *EventStream) handle(data []byte) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug("ignoring malformed message", "error", err)
		return
	}
	switch msg.MessageType {
	case "Sessions":
		if s.sessionsChanged(msg.Data) {
			s.nudge()
		}
	case "UserDataChanged", "Playstate", "PlaybackStart", "PlaybackStopped":
		s.nudge()
	}
}

// sessionsChanged compares a Sessions push with the previous one. Position
// advancing at normal speed is not a change; a new item, a pause toggle, a
// seek or a session coming or going is.
func (s *EventStream) sessionsChanged(data json.RawMessage) bool {
	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return true
	}
	now := s.now()
	next := make(map[string]sessionMark, len(sessions))
	changed := len(sessions) != len(s.seen)
	for _, sess := range sessions {
		mark := sessionMark{paused: sess.PlayState.IsPaused}
		if item := sess.NowPlayingItem; item != nil {
			mark.itemID = item.ID
			if !mark.paused && item.RunTimeTicks > 0 {
				mark.end = now.Add(TicksToDuration(item.RunTimeTicks - sess.PlayState.PositionTicks))
			}
		}
		next[sess.ID] = mark
		prev, ok := s.seen[sess.ID]
		if !ok || prev.itemID != mark.itemID || prev.paused != mark.paused || drifted(prev.end, mark.end) {
			changed = true
		}
	}
	s.seen = next
	return changed
}

func drifted(a, b time.Time) bool {
	if a.IsZero() != b.IsZero() {
		return true
	}
	d := a.Sub(b)
	return d > seekTolerance || d < -seekTolerance
}

func (s *EventStream) nudge() {
	select {
	case s.events <- struct{}{}:
	default:
	}
}
