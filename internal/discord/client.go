// Package discord speaks Discord's local RPC protocol, far enough to set and
// clear Rich Presence for one application.
package discord

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// ErrNotConnected is returned by commands issued without a live connection.
var ErrNotConnected = errors.New("not connected")

const (
	rpcVersion       = 1
	handshakeTimeout = 5 * time.Second
	cmdSetActivity   = "SET_ACTIVITY"
	evtError         = "ERROR"
)

// ///////////////////////////////////////////////
// Wire Types
// ///////////////////////////////////////////////

// Timestamps drive the activity timer, in Unix seconds. Start counts up and
// End counts down.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Assets names uploaded art assets and their hover text.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Activity is a Rich Presence activity.
type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Instance   bool        `json:"instance"`
}

type handshake struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
}

type activityArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity"`
}

type command struct {
	Cmd   string `json:"cmd"`
	Args  any    `json:"args"`
	Nonce string `json:"nonce"`
}

// response is every frame Discord sends back: READY after the handshake,
// command results, and ERROR events.
type response struct {
	Cmd  string `json:"cmd"`
	Evt  string `json:"evt"`
	Data struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"data"`
}

func (r response) err() error {
	if r.Evt != evtError {
		return nil
	}
	return fmt.Errorf("discord error %d: %s", r.Data.Code, r.Data.Message)
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Client is one application's connection to the local Discord client.
// Once connected, a reader goroutine answers pings and notices hangups;
// Closed fires when the connection ends for any reason.
type Client struct {
	appID  string
	logger *slog.Logger
	dial   func() (net.Conn, error)

	mu     sync.Mutex // guards the fields below and serializes writes
	conn   net.Conn
	closed chan struct{}
	nonce  uint64
}

// NewClient returns an unconnected client for appID. A nil logger uses
// slog.Default.
func NewClient(appID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{appID: appID, logger: logger, dial: connectToDiscord}
}

func (c *Client) AppID() string { return c.appID }

// Connect dials Discord and completes the handshake, replacing any current
// connection. It fails with [ErrIPCNotAvailable] when Discord is not running.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.dropLocked()
	}
	conn, err := c.dial()
	if err != nil {
		return err
	}
	if err := c.handshake(conn); err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.closed = make(chan struct{})
	go c.readLoop(conn, c.closed)
	return nil
}

// Closed is closed when the current connection ends. It is nil until the
// first successful Connect.
func (c *Client) Closed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SetActivity shows activity on the user's profile.
func (c *Client) SetActivity(activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setActivityLocked(activity)
}

// ClearActivity removes the activity.
func (c *Client) ClearActivity() error {
	return c.SetActivity(nil)
}

// Close clears the activity, best effort, and hangs up.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.setActivityLocked(nil)
	return c.dropLocked()
}

func (c *Client) setActivityLocked(activity *Activity) error {
	return c.sendLocked(cmdSetActivity, activityArgs{PID: os.Getpid(), Activity: activity})
}

// sendLocked writes one command frame. c.mu must be held.
func (c *Client) sendLocked(cmd string, args any) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	c.nonce++
	payload, err := json.Marshal(command{Cmd: cmd, Args: args, Nonce: strconv.FormatUint(c.nonce, 10)})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", cmd, err)
	}
	if err := writeFrame(c.conn, OpFrame, payload); err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	return nil
}

// dropLocked closes the socket and fires Closed. c.mu must be held.
func (c *Client) dropLocked() error {
	err := c.conn.Close()
	c.conn = nil
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return err
}

func writeFrame(w net.Conn, op Opcode, payload []byte) error {
	frame, err := EncodeFrame(op, payload)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

func (c *Client) handshake(conn net.Conn) error {
	payload, err := json.Marshal(handshake{V: rpcVersion, ClientID: c.appID})
	if err != nil {
		return fmt.Errorf("marshal handshake: %w", err)
	}

	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetDeadline(time.Time{})

	if err := writeFrame(conn, OpHandshake, payload); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}
	op, reply, err := DecodeFrame(conn)
	if err != nil {
		return fmt.Errorf("read handshake reply: %w", err)
	}
	switch op {
	case OpFrame:
	case OpClose:
		return fmt.Errorf("handshake rejected: %s", reply)
	default:
		return fmt.Errorf("handshake reply has opcode %d", op)
	}

	var resp response
	if err := json.Unmarshal(reply, &resp); err != nil {
		return fmt.Errorf("decode handshake reply: %w", err)
	}
	if err := resp.err(); err != nil {
		return fmt.Errorf("handshake rejected: %w", err)
	}
	c.logger.Debug("discord ready", "app_id", c.appID)
	return nil
}

// readLoop consumes frames until the connection fails or Discord sends
// CLOSE, then drops the connection if it is still current.
func (c *Client) readLoop(conn net.Conn, closed chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.dropLocked()
		}
		c.mu.Unlock()
	}()

	for {
		op, payload, err := DecodeFrame(conn)
		if err != nil {
			select {
			case <-closed:
			default:
				c.logger.Debug("discord connection lost", "error", err)
			}
			return
		}

		switch op {
		case OpClose:
			c.logger.Info("discord closed the connection", "payload", string(payload))
			return
		case OpPing:
			c.mu.Lock()
			if c.conn == conn {
				_ = writeFrame(conn, OpPong, payload)
			}
			c.mu.Unlock()
		case OpFrame:
			var resp response
			if json.Unmarshal(payload, &resp) == nil {
				if err := resp.err(); err != nil {
					c.logger.Warn("discord rejected command", "cmd", resp.Cmd, "error", err)
				}
			}
		}
	}
}
