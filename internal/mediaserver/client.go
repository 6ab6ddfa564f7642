// Package mediaserver talks to Emby and Jellyfin servers: login, session
// polling, library lookups and the live event websocket.
package mediaserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

const (
	defaultTimeout = 10 * time.Second
	maxReasonBytes = 256
	collectionType = "CollectionFolder"
)

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Options configures a Client.
type Options struct {
	BaseURL    string // scheme://host:port
	Type       ServerType
	DeviceID   string
	DeviceName string
	Version    string
	IconURL    string
	Timeout    time.Duration
	Retries    int // extra attempts for idempotent GETs
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a single-server API client. It holds the access token from the
// last successful Login and caches item-to-library lookups.
type Client struct {
	opts   Options
	base   *url.URL
	http   *http.Client
	retry  *retryablehttp.Client
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	token    string
	userID   string
	serverID string
	libs     map[string]string
}

// NewClient validates opts and builds a Client. It performs no I/O.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", opts.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("server url %q: missing host", opts.BaseURL)
	}
	switch opts.Type {
	case Emby, Jellyfin:
	default:
		return nil, fmt.Errorf("unknown server type %q", opts.Type)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mediaserver", "server_type", string(opts.Type))

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = hc
	rc.RetryMax = opts.Retries
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil

	return &Client{
		opts:   opts,
		base:   base,
		http:   hc,
		retry:  rc,
		logger: logger,
		now:    time.Now,
		libs:   make(map[string]string),
	}, nil
}

// Type returns the server brand.
func (c *Client) Type() ServerType { return c.opts.Type }

// Authenticated reports whether a token from a successful Login is held.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

// Auth returns the current login state, or false before Login.
func (c *Client) Auth() (AuthResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return AuthResult{}, false
	}
	return AuthResult{AccessToken: c.token, ServerID: c.serverID, UserID: c.userID}, true
}

// ///////////////////////////////////////////////
// Login / Logout
// ///////////////////////////////////////////////

// Login authenticates by username and password. On success the token is
// kept for later calls and the client declares its capabilities; a
// capabilities failure is logged and does not fail the login.
//
// Every failure unwraps to ErrAuth. Transport failures also unwrap to
// ErrNetwork.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	const op = "login"
	body, err := json.Marshal(authRequest{Username: creds.Username, Pw: creds.Password})
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}
	u := c.endpoint(nil, "Users", "AuthenticateByName")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	c.setHeaders(req.Header, "")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.requestError(op, req.Method, u, 0, "", ErrAuth, fmt.Errorf("%w: %w", ErrNetwork, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.requestError(op, req.Method, u, resp.StatusCode, readReason(resp.Body), ErrAuth, nil)
	}

	var ar authResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, c.requestError(op, req.Method, u, resp.StatusCode, "decode response", ErrAuth, err)
	}
	if ar.AccessToken == "" {
		return nil, c.requestError(op, req.Method, u, resp.StatusCode, "response has no access token", ErrAuth, nil)
	}

	c.mu.Lock()
	c.token = ar.AccessToken
	c.userID = ar.User.ID
	c.serverID = ar.ServerID
	c.mu.Unlock()

	c.logger.Info("logged in", "server_id", ar.ServerID, "user", creds.Username)

	if err := c.declareCapabilities(ctx, ar.AccessToken); err != nil {
		c.logger.Warn("capabilities declaration failed", "error", err)
	}

	return &AuthResult{AccessToken: ar.AccessToken, ServerID: ar.ServerID, UserID: ar.User.ID}, nil
}

func (c *Client) declareCapabilities(ctx context.Context, token string) error {
	const op = "capabilities"
	body, err := json.Marshal(capabilitiesRequest{
		IconURL:            c.opts.IconURL,
		PlayableMediaTypes: []string{},
		SupportedCommands:  []string{},
	})
	if err != nil {
		return err
	}
	u := c.endpoint(nil, "Sessions", "Capabilities", "Full")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req.Header, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.requestError(op, req.Method, u, 0, "", ErrNetwork, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return c.requestError(op, req.Method, u, resp.StatusCode, "", statusKind(resp.StatusCode), nil)
	}
	return nil
}

// Logout ends the server-side session. Local login state is dropped even
// when the request fails.
func (c *Client) Logout(ctx context.Context) error {
	const op = "logout"
	c.mu.Lock()
	token := c.token
	c.token, c.userID, c.serverID = "", "", ""
	c.mu.Unlock()
	if token == "" {
		return nil
	}

	u := c.endpoint(nil, "Sessions", "Logout")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	c.setHeaders(req.Header, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return c.requestError(op, req.Method, u, 0, "", ErrNetwork, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return c.requestError(op, req.Method, u, resp.StatusCode, "", statusKind(resp.StatusCode), nil)
	}
	return nil
}

// ///////////////////////////////////////////////
// Queries
// ///////////////////////////////////////////////

// Sessions returns the server's sessions active within maxInactivity. The
// server-side filter is repeated client-side because some servers ignore
// it. A non-positive maxInactivity disables filtering.
func (c *Client) Sessions(ctx context.Context, maxInactivity time.Duration) ([]Session, error) {
	q := url.Values{}
	if maxInactivity > 0 {
		q.Set("ActiveWithinSeconds", strconv.Itoa(int(maxInactivity/time.Second)))
	}
	var sessions []Session
	if err := c.getJSON(ctx, "sessions", q, &sessions, "Sessions"); err != nil {
		return nil, err
	}
	if maxInactivity <= 0 {
		return sessions, nil
	}
	cutoff := c.now().Add(-maxInactivity)
	active := sessions[:0]
	for _, s := range sessions {
		if t, ok := s.LastActivity(); ok && t.Before(cutoff) {
			continue
		}
		active = append(active, s)
	}
	return active, nil
}

// ItemLibraryID returns the id of the library that contains itemID.
// Successful lookups are cached for the life of the client.
func (c *Client) ItemLibraryID(ctx context.Context, itemID string) (string, error) {
	c.mu.Lock()
	if id, ok := c.libs[itemID]; ok {
		c.mu.Unlock()
		return id, nil
	}
	userID := c.userID
	c.mu.Unlock()

	q := url.Values{}
	if userID != "" {
		q.Set("UserId", userID)
	}
	var ancestors []ancestor
	if err := c.getJSON(ctx, "ancestors", q, &ancestors, "Items", itemID, "Ancestors"); err != nil {
		return "", err
	}
	for _, a := range ancestors {
		if a.Type == collectionType {
			c.mu.Lock()
			c.libs[itemID] = a.ID
			c.mu.Unlock()
			return a.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrLibraryNotFound, itemID)
}

// UserViews lists the logged-in user's libraries.
func (c *Client) UserViews(ctx context.Context) ([]View, error) {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	var resp viewsResponse
	if err := c.getJSON(ctx, "views", nil, &resp, "Users", userID, "Views"); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// WebSocketURL returns the live event endpoint for the current login.
func (c *Client) WebSocketURL() (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		return "", ErrNotAuthenticated
	}
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	suffix := "socket"
	if c.opts.Type == Emby {
		suffix = "embywebsocket"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + suffix
	u.RawQuery = url.Values{"api_key": {token}, "deviceId": {c.opts.DeviceID}}.Encode()
	return u.String(), nil
}

// ///////////////////////////////////////////////
// Transport helpers
// ///////////////////////////////////////////////

// getJSON performs an authenticated GET with retries and decodes the body
// into out. A 401 or 403 drops the token and returns ErrAuthExpired.
func (c *Client) getJSON(ctx context.Context, op string, q url.Values, out any, elem ...string) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		return ErrNotAuthenticated
	}

	u := c.endpoint(q, elem...)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	c.setHeaders(req.Header, token)

	resp, err := c.retry.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return c.requestError(op, http.MethodGet, u, 0, "", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		kind := statusKind(resp.StatusCode)
		if kind == ErrAuthExpired {
			c.invalidate(token)
		}
		return c.requestError(op, http.MethodGet, u, resp.StatusCode, readReason(resp.Body), kind, nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.requestError(op, http.MethodGet, u, resp.StatusCode, "decode response", ErrNetwork, err)
	}
	return nil
}

// invalidate forgets token unless a newer login already replaced it.
func (c *Client) invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
	}
}

func (c *Client) endpoint(q url.Values, elem ...string) string {
	if c.opts.Type == Emby {
		elem = append([]string{"emby"}, elem...)
	}
	u := c.base.JoinPath(elem...)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) setHeaders(h http.Header, token string) {
	h.Set("Accept", "application/json")
	fields := fmt.Sprintf(`Client="%s", Device="%s", DeviceId="%s", Version="%s"`,
		c.opts.DeviceName, c.opts.DeviceName, c.opts.DeviceID, c.opts.Version)
	switch c.opts.Type {
	case Emby:
		h.Set("X-Emby-Authorization", "Emby "+fields)
		if token != "" {
			h.Set("X-Emby-Token", token)
		}
	default:
		if token != "" {
			fields += fmt.Sprintf(`, Token="%s"`, token)
		}
		h.Set("Authorization", "MediaBrowser "+fields)
	}
}

func (c *Client) requestError(op, method, rawURL string, status int, reason string, kind, err error) *RequestError {
	return &RequestError{
		Op:         op,
		Method:     method,
		URL:        RedactURL(rawURL),
		StatusCode: status,
		Reason:     reason,
		Kind:       kind,
		Err:        err,
	}
}

// readReason returns a short, single-line excerpt of an error body.
func readReason(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxReasonBytes))
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	return strings.Join(strings.Fields(string(b)), " ")
}
