// Package config provides configuration loading, validation, and defaults for
// the Mediacord daemon.
//
// Configuration lives in a TOML file in the user's data directory. It holds
// the configured media servers, Discord application identities, display and
// privacy preferences, and daemon timing.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"tools.zach/dev/mediacord/internal/atomicfile"
	"tools.zach/dev/mediacord/internal/migrate"
	"tools.zach/dev/mediacord/internal/paths"
)

// Discord application IDs used when the config does not override them. Each
// media-server brand has its own application so the card shows the right
// name and artwork.
const (
	DefaultEmbyAppID     = "1275049385468063814"
	DefaultJellyfinAppID = "1275049764251336776"
)

// Server types.
const (
	TypeEmby     = "emby"
	TypeJellyfin = "jellyfin"
)

// Timestamp modes for the presence timer.
const (
	TimestampsElapsed   = "elapsed"
	TimestampsRemaining = "remaining"
)

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// DeviceID identifies this install to media servers. Generated on first load.
	DeviceID string `toml:"device_id"`
	// Discord holds Discord application settings.
	Discord DiscordConfig `toml:"discord"`
	// Display holds presence display settings.
	Display DisplayConfig `toml:"display"`
	// Privacy holds session filtering settings.
	Privacy PrivacyConfig `toml:"privacy"`
	// Behavior holds daemon timing settings.
	Behavior BehaviorConfig `toml:"behavior"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
	// Servers lists configured media servers. At most one is selected.
	Servers []Server `toml:"servers"`
}

// DiscordConfig holds the per-brand Discord application IDs.
type DiscordConfig struct {
	EmbyAppID     string `toml:"emby_app_id"`
	JellyfinAppID string `toml:"jellyfin_app_id"`
}

// DisplayConfig holds presence display settings.
type DisplayConfig struct {
	// Enabled turns presence display on or off without removing servers.
	Enabled bool `toml:"enabled"`
	// Timestamps selects the timer shown while playing: "elapsed" or "remaining".
	Timestamps string `toml:"timestamps"`
	// LargeImage is the Discord asset key for the large image.
	LargeImage string `toml:"large_image"`
	// PausedImage is the small image asset key shown while paused.
	PausedImage string `toml:"paused_image"`
	// PlayingImage is the small image asset key shown while playing.
	PlayingImage string `toml:"playing_image"`
}

// PrivacyConfig holds session filtering settings.
type PrivacyConfig struct {
	// IgnoreDevices is a list of glob patterns matched against a session's
	// device name and client name. Matching sessions are never shown.
	IgnoreDevices []string `toml:"ignore_devices"`
}

// BehaviorConfig holds daemon timing settings.
type BehaviorConfig struct {
	// PollIntervalSeconds is the refresh period when nothing with a known
	// duration is playing.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	// RefreshBufferMS is added to the remaining runtime when scheduling the
	// next refresh.
	RefreshBufferMS int `toml:"refresh_buffer_ms"`
	// RetryIntervalSeconds is the wait after a failed login.
	RetryIntervalSeconds int `toml:"retry_interval_seconds"`
	// ReconnectIntervalSeconds is the fixed Discord and websocket reconnect delay.
	ReconnectIntervalSeconds int `toml:"reconnect_interval_seconds"`
	// MaxSessionInactivitySeconds drops sessions idle for longer than this.
	MaxSessionInactivitySeconds int `toml:"max_session_inactivity_seconds"`
	// LiveUpdates subscribes to the server's websocket for immediate refreshes.
	LiveUpdates bool `toml:"live_updates"`
	// RequestTimeoutSeconds bounds each HTTP request to the media server.
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
	// RequestRetries is the retry count for idempotent media-server requests.
	RequestRetries int `toml:"request_retries"`
	// CheckUpdates enables the release check at startup.
	CheckUpdates bool `toml:"check_updates"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
	// Console mirrors log output to stderr.
	Console bool `toml:"console"`
}

// Server is one configured media server.
type Server struct {
	// ID is the server's own identifier, assigned on first login.
	ID       string `toml:"id"`
	Address  string `toml:"address"`
	Port     int    `toml:"port"`
	Protocol string `toml:"protocol"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	// Type is "emby" or "jellyfin".
	Type string `toml:"type"`
	// IgnoredViews holds library IDs excluded from presence.
	IgnoredViews []string `toml:"ignored_views"`
	Selected     bool     `toml:"selected"`
}

// BaseURL returns protocol://address:port.
func (s Server) BaseURL() string {
	u := url.URL{Scheme: s.Protocol, Host: s.Address + ":" + strconv.Itoa(s.Port)}
	return u.String()
}

// IsViewIgnored reports whether libraryID is in the ignored set.
func (s Server) IsViewIgnored(libraryID string) bool {
	return slices.Contains(s.IgnoredViews, libraryID)
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Discord: DiscordConfig{
			EmbyAppID:     DefaultEmbyAppID,
			JellyfinAppID: DefaultJellyfinAppID,
		},
		Display: DisplayConfig{
			Enabled:      true,
			Timestamps:   TimestampsRemaining,
			LargeImage:   "large",
			PausedImage:  "pause",
			PlayingImage: "play",
		},
		Privacy: PrivacyConfig{
			IgnoreDevices: []string{},
		},
		Behavior: BehaviorConfig{
			PollIntervalSeconds:         15,
			RefreshBufferMS:             1500,
			RetryIntervalSeconds:        15,
			ReconnectIntervalSeconds:    15,
			MaxSessionInactivitySeconds: 60,
			LiveUpdates:                 true,
			RequestTimeoutSeconds:       10,
			RequestRetries:              2,
			CheckUpdates:                true,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ///////////////////////////////////////////////
// Example Configuration
// ///////////////////////////////////////////////

// ExampleConfig returns a Config suitable for generating config.default.toml.
// Servers are left out; genconfig documents them as a commented block.
func ExampleConfig() *Config {
	return DefaultConfig()
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes.
// Returns 1 if the version field is missing or zero.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil {
		return 1
	}
	if v.Version == 0 {
		return 1
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses dataDir/config.toml. A missing file yields
// DefaultConfig. Older schemas are migrated and written back after a .bak
// copy is made, and a missing device ID is generated and persisted.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	version := PeekVersion(data)

	shouldSave := version != migrate.Config.CurrentVersion
	if shouldSave {
		if backupErr := atomicfile.Write(path+".bak", data, 0o600); backupErr != nil {
			slog.Warn("failed to write config backup", "error", backupErr)
		}
		var migrateErr error
		data, _, migrateErr = migrate.Config.Run(data, version)
		if migrateErr != nil {
			return nil, fmt.Errorf("migrate config: %w", migrateErr)
		}
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Version = migrate.Config.CurrentVersion

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
		shouldSave = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if shouldSave {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save config", "error", err)
		}
	}

	return cfg, nil
}

// Save writes the config to disk as TOML using atomic file write. The file
// holds server passwords, so it is created owner-only.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o600)
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Privacy.IgnoreDevices = slices.Clone(c.Privacy.IgnoreDevices)
	out.Servers = make([]Server, len(c.Servers))
	for i, s := range c.Servers {
		s.IgnoredViews = slices.Clone(s.IgnoredViews)
		out.Servers[i] = s
	}
	return &out
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	switch c.Display.Timestamps {
	case TimestampsElapsed, TimestampsRemaining:
	default:
		return fmt.Errorf("invalid display.timestamps %q: must be elapsed or remaining", c.Display.Timestamps)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}

	if c.Discord.EmbyAppID == "" || c.Discord.JellyfinAppID == "" {
		return errors.New("discord.emby_app_id and discord.jellyfin_app_id must be set")
	}

	positive := []struct {
		name  string
		value int
	}{
		{"poll_interval_seconds", c.Behavior.PollIntervalSeconds},
		{"retry_interval_seconds", c.Behavior.RetryIntervalSeconds},
		{"reconnect_interval_seconds", c.Behavior.ReconnectIntervalSeconds},
		{"max_session_inactivity_seconds", c.Behavior.MaxSessionInactivitySeconds},
		{"request_timeout_seconds", c.Behavior.RequestTimeoutSeconds},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be > 0, got %d", p.name, p.value)
		}
	}
	if c.Behavior.RefreshBufferMS < 0 {
		return fmt.Errorf("refresh_buffer_ms must be >= 0, got %d", c.Behavior.RefreshBufferMS)
	}
	if c.Behavior.RequestRetries < 0 {
		return fmt.Errorf("request_retries must be >= 0, got %d", c.Behavior.RequestRetries)
	}

	for _, pattern := range c.Privacy.IgnoreDevices {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid privacy.ignore_devices pattern %q", pattern)
		}
	}

	return c.validateServers()
}

// validateServers checks each server entry and the at-most-one-selected rule.
func (c *Config) validateServers() error {
	seen := make(map[string]bool, len(c.Servers))
	selected := 0
	for i, s := range c.Servers {
		if s.ID == "" {
			return fmt.Errorf("servers[%d]: id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("servers[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		if err := validateServerFields(s.Address, s.Port, s.Protocol, s.Username, s.Type); err != nil {
			return fmt.Errorf("servers[%d]: %w", i, err)
		}
		if s.Selected {
			selected++
		}
	}
	if selected > 1 {
		return fmt.Errorf("%d servers are selected, at most one may be", selected)
	}
	return nil
}

func validateServerFields(address string, port int, protocol, username, typ string) error {
	if address == "" || username == "" {
		return errors.New("address and username are required")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of range", port)
	}
	switch protocol {
	case "http", "https":
	default:
		return fmt.Errorf("invalid protocol %q: must be http or https", protocol)
	}
	switch typ {
	case TypeEmby, TypeJellyfin:
	default:
		return fmt.Errorf("invalid type %q: must be emby or jellyfin", typ)
	}
	return nil
}

// ///////////////////////////////////////////////
// Accessors
// ///////////////////////////////////////////////

// AppID returns the Discord application ID for a server type.
func (c *Config) AppID(serverType string) string {
	if serverType == TypeJellyfin {
		return c.Discord.JellyfinAppID
	}
	return c.Discord.EmbyAppID
}
