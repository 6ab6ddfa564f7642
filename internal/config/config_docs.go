package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "display.timestamps")
// to their [FieldDoc] entries. Section-level entries ("servers") document a
// whole table.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version. Do not edit.",
	},
	"device_id": {
		Comment: "Identifies this install to your media servers.\nGenerated on first start when empty.",
	},

	// ── Discord ──────────────────────────────────────────────────
	"discord.emby_app_id": {
		Comment: "Discord application IDs, one per server brand.\nOverride with your own Discord apps for custom names or artwork.",
	},
	"discord.jellyfin_app_id": {},

	// ── Display ──────────────────────────────────────────────────
	"display.enabled": {
		Comment: "Show presence at all. Toggle with `mediacord display on|off`.",
	},
	"display.timestamps": {
		Comment: "Timer shown while playing. Options: \"remaining\", \"elapsed\"",
		Alternatives: []string{
			`timestamps = "elapsed"`,
		},
	},
	"display.large_image": {
		Comment: "Discord image keys (must match assets uploaded to your Discord app)",
	},
	"display.paused_image": {},
	"display.playing_image": {},

	// ── Privacy ──────────────────────────────────────────────────
	"privacy.ignore_devices": {
		Comment: "Glob patterns matched against a session's device and client name.\nMatching sessions never show up on Discord. Case-insensitive.",
		Alternatives: []string{
			`ignore_devices = ["Living Room*", "*Chromecast*"]`,
		},
	},

	// ── Behavior ─────────────────────────────────────────────────
	"behavior.poll_interval_seconds": {
		Comment: "Refresh period while nothing with a known length is playing.",
	},
	"behavior.refresh_buffer_ms": {
		Comment: "Extra wait after the current item should end before checking again.",
	},
	"behavior.retry_interval_seconds": {
		Comment: "Wait after a failed login before trying again.",
	},
	"behavior.reconnect_interval_seconds": {
		Comment: "Fixed delay between Discord and live-update reconnect attempts.",
	},
	"behavior.max_session_inactivity_seconds": {
		Comment: "Ignore sessions with no activity for longer than this.",
	},
	"behavior.live_updates": {
		Comment: "Listen on the server's websocket and refresh as soon as playback changes.",
	},
	"behavior.request_timeout_seconds": {},
	"behavior.request_retries": {
		Comment: "Retries for read-only requests. Logins are never retried.",
	},
	"behavior.check_updates": {
		Comment: "Check GitHub for a newer release at startup.",
	},

	// ── Log ──────────────────────────────────────────────────────
	"log.level": {
		Comment: "Options: \"trace\", \"debug\", \"info\", \"warn\", \"error\"",
	},
	"log.max_size_mb": {},
	"log.console": {
		Comment: "Also write log lines to stderr.",
	},

	// ── Servers ──────────────────────────────────────────────────
	"servers": {
		Comment: "Media servers. Add them with `mediacord server add` rather than by hand;\nthe id is assigned by the server on first login. At most one is selected.",
		Alternatives: []string{
			`[[servers]]`,
			`id = "4f1c0d9c2e6b4a7f9d3e8b1a5c7d2e90"`,
			`address = "192.168.1.20"`,
			`port = 8096`,
			`protocol = "http"`,
			`username = "me"`,
			`password = ""`,
			`type = "jellyfin"`,
			`ignored_views = []`,
			`selected = true`,
		},
	},
	"servers.id":            {},
	"servers.address":       {},
	"servers.port":          {},
	"servers.protocol":      {},
	"servers.username":      {},
	"servers.password":      {},
	"servers.type":          {},
	"servers.ignored_views": {},
	"servers.selected":      {},
}
