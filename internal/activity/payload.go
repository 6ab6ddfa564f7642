// Package activity turns media-server sessions into Discord presence
// payloads. Everything here is pure: no I/O and no clocks other than the
// time passed in.
package activity

import (
	"time"
	"unicode/utf8"

	"tools.zach/dev/mediacord/internal/discord"
)

// ///////////////////////////////////////////////
// Timer
// ///////////////////////////////////////////////

// TimerMode says which Discord timer a payload carries. A payload has at
// most one: an elapsed timer from a start time or a countdown to an end time.
type TimerMode int

const (
	TimerNone TimerMode = iota
	TimerStart
	TimerEnd
)

func (m TimerMode) String() string {
	switch m {
	case TimerStart:
		return "start"
	case TimerEnd:
		return "end"
	default:
		return "none"
	}
}

// Timer is the payload's single optional timestamp.
type Timer struct {
	Mode TimerMode
	At   time.Time
}

// ///////////////////////////////////////////////
// Payload
// ///////////////////////////////////////////////

// Payload is one presence update.
type Payload struct {
	Details    string
	State      string
	LargeImage string
	LargeText  string
	SmallImage string
	SmallText  string
	Timer      Timer
}

// discordMaxLen is the limit Discord puts on details and state.
const discordMaxLen = 128

// Activity converts p to the IPC wire type.
func (p Payload) Activity() *discord.Activity {
	a := &discord.Activity{
		Details: truncate(p.Details),
		State:   truncate(p.State),
	}
	switch p.Timer.Mode {
	case TimerStart:
		a.Timestamps = &discord.Timestamps{Start: p.Timer.At.Unix()}
	case TimerEnd:
		a.Timestamps = &discord.Timestamps{End: p.Timer.At.Unix()}
	}
	if p.LargeImage != "" || p.LargeText != "" || p.SmallImage != "" || p.SmallText != "" {
		a.Assets = &discord.Assets{
			LargeImage: p.LargeImage,
			LargeText:  truncate(p.LargeText),
			SmallImage: p.SmallImage,
			SmallText:  p.SmallText,
		}
	}
	return a
}

// Same reports whether a and b would render identically, allowing their
// timers to differ by up to tolerance. Repeated polls of the same playback
// compute slightly different timestamps; those are not worth a resend.
func Same(a, b Payload, tolerance time.Duration) bool {
	ta, tb := a.Timer, b.Timer
	a.Timer, b.Timer = Timer{}, Timer{}
	if a != b || ta.Mode != tb.Mode {
		return false
	}
	d := ta.At.Sub(tb.At)
	return d <= tolerance && d >= -tolerance
}

// truncate shortens s to Discord's limit, counting runes.
func truncate(s string) string {
	if utf8.RuneCountInString(s) <= discordMaxLen {
		return s
	}
	r := []rune(s)
	return string(r[:discordMaxLen-1]) + "…"
}
