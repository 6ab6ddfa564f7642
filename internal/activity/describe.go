package activity

import (
	"fmt"
	"strings"
	"time"

	"tools.zach/dev/mediacord/internal/mediaserver"
)

// Timestamp preferences, matching config display.timestamps.
const (
	ModeElapsed   = "elapsed"
	ModeRemaining = "remaining"
)

// Options carries the display settings Build needs.
type Options struct {
	Timestamps   string // ModeElapsed or ModeRemaining
	LargeImage   string
	PausedImage  string
	PlayingImage string
}

// Build maps a playing session to a payload. s.NowPlayingItem must be set.
//
// Paused sessions carry no timer. Otherwise the timer follows
// opts.Timestamps, falling back to elapsed when the runtime is unknown.
func Build(s mediaserver.Session, now time.Time, opts Options) Payload {
	item := s.NowPlayingItem
	details, state := Describe(item)

	verb := "Watching"
	if item.Type == mediaserver.ItemAudio {
		verb = "Listening"
	}

	p := Payload{
		Details:    details,
		State:      state,
		LargeImage: opts.LargeImage,
		LargeText:  verb + " on " + s.Client,
		SmallImage: opts.PlayingImage,
		SmallText:  "Playing",
	}
	if s.PlayState.IsPaused {
		p.SmallImage = opts.PausedImage
		p.SmallText = "Paused"
		return p
	}

	start, end := Timing(s, now)
	if opts.Timestamps == ModeRemaining && !end.IsZero() {
		p.Timer = Timer{Mode: TimerEnd, At: end}
	} else {
		p.Timer = Timer{Mode: TimerStart, At: start}
	}
	return p
}

// Timing returns when playback notionally started and when it will end,
// given the session's position at now. end is zero if the runtime is
// unknown or already passed.
func Timing(s mediaserver.Session, now time.Time) (start, end time.Time) {
	pos := s.PlayState.PositionTicks
	if pos < 0 {
		pos = 0
	}
	start = now.Add(-mediaserver.TicksToDuration(pos))
	if item := s.NowPlayingItem; item != nil && item.RunTimeTicks > pos {
		end = now.Add(mediaserver.TicksToDuration(item.RunTimeTicks - pos))
	}
	return start, end
}

// Describe returns the two text lines for item.
func Describe(item *mediaserver.MediaItem) (details, state string) {
	switch item.Type {
	case mediaserver.ItemEpisode:
		series := item.SeriesName
		if series == "" {
			series = item.Name
		}
		return "Watching " + withYear(series, item.ProductionYear), episodeState(item)
	case mediaserver.ItemMovie:
		return "Watching a Movie", withYear(item.Name, item.ProductionYear)
	case mediaserver.ItemMusicVideo:
		return "Watching " + withYear(item.Name, item.ProductionYear), "By " + artists(item.Artists, nil)
	case mediaserver.ItemAudio:
		return "Listening to " + withYear(item.Name, item.ProductionYear), "By " + artists(item.Artists, item.AlbumArtists)
	default:
		return "Watching Other Content", item.Name
	}
}

func withYear(name string, year *int) string {
	if year == nil || *year <= 0 {
		return name
	}
	return fmt.Sprintf("%s (%d)", name, *year)
}

// episodeState renders "S01E02: Name", dropping whichever number is missing.
func episodeState(item *mediaserver.MediaItem) string {
	var b strings.Builder
	if item.ParentIndexNumber != nil {
		fmt.Fprintf(&b, "S%02d", *item.ParentIndexNumber)
	}
	if item.IndexNumber != nil {
		fmt.Fprintf(&b, "E%02d", *item.IndexNumber)
	}
	if b.Len() == 0 {
		return item.Name
	}
	if item.Name != "" {
		b.WriteString(": ")
		b.WriteString(item.Name)
	}
	return b.String()
}

// artists joins the first two names of primary, or of fallback when primary
// is empty.
func artists(primary, fallback []string) string {
	names := nonEmpty(primary)
	if len(names) == 0 {
		names = nonEmpty(fallback)
	}
	if len(names) == 0 {
		return "Unknown Artist"
	}
	return strings.Join(names[:min(2, len(names))], ", ")
}

func nonEmpty(names []string) []string {
	var out []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
