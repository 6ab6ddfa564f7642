package mediaserver

import (
	"bytes"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
)

// ServerType selects the brand-specific URL layout and auth header.
type ServerType string

const (
	Emby     ServerType = "emby"
	Jellyfin ServerType = "jellyfin"
)

// ItemType is the media item kind reported by the server.
type ItemType string

const (
	ItemEpisode    ItemType = "Episode"
	ItemMovie      ItemType = "Movie"
	ItemMusicVideo ItemType = "MusicVideo"
	ItemAudio      ItemType = "Audio"
)

// TicksPerSecond converts the server's 100 ns ticks to seconds.
const TicksPerSecond = 10_000_000

// TicksToDuration converts server ticks to a time.Duration.
func TicksToDuration(ticks int64) time.Duration {
	return time.Duration(ticks) * 100 * time.Nanosecond
}

// ///////////////////////////////////////////////
// Sessions
// ///////////////////////////////////////////////

// PlayState is the playback position of a session.
type PlayState struct {
	IsPaused      bool  `json:"IsPaused"`
	PositionTicks int64 `json:"PositionTicks"`
}

// Session is one client connection as reported by GET /Sessions.
type Session struct {
	ID               string     `json:"Id"`
	UserID           string     `json:"UserId"`
	UserName         string     `json:"UserName"`
	Client           string     `json:"Client"`
	DeviceName       string     `json:"DeviceName"`
	DeviceID         string     `json:"DeviceId"`
	RemoteEndPoint   string     `json:"RemoteEndPoint"`
	LastActivityDate string     `json:"LastActivityDate"`
	NowPlayingItem   *MediaItem `json:"NowPlayingItem"`
	PlayState        PlayState  `json:"PlayState"`
}

// LastActivity parses LastActivityDate. ok is false when the server sent
// nothing usable.
func (s Session) LastActivity() (t time.Time, ok bool) {
	if s.LastActivityDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s.LastActivityDate)
	if err != nil || t.Year() < 2000 {
		return time.Time{}, false
	}
	return t, true
}

// LogValue keeps the client address out of logs.
func (s Session) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", s.ID),
		slog.String("user", s.UserName),
		slog.String("client", s.Client),
		slog.String("device", s.DeviceName),
		slog.String("remote_endpoint", RedactEndpoint(s.RemoteEndPoint)),
	}
	if s.NowPlayingItem != nil {
		attrs = append(attrs, slog.String("item", s.NowPlayingItem.ID))
	}
	return slog.GroupValue(attrs...)
}

// MediaItem is the item a session is playing.
type MediaItem struct {
	ID                string   `json:"Id"`
	Type              ItemType `json:"Type"`
	Name              string   `json:"Name"`
	SeriesName        string   `json:"SeriesName"`
	ParentIndexNumber *int     `json:"ParentIndexNumber"`
	IndexNumber       *int     `json:"IndexNumber"`
	ProductionYear    *int     `json:"ProductionYear"`
	RunTimeTicks      int64    `json:"RunTimeTicks"`
	Artists           NameList `json:"Artists"`
	AlbumArtists      NameList `json:"AlbumArtists"`
}

// NameList decodes either a list of strings or a list of {"Name": ...}
// objects, both of which servers use for artist fields.
type NameList []string

func (n *NameList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(NameList, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Name string `json:"Name"`
		}
		if err := json.Unmarshal(r, &obj); err != nil {
			return err
		}
		out = append(out, obj.Name)
	}
	*n = out
	return nil
}

// ///////////////////////////////////////////////
// Auth and Views
// ///////////////////////////////////////////////

// Credentials are the user's login details. Password may be empty.
type Credentials struct {
	Username string
	Password string
}

// AuthResult is the outcome of a successful login.
type AuthResult struct {
	AccessToken string
	ServerID    string
	UserID      string
}

// View is a top-level library in the user's home screen.
type View struct {
	ID             string `json:"Id"`
	Name           string `json:"Name"`
	CollectionType string `json:"CollectionType"`
}

type authRequest struct {
	Username string `json:"Username"`
	Pw       string `json:"Pw"`
}

type authResponse struct {
	AccessToken string `json:"AccessToken"`
	ServerID    string `json:"ServerId"`
	User        struct {
		ID   string `json:"Id"`
		Name string `json:"Name"`
	} `json:"User"`
}

type capabilitiesRequest struct {
	IconURL              string   `json:"IconUrl,omitempty"`
	PlayableMediaTypes   []string `json:"PlayableMediaTypes"`
	SupportedCommands    []string `json:"SupportedCommands"`
	SupportsMediaControl bool     `json:"SupportsMediaControl"`
}

type ancestor struct {
	ID   string `json:"Id"`
	Type string `json:"Type"`
}

type viewsResponse struct {
	Items []View `json:"Items"`
}
