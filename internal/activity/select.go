package activity

import (
	"log/slog"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/cases"

	"tools.zach/dev/mediacord/internal/mediaserver"
)

// Selector describes which session belongs to the configured user.
type Selector struct {
	// Username is matched case-insensitively against Session.UserName.
	Username string
	// OwnDeviceID excludes this agent's own session.
	OwnDeviceID string
	// IgnoreDevices are glob patterns matched case-insensitively against
	// the session's device name and client name.
	IgnoreDevices []string
	// Logger receives skip decisions. Nil uses slog.Default.
	Logger *slog.Logger
}

// SelectSession returns the first session, in server order, that belongs
// to the user, is playing something, and is not excluded.
func SelectSession(sessions []mediaserver.Session, sel Selector) (*mediaserver.Session, bool) {
	logger := sel.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fold := cases.Fold()
	want := fold.String(sel.Username)
	for i := range sessions {
		s := &sessions[i]
		if s.NowPlayingItem == nil {
			continue
		}
		if fold.String(s.UserName) != want {
			continue
		}
		if sel.OwnDeviceID != "" && s.DeviceID == sel.OwnDeviceID {
			continue
		}
		if deviceIgnored(logger, sel.IgnoreDevices, s) {
			logger.Debug("skipping ignored device", "device", s.DeviceName, "client", s.Client)
			continue
		}
		return s, true
	}
	return nil, false
}

func deviceIgnored(logger *slog.Logger, patterns []string, s *mediaserver.Session) bool {
	if len(patterns) == 0 {
		return false
	}
	names := []string{strings.ToLower(s.DeviceName), strings.ToLower(s.Client)}
	for _, p := range patterns {
		p = strings.ToLower(p)
		for _, name := range names {
			if name == "" {
				continue
			}
			ok, err := doublestar.Match(p, name)
			if err != nil {
				logger.Warn("invalid ignore pattern", "pattern", p, "error", err)
				break
			}
			if ok {
				return true
			}
		}
	}
	return false
}
