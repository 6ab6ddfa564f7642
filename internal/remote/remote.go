// Package remote builds the GitHub URLs the daemon links to: the release
// feed for update checks and raw files such as the rich presence icon.
//
// The repository comes from -X ldflags on release builds and from the
// origin remote of the working tree otherwise.
package remote

import (
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"sync"
	"time"
)

// Stamped by release builds:
//
//	-X tools.zach/dev/mediacord/internal/remote.ldOwner=...
//	-X tools.zach/dev/mediacord/internal/remote.ldRepo=...
var (
	ldOwner string
	ldRepo  string
)

// Repository identifies a GitHub repository.
type Repository struct {
	Owner string
	Name  string
}

func (r Repository) valid() bool {
	return r.Owner != "" && r.Name != ""
}

// url joins base, the owner/name pair and suffix, or returns "" when the
// repository is unknown.
func (r Repository) url(base, suffix string) string {
	if !r.valid() {
		return ""
	}
	return base + r.Owner + "/" + r.Name + suffix
}

var originRe = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/.\s]+)`)

// ParseOrigin extracts the repository from an https or ssh GitHub remote.
func ParseOrigin(s string) (Repository, bool) {
	m := originRe.FindStringSubmatch(s)
	if m == nil {
		return Repository{}, false
	}
	return Repository{Owner: m[1], Name: m[2]}, true
}

var current = sync.OnceValue(func() Repository {
	if r := (Repository{Owner: ldOwner, Name: ldRepo}); r.valid() {
		return r
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "git", "remote", "get-url", "origin").Output()
	if err != nil {
		slog.Debug("no repository stamped and git origin unavailable", "error", err)
		return Repository{}
	}
	r, _ := ParseOrigin(string(out))
	return r
})

// RawURL returns the raw URL of path on the main branch.
func RawURL(path string) string {
	return current().url("https://raw.githubusercontent.com/", "/main/"+path)
}

// LatestReleaseURL returns the API endpoint describing the newest release.
func LatestReleaseURL() string {
	return current().url("https://api.github.com/repos/", "/releases/latest")
}

// ReleasesPage returns the browser page of the newest release.
func ReleasesPage() string {
	return current().url("https://github.com/", "/releases/latest")
}
