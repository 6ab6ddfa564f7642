// Package update checks GitHub for a newer release of the daemon.
package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"

	"tools.zach/dev/mediacord/internal/paths"
	"tools.zach/dev/mediacord/internal/remote"
)

// ///////////////////////////////////////////////
// Release Lookup
// ///////////////////////////////////////////////

var (
	releaseURL     string
	releaseURLOnce sync.Once
)

// getReleaseURL lazily resolves the latest-release API URL.
func getReleaseURL() string {
	releaseURLOnce.Do(func() { releaseURL = remote.LatestReleaseURL() })
	return releaseURL
}

// Release is the subset of the GitHub release object we read.
type Release struct {
	Tag string `json:"tag_name"`
	URL string `json:"html_url"`
}

// Result is the outcome of a check.
type Result struct {
	Current string
	Latest  Release
	// Newer is true when Latest is a higher semantic version than Current.
	Newer bool
}

// Check fetches the latest release and compares it with current. Versions
// that are not semantic (dev builds) never report a newer release.
func Check(ctx context.Context, current string) (*Result, error) {
	url := getReleaseURL()
	if url == "" {
		return nil, fmt.Errorf("no release URL configured")
	}
	rel, err := fetchLatest(ctx, url)
	if err != nil {
		return nil, err
	}
	return &Result{
		Current: current,
		Latest:  *rel,
		Newer:   rel.Tag != "" && semverLess(current, rel.Tag),
	}, nil
}

// fetchLatest GETs the release object, retrying transient failures.
func fetchLatest(ctx context.Context, url string) (*Release, error) {
	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.Logger = nil

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", paths.BinaryName)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256<<10))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var rel Release
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, fmt.Errorf("parsing release: %w", err)
	}
	return &rel, nil
}

// ///////////////////////////////////////////////
// Semver Comparison
// ///////////////////////////////////////////////

// semverLess reports whether version a is strictly less than b. Both may
// carry a "v" prefix and pre-release or build suffixes. A pre-release sorts
// before the release with the same numbers. Unparseable input compares
// false.
func semverLess(a, b string) bool {
	pa := parseSemver(a)
	pb := parseSemver(b)
	if pa == nil || pb == nil {
		return false
	}
	for i := range 3 {
		if pa[i] < pb[i] {
			return true
		}
		if pa[i] > pb[i] {
			return false
		}
	}
	return hasPreRelease(a) && !hasPreRelease(b)
}

// hasPreRelease reports whether s has a "-" pre-release suffix.
func hasPreRelease(s string) bool {
	s = strings.TrimPrefix(s, "v")
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	return strings.Contains(s, "-")
}

// parseSemver parses "major.minor.patch" into three ints, or nil.
func parseSemver(s string) []int {
	s = strings.TrimPrefix(s, "v")
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return nil
	}
	result := make([]int, 3)
	for i, p := range parts {
		if idx := strings.IndexAny(p, "-+"); idx >= 0 {
			p = p[:idx]
		}
		if p == "" {
			return nil
		}
		n := 0
		for _, c := range p {
			if c < '0' || c > '9' {
				return nil
			}
			n = n*10 + int(c-'0')
		}
		result[i] = n
	}
	return result
}
