// google_fonts.go downloads fonts through the Google Fonts CSS API for brands
// that do not ship a local font file. Specs look like "google:Inter:800".
// Downloads are cached so repeated runs stay offline.

package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tdewolff/font"
)

const googleCSSURL = "https://fonts.googleapis.com/css2"

// fontURLRe pulls the first font file URL out of the CSS response.
var fontURLRe = regexp.MustCompile(`url\((https?://[^)]+)\)`)

// ParseGoogleFontSpec splits "google:Family:Weight".
func ParseGoogleFontSpec(spec string) (family, weight string, ok bool) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 || parts[0] != "google" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

type fontFetcher struct {
	client   *http.Client
	cssURL   string
	cacheDir string
}

func newFontFetcher(cacheDir string) *fontFetcher {
	return &fontFetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cssURL:   googleCSSURL,
		cacheDir: cacheDir,
	}
}

// Fetch returns SFNT font bytes for spec, from cache when possible.
func (f *fontFetcher) Fetch(spec string) ([]byte, error) {
	family, weight, ok := ParseGoogleFontSpec(spec)
	if !ok {
		return nil, fmt.Errorf("invalid google font spec %q: expected google:FAMILY:WEIGHT", spec)
	}

	cacheFile := filepath.Join(f.cacheDir, fmt.Sprintf("%s-%s.ttf", strings.ReplaceAll(family, " ", "_"), weight))
	if data, err := os.ReadFile(cacheFile); err == nil {
		return data, nil
	}

	q := url.Values{"family": {family + ":wght@" + weight}}
	// A modern UA gets WOFF2 URLs back, which ToSFNT handles.
	css, err := f.get(f.cssURL+"?"+q.Encode(), 1<<20, "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	if err != nil {
		return nil, fmt.Errorf("fetch css for %s wght@%s: %w", family, weight, err)
	}
	m := fontURLRe.FindSubmatch(css)
	if m == nil {
		return nil, fmt.Errorf("no font URL in css for %s wght@%s", family, weight)
	}

	data, err := f.get(string(m[1]), 10<<20, "")
	if err != nil {
		return nil, fmt.Errorf("download font: %w", err)
	}
	if data, err = toSFNT(data); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(f.cacheDir, 0o755); err == nil {
		if err := os.WriteFile(cacheFile, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "  warning: cache font: %v\n", err)
		}
	}
	return data, nil
}

func (f *fontFetcher) get(u string, limit int64, ua string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// toSFNT converts WOFF2 data to SFNT and passes anything else through.
func toSFNT(data []byte) ([]byte, error) {
	if len(data) < 4 || string(data[:4]) != "wOF2" {
		return data, nil
	}
	sfnt, err := font.ToSFNT(data)
	if err != nil {
		return nil, fmt.Errorf("convert woff2 to sfnt: %w", err)
	}
	return sfnt, nil
}
