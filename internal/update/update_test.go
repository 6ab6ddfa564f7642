package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
)

// ///////////////////////////////////////////////
// Semver
// ///////////////////////////////////////////////

func TestParseSemver(t *testing.T) {
	tests := []struct {
		input string
		want  []int
	}{
		{"1.2.3", []int{1, 2, 3}},
		{"v1.2.3", []int{1, 2, 3}},
		{"0.0.0-dev", []int{0, 0, 0}},
		{"1.0.0-beta+build123", []int{1, 0, 0}},
		{"1.2.3+metadata", []int{1, 2, 3}},
		{"10.20.30", []int{10, 20, 30}},

		{"", nil},
		{"1.2", nil},
		{"v", nil},
		{"1.2.x", nil},
		{"1..3", nil},
		{"dev+abc1234", nil},
		{"1.2.3.4", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseSemver(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseSemver(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSemverLess(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{"equal versions", "1.2.3", "1.2.3", false},
		{"a < b major", "0.9.9", "1.0.0", true},
		{"a > b major", "2.0.0", "1.9.9", false},
		{"a < b minor", "1.0.0", "1.1.0", true},
		{"a < b patch", "1.0.0", "1.0.1", true},
		{"mixed prefix", "0.1.0", "v0.2.0", true},
		{"pre-release less than release", "0.1.0-dev", "0.1.0", true},
		{"release not less than pre-release", "0.1.0", "0.1.0-dev", false},
		{"build metadata is not a pre-release", "1.0.0+build", "1.0.0", false},
		{"dev build never older", "dev+abc1234", "9.9.9", false},
		{"empty b", "1.0.0", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := semverLess(tt.a, tt.b); got != tt.want {
				t.Errorf("semverLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Check
// ///////////////////////////////////////////////

// withReleaseURL points Check at url for the duration of the test.
func withReleaseURL(t *testing.T, url string) {
	t.Helper()
	releaseURLOnce.Do(func() {})
	old := releaseURL
	releaseURL = url
	t.Cleanup(func() { releaseURL = old })
}

func releaseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "mediacord" {
			t.Errorf("User-Agent = %q, want mediacord", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheck_NewerVersionAvailable(t *testing.T) {
	srv := releaseServer(t, `{"tag_name":"v1.2.0","html_url":"https://github.com/zach/mediacord/releases/tag/v1.2.0"}`)
	withReleaseURL(t, srv.URL)

	res, err := Check(context.Background(), "1.0.0")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Newer {
		t.Error("expected a newer release")
	}
	if res.Latest.Tag != "v1.2.0" {
		t.Errorf("tag = %q", res.Latest.Tag)
	}
}

func TestCheck_SameVersion(t *testing.T) {
	srv := releaseServer(t, `{"tag_name":"v1.0.0"}`)
	withReleaseURL(t, srv.URL)

	res, err := Check(context.Background(), "1.0.0")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Newer {
		t.Error("same version reported as newer")
	}
}

func TestCheck_NoURL(t *testing.T) {
	withReleaseURL(t, "")
	if _, err := Check(context.Background(), "1.0.0"); err == nil {
		t.Fatal("expected error without a release URL")
	}
}

func TestFetchLatest_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"tag_name":"v2.0.0"}`))
	}))
	defer srv.Close()

	rel, err := fetchLatest(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetchLatest: %v", err)
	}
	if rel.Tag != "v2.0.0" {
		t.Errorf("tag = %q", rel.Tag)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestFetchLatest_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := fetchLatest(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestFetchLatest_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	if _, err := fetchLatest(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
