package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrigin(t *testing.T) {
	tests := map[string]Repository{
		"https://github.com/zach/mediacord":          {"zach", "mediacord"},
		"https://github.com/zach/mediacord.git":      {"zach", "mediacord"},
		"git@github.com:zach/mediacord.git\n":        {"zach", "mediacord"},
		"ssh://git@github.com/media-org/jf-rpc.git": {"media-org", "jf-rpc"},
	}
	for in, want := range tests {
		got, ok := ParseOrigin(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "https://gitlab.com/zach/mediacord.git", "/srv/git/mediacord"} {
		_, ok := ParseOrigin(in)
		assert.False(t, ok, in)
	}
}

func TestRepositoryURLs(t *testing.T) {
	r := Repository{Owner: "zach", Name: "mediacord"}
	assert.Equal(t, "https://github.com/zach/mediacord/releases/latest", r.url("https://github.com/", "/releases/latest"))
	assert.Empty(t, Repository{Owner: "zach"}.url("https://github.com/", "/releases/latest"))
}

func TestURLHelpers(t *testing.T) {
	orig := current
	t.Cleanup(func() { current = orig })
	current = func() Repository { return Repository{Owner: "zach", Name: "mediacord"} }

	assert.Equal(t, "https://raw.githubusercontent.com/zach/mediacord/main/assets/icon.png", RawURL("assets/icon.png"))
	assert.Equal(t, "https://api.github.com/repos/zach/mediacord/releases/latest", LatestReleaseURL())
	assert.Equal(t, "https://github.com/zach/mediacord/releases/latest", ReleasesPage())

	current = func() Repository { return Repository{} }
	assert.Empty(t, RawURL("x"))
	assert.Empty(t, ReleasesPage())
}
