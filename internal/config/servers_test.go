package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func server(id string) Server {
	return Server{ID: id, Address: id + ".lan", Port: 8096, Protocol: "http", Username: "me", Type: TypeEmby}
}

func TestServerInput_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   ServerInput
		want ServerInput
	}{
		{
			name: "fills defaults",
			in:   ServerInput{Address: " media.lan ", Username: " me ", Type: "Emby"},
			want: ServerInput{Address: "media.lan", Port: 8096, Protocol: "http", Username: "me", Type: "emby"},
		},
		{
			name: "scheme in address sets protocol",
			in:   ServerInput{Address: "https://media.lan/", Port: 443, Type: "jellyfin", Username: "u"},
			want: ServerInput{Address: "media.lan", Port: 443, Protocol: "https", Type: "jellyfin", Username: "u"},
		},
		{
			name: "explicit protocol wins",
			in:   ServerInput{Address: "http://media.lan", Protocol: "HTTPS", Port: 1, Username: "u", Type: "emby"},
			want: ServerInput{Address: "media.lan", Protocol: "https", Port: 1, Username: "u", Type: "emby"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestValidateServerInput(t *testing.T) {
	ok := ServerInput{Address: "h", Port: 8096, Protocol: "http", Username: "u", Type: TypeJellyfin}
	require.NoError(t, ValidateServerInput(ok))

	err := ValidateServerInput(ServerInput{Port: 0, Protocol: "ftp", Type: "plex"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"address", "port", "protocol", "username", "type"}, verr.Fields)
	assert.Contains(t, err.Error(), "address, port")
}

func TestConfig_AddServerSelectsNewest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AddServer(server("a"))
	cfg.AddServer(server("b"))

	sel, ok := cfg.SelectedServer()
	require.True(t, ok)
	assert.Equal(t, "b", sel.ID)
	a, _ := cfg.Server("a")
	assert.False(t, a.Selected)
	require.NoError(t, cfg.Validate())
}

func TestConfig_AddServerReplacesKeepingViews(t *testing.T) {
	cfg := DefaultConfig()
	s := server("a")
	s.IgnoredViews = []string{"lib"}
	cfg.AddServer(s)

	updated := server("a")
	updated.Password = "new"
	cfg.AddServer(updated)

	require.Len(t, cfg.Servers, 1)
	assert.Equal(t, "new", cfg.Servers[0].Password)
	assert.Equal(t, []string{"lib"}, cfg.Servers[0].IgnoredViews)
}

func TestConfig_SelectServer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AddServer(server("a"))
	cfg.AddServer(server("b"))

	require.NoError(t, cfg.SelectServer("a"))
	sel, _ := cfg.SelectedServer()
	assert.Equal(t, "a", sel.ID)

	err := cfg.SelectServer("missing")
	assert.ErrorIs(t, err, ErrServerNotFound)
	sel, _ = cfg.SelectedServer()
	assert.Equal(t, "a", sel.ID, "failed select must not change selection")
}

func TestConfig_RemoveServer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AddServer(server("a"))
	cfg.AddServer(server("b"))

	removed, err := cfg.RemoveServer("b")
	require.NoError(t, err)
	assert.True(t, removed.Selected)
	_, ok := cfg.SelectedServer()
	assert.False(t, ok, "removing the selected server leaves none selected")

	_, err = cfg.RemoveServer("b")
	assert.ErrorIs(t, err, ErrServerNotFound)
}

func TestConfig_ToggleIgnoredView(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AddServer(server("a"))

	ignored, err := cfg.ToggleIgnoredView("a", "lib1")
	require.NoError(t, err)
	assert.True(t, ignored)
	s, _ := cfg.Server("a")
	assert.True(t, s.IsViewIgnored("lib1"))

	ignored, err = cfg.ToggleIgnoredView("a", "lib1")
	require.NoError(t, err)
	assert.False(t, ignored)
	s, _ = cfg.Server("a")
	assert.False(t, s.IsViewIgnored("lib1"))

	_, err = cfg.ToggleIgnoredView("zzz", "lib1")
	assert.ErrorIs(t, err, ErrServerNotFound)
}

func TestConfig_RenameServer(t *testing.T) {
	cfg := DefaultConfig()
	a := server("a")
	a.IgnoredViews = []string{"lib1"}
	cfg.AddServer(a)

	require.NoError(t, cfg.RenameServer("a", "srv-1"))
	_, ok := cfg.Server("a")
	assert.False(t, ok)
	s, ok := cfg.Server("srv-1")
	require.True(t, ok)
	assert.True(t, s.Selected)
	assert.True(t, s.IsViewIgnored("lib1"))

	err := cfg.RenameServer("a", "b")
	assert.True(t, errors.Is(err, ErrServerNotFound))
}

func TestConfig_RenameServerOntoExisting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AddServer(server("old"))
	cfg.AddServer(server("new"))
	cfg.AddServer(server("tmp"))

	require.NoError(t, cfg.RenameServer("tmp", "old"))
	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, "new", cfg.Servers[0].ID)
	assert.Equal(t, "old", cfg.Servers[1].ID)
	assert.True(t, cfg.Servers[1].Selected)
	require.NoError(t, cfg.Validate())
}
