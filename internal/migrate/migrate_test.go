package migrate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendStep(v int, s string) Migration {
	return Migration{Version: v, Description: "append " + s, Upgrade: func(d []byte) ([]byte, error) {
		return append(d, s...), nil
	}}
}

func TestRegistryRunsInOrder(t *testing.T) {
	r := &Registry{Name: "doc", CurrentVersion: 4}
	r.Register(appendStep(4, "-v4"))
	r.Register(appendStep(2, "-v2"))
	r.Register(appendStep(3, "-v3"))

	tests := []struct {
		from        int
		wantData    string
		wantVersion int
	}{
		{1, "doc-v2-v3-v4", 4},
		{2, "doc-v3-v4", 4},
		{4, "doc", 4},
	}
	for _, tt := range tests {
		out, version, err := r.Run([]byte("doc"), tt.from)
		require.NoError(t, err)
		assert.Equal(t, tt.wantData, string(out), "from v%d", tt.from)
		assert.Equal(t, tt.wantVersion, version, "from v%d", tt.from)
	}
}

func TestRegistryStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	r := &Registry{Name: "doc", CurrentVersion: 3}
	r.Register(appendStep(2, "-v2"))
	r.Register(Migration{Version: 3, Upgrade: func([]byte) ([]byte, error) { return nil, boom }})

	_, version, err := r.Run([]byte("doc"), 1)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "doc migration to v3")
	assert.Equal(t, 2, version)
}

func TestRegistryRefusesNewerDocuments(t *testing.T) {
	r := &Registry{Name: "doc", CurrentVersion: 2}
	_, version, err := r.Run([]byte("doc"), 5)
	assert.ErrorContains(t, err, "newer than supported")
	assert.Equal(t, 5, version)
}

func TestRegistryPending(t *testing.T) {
	r := &Registry{Name: "doc", CurrentVersion: 5}
	r.Register(appendStep(3, ""))
	r.Register(appendStep(5, ""))

	versions := func(ms []Migration) []int {
		var out []int
		for _, m := range ms {
			out = append(out, m.Version)
		}
		return out
	}
	assert.Equal(t, []int{3, 5}, versions(r.Pending(0)))
	assert.Equal(t, []int{5}, versions(r.Pending(3)))
	assert.Empty(t, r.Pending(5))
}

func TestRegisterPanics(t *testing.T) {
	r := &Registry{Name: "doc", CurrentVersion: 2}
	r.Register(appendStep(2, ""))
	assert.Panics(t, func() { r.Register(appendStep(2, "again")) })
	assert.Panics(t, func() { r.Register(appendStep(3, "")) })
}

func TestConfigRegistry(t *testing.T) {
	assert.Equal(t, "config", Config.Name)
	assert.Equal(t, 2, Config.CurrentVersion)
}
