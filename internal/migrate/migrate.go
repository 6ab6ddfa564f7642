// Package migrate upgrades versioned on-disk documents one schema step at a
// time.
package migrate

import (
	"fmt"
	"log/slog"
	"slices"
)

// Migration produces schema Version from the version before it.
type Migration struct {
	Version     int
	Description string
	Upgrade     func(data []byte) ([]byte, error)
}

// Registry holds the upgrade path of one document kind, ordered by version.
type Registry struct {
	// Name identifies the document in errors and logs, e.g. "config".
	Name string
	// CurrentVersion is the schema version this binary writes.
	CurrentVersion int

	steps []Migration
}

// Config is the registry for config.toml. Version 2 introduced the
// [[servers]] array; its upgrade lives in the config package.
var Config = &Registry{Name: "config", CurrentVersion: 2}

// Register adds m. Registering a version twice, or one beyond
// CurrentVersion, is a programming error and panics.
func (r *Registry) Register(m Migration) {
	if m.Version > r.CurrentVersion {
		panic(fmt.Sprintf("migrate: %s: v%d is newer than current version %d", r.Name, m.Version, r.CurrentVersion))
	}
	i, found := slices.BinarySearchFunc(r.steps, m.Version, func(s Migration, v int) int { return s.Version - v })
	if found {
		panic(fmt.Sprintf("migrate: %s: v%d registered twice (%q, %q)", r.Name, m.Version, r.steps[i].Description, m.Description))
	}
	r.steps = slices.Insert(r.steps, i, m)
}

// Pending returns the steps a document at version from still needs.
func (r *Registry) Pending(from int) []Migration {
	i, _ := slices.BinarySearchFunc(r.steps, from+1, func(s Migration, v int) int { return s.Version - v })
	return r.steps[i:]
}

// Run upgrades data from version from, lowest step first, and returns the
// version reached. On failure that is the version before the failing step.
// Documents newer than CurrentVersion are refused.
func (r *Registry) Run(data []byte, from int) ([]byte, int, error) {
	if from > r.CurrentVersion {
		return nil, from, fmt.Errorf("%s version %d is newer than supported version %d", r.Name, from, r.CurrentVersion)
	}
	version := from
	for _, m := range r.Pending(from) {
		slog.Info("applying migration", "document", r.Name, "version", m.Version, "description", m.Description)
		out, err := m.Upgrade(data)
		if err != nil {
			return nil, version, fmt.Errorf("%s migration to v%d: %w", r.Name, m.Version, err)
		}
		data, version = out, m.Version
	}
	return data, version, nil
}
