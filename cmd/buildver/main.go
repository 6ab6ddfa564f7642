// Package main prints the SemVer build version that gets stamped into
// mediacord via -ldflags "-X main.version=...".
//
//	No tags, clean:     0.1.0-dev+05ffee5
//	No tags, dirty:     0.1.0-dev+05ffee5.dirty
//	On tag v0.2.0:      0.2.0
//	Dirty tag:          0.2.0-dirty
//	3 past v0.2.0:      0.2.0-dev.3+g1234567
//	Same but dirty:     0.2.0-dev.3+g1234567.dirty
//
// The untagged base comes from the "." entry of .release-manifest.json.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"tools.zach/dev/mediacord/internal/paths"
)

func main() {
	manifest := flag.String("manifest", paths.ReleaseManifest, "release manifest holding the base version")
	flag.Parse()

	b := builder{git: runGit, manifest: *manifest}
	fmt.Print(b.version())
}

type builder struct {
	git      func(args ...string) (string, error)
	manifest string
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	return strings.TrimSpace(string(out)), err
}

func (b builder) version() string {
	if desc, err := b.git("describe", "--tags", "--match", "v*", "--dirty"); err == nil && desc != "" {
		return formatDescribe(desc)
	}

	base := baseVersion(b.manifest)
	hash, err := b.git("rev-parse", "--short=7", "HEAD")
	if err != nil || hash == "" {
		return base + "-dev"
	}
	if b.dirty() {
		return fmt.Sprintf("%s-dev+%s.dirty", base, hash)
	}
	return fmt.Sprintf("%s-dev+%s", base, hash)
}

func (b builder) dirty() bool {
	out, err := b.git("status", "--porcelain")
	return err == nil && out != ""
}

// describeRe matches git describe output: <tag>[-<n>-g<hash>][-dirty].
var describeRe = regexp.MustCompile(`^v?(.+?)(?:-(\d+)-(g[0-9a-f]+))?(-dirty)?$`)

// formatDescribe turns "v0.2.0-3-g1234567-dirty" into "0.2.0-dev.3+g1234567.dirty".
func formatDescribe(desc string) string {
	m := describeRe.FindStringSubmatch(desc)
	if m == nil {
		return strings.TrimPrefix(desc, "v")
	}
	tag, n, hash, dirty := m[1], m[2], m[3], m[4] != ""
	if n == "" {
		if dirty {
			return tag + "-dirty"
		}
		return tag
	}
	meta := hash
	if dirty {
		meta += ".dirty"
	}
	return fmt.Sprintf("%s-dev.%s+%s", tag, n, meta)
}

// baseVersion reads the "." entry of the release manifest, or "0.0.0".
func baseVersion(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "0.0.0"
	}
	var manifest map[string]string
	if err := json.Unmarshal(data, &manifest); err != nil {
		return "0.0.0"
	}
	if v := manifest["."]; v != "" {
		return v
	}
	return "0.0.0"
}
