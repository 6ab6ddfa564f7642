// Command genconfig renders config.default.toml, the commented config that
// mediacord seeds on first run, from config.ExampleConfig and
// config.ConfigDocs. go generate runs it from internal/config.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tools.zach/dev/mediacord/internal/atomicfile"
	"tools.zach/dev/mediacord/internal/config"
)

func main() {
	out := flag.String("out", "../../config.default.toml", "file to write")
	flag.Parse()

	text, err := render(config.ExampleConfig(), config.ConfigDocs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: %v\n", err)
		os.Exit(1)
	}
	if err := atomicfile.Write(*out, []byte(text), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *out)
}

// render encodes cfg as TOML and interleaves the docs: a comment above each
// key, its alternatives commented out below it, and documented keys the
// encoder omitted as commented entries at the end of their section.
// Configured servers are dropped; the servers table is described by a
// trailing comment block instead.
func render(cfg *config.Config, docs map[string]config.FieldDoc) (string, error) {
	cfg = cfg.Clone()
	cfg.Servers = nil

	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(cfg); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}

	r := &renderer{docs: docs, emitted: map[string]bool{}}
	r.lines = []string{
		"# ///////////////////////////////////////////////",
		"# Mediacord Configuration",
		"# ///////////////////////////////////////////////",
		"",
	}
	for line := range strings.Lines(raw.String()) {
		r.line(strings.TrimSpace(line))
	}
	r.closeSection()

	if doc, ok := docs["servers"]; ok {
		r.banner("servers")
		r.comment(doc.Comment)
		r.lines = append(r.lines, "")
		r.alternatives(doc)
	}
	return strings.TrimRight(strings.Join(r.lines, "\n"), "\n") + "\n", nil
}

type renderer struct {
	docs    map[string]config.FieldDoc
	lines   []string
	section string
	emitted map[string]bool
}

func (r *renderer) line(s string) {
	switch {
	case s == "":
	case strings.HasPrefix(s, "[") && !strings.HasPrefix(s, "[["):
		r.closeSection()
		r.section = strings.Trim(s, "[] ")
		r.banner(r.section)
		r.comment(r.docs[r.section].Comment)
		r.lines = append(r.lines, s)
	case strings.HasPrefix(s, "#") || !strings.Contains(s, "="):
		r.lines = append(r.lines, s)
	default:
		key, _, _ := strings.Cut(s, "=")
		path := r.path(strings.TrimSpace(key))
		r.emitted[path] = true
		doc := r.docs[path]
		r.comment(doc.Comment)
		r.lines = append(r.lines, s)
		r.alternatives(doc)
	}
}

func (r *renderer) path(key string) string {
	if r.section == "" {
		return key
	}
	return r.section + "." + key
}

func (r *renderer) banner(section string) {
	r.lines = append(r.lines, "", "# ///// "+sectionName(section)+" /////", "")
}

func (r *renderer) comment(text string) {
	if text == "" {
		return
	}
	for cl := range strings.SplitSeq(text, "\n") {
		r.lines = append(r.lines, "# "+cl)
	}
}

func (r *renderer) alternatives(doc config.FieldDoc) {
	for _, alt := range doc.Alternatives {
		r.lines = append(r.lines, "# "+alt)
	}
}

// closeSection emits the documented direct keys of the current section
// that were not encoded, in key order.
func (r *renderer) closeSection() {
	if r.section == "" {
		return
	}
	prefix := r.section + "."
	var missing []string
	for path := range r.docs {
		rest, ok := strings.CutPrefix(path, prefix)
		if ok && !strings.Contains(rest, ".") && !r.emitted[path] {
			missing = append(missing, path)
		}
	}
	slices.Sort(missing)

	for _, path := range missing {
		r.lines = append(r.lines, "")
		r.comment(r.docs[path].Comment)
		r.alternatives(r.docs[path])
		r.emitted[path] = true
	}
}

var titler = cases.Title(language.English)

// sectionName is the banner title for a dotted section header: its last
// segment, title-cased.
func sectionName(section string) string {
	if i := strings.LastIndexByte(section, '.'); i >= 0 {
		section = section[i+1:]
	}
	return titler.String(section)
}
