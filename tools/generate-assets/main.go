// gen-assets renders the Discord Rich Presence images Mediacord references
// by key (large, play, pause) for each brand's Discord application.
//
// Reads brands and styling from data/assets.json and writes
// {out}/{brand}/{key}.png. Upload the results to the matching Discord app
// under the same keys as [display] in config.toml.
//
// Fonts are only needed for letter assets and resolve per brand:
//  1. Local file from the "font" field
//  2. Google Fonts download from "font_fallback" (e.g. "google:Inter:800")
//
// Usage:
//
//	cd tools/generate-assets && go run .
//	cd tools/generate-assets && go run . -assets ../../data/assets.json -out ../../assets/discord
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/image/font/opentype"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("gen-assets", flag.ContinueOnError)
	assetsFile := fs.String("assets", "../../data/assets.json", "Path to assets.json")
	outDir := fs.String("out", "../../assets/discord", "Output directory (writes {out}/{brand}/{key}.png)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Font paths in assets.json are relative to the repo root.
	repoRoot, err := filepath.Abs(filepath.Join(filepath.Dir(*assetsFile), ".."))
	if err != nil {
		return fmt.Errorf("resolve repo root: %w", err)
	}
	fetcher := newFontFetcher(filepath.Join(repoRoot, "assets", "fonts", ".cache"))

	data, err := LoadAssetData(*assetsFile)
	if err != nil {
		return fmt.Errorf("load assets: %w", err)
	}
	if len(data.Brands) == 0 {
		return errors.New("no brands defined in assets.json")
	}

	total := 0
	for _, brand := range slices.Sorted(maps.Keys(data.Brands)) {
		bc := data.Brands[brand]
		fmt.Fprintf(stdout, "[%s]\n", brand)

		var otFont *opentype.Font
		if data.NeedsFont(brand) {
			raw, err := resolveFont(bc, repoRoot, fetcher, stdout)
			if err != nil {
				return fmt.Errorf("%s: %w", brand, err)
			}
			if otFont, err = opentype.Parse(raw); err != nil {
				return fmt.Errorf("%s: parse font: %w", brand, err)
			}
		}

		dir := filepath.Join(*outDir, brand)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		for _, key := range slices.Sorted(maps.Keys(bc.Assets)) {
			style := data.Resolved(brand, key)
			png, err := RenderAsset(style, bc.Letter, otFont)
			if err != nil {
				return fmt.Errorf("render %s/%s: %w", brand, key, err)
			}
			if err := os.WriteFile(filepath.Join(dir, key+".png"), png, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "  %s.png (%s)\n", key, style.Kind)
			total++
		}
	}

	fmt.Fprintf(stdout, "Done. Generated %d assets for %d brands.\n", total, len(data.Brands))
	return nil
}

func resolveFont(bc BrandConfig, repoRoot string, fetcher *fontFetcher, stdout io.Writer) ([]byte, error) {
	if bc.Font != "" {
		if raw, err := os.ReadFile(filepath.Join(repoRoot, bc.Font)); err == nil {
			fmt.Fprintf(stdout, "  font: %s (local)\n", bc.Font)
			return toSFNT(raw)
		}
	}
	if bc.FontFallback != "" {
		fmt.Fprintf(stdout, "  font: %s\n", bc.FontFallback)
		return fetcher.Fetch(bc.FontFallback)
	}
	return nil, errors.New(`no font available (set "font" or "font_fallback" in assets.json)`)
}
