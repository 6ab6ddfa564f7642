// config.go defines the asset manifest read by the gen-assets tool.
// [AssetData] is deserialized from data/assets.json; each brand lists the
// Discord image keys it needs and how each one is drawn.

package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Asset kinds. A letter asset draws the brand's letter; play and pause draw
// the transport glyphs used as the small presence image.
const (
	KindLetter = "letter"
	KindPlay   = "play"
	KindPause  = "pause"
)

// AssetStyle is the visual styling for one rendered image.
type AssetStyle struct {
	// Kind selects what is drawn (letter, play, pause).
	Kind string `json:"kind,omitempty"`
	// BgColor is the background hex color (e.g. "#52B54B").
	BgColor string `json:"bg_color,omitempty"`
	// FgColor is the foreground hex color.
	FgColor string `json:"fg_color,omitempty"`
	// Size is the square image dimension in pixels. Discord wants >= 512 for
	// large images.
	Size int `json:"size,omitempty"`
	// FontSize is the font size in points at 72 DPI. Letter assets only.
	FontSize int `json:"font_size,omitempty"`
}

// BrandConfig holds the assets for one Discord application (emby, jellyfin).
type BrandConfig struct {
	// Letter is drawn on letter assets.
	Letter string `json:"letter"`
	// Font is the local font file path relative to the repo root.
	Font string `json:"font,omitempty"`
	// FontFallback is a Google Fonts spec (e.g. "google:Inter:800").
	FontFallback string `json:"font_fallback,omitempty"`
	// Defaults is inherited by every asset of this brand.
	Defaults AssetStyle `json:"defaults"`
	// Assets maps Discord image keys (large, play, pause) to their style.
	Assets map[string]AssetStyle `json:"assets"`
}

// AssetData is the top-level manifest.
type AssetData struct {
	Defaults AssetStyle             `json:"defaults"`
	Brands   map[string]BrandConfig `json:"brands"`
}

// Resolved returns the effective style for a brand's asset with inheritance
// applied: global defaults, then brand defaults, then the asset itself.
func (d *AssetData) Resolved(brand, key string) AssetStyle {
	st := d.Defaults
	bc, ok := d.Brands[brand]
	if !ok {
		return st
	}
	mergeStyle(&st, bc.Defaults)
	if as, ok := bc.Assets[key]; ok {
		mergeStyle(&st, as)
	}
	if st.Kind == "" {
		st.Kind = KindLetter
	}
	return st
}

func mergeStyle(dst *AssetStyle, src AssetStyle) {
	if src.Kind != "" {
		dst.Kind = src.Kind
	}
	if src.BgColor != "" {
		dst.BgColor = src.BgColor
	}
	if src.FgColor != "" {
		dst.FgColor = src.FgColor
	}
	if src.Size != 0 {
		dst.Size = src.Size
	}
	if src.FontSize != 0 {
		dst.FontSize = src.FontSize
	}
}

// NeedsFont reports whether any of the brand's assets draws text.
func (d *AssetData) NeedsFont(brand string) bool {
	for key := range d.Brands[brand].Assets {
		if d.Resolved(brand, key).Kind == KindLetter {
			return true
		}
	}
	return false
}

// LoadAssetData reads and validates an assets.json file.
func LoadAssetData(path string) (*AssetData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ad AssetData
	if err := json.Unmarshal(data, &ad); err != nil {
		return nil, err
	}
	for brand, bc := range ad.Brands {
		for key := range bc.Assets {
			switch ad.Resolved(brand, key).Kind {
			case KindLetter:
				if bc.Letter == "" {
					return nil, fmt.Errorf("%s/%s: letter asset but brand has no letter", brand, key)
				}
			case KindPlay, KindPause:
			default:
				return nil, fmt.Errorf("%s/%s: unknown kind %q", brand, key, ad.Resolved(brand, key).Kind)
			}
		}
	}
	return &ad, nil
}
