package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}

func rgba(c color.Color) color.NRGBA {
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

func TestRenderLetter(t *testing.T) {
	otFont, err := opentype.Parse(gobold.TTF)
	if err != nil {
		t.Fatalf("parse gofont: %v", err)
	}
	style := AssetStyle{Kind: KindLetter, BgColor: "#AA5CC3", FgColor: "#FFFFFF", Size: 256, FontSize: 170}

	data, err := RenderAsset(style, "jellyfin", otFont)
	if err != nil {
		t.Fatalf("RenderAsset: %v", err)
	}
	img := decode(t, data)
	if b := img.Bounds(); b.Dx() != 256 || b.Dy() != 256 {
		t.Errorf("image size = %dx%d, want 256x256", b.Dx(), b.Dy())
	}
	if got := rgba(img.At(0, 0)); got != (color.NRGBA{R: 0xAA, G: 0x5C, B: 0xC3, A: 255}) {
		t.Errorf("corner = %v, want background", got)
	}
}

func TestRenderGlyphs(t *testing.T) {
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	tests := []struct {
		kind  string
		inked image.Point
		blank image.Point
	}{
		// Triangle body versus the area above its top vertex.
		{KindPlay, image.Pt(128, 128), image.Pt(64, 40)},
		// Left bar versus the gap between bars.
		{KindPause, image.Pt(90, 128), image.Pt(128, 128)},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			style := AssetStyle{Kind: tt.kind, BgColor: "#000000", FgColor: "#FFFFFF", Size: 256}
			data, err := RenderAsset(style, "", nil)
			if err != nil {
				t.Fatalf("RenderAsset: %v", err)
			}
			img := decode(t, data)
			if got := rgba(img.At(tt.inked.X, tt.inked.Y)); got != white {
				t.Errorf("pixel %v = %v, want foreground", tt.inked, got)
			}
			if got := rgba(img.At(tt.blank.X, tt.blank.Y)); got == white {
				t.Errorf("pixel %v is foreground, want background", tt.blank)
			}
		})
	}
}

func TestRenderAssetErrors(t *testing.T) {
	tests := []struct {
		name  string
		style AssetStyle
	}{
		{"bad color", AssetStyle{Kind: KindPlay, BgColor: "not-a-color", FgColor: "#FFFFFF", Size: 64}},
		{"zero size", AssetStyle{Kind: KindPlay, BgColor: "#000000", FgColor: "#FFFFFF"}},
		{"letter without font", AssetStyle{Kind: KindLetter, BgColor: "#000000", FgColor: "#FFFFFF", Size: 64, FontSize: 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RenderAsset(tt.style, "E", nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}
