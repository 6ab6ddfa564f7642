// render.go draws the PNG assets. Letter assets center a capital letter on a
// solid square; play and pause assets rasterize the transport glyph with
// golang.org/x/image/vector.

package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// RenderAsset renders one asset and returns the PNG bytes. otFont may be nil
// for glyph-only kinds.
func RenderAsset(style AssetStyle, letter string, otFont *opentype.Font) ([]byte, error) {
	if style.Size <= 0 {
		return nil, fmt.Errorf("size must be positive, got %d", style.Size)
	}
	bg, err := ParseHexColor(style.BgColor)
	if err != nil {
		return nil, fmt.Errorf("parse bg_color: %w", err)
	}
	fg, err := ParseHexColor(style.FgColor)
	if err != nil {
		return nil, fmt.Errorf("parse fg_color: %w", err)
	}

	img := image.NewNRGBA(image.Rect(0, 0, style.Size, style.Size))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	switch style.Kind {
	case KindPlay:
		drawPlay(img, fg)
	case KindPause:
		drawPause(img, fg)
	default:
		if otFont == nil {
			return nil, fmt.Errorf("letter asset needs a font")
		}
		if err := drawLetter(img, strings.ToUpper(letter[:1]), style.FontSize, otFont, fg); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawLetter(img *image.NRGBA, letter string, size int, otFont *opentype.Font, fg color.NRGBA) error {
	face, err := opentype.NewFace(otFont, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	// Center on the glyph's ink box, not its advance.
	bounds, _ := font.BoundString(face, letter)
	w := (bounds.Max.X - bounds.Min.X).Ceil()
	h := (bounds.Max.Y - bounds.Min.Y).Ceil()
	side := img.Bounds().Dx()

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P((side-w)/2-bounds.Min.X.Floor(), (side-h)/2-bounds.Min.Y.Floor()),
	}
	d.DrawString(letter)
	return nil
}

// drawPlay fills a right-pointing triangle spanning the middle half of the
// canvas, nudged right so it looks optically centered.
func drawPlay(img *image.NRGBA, fg color.NRGBA) {
	s := float32(img.Bounds().Dx())
	z := vector.NewRasterizer(int(s), int(s))
	z.MoveTo(s*0.32, s*0.25)
	z.LineTo(s*0.76, s*0.5)
	z.LineTo(s*0.32, s*0.75)
	z.ClosePath()
	z.Draw(img, img.Bounds(), image.NewUniform(fg), image.Point{})
}

// drawPause fills two vertical bars.
func drawPause(img *image.NRGBA, fg color.NRGBA) {
	s := float32(img.Bounds().Dx())
	z := vector.NewRasterizer(int(s), int(s))
	for _, x := range []float32{0.28, 0.56} {
		z.MoveTo(s*x, s*0.25)
		z.LineTo(s*(x+0.16), s*0.25)
		z.LineTo(s*(x+0.16), s*0.75)
		z.LineTo(s*x, s*0.75)
		z.ClosePath()
	}
	z.Draw(img, img.Bounds(), image.NewUniform(fg), image.Point{})
}
