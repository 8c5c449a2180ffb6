package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/bbrks/go-blurhash"
	xdraw "golang.org/x/image/draw"
)

// Preview is what the queue shows for an image before it is processed.
type Preview struct {
	Width     int
	Height    int
	Blurhash  string
	Thumbnail []byte
}

// BuildPreview decodes data once and derives its dimensions, a blurhash and a
// small JPEG thumbnail bounded by size on its longest side.
func BuildPreview(dec Decoder, data []byte, cfg ThumbnailConfig) (*Preview, error) {
	img, err := dec.Decode(data)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	p := &Preview{Width: b.Dx(), Height: b.Dy()}

	thumb := FitWithin(img, cfg.Size)
	if hash, err := blurhash.Encode(4, 3, thumb); err == nil {
		p.Blurhash = hash
	}

	quality := cfg.Quality
	if quality <= 0 {
		quality = 80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, FlattenIfAlpha(thumb, color.White), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	p.Thumbnail = buf.Bytes()
	return p, nil
}

// FitWithin scales src down so neither side exceeds max, keeping the aspect
// ratio. Images that already fit, or max <= 0, are returned unchanged.
func FitWithin(src image.Image, max int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if max <= 0 || (w <= max && h <= max) {
		return src
	}
	scale := float64(max) / float64(w)
	if h > w {
		scale = float64(max) / float64(h)
	}
	tw := int(float64(w)*scale + 0.5)
	th := int(float64(h)*scale + 0.5)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

// FlattenIfAlpha composites translucent images onto bg. Opaque images are
// returned unchanged.
func FlattenIfAlpha(src image.Image, bg color.Color) image.Image {
	if isOpaque(src) {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
