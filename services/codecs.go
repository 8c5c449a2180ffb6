package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/gen2brain/jpegli"
	_ "golang.org/x/image/webp"
)

// Decoder turns an encoded image into pixels.
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// Encoder turns pixels into an encoded image.
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
}

// Optimizer recompresses an encoded image losslessly at the given level.
type Optimizer interface {
	Optimise(data []byte, level int) ([]byte, error)
}

// StdDecoder decodes PNG, JPEG and WebP through the image package registry.
type StdDecoder struct{}

func (StdDecoder) Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// JpegliEncoder produces the "mozjpeg" engine output.
type JpegliEncoder struct {
	Quality int
}

func (e JpegliEncoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	err := jpegli.Encode(&buf, FlattenIfAlpha(img, color.White), &jpegli.EncodingOptions{
		Quality:           e.Quality,
		ChromaSubsampling: image.YCbCrSubsampleRatio420,
	})
	if err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

type WebPEncoder struct {
	Quality float32
}

func (e WebPEncoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: e.Quality}); err != nil {
		return nil, fmt.Errorf("webp encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// PNGOptimizer re-encodes PNG data with stronger deflate settings. Levels
// at or below 1 use the default compressor, higher levels the best one. The
// input is returned when re-encoding does not shrink it.
type PNGOptimizer struct {
	Decoder Decoder
}

func (o PNGOptimizer) Optimise(data []byte, level int) ([]byte, error) {
	dec := o.Decoder
	if dec == nil {
		dec = StdDecoder{}
	}
	img, err := dec.Decode(data)
	if err != nil {
		return nil, err
	}
	out, err := encodePNG(img, level)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(data, pngSignature) && len(out) >= len(data) {
		return data, nil
	}
	return out, nil
}

func encodePNG(img image.Image, level int) ([]byte, error) {
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if level > 1 {
		enc.CompressionLevel = png.BestCompression
	}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png encode failed: %w", err)
	}
	return buf.Bytes(), nil
}
