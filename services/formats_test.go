package services

import (
	"testing"

	"github.com/shawn-cake/smooshboost/models"
	"github.com/stretchr/testify/assert"
)

func TestMatchingOutputFormat(t *testing.T) {
	assert.Equal(t, models.OutputPNG, MatchingOutputFormat(models.InputPNG))
	assert.Equal(t, models.OutputMozJPG, MatchingOutputFormat(models.InputJPG))
	assert.Equal(t, models.OutputWebP, MatchingOutputFormat(models.InputWebP))
}

func TestChooseOutputFormat(t *testing.T) {
	assert.Equal(t, models.OutputMozJPG, ChooseOutputFormat(models.InputJPG, models.FormatModeMatch, models.OutputWebP))
	assert.Equal(t, models.OutputWebP, ChooseOutputFormat(models.InputJPG, models.FormatModeConvert, models.OutputWebP))
	assert.Equal(t, models.OutputPNG, ChooseOutputFormat(models.InputPNG, models.FormatModeConvert, "gif"))
}

func TestDetectInputFormat(t *testing.T) {
	cases := map[string]models.InputFormat{
		"image/png":  models.InputPNG,
		"image/jpeg": models.InputJPG,
		"IMAGE/JPG":  models.InputJPG,
		"image/webp": models.InputWebP,
	}
	for mime, want := range cases {
		got, ok := DetectInputFormat(mime)
		assert.True(t, ok, mime)
		assert.Equal(t, want, got, mime)
	}
	_, ok := DetectInputFormat("image/gif")
	assert.False(t, ok)
}

func TestDetectFormatFromBytes(t *testing.T) {
	got, ok := DetectFormatFromBytes(encodeTestPNG(t, 4, 4))
	assert.True(t, ok)
	assert.Equal(t, models.InputPNG, got)

	got, ok = DetectFormatFromBytes(encodeTestJPEG(t, 4, 4))
	assert.True(t, ok)
	assert.Equal(t, models.InputJPG, got)

	got, ok = DetectFormatFromBytes([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "))
	assert.True(t, ok)
	assert.Equal(t, models.InputWebP, got)

	_, ok = DetectFormatFromBytes([]byte("GIF89a"))
	assert.False(t, ok)
}

func TestOutputFilename(t *testing.T) {
	assert.Equal(t, "photo.webp", OutputFilename("photo.jpeg", models.OutputWebP))
	assert.Equal(t, "shot.final.jpg", OutputFilename("shot.final.png", models.OutputMozJPG))
	assert.Equal(t, "image.png", OutputFilename(".png", models.OutputPNG))
	assert.Equal(t, "image/webp", OutputMIME(models.OutputWebP))
}
