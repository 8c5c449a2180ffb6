package services

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/shawn-cake/smooshboost/models"
)

var (
	pngSignature  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpegSignature = []byte{0xFF, 0xD8, 0xFF}
)

// DetectInputFormat maps a declared MIME type to an input format.
func DetectInputFormat(mimeType string) (models.InputFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return models.InputPNG, true
	case "image/jpeg", "image/jpg":
		return models.InputJPG, true
	case "image/webp":
		return models.InputWebP, true
	}
	return "", false
}

// DetectFormatFromBytes identifies the container from its magic bytes.
func DetectFormatFromBytes(data []byte) (models.InputFormat, bool) {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return models.InputPNG, true
	case bytes.HasPrefix(data, jpegSignature):
		return models.InputJPG, true
	case isWebP(data):
		return models.InputWebP, true
	}
	return "", false
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

// MatchingOutputFormat returns the output format that keeps the input's container.
func MatchingOutputFormat(in models.InputFormat) models.OutputFormat {
	switch in {
	case models.InputJPG:
		return models.OutputMozJPG
	case models.InputWebP:
		return models.OutputWebP
	}
	return models.OutputPNG
}

// ChooseOutputFormat applies the queue's format mode to an input format.
func ChooseOutputFormat(in models.InputFormat, mode models.FormatMode, convertTo models.OutputFormat) models.OutputFormat {
	if mode == models.FormatModeConvert && convertTo.Valid() {
		return convertTo
	}
	return MatchingOutputFormat(in)
}

func OutputExtension(out models.OutputFormat) string {
	switch out {
	case models.OutputMozJPG:
		return ".jpg"
	case models.OutputWebP:
		return ".webp"
	}
	return ".png"
}

func OutputMIME(out models.OutputFormat) string {
	switch out {
	case models.OutputMozJPG:
		return "image/jpeg"
	case models.OutputWebP:
		return "image/webp"
	}
	return "image/png"
}

// OutputFilename swaps the extension of name for the output format's.
func OutputFilename(name string, out models.OutputFormat) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		base = "image"
	}
	return base + OutputExtension(out)
}

// inputEmbedFormat maps an untouched original to the injector's format key.
func inputEmbedFormat(in models.InputFormat) string {
	if in == models.InputJPG {
		return string(models.OutputMozJPG)
	}
	return string(in)
}
