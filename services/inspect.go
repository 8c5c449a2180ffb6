package services

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dsoprea/go-exif/v3"
	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/shawn-cake/smooshboost/models"
)

// EmbeddedMetadata is what an image file actually carries, read back from
// its bytes.
type EmbeddedMetadata struct {
	Format      models.InputFormat `json:"format"`
	GeoTag      *models.GeoTag     `json:"geo_tag,omitempty"`
	Copyright   string             `json:"copyright,omitempty"`
	Author      string             `json:"author,omitempty"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	// Tags holds every EXIF tag or PNG text entry by name.
	Tags map[string]string `json:"tags"`
}

// InspectMetadata reads the EXIF (JPEG, WebP) or tEXt (PNG) metadata of an image.
func InspectMetadata(data []byte) (*EmbeddedMetadata, error) {
	format, ok := DetectFormatFromBytes(data)
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	md := &EmbeddedMetadata{Format: format, Tags: map[string]string{}}

	switch format {
	case models.InputPNG:
		entries, err := ReadPNGText(data)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			md.Tags[e.Keyword] = e.Text
		}
		md.Copyright = md.Tags["Copyright"]
		md.Author = md.Tags["Author"]
		md.Title = md.Tags["Title"]
		md.Description = md.Tags["Description"]
		return md, nil
	case models.InputJPG:
		raw, err := exif.SearchAndExtractExif(data)
		if err != nil {
			if errors.Is(err, exif.ErrNoExif) {
				return md, nil
			}
			return nil, fmt.Errorf("failed to read EXIF: %w", err)
		}
		return md, readExifInto(md, raw)
	default:
		chunks, err := parseWebPChunks(data)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			if c.FourCC == "EXIF" {
				return md, readExifInto(md, trimExifPrefix(c.Data))
			}
		}
		return md, nil
	}
}

func readExifInto(md *EmbeddedMetadata, raw []byte) error {
	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return fmt.Errorf("failed to parse EXIF: %w", err)
	}
	for _, e := range entries {
		key := e.TagName
		if _, exists := md.Tags[key]; exists {
			key = e.IfdPath + "/" + key
		}
		md.Tags[key] = e.Formatted
		if e.IfdPath != "IFD" {
			continue
		}
		val := exifString(e)
		switch e.TagName {
		case "Copyright":
			md.Copyright = val
		case "Artist":
			md.Author = val
		case "DocumentName":
			md.Title = val
		case "ImageDescription":
			md.Description = val
		}
	}

	if x, err := goexif.Decode(bytes.NewReader(raw)); err == nil {
		if lat, lng, err := x.LatLong(); err == nil {
			md.GeoTag = &models.GeoTag{Latitude: lat, Longitude: lng}
		}
	}
	return nil
}

// exifString prefers the decoded ASCII value over the formatted one, which
// is quoted for some tag types.
func exifString(e exif.ExifTag) string {
	if s, ok := e.Value.(string); ok {
		return strings.TrimRight(s, "\x00")
	}
	return e.Formatted
}
