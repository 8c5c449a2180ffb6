package services

import (
	"fmt"

	"github.com/shawn-cake/smooshboost/models"
)

// GPSCapabilityWarning is the capability-table warning for formats without GPS.
const GPSCapabilityWarning = "GPS coordinates are not supported in PNG format. Consider using JPG or WebP."

// InvalidCoordinatesWarning is reported when a geotag is dropped for being out of range.
const InvalidCoordinatesWarning = "GPS coordinates are out of range and were not embedded."

// InjectionResult is the output of one metadata injection.
type InjectionResult struct {
	Data     []byte
	Applied  models.AppliedMetadata
	Warnings []string
}

// MetadataInjector sanitizes metadata options and hands them to the embedder
// matching the image format.
type MetadataInjector struct {
	limits MetadataLimits
}

func NewMetadataInjector(limits MetadataLimits) *MetadataInjector {
	return &MetadataInjector{limits: limits}
}

// ValidateForFormat lists the warnings for options the format cannot carry.
func ValidateForFormat(format string, opts models.MetadataOptions) []string {
	caps, ok := models.MetadataCapabilities[format]
	if !ok {
		return []string{fmt.Sprintf("Unknown format: %s", format)}
	}
	var warnings []string
	if opts.GeoActionable() && !caps.GeoTag {
		warnings = append(warnings, GPSCapabilityWarning)
	}
	return warnings
}

// Inject embeds opts into data for format. When nothing is actionable data
// is returned as is. Embedder failures are wrapped in ErrMetadataInjectionFailed.
func (mi *MetadataInjector) Inject(data []byte, format string, opts models.MetadataOptions) (*InjectionResult, error) {
	var dropped []string
	if opts.GeoActionable() && !ValidCoordinates(*opts.GeoTag.Latitude, *opts.GeoTag.Longitude) {
		opts.GeoTag.Enabled = false
		dropped = append(dropped, InvalidCoordinatesWarning)
	}
	warnings := append(ValidateForFormat(format, opts), dropped...)
	result := &InjectionResult{Data: data, Warnings: warnings}

	caps, known := models.MetadataCapabilities[format]
	if !known || !opts.HasMetadataToInject() {
		return result, nil
	}

	clean := SanitizeMetadata(opts, mi.limits)
	if !clean.HasMetadataToInject() {
		return result, nil
	}
	fields, applied := resolveFields(clean, caps)
	if fields.empty() {
		return result, nil
	}

	var (
		out      []byte
		embedErr error
		extra    []string
	)
	switch format {
	case "jpg", "mozjpg":
		out, embedErr = EmbedJPEGMetadata(data, fields)
	case "webp":
		out, embedErr = EmbedWebPMetadata(data, fields)
	case "png":
		out, extra, embedErr = EmbedPNGMetadata(data, pngEntries(fields), clean.GeoActionable())
	}
	if embedErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataInjectionFailed, embedErr)
	}

	result.Data = out
	result.Applied = applied
	result.Warnings = mergeWarnings(warnings, extra)
	return result, nil
}

// resolveFields picks the sanitized values that the format supports and
// records which of them count as applied.
func resolveFields(opts models.MetadataOptions, caps models.FormatCapabilities) (exifFields, models.AppliedMetadata) {
	var f exifFields
	var applied models.AppliedMetadata

	if opts.GeoActionable() && caps.GeoTag {
		f.GPS = &gpsPoint{Latitude: *opts.GeoTag.Latitude, Longitude: *opts.GeoTag.Longitude}
		applied.GeoTag = &models.GeoTag{
			Latitude:  f.GPS.Latitude,
			Longitude: f.GPS.Longitude,
			Address:   opts.GeoTag.Address,
		}
	}
	if opts.Copyright.Enabled && caps.Copyright {
		if opts.Copyright.Text != "" {
			f.Copyright = opts.Copyright.Text
			applied.Copyright = stringPtr(f.Copyright)
		}
		f.Artist = opts.Copyright.Author
	}
	if opts.TitleDesc.Enabled && caps.TitleDesc {
		if opts.TitleDesc.Title != "" {
			f.Title = opts.TitleDesc.Title
			applied.Title = stringPtr(f.Title)
		}
		if opts.TitleDesc.Description != "" {
			f.Description = opts.TitleDesc.Description
			applied.Description = stringPtr(f.Description)
		}
	}
	return f, applied
}

func pngEntries(f exifFields) []pngTextEntry {
	return []pngTextEntry{
		{Keyword: "Copyright", Text: f.Copyright},
		{Keyword: "Author", Text: f.Artist},
		{Keyword: "Title", Text: f.Title},
		{Keyword: "Description", Text: f.Description},
	}
}

// mergeWarnings appends extra to base, folding the embedder's PNG GPS warning
// into the capability warning so a GPS request is reported once.
func mergeWarnings(base, extra []string) []string {
	out := append([]string(nil), base...)
	for _, w := range extra {
		if w == PNGGPSWarning && contains(out, GPSCapabilityWarning) {
			continue
		}
		if !contains(out, w) {
			out = append(out, w)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func stringPtr(s string) *string { return &s }
