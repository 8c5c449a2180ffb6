package services

import (
	"fmt"
	"math"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// hundredths of an arc-second per degree
const dmsScale = 360000

// DMS is an unsigned degrees/minutes/seconds triple. Seconds are kept in
// hundredths, the precision EXIF GPS rationals are written with.
type DMS struct {
	Degrees    uint32
	Minutes    uint32
	Seconds100 uint32
}

// EncodeDMS converts the magnitude of a decimal coordinate. Rounding to the
// nearest hundredth of a second carries into minutes and degrees, so seconds
// never reach 60.
func EncodeDMS(decimal float64) DMS {
	total := uint32(math.Round(math.Abs(decimal) * dmsScale))
	return DMS{
		Degrees:    total / dmsScale,
		Minutes:    (total % dmsScale) / 6000,
		Seconds100: total % 6000,
	}
}

// Decimal converts back to unsigned decimal degrees.
func (d DMS) Decimal() float64 {
	return float64(d.Degrees) + float64(d.Minutes)/60 + float64(d.Seconds100)/dmsScale
}

func (d DMS) Rationals() []exifcommon.Rational {
	return []exifcommon.Rational{
		{Numerator: d.Degrees, Denominator: 1},
		{Numerator: d.Minutes, Denominator: 1},
		{Numerator: d.Seconds100, Denominator: 100},
	}
}

// DecodeDMS rebuilds a signed decimal coordinate from EXIF rationals and a
// hemisphere reference.
func DecodeDMS(values []exifcommon.Rational, ref string) (float64, error) {
	if len(values) != 3 {
		return 0, fmt.Errorf("expected 3 GPS rationals, got %d", len(values))
	}
	var parts [3]float64
	for i, v := range values {
		if v.Denominator == 0 {
			return 0, fmt.Errorf("GPS rational %d has zero denominator", i)
		}
		parts[i] = float64(v.Numerator) / float64(v.Denominator)
	}
	out := parts[0] + parts[1]/60 + parts[2]/3600
	if ref == "S" || ref == "W" {
		out = -out
	}
	return out, nil
}

func latitudeRef(lat float64) string {
	if lat < 0 {
		return "S"
	}
	return "N"
}

func longitudeRef(lng float64) string {
	if lng < 0 {
		return "W"
	}
	return "E"
}

// exifFields is the sanitized set of values written into an EXIF structure.
// Empty strings and a nil GPS are left untouched.
type exifFields struct {
	Copyright   string
	Artist      string
	Description string
	Title       string
	GPS         *gpsPoint
}

type gpsPoint struct {
	Latitude  float64
	Longitude float64
}

func (f exifFields) empty() bool {
	return f.Copyright == "" && f.Artist == "" && f.Description == "" && f.Title == "" && f.GPS == nil
}

// newRootIfdBuilder returns an empty but valid IFD0 builder.
func newRootIfdBuilder() (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, err
	}
	ti := exif.NewTagIndex()
	return exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder), nil
}

// loadRootIfdBuilder parses raw TIFF-structured EXIF so that existing tags
// survive a rewrite.
func loadRootIfdBuilder(rawExif []byte) (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, err
	}
	ti := exif.NewTagIndex()
	_, index, err := exif.Collect(im, ti, rawExif)
	if err != nil {
		return nil, err
	}
	return exif.NewIfdBuilderFromExistingChain(index.RootIfd), nil
}

// applyExifFields sets IFD0 text tags and the GPS IFD on rootIb, replacing
// tags of the same name and leaving every other tag alone.
func applyExifFields(rootIb *exif.IfdBuilder, f exifFields) error {
	text := []struct {
		tag   string
		value string
	}{
		{"Copyright", f.Copyright},
		{"Artist", f.Artist},
		{"ImageDescription", f.Description},
		{"DocumentName", f.Title},
	}
	for _, t := range text {
		if t.value == "" {
			continue
		}
		if err := rootIb.SetStandardWithName(t.tag, t.value); err != nil {
			return fmt.Errorf("failed to set %s: %w", t.tag, err)
		}
	}

	if f.GPS == nil {
		return nil
	}
	gpsIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/GPSInfo")
	if err != nil {
		return fmt.Errorf("failed to open GPS IFD: %w", err)
	}
	gps := []struct {
		tag   string
		value interface{}
	}{
		{"GPSVersionID", []byte{2, 2, 0, 0}},
		{"GPSLatitudeRef", latitudeRef(f.GPS.Latitude)},
		{"GPSLatitude", EncodeDMS(f.GPS.Latitude).Rationals()},
		{"GPSLongitudeRef", longitudeRef(f.GPS.Longitude)},
		{"GPSLongitude", EncodeDMS(f.GPS.Longitude).Rationals()},
	}
	for _, t := range gps {
		if err := gpsIb.SetStandardWithName(t.tag, t.value); err != nil {
			return fmt.Errorf("failed to set %s: %w", t.tag, err)
		}
	}
	return nil
}

// BuildExif encodes fields into raw TIFF-structured EXIF. When base is
// non-empty its tags are kept; an unreadable base is replaced.
func BuildExif(base []byte, f exifFields) ([]byte, error) {
	var rootIb *exif.IfdBuilder
	var err error
	if len(base) > 0 {
		rootIb, err = loadRootIfdBuilder(base)
	}
	if rootIb == nil || err != nil {
		if rootIb, err = newRootIfdBuilder(); err != nil {
			return nil, err
		}
	}
	if err := applyExifFields(rootIb, f); err != nil {
		return nil, err
	}
	return exif.NewIfdByteEncoder().EncodeToExif(rootIb)
}
