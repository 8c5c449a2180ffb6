package services

import (
	"bytes"
	"math"
	"testing"

	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dmsTolerance = 1.0 / 360000

func TestDMSRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 35.5951, -82.5515, 89.9999999, -180, 179.123456, 0.0000013, 10.999999999} {
		ref := longitudeRef(v)
		got, err := DecodeDMS(EncodeDMS(v).Rationals(), ref)
		require.NoError(t, err)
		assert.InDelta(t, v, got, dmsTolerance, "value %v", v)
	}
}

func TestEncodeDMSCarries(t *testing.T) {
	d := EncodeDMS(10.999999999)
	assert.Equal(t, DMS{Degrees: 11}, d)

	d = EncodeDMS(-82.5515)
	assert.Equal(t, uint32(82), d.Degrees)
	assert.Equal(t, uint32(33), d.Minutes)
	assert.Equal(t, uint32(540), d.Seconds100)
	assert.Less(t, d.Seconds100, uint32(6000))
}

func TestDecodeDMSErrors(t *testing.T) {
	_, err := DecodeDMS(EncodeDMS(1).Rationals()[:2], "N")
	assert.Error(t, err)

	r := EncodeDMS(1).Rationals()
	r[2].Denominator = 0
	_, err = DecodeDMS(r, "N")
	assert.Error(t, err)
}

func TestRefs(t *testing.T) {
	assert.Equal(t, "N", latitudeRef(0))
	assert.Equal(t, "S", latitudeRef(-1))
	assert.Equal(t, "E", longitudeRef(0))
	assert.Equal(t, "W", longitudeRef(-0.5))
}

func TestBuildExifReadableByOtherDecoders(t *testing.T) {
	raw, err := BuildExif(nil, exifFields{
		Copyright:   "(c) 2024 Acme",
		Artist:      "Jane Doe",
		Description: "A test image",
		Title:       "Test",
		GPS:         &gpsPoint{Latitude: 35.5951, Longitude: -82.5515},
	})
	require.NoError(t, err)

	x, err := goexif.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	lat, lng, err := x.LatLong()
	require.NoError(t, err)
	assert.InDelta(t, 35.5951, lat, dmsTolerance)
	assert.InDelta(t, -82.5515, lng, dmsTolerance)

	tag, err := x.Get(goexif.Artist)
	require.NoError(t, err)
	artist, err := tag.StringVal()
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", artist)

	tag, err = x.Get(goexif.ImageDescription)
	require.NoError(t, err)
	desc, err := tag.StringVal()
	require.NoError(t, err)
	assert.Equal(t, "A test image", desc)
}

func TestBuildExifKeepsBaseTags(t *testing.T) {
	base, err := BuildExif(nil, exifFields{Artist: "Original Artist", Copyright: "old"})
	require.NoError(t, err)

	raw, err := BuildExif(base, exifFields{Copyright: "new"})
	require.NoError(t, err)

	md := &EmbeddedMetadata{Tags: map[string]string{}}
	require.NoError(t, readExifInto(md, raw))
	assert.Equal(t, "Original Artist", md.Author)
	assert.Equal(t, "new", md.Copyright)
	assert.Nil(t, md.GeoTag)
}

func TestBuildExifUnreadableBase(t *testing.T) {
	raw, err := BuildExif([]byte("garbage"), exifFields{Title: "T"})
	require.NoError(t, err)
	md := &EmbeddedMetadata{Tags: map[string]string{}}
	require.NoError(t, readExifInto(md, raw))
	assert.Equal(t, "T", md.Title)
}

func TestDMSDecimal(t *testing.T) {
	d := DMS{Degrees: 1, Minutes: 30, Seconds100: 0}
	assert.True(t, math.Abs(d.Decimal()-1.5) < 1e-12)
}
