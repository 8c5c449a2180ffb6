package services

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ParsedLocation is a coordinate pair recovered from a maps link or raw text.
type ParsedLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Patterns in priority order; the first one that yields a valid pair wins.
var geoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(-?\d+\.?\d*)\s*,\s*(-?\d+\.?\d*)$`),
	regexp.MustCompile(`@(-?\d+\.?\d*),(-?\d+\.?\d*)`),
	regexp.MustCompile(`[?&]q=(-?\d+\.?\d*),(-?\d+\.?\d*)`),
	regexp.MustCompile(`!3d(-?\d+\.?\d*)!4d(-?\d+\.?\d*)`),
	regexp.MustCompile(`ll=(-?\d+\.?\d*),(-?\d+\.?\d*)`),
	regexp.MustCompile(`place/(-?\d+\.?\d*),(-?\d+\.?\d*)`),
}

var placeName = regexp.MustCompile(`/place/([^/@?]+)`)

var shortMapsHosts = []string{"goo.gl/maps", "maps.app.goo.gl", "g.co/maps"}

// IsShortMapsURL reports links that only resolve through a redirect, which
// this parser does not follow.
func IsShortMapsURL(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, host := range shortMapsHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

// ParseGeoLink extracts coordinates from a Google Maps URL or a raw
// "lat, lng" pair. It returns nil when nothing valid can be found, including
// for shortened links.
func ParseGeoLink(text string) *ParsedLocation {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || IsShortMapsURL(trimmed) {
		return nil
	}
	for _, re := range geoPatterns {
		m := re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		lat, errLat := strconv.ParseFloat(m[1], 64)
		lng, errLng := strconv.ParseFloat(m[2], 64)
		if errLat != nil || errLng != nil || !ValidCoordinates(lat, lng) {
			continue
		}
		return &ParsedLocation{Latitude: lat, Longitude: lng, Address: extractPlaceName(trimmed)}
	}
	return nil
}

// ValidCoordinates checks latitude ∈ [-90,90] and longitude ∈ [-180,180].
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func extractPlaceName(link string) string {
	m := placeName.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	name, err := url.PathUnescape(strings.ReplaceAll(m[1], "+", " "))
	if err != nil {
		return ""
	}
	if _, err := strconv.ParseFloat(strings.SplitN(name, ",", 2)[0], 64); err == nil {
		return ""
	}
	return SanitizeText(name, 200)
}

// FormatCoordinates renders a pair like "35.5951° N, 82.5515° W".
func FormatCoordinates(lat, lng float64) string {
	latDir, lngDir := "N", "E"
	if lat < 0 {
		latDir = "S"
	}
	if lng < 0 {
		lngDir = "W"
	}
	return fmt.Sprintf("%.4f° %s, %.4f° %s", math.Abs(lat), latDir, math.Abs(lng), lngDir)
}
