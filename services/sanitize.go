package services

import (
	"regexp"
	"strings"

	"github.com/shawn-cake/smooshboost/models"
)

var (
	controlChars            = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	descriptionControlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	spaceRuns               = regexp.MustCompile(` {2,}`)
)

// SanitizeText replaces control characters with spaces, collapses runs of
// spaces and bounds the result to max characters.
func SanitizeText(s string, max int) string {
	return finishText(controlChars.ReplaceAllString(s, " "), max)
}

// SanitizeDescription is SanitizeText for multi-line text: newlines, carriage
// returns and tabs survive, every other control character is dropped.
func SanitizeDescription(s string, max int) string {
	return finishText(descriptionControlChars.ReplaceAllString(s, ""), max)
}

func finishText(s string, max int) string {
	s = strings.TrimSpace(spaceRuns.ReplaceAllString(s, " "))
	if max > 0 {
		if r := []rune(s); len(r) > max {
			s = strings.TrimSpace(string(r[:max]))
		}
	}
	return s
}

// SanitizeMetadata returns a copy of opts with every text field cleaned and
// bounded. Coordinates and enabled flags are left alone.
func SanitizeMetadata(opts models.MetadataOptions, limits MetadataLimits) models.MetadataOptions {
	out := opts
	out.GeoTag.Address = SanitizeText(opts.GeoTag.Address, 0)
	out.Copyright.Text = SanitizeText(opts.Copyright.Text, limits.CopyrightMax)
	out.Copyright.Author = SanitizeText(opts.Copyright.Author, limits.AuthorMax)
	out.TitleDesc.Title = SanitizeText(opts.TitleDesc.Title, limits.TitleMax)
	out.TitleDesc.Description = SanitizeDescription(opts.TitleDesc.Description, limits.DescriptionMax)
	return out
}
