package models

import "strings"

// GeoTagOptions holds the geotag section of MetadataOptions. Latitude and
// Longitude are nil until the user supplies them.
type GeoTagOptions struct {
	Enabled   bool     `json:"enabled"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Address   string   `json:"address,omitempty" validate:"max=500"`
}

type CopyrightOptions struct {
	Enabled bool   `json:"enabled"`
	Text    string `json:"text" validate:"max=2000"`
	Author  string `json:"author" validate:"max=2000"`
}

type TitleDescOptions struct {
	Enabled     bool   `json:"enabled"`
	Title       string `json:"title" validate:"max=2000"`
	Description string `json:"description" validate:"max=10000"`
}

// MetadataOptions is the per-image set of metadata sections a user can toggle.
type MetadataOptions struct {
	GeoTag    GeoTagOptions    `json:"geo_tag"`
	Copyright CopyrightOptions `json:"copyright"`
	TitleDesc TitleDescOptions `json:"title_desc"`
}

// GeoActionable reports whether a geotag is enabled and both coordinates are set.
func (o MetadataOptions) GeoActionable() bool {
	return o.GeoTag.Enabled && o.GeoTag.Latitude != nil && o.GeoTag.Longitude != nil
}

func (o MetadataOptions) CopyrightActionable() bool {
	return o.Copyright.Enabled && strings.TrimSpace(o.Copyright.Text) != ""
}

func (o MetadataOptions) TitleDescActionable() bool {
	return o.TitleDesc.Enabled &&
		(strings.TrimSpace(o.TitleDesc.Title) != "" || strings.TrimSpace(o.TitleDesc.Description) != "")
}

// HasMetadataToInject is true when at least one section would write something.
func (o MetadataOptions) HasMetadataToInject() bool {
	return o.GeoActionable() || o.CopyrightActionable() || o.TitleDescActionable()
}

type GeoTag struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// AppliedMetadata records what was actually embedded. Nil fields were not applied.
type AppliedMetadata struct {
	GeoTag      *GeoTag `json:"geo_tag"`
	Copyright   *string `json:"copyright"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (a AppliedMetadata) IsEmpty() bool {
	return a.GeoTag == nil && a.Copyright == nil && a.Title == nil && a.Description == nil
}

// FormatCapabilities lists which metadata sections a container can carry.
type FormatCapabilities struct {
	GeoTag    bool `json:"geo_tag"`
	Copyright bool `json:"copyright"`
	TitleDesc bool `json:"title_desc"`
}

var MetadataCapabilities = map[string]FormatCapabilities{
	"jpg":    {GeoTag: true, Copyright: true, TitleDesc: true},
	"mozjpg": {GeoTag: true, Copyright: true, TitleDesc: true},
	"png":    {GeoTag: false, Copyright: true, TitleDesc: true},
	"webp":   {GeoTag: true, Copyright: true, TitleDesc: true},
}
