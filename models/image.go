package models

import (
	"time"

	"github.com/google/uuid"
)

type ImageStatus string

const (
	StatusQueued      ImageStatus = "queued"
	StatusCompressing ImageStatus = "compressing"
	StatusComplete    ImageStatus = "complete"
	StatusError       ImageStatus = "error"
)

type BoostStatus string

const (
	BoostPending BoostStatus = "pending"
	BoostRunning BoostStatus = "boosting"
	BoostDone    BoostStatus = "boosted"
	BoostSkipped BoostStatus = "boost-skipped"
	BoostFailed  BoostStatus = "boost-failed"
)

// ImageItem tracks one image through compression and boosting. Blobs live in
// storage; the item only keeps their keys.
type ImageItem struct {
	ID             uuid.UUID          `json:"id" db:"id"`
	Name           string             `json:"name" db:"name"`
	OriginalSize   int64              `json:"original_size" db:"original_size"`
	InputFormat    InputFormat        `json:"input_format" db:"input_format"`
	OutputFormat   OutputFormat       `json:"output_format" db:"output_format"`
	Status         ImageStatus        `json:"status" db:"status"`
	Engine         *CompressionEngine `json:"engine" db:"engine"`
	CompressedSize *int64             `json:"compressed_size" db:"compressed_size"`
	Error          *string            `json:"error" db:"error"`

	BoostStatus     BoostStatus      `json:"boost_status" db:"boost_status"`
	BoostError      *string          `json:"boost_error" db:"boost_error"`
	MetadataOptions MetadataOptions  `json:"metadata_options" db:"-"`
	Applied         *AppliedMetadata `json:"metadata" db:"-"`
	Warnings        []string         `json:"metadata_warnings" db:"-"`
	FinalSize       *int64           `json:"final_size" db:"final_size"`

	OriginalKey   string  `json:"-" db:"original_key"`
	CompressedKey *string `json:"-" db:"compressed_key"`
	FinalKey      *string `json:"-" db:"final_key"`
	ThumbnailURL  *string `json:"thumbnail" db:"thumbnail_url"`
	Blurhash      *string `json:"blurhash" db:"blurhash"`
	Width         *int    `json:"width" db:"width"`
	Height        *int    `json:"height" db:"height"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsProcessing reports whether work is in flight for the item.
func (i *ImageItem) IsProcessing() bool {
	return i.Status == StatusCompressing || i.BoostStatus == BoostRunning
}

// Clone returns a deep copy so callers can mutate it without racing readers.
func (i *ImageItem) Clone() *ImageItem {
	c := *i
	if i.Warnings != nil {
		c.Warnings = append([]string(nil), i.Warnings...)
	}
	if i.Applied != nil {
		a := *i.Applied
		c.Applied = &a
	}
	return &c
}

// Savings summarises how much a compression run saved.
type Savings struct {
	OriginalSize   int64   `json:"original_size"`
	CompressedSize int64   `json:"compressed_size"`
	SavedBytes     int64   `json:"saved_bytes"`
	Percentage     float64 `json:"percentage"`
	OriginalHuman  string  `json:"original_human"`
	SavedHuman     string  `json:"saved_human"`
}

type QueueResponse struct {
	Images  []*ImageItem `json:"images"`
	Savings Savings      `json:"savings"`
	Total   int          `json:"total"`
}
