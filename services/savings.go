package services

import (
	"math"

	"github.com/dustin/go-humanize"
	"github.com/shawn-cake/smooshboost/models"
)

// SavingsPercentage is the whole-number share of original that compression removed.
func SavingsPercentage(original, compressed int64) float64 {
	if original == 0 {
		return 0
	}
	return math.Round(float64(original-compressed) / float64(original) * 100)
}

// FormatBytes renders a byte count for people, e.g. "1.5 MB".
func FormatBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.Bytes(uint64(-n))
	}
	return humanize.Bytes(uint64(n))
}

// TotalSavings sums the completed items of a queue.
func TotalSavings(items []*models.ImageItem) models.Savings {
	var s models.Savings
	for _, it := range items {
		if it.Status != models.StatusComplete || it.CompressedSize == nil {
			continue
		}
		s.OriginalSize += it.OriginalSize
		s.CompressedSize += *it.CompressedSize
	}
	return CalculateSavings(s.OriginalSize, s.CompressedSize)
}

// CalculateSavings compares one original against its compressed size.
func CalculateSavings(original, compressed int64) models.Savings {
	saved := original - compressed
	return models.Savings{
		OriginalSize:   original,
		CompressedSize: compressed,
		SavedBytes:     saved,
		Percentage:     SavingsPercentage(original, compressed),
		OriginalHuman:  FormatBytes(original),
		SavedHuman:     FormatBytes(saved),
	}
}
