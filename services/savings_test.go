package services

import (
	"testing"

	"github.com/shawn-cake/smooshboost/models"
	"github.com/stretchr/testify/assert"
)

func int64Ptr(n int64) *int64 { return &n }

func TestSavingsPercentage(t *testing.T) {
	assert.Equal(t, 0.0, SavingsPercentage(0, 0))
	assert.Equal(t, 75.0, SavingsPercentage(1000, 250))
	assert.Equal(t, 33.0, SavingsPercentage(3, 2))
	assert.Equal(t, -50.0, SavingsPercentage(100, 150))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", FormatBytes(0))
	assert.Equal(t, "1.5 MB", FormatBytes(1500000))
	assert.Equal(t, "-2.0 kB", FormatBytes(-2000))
}

func TestTotalSavingsCountsCompletedItems(t *testing.T) {
	items := []*models.ImageItem{
		{OriginalSize: 1000, Status: models.StatusComplete, CompressedSize: int64Ptr(400)},
		{OriginalSize: 1000, Status: models.StatusComplete, CompressedSize: int64Ptr(600)},
		{OriginalSize: 5000, Status: models.StatusQueued},
		{OriginalSize: 5000, Status: models.StatusError},
	}
	s := TotalSavings(items)
	assert.Equal(t, int64(2000), s.OriginalSize)
	assert.Equal(t, int64(1000), s.CompressedSize)
	assert.Equal(t, int64(1000), s.SavedBytes)
	assert.Equal(t, 50.0, s.Percentage)
	assert.Equal(t, "1.0 kB", s.SavedHuman)
}
