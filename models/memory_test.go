package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryCRUD(t *testing.T) {
	repo := NewMemoryImageRepository()

	a := &ImageItem{Name: "a.png", Status: StatusQueued, BoostStatus: BoostPending}
	b := &ImageItem{Name: "b.png", Status: StatusQueued, BoostStatus: BoostPending}
	require.NoError(t, repo.Create(a))
	require.NoError(t, repo.Create(b))
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.False(t, a.CreatedAt.IsZero())

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	items, err := repo.List()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a.png", items[0].Name)
	assert.Equal(t, "b.png", items[1].Name)

	got, err := repo.GetByID(a.ID)
	require.NoError(t, err)
	got.Status = StatusComplete
	got.Warnings = []string{"w"}

	// callers hold copies until they Update
	again, err := repo.GetByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, again.Status)

	require.NoError(t, repo.Update(got))
	again, err = repo.GetByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, again.Status)
	assert.Equal(t, []string{"w"}, again.Warnings)

	require.NoError(t, repo.Delete(a.ID))
	_, err = repo.GetByID(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(a.ID), ErrNotFound)
	assert.ErrorIs(t, repo.Update(a), ErrNotFound)

	require.NoError(t, repo.DeleteAll())
	n, err = repo.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImageItemIsProcessing(t *testing.T) {
	item := &ImageItem{Status: StatusQueued, BoostStatus: BoostPending}
	assert.False(t, item.IsProcessing())
	item.Status = StatusCompressing
	assert.True(t, item.IsProcessing())
	item.Status = StatusComplete
	item.BoostStatus = BoostRunning
	assert.True(t, item.IsProcessing())
}

func TestMetadataOptionsActionable(t *testing.T) {
	lat, lng := 10.0, 20.0
	var o MetadataOptions
	assert.False(t, o.HasMetadataToInject())

	o.GeoTag = GeoTagOptions{Enabled: true, Latitude: &lat}
	assert.False(t, o.GeoActionable())
	o.GeoTag.Longitude = &lng
	assert.True(t, o.GeoActionable())

	o = MetadataOptions{Copyright: CopyrightOptions{Enabled: true, Text: "   "}}
	assert.False(t, o.HasMetadataToInject())
	o.TitleDesc = TitleDescOptions{Enabled: true, Description: "d"}
	assert.True(t, o.HasMetadataToInject())
}
