package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shawn-cake/smooshboost/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompressor struct {
	res *CompressionResult
	err error
}

func (s stubCompressor) Compress(context.Context, *Session, []byte, models.InputFormat, models.OutputFormat) (*CompressionResult, error) {
	return s.res, s.err
}

type stubInjector struct {
	res   *InjectionResult
	err   error
	calls int
}

func (s *stubInjector) Inject([]byte, string, models.MetadataOptions) (*InjectionResult, error) {
	s.calls++
	return s.res, s.err
}

func newItem(in models.InputFormat, out models.OutputFormat) *models.ImageItem {
	return &models.ImageItem{
		Name:         "photo.png",
		InputFormat:  in,
		OutputFormat: out,
		Status:       models.StatusQueued,
		BoostStatus:  models.BoostPending,
	}
}

func TestCompressItemSuccess(t *testing.T) {
	p := NewPipeline(stubCompressor{res: &CompressionResult{Data: []byte("small"), Size: 5, Engine: models.EngineOxiPNG, FallbackReason: "TinyPNG quota exhausted"}}, &stubInjector{})
	item := newItem(models.InputPNG, models.OutputPNG)
	msg := "old"
	item.Error = &msg

	data, err := p.CompressItem(context.Background(), NewSession(), item, []byte("original"))
	require.NoError(t, err)
	assert.Equal(t, []byte("small"), data)
	assert.Equal(t, models.StatusComplete, item.Status)
	require.NotNil(t, item.Engine)
	assert.Equal(t, models.EngineOxiPNG, *item.Engine)
	require.NotNil(t, item.CompressedSize)
	assert.Equal(t, int64(5), *item.CompressedSize)
	assert.Nil(t, item.Error)
}

func TestCompressItemUnsupported(t *testing.T) {
	p := NewPipeline(stubCompressor{err: ErrUnsupportedFormat}, &stubInjector{})
	item := newItem(models.InputWebP, "avif")

	_, err := p.CompressItem(context.Background(), NewSession(), item, nil)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, models.StatusError, item.Status)
	require.NotNil(t, item.Error)
	assert.Equal(t, "Unsupported format: webp to avif", *item.Error)
	assert.Nil(t, item.Engine)
}

func TestCompressItemFailure(t *testing.T) {
	p := NewPipeline(stubCompressor{err: errors.New("failed to decode image: bad data")}, &stubInjector{})
	item := newItem(models.InputPNG, models.OutputWebP)

	_, err := p.CompressItem(context.Background(), NewSession(), item, nil)
	require.Error(t, err)
	assert.Equal(t, models.StatusError, item.Status)
	assert.Equal(t, "failed to decode image: bad data", *item.Error)
}

func TestBoostItemSkipsWithoutMetadata(t *testing.T) {
	inj := &stubInjector{}
	p := NewPipeline(stubCompressor{}, inj)
	item := newItem(models.InputPNG, models.OutputPNG)

	out, err := p.BoostItem(item, []byte("compressed"), "png")
	require.NoError(t, err)
	assert.Equal(t, []byte("compressed"), out)
	assert.Equal(t, models.BoostSkipped, item.BoostStatus)
	assert.Zero(t, inj.calls)
}

func TestBoostItemSuccess(t *testing.T) {
	title := "Blue Ridge"
	inj := &stubInjector{res: &InjectionResult{
		Data:     []byte("compressed+meta"),
		Applied:  models.AppliedMetadata{Title: &title},
		Warnings: []string{GPSCapabilityWarning},
	}}
	p := NewPipeline(stubCompressor{}, inj)
	item := newItem(models.InputPNG, models.OutputPNG)
	item.MetadataOptions = fullOptions()

	out, err := p.BoostItem(item, []byte("compressed"), "png")
	require.NoError(t, err)
	assert.Equal(t, []byte("compressed+meta"), out)
	assert.Equal(t, models.BoostDone, item.BoostStatus)
	assert.Equal(t, int64(len(out)), *item.FinalSize)
	require.NotNil(t, item.Applied)
	assert.Equal(t, "Blue Ridge", *item.Applied.Title)
	assert.Equal(t, []string{GPSCapabilityWarning}, item.Warnings)
}

func TestBoostItemFailureKeepsSource(t *testing.T) {
	inj := &stubInjector{err: ErrMetadataInjectionFailed}
	p := NewPipeline(stubCompressor{}, inj)
	item := newItem(models.InputJPG, models.OutputMozJPG)
	item.MetadataOptions = fullOptions()

	out, err := p.BoostItem(item, []byte("compressed"), "mozjpg")
	require.ErrorIs(t, err, ErrMetadataInjectionFailed)
	assert.Equal(t, []byte("compressed"), out)
	assert.Equal(t, models.BoostFailed, item.BoostStatus)
	require.NotNil(t, item.BoostError)
	assert.Equal(t, int64(len("compressed")), *item.FinalSize)
	assert.Nil(t, item.Applied)
}
