package services

import (
	"bytes"
	"encoding/binary"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngChunkTypes lists chunk types in file order.
func pngChunkTypes(t *testing.T, data []byte) []string {
	t.Helper()
	require.True(t, bytes.HasPrefix(data, pngSignature))
	var types []string
	for off := 8; off+8 <= len(data); {
		n := int(binary.BigEndian.Uint32(data[off : off+4]))
		types = append(types, string(data[off+4:off+8]))
		off += 12 + n
	}
	return types
}

func TestEmbedPNGMetadata(t *testing.T) {
	src := encodeTestPNG(t, 32, 16)
	entries := []pngTextEntry{
		{Keyword: "Copyright", Text: "(c) Acme"},
		{Keyword: "Author", Text: "Jane"},
		{Keyword: "Title", Text: ""},
		{Keyword: "Description", Text: "A gradient"},
	}

	out, warnings, err := EmbedPNGMetadata(src, entries, false)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	types := pngChunkTypes(t, out)
	assert.Equal(t, "IHDR", types[0])
	assert.Equal(t, "IEND", types[len(types)-1])
	assert.Equal(t, []string{"tEXt", "tEXt", "tEXt"}, types[len(types)-4:len(types)-1])

	// CRCs are checked by the standard decoder
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())

	text, err := ReadPNGText(out)
	require.NoError(t, err)
	assert.Equal(t, []pngTextEntry{
		{Keyword: "Copyright", Text: "(c) Acme"},
		{Keyword: "Author", Text: "Jane"},
		{Keyword: "Description", Text: "A gradient"},
	}, text)
}

func TestEmbedPNGMetadataNeverWritesGPS(t *testing.T) {
	out, warnings, err := EmbedPNGMetadata(encodeTestPNG(t, 8, 8), []pngTextEntry{{Keyword: "Title", Text: "T"}}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{PNGGPSWarning}, warnings)
	for _, typ := range pngChunkTypes(t, out) {
		assert.NotEqual(t, "eXIf", typ)
	}
	assert.NotContains(t, string(out), "GPS")
}

func TestEmbedPNGMetadataReplacesOwnedChunks(t *testing.T) {
	src := encodeTestPNG(t, 8, 8)
	first, _, err := EmbedPNGMetadata(src, []pngTextEntry{
		{Keyword: "Software", Text: "other tool"},
		{Keyword: "Copyright", Text: "old"},
	}, false)
	require.NoError(t, err)

	second, _, err := EmbedPNGMetadata(first, []pngTextEntry{{Keyword: "Copyright", Text: "new"}}, false)
	require.NoError(t, err)

	text, err := ReadPNGText(second)
	require.NoError(t, err)
	assert.Equal(t, []pngTextEntry{
		{Keyword: "Software", Text: "other tool"},
		{Keyword: "Copyright", Text: "new"},
	}, text)
}

func TestEmbedPNGMetadataLatin1(t *testing.T) {
	out, _, err := EmbedPNGMetadata(encodeTestPNG(t, 4, 4), []pngTextEntry{{Keyword: "Title", Text: "café ☕"}}, false)
	require.NoError(t, err)
	text, err := ReadPNGText(out)
	require.NoError(t, err)
	require.Len(t, text, 1)
	assert.Equal(t, "café ?", text[0].Text)
}

func TestEmbedPNGMetadataRejectsBrokenInput(t *testing.T) {
	src := encodeTestPNG(t, 4, 4)
	_, _, err := EmbedPNGMetadata(src[:len(src)-12], []pngTextEntry{{Keyword: "Title", Text: "T"}}, false)
	assert.Error(t, err)

	_, _, err = EmbedPNGMetadata([]byte("not a png"), nil, false)
	assert.Error(t, err)
}

func TestEmbedPNGMetadataWritesValidCRCs(t *testing.T) {
	out, _, err := EmbedPNGMetadata(encodeTestPNG(t, 8, 8), []pngTextEntry{
		{Keyword: "Title", Text: "Blue Ridge"},
		{Keyword: "Author", Text: "José"},
	}, false)
	require.NoError(t, err)

	cs, err := parsePNG(out)
	require.NoError(t, err)
	text := 0
	for _, c := range cs.Chunks() {
		assert.True(t, c.CheckCrc32(), "chunk %s", c.Type)
		if c.Type == "tEXt" {
			text++
		}
	}
	assert.Equal(t, 2, text)

	// image/png verifies every chunk CRC while decoding.
	_, err = png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
}
