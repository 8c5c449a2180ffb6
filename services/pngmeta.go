package services

import (
	"bytes"
	"errors"
	"fmt"

	pngstructure "github.com/dsoprea/go-png-image-structure/v2"
	"golang.org/x/text/encoding/charmap"
)

// PNGGPSWarning is reported when GPS was requested for a PNG output.
const PNGGPSWarning = "GPS coordinates cannot be embedded in PNG files. Consider using JPG or WebP for geo-tagged images."

// pngTextKeywords are the tEXt keywords this embedder owns.
var pngTextKeywords = map[string]bool{
	"Copyright":   true,
	"Author":      true,
	"Title":       true,
	"Description": true,
}

type pngTextEntry struct {
	Keyword string
	Text    string
}

func parsePNG(data []byte) (*pngstructure.ChunkSlice, error) {
	pmp := pngstructure.NewPngMediaParser()
	intfc, err := pmp.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("invalid PNG: %w", err)
	}
	cs, ok := intfc.(*pngstructure.ChunkSlice)
	if !ok {
		return nil, errors.New("invalid PNG: unexpected chunk structure")
	}
	return cs, nil
}

// EmbedPNGMetadata replaces the owned tEXt chunks of a PNG with entries,
// inserted just before IEND. GPS is never written; wantGPS only produces a
// warning.
func EmbedPNGMetadata(data []byte, entries []pngTextEntry, wantGPS bool) ([]byte, []string, error) {
	cs, err := parsePNG(data)
	if err != nil {
		return nil, nil, err
	}

	chunks := NewChunkList(cs.Chunks())
	isIEND := func(c *pngstructure.Chunk) bool { return c.Type == "IEND" }
	if chunks.Index(isIEND) < 0 {
		return nil, nil, errors.New("invalid PNG: missing IEND chunk")
	}

	chunks.RemoveFunc(func(c *pngstructure.Chunk) bool {
		if c.Type != "tEXt" {
			return false
		}
		keyword, _, _ := bytes.Cut(c.Data, []byte{0})
		return pngTextKeywords[string(keyword)]
	})

	var added []*pngstructure.Chunk
	for _, e := range entries {
		if e.Text == "" {
			continue
		}
		added = append(added, newPNGTextChunk(e.Keyword, e.Text))
	}
	chunks.InsertBefore(isIEND, added...)

	var warnings []string
	if wantGPS {
		warnings = append(warnings, PNGGPSWarning)
	}

	var b bytes.Buffer
	if err := pngstructure.NewChunkSlice(chunks.Items()).WriteTo(&b); err != nil {
		return nil, nil, fmt.Errorf("failed to write PNG: %w", err)
	}
	return b.Bytes(), warnings, nil
}

// newPNGTextChunk builds a tEXt chunk: Latin-1 keyword, NUL, Latin-1 text.
func newPNGTextChunk(keyword, text string) *pngstructure.Chunk {
	payload := append(latin1(keyword), 0)
	payload = append(payload, latin1(text)...)
	c := &pngstructure.Chunk{
		Length: uint32(len(payload)),
		Type:   "tEXt",
		Data:   payload,
	}
	c.UpdateCrc32()
	return c
}

// latin1 encodes s as ISO 8859-1, replacing runes outside it with '?'.
func latin1(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// decodeLatin1 is the inverse of latin1.
func decodeLatin1(b []byte) string {
	runes := make([]rune, 0, len(b))
	for _, c := range b {
		runes = append(runes, charmap.ISO8859_1.DecodeByte(c))
	}
	return string(runes)
}

// ReadPNGText returns the tEXt keyword/value pairs of a PNG in file order.
func ReadPNGText(data []byte) ([]pngTextEntry, error) {
	cs, err := parsePNG(data)
	if err != nil {
		return nil, err
	}
	var out []pngTextEntry
	for _, c := range cs.Chunks() {
		if c.Type != "tEXt" {
			continue
		}
		keyword, text, _ := bytes.Cut(c.Data, []byte{0})
		out = append(out, pngTextEntry{Keyword: decodeLatin1(keyword), Text: decodeLatin1(text)})
	}
	return out, nil
}
