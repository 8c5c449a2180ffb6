package services

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/deepteams/webp/mux"
)

const (
	vp8xFlagAlpha = 0x10
	vp8xFlagExif  = 0x08
)

var (
	errNotWebP         = errors.New("invalid WebP file: missing RIFF/WEBP signature")
	errNoWebPBitstream = errors.New("invalid WebP file: no VP8, VP8L or VP8X chunk")
)

// riffChunk is one chunk of a RIFF container; Data excludes header and padding.
type riffChunk struct {
	FourCC string
	Data   []byte
}

func isChunk(fourCC string) func(riffChunk) bool {
	return func(c riffChunk) bool { return c.FourCC == fourCC }
}

// parseWebPChunks walks the chunks inside the RIFF/WEBP payload.
func parseWebPChunks(data []byte) ([]riffChunk, error) {
	if !isWebP(data) {
		return nil, errNotWebP
	}
	riff, _, err := mux.ReadChunk(data)
	if err != nil {
		return nil, fmt.Errorf("invalid WebP file: %w", err)
	}
	if len(riff.Data) < 4 {
		return nil, errNotWebP
	}
	var chunks []riffChunk
	for rest := riff.Data[4:]; len(rest) > 0; {
		c, n, err := mux.ReadChunk(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid WebP file: %w", err)
		}
		chunks = append(chunks, riffChunk{FourCC: fourCC(c.ID), Data: c.Data})
		rest = rest[n:]
	}
	return chunks, nil
}

func fourCC(id mux.ChunkID) string {
	return string(binary.LittleEndian.AppendUint32(nil, id))
}

func serializeWebP(chunks []riffChunk) []byte {
	payload := 4
	for _, c := range chunks {
		payload += 8 + len(c.Data) + len(c.Data)%2
	}
	out := make([]byte, 0, 8+payload)
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(payload))
	out = append(out, "WEBP"...)
	for _, c := range chunks {
		out = append(out, c.FourCC...)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(c.Data)))
		out = append(out, c.Data...)
		if len(c.Data)%2 == 1 {
			out = append(out, 0)
		}
	}
	return out
}

// webpCanvas reads the canvas size and alpha hint from a simple-format
// bitstream chunk.
func webpCanvas(chunks []riffChunk) (width, height int, alpha bool, err error) {
	for _, c := range chunks {
		switch c.FourCC {
		case "VP8 ":
			if len(c.Data) < 10 {
				return 0, 0, false, errors.New("invalid WebP file: VP8 header truncated")
			}
			width = int(binary.LittleEndian.Uint16(c.Data[6:8]) & 0x3fff)
			height = int(binary.LittleEndian.Uint16(c.Data[8:10]) & 0x3fff)
			return width, height, false, nil
		case "VP8L":
			if len(c.Data) < 5 || c.Data[0] != 0x2f {
				return 0, 0, false, errors.New("invalid WebP file: VP8L header truncated")
			}
			bits := binary.LittleEndian.Uint32(c.Data[1:5])
			width = int(bits&0x3fff) + 1
			height = int((bits>>14)&0x3fff) + 1
			alpha = bits&(1<<28) != 0
			return width, height, alpha, nil
		}
	}
	return 0, 0, false, errNoWebPBitstream
}

func newVP8X(width, height int, flags byte) riffChunk {
	d := make([]byte, 10)
	d[0] = flags
	putUint24LE(d[4:7], uint32(max(width-1, 0)))
	putUint24LE(d[7:10], uint32(max(height-1, 0)))
	return riffChunk{FourCC: "VP8X", Data: d}
}

func putUint24LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// EmbedWebPMetadata writes fields as an EXIF chunk into a WebP container,
// creating or updating the VP8X chunk so readers see the EXIF flag. Tags of a
// readable pre-existing EXIF chunk are kept.
func EmbedWebPMetadata(data []byte, f exifFields) ([]byte, error) {
	parsed, err := parseWebPChunks(data)
	if err != nil {
		return nil, err
	}
	chunks := NewChunkList(parsed)

	var base []byte
	if i := chunks.Index(isChunk("EXIF")); i >= 0 {
		base = trimExifPrefix(chunks.Items()[i].Data)
	}
	chunks.RemoveFunc(isChunk("EXIF"))

	if i := chunks.Index(isChunk("VP8X")); i >= 0 {
		vp8x := chunks.Items()[i]
		if len(vp8x.Data) < 10 {
			return nil, errors.New("invalid WebP file: VP8X chunk truncated")
		}
		d := append([]byte(nil), vp8x.Data...)
		d[0] |= vp8xFlagExif
		chunks.Items()[i] = riffChunk{FourCC: "VP8X", Data: d}
	} else {
		width, height, alpha, err := webpCanvas(chunks.Items())
		if err != nil {
			return nil, err
		}
		flags := byte(vp8xFlagExif)
		if alpha {
			flags |= vp8xFlagAlpha
		}
		chunks.Prepend(newVP8X(width, height, flags))
	}

	exifData, err := BuildExif(base, f)
	if err != nil {
		return nil, fmt.Errorf("failed to build EXIF: %w", err)
	}
	chunks.InsertAfter(isChunk("VP8X"), riffChunk{FourCC: "EXIF", Data: exifData})

	return serializeWebP(chunks.Items()), nil
}

// trimExifPrefix drops the "Exif\0\0" header some writers put before the TIFF data.
func trimExifPrefix(b []byte) []byte {
	if len(b) >= 6 && string(b[:6]) == "Exif\x00\x00" {
		return b[6:]
	}
	return b
}
