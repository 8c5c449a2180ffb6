package services

import (
	"bytes"
	"errors"
	"fmt"
	"log"

	"github.com/dsoprea/go-exif/v3"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

func parseJPEG(data []byte) (*jpegstructure.SegmentList, error) {
	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JPEG: %w", err)
	}
	sl, ok := intfc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, errors.New("invalid JPEG: unexpected segment structure")
	}
	return sl, nil
}

// EmbedJPEGMetadata writes fields into the EXIF APP1 segment of a JPEG.
// Existing EXIF tags are kept; a file without EXIF gets a fresh structure.
func EmbedJPEGMetadata(data []byte, f exifFields) ([]byte, error) {
	sl, err := parseJPEG(data)
	if err != nil {
		return nil, err
	}

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		if !errors.Is(err, exif.ErrNoExif) {
			log.Printf("Existing EXIF unreadable, writing a fresh structure: %v", err)
		}
		if rootIb, err = newRootIfdBuilder(); err != nil {
			return nil, err
		}
	}

	if err := applyExifFields(rootIb, f); err != nil {
		return nil, err
	}
	if err := sl.SetExif(rootIb); err != nil {
		return nil, fmt.Errorf("failed to set EXIF segment: %w", err)
	}

	var b bytes.Buffer
	if err := sl.Write(&b); err != nil {
		return nil, fmt.Errorf("failed to write JPEG: %w", err)
	}
	return b.Bytes(), nil
}
