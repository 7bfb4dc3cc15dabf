// Package convert implements the archive conversion pipeline: unpack a CBZ
// into an isolated working area, transcode its images to WebP concurrently,
// and repack a losslessly verified archive.
package convert

import (
	"bytes"
	"fmt"
	"image"

	// Raster decoders for the formats found inside real-world archives.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/chai2010/webp"
)

// Codec transcodes a single image to the target format. Implementations must
// be safe for concurrent use; the worker pool calls Transcode from multiple
// goroutines.
type Codec interface {
	Transcode(data []byte) ([]byte, error)
}

// WebPCodec encodes raster images as lossy WebP.
type WebPCodec struct {
	// Quality in [1,100]; the library default of 80 matches typical
	// scanlation page content well.
	Quality float32
}

// Transcode decodes any registered raster format and re-encodes it as WebP.
func (c WebPCodec) Transcode(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	quality := c.Quality
	if quality <= 0 {
		quality = 80
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode %s as webp: %w", format, err)
	}
	return buf.Bytes(), nil
}
