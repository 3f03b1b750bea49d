package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

const PNGMediaType = "image/png"

var encoder = png.Encoder{CompressionLevel: png.DefaultCompression}

// Export encodes the current raster as PNG. The encoding is deterministic, so
// two exports of an unchanged surface are byte-identical.
func (s *Surface) Export() ([]byte, error) {
	if s.img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: surface has no size", ErrNotReady)
	}
	return EncodePNG(s.img)
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
