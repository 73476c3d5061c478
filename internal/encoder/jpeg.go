package encoder

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/AnyUserName/boundimg/internal/decoder"
)

// JPEGEncoder encodes images to JPEG using Go's standard library.
type JPEGEncoder struct{}

func (e *JPEGEncoder) Format() string      { return "jpeg" }
func (e *JPEGEncoder) Extension() string   { return "jpg" }
func (e *JPEGEncoder) ContentType() string { return "image/jpeg" }
func (e *JPEGEncoder) Available() bool     { return true }

func (e *JPEGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	// Thumbnails compress to roughly a tenth of their raster footprint.
	b := img.Bounds()
	buf.Grow(int(decoder.Footprint(b.Dx(), b.Dy()) / 10))

	err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: clampQuality(quality)})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
