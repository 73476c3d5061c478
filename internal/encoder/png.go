package encoder

import (
	"bytes"
	"image"
	"image/png"
)

// PNGEncoder encodes images to PNG using Go's standard library.
// Used as fallback for images with alpha transparency.
type PNGEncoder struct {
	// Fast trades size for speed; the HTTP service sets it.
	Fast bool
}

func (e *PNGEncoder) Format() string      { return "png" }
func (e *PNGEncoder) Extension() string   { return "png" }
func (e *PNGEncoder) ContentType() string { return "image/png" }
func (e *PNGEncoder) Available() bool     { return true }

func (e *PNGEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer

	level := png.BestCompression
	if e.Fast {
		level = png.BestSpeed
	}
	enc := &png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
