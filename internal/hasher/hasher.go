// Package hasher computes the xxHash64 digests used for output names
// and raster fingerprints.
package hasher

import (
	"encoding/binary"
	"encoding/hex"
	"image"
	"io"

	"github.com/cespare/xxhash/v2"
)

// ContentHash computes the xxHash64 of data and returns a hex string
// truncated to hexLen. 16 hex chars (64 bits) is the full digest.
func ContentHash(data []byte, hexLen int) string {
	return truncHex(xxhash.Sum64(data), hexLen)
}

// ContentHashReader computes xxHash64 from a reader, streaming.
func ContentHashReader(r io.Reader, hexLen int) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return truncHex(h.Sum64(), hexLen), nil
}

// RasterHash fingerprints the visible pixels of img row by row, so two
// rasters with different strides but equal pixels hash the same.
func RasterHash(img *image.NRGBA, hexLen int) string {
	h := xxhash.New()
	var dims [8]byte
	binary.BigEndian.PutUint32(dims[:4], uint32(img.Rect.Dx()))
	binary.BigEndian.PutUint32(dims[4:], uint32(img.Rect.Dy()))
	h.Write(dims[:])

	rowLen := img.Rect.Dx() * 4
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		off := img.PixOffset(img.Rect.Min.X, y)
		h.Write(img.Pix[off : off+rowLen])
	}
	return truncHex(h.Sum64(), hexLen)
}

func truncHex(v uint64, hexLen int) string {
	full := hex.EncodeToString(binary.BigEndian.AppendUint64(nil, v))
	if hexLen > 0 && hexLen < len(full) {
		return full[:hexLen]
	}
	return full
}
