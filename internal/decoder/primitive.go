package decoder

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the source resolution ImagePrimitive will
// decode: 1 GiB as NRGBA.
const DefaultMaxPixels int64 = 1 << 28

// ImagePrimitive decodes with the registered image codecs and shrinks
// the result by the sample size with a box filter.
//
// The registered codecs cannot decode at reduced resolution, so every
// attempt materialises the full source raster before shrinking it. That
// transient buffer is charged to the allocator along with the output.
type ImagePrimitive struct {
	alloc Allocator
	// MaxPixels refuses sources whose header claims more pixels, before
	// any pixel data is read. Zero disables the check.
	MaxPixels int64
}

// NewImagePrimitive returns a primitive that checks every decode against
// alloc. A nil alloc never refuses.
func NewImagePrimitive(alloc Allocator) *ImagePrimitive {
	if alloc == nil {
		alloc = Unlimited{}
	}
	return &ImagePrimitive{alloc: alloc, MaxPixels: DefaultMaxPixels}
}

// Config reads the source dimensions from the image header.
func (p *ImagePrimitive) Config(src []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return image.Config{}, &FormatError{SampleSize: 1, Err: err}
	}
	return cfg, nil
}

// Decode implements Primitive.
func (p *ImagePrimitive) Decode(src []byte, sampleSize int, reuse *image.NRGBA) (*image.NRGBA, error) {
	if sampleSize < 1 {
		sampleSize = 1
	}

	cfg, err := p.Config(src)
	if err != nil {
		return nil, err
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); p.MaxPixels > 0 && pixels > p.MaxPixels {
		return nil, fmt.Errorf("%w: source %dx%d exceeds %d pixels",
			ErrResourceExhausted, cfg.Width, cfg.Height, p.MaxPixels)
	}
	w, h := ScaledSize(cfg.Width, cfg.Height, sampleSize)

	// The full-resolution decode is always allocated; the output only
	// when it does not land in the reuse buffer.
	need := Footprint(w, h)
	reserve := Footprint(cfg.Width, cfg.Height)
	if !fits(reuse, need) {
		reserve += need
	}
	if err := p.alloc.Reserve(reserve); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, &FormatError{SampleSize: sampleSize, Err: err}
	}

	if fits(reuse, need) {
		dst := resliceInto(reuse, w, h)
		if sampleSize == 1 {
			draw.Draw(dst, dst.Rect, img, img.Bounds().Min, draw.Src)
		} else {
			draw.Draw(dst, dst.Rect, imaging.Resize(img, w, h, imaging.Box), image.Point{}, draw.Src)
		}
		return dst, nil
	}

	if sampleSize == 1 {
		if nrgba, ok := img.(*image.NRGBA); ok {
			return nrgba, nil
		}
		return imaging.Clone(img), nil
	}
	return imaging.Resize(img, w, h, imaging.Box), nil
}

// ScaledSize divides both dimensions by sampleSize, rounding up, never
// below 1x1.
func ScaledSize(w, h, sampleSize int) (int, int) {
	if sampleSize < 1 {
		sampleSize = 1
	}
	sw := (w + sampleSize - 1) / sampleSize
	sh := (h + sampleSize - 1) / sampleSize
	if sw < 1 {
		sw = 1
	}
	if sh < 1 {
		sh = 1
	}
	return sw, sh
}

func fits(reuse *image.NRGBA, need int64) bool {
	return reuse != nil && int64(cap(reuse.Pix)) >= need
}

// resliceInto reshapes reuse to w x h at the origin, keeping its
// backing array.
func resliceInto(reuse *image.NRGBA, w, h int) *image.NRGBA {
	reuse.Pix = reuse.Pix[:w*h*BytesPerPixel]
	reuse.Stride = w * BytesPerPixel
	reuse.Rect = image.Rect(0, 0, w, h)
	return reuse
}
