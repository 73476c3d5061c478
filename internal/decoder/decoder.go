// Package decoder turns encoded camera stills into rasters that fit a
// caller-supplied memory ceiling.
//
// Decoding starts at a power-of-two sample size guessed from the ratio
// of encoded bytes to the ceiling, then doubles the sample size until
// the decoded footprint fits or the image cannot shrink any further.
// Allocation failures are retried at the next coarser sample size;
// malformed input fails on the first attempt.
package decoder

import (
	"errors"
	"image"
	"math"
)

// BytesPerPixel is the footprint of one NRGBA pixel.
const BytesPerPixel = 4

// DefaultCompressionRatio is the assumed ratio between decoded and
// encoded JPEG size. Empirical, not derived.
const DefaultCompressionRatio = 10.0

// DefaultMaxSampleSize caps escalation when the primitive cannot report
// source dimensions. 2^15 reduces any image Go can decode to one pixel.
const DefaultMaxSampleSize = 1 << 15

// MaxSampleSizeLimit is the largest cap WithMaxSampleSize accepts.
const MaxSampleSizeLimit = 1 << 30

// Request describes one decode call.
type Request struct {
	// Source is the encoded image. It is only read.
	Source []byte
	// SizeLimit is the footprint ceiling in bytes. Zero or negative
	// means unbounded.
	SizeLimit int64
	// Reuse is an optional destination raster. It is written to only
	// when its backing array can hold the decoded pixels.
	Reuse *image.NRGBA
}

// Bounded reports whether the request carries a footprint ceiling.
func (r Request) Bounded() bool { return r.SizeLimit > 0 }

// Raster is a decoded image plus the decisions that produced it.
// The caller owns Image.
type Raster struct {
	Image *image.NRGBA
	// SampleSize is the power-of-two divisor applied to both dimensions.
	SampleSize int
	// Attempts counts primitive calls, including failed ones.
	Attempts int
	// LimitSatisfied is false when no sample size met the ceiling and
	// the smallest raster obtained was returned instead.
	LimitSatisfied bool
	// Reused is true when Image shares the request's Reuse buffer.
	Reused bool
}

// Width is the raster width in pixels.
func (r *Raster) Width() int { return r.Image.Rect.Dx() }

// Height is the raster height in pixels.
func (r *Raster) Height() int { return r.Image.Rect.Dy() }

// Footprint is the estimated in-memory size: width * height * 4.
func (r *Raster) Footprint() int64 {
	return Footprint(r.Width(), r.Height())
}

// Footprint estimates the decoded size of a w x h NRGBA raster.
func Footprint(w, h int) int64 {
	return int64(w) * int64(h) * BytesPerPixel
}

// Primitive decodes src with both dimensions divided by sampleSize.
//
// Implementations return an error wrapping ErrResourceExhausted when the
// raster cannot be allocated, and a *FormatError when src is not a
// decodable image. reuse may be nil.
type Primitive interface {
	Decode(src []byte, sampleSize int, reuse *image.NRGBA) (*image.NRGBA, error)
}

// ConfigReader is implemented by primitives that can report the source
// dimensions without decoding pixels. The decoder uses it to stop
// escalating once the image would shrink below 1x1.
type ConfigReader interface {
	Config(src []byte) (image.Config, error)
}

// Decoder runs the bounded decode loop. It holds no mutable state and
// is safe for concurrent use.
type Decoder struct {
	prim          Primitive
	ratio         float64
	maxSampleSize int
	logf          func(format string, args ...any)
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithPrimitive replaces the default ImagePrimitive.
func WithPrimitive(p Primitive) Option {
	return func(d *Decoder) { d.prim = p }
}

// WithCompressionRatio overrides DefaultCompressionRatio. Non-positive
// values are ignored.
func WithCompressionRatio(ratio float64) Option {
	return func(d *Decoder) {
		if ratio > 0 {
			d.ratio = ratio
		}
	}
}

// WithMaxSampleSize caps escalation. Values are rounded up to a power
// of two and clamped to MaxSampleSizeLimit; values below 1 are ignored.
func WithMaxSampleSize(n int) Option {
	return func(d *Decoder) {
		if n >= 1 {
			d.maxSampleSize = nextPow2(min(n, MaxSampleSizeLimit))
		}
	}
}

// WithLogf receives one line per retry.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(d *Decoder) { d.logf = logf }
}

// New creates a Decoder backed by ImagePrimitive unless overridden.
func New(opts ...Option) *Decoder {
	d := &Decoder{
		ratio:         DefaultCompressionRatio,
		maxSampleSize: DefaultMaxSampleSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.prim == nil {
		d.prim = NewImagePrimitive(nil)
	}
	return d
}

// CompressionRatio returns the ratio used for the initial sample size.
func (d *Decoder) CompressionRatio() float64 { return d.ratio }

// InitialSampleSize guesses the first sample size for an encoded image
// of encodedLen bytes under limit. Unbounded limits always start at 1.
func InitialSampleSize(encodedLen int, limit int64, compressionRatio float64) int {
	if limit <= 0 || encodedLen <= 0 {
		return 1
	}
	ratio := float64(encodedLen) * compressionRatio / float64(limit)
	if ratio <= 1.0 {
		return 1
	}
	exp := math.Ceil(math.Log2(ratio))
	if exp >= 30 {
		return 1 << 30
	}
	return 1 << int(exp)
}

// Decode runs the decode loop for req.
//
// On success the returned raster fits req.SizeLimit, or is the smallest
// raster obtained with LimitSatisfied false. Errors are a *FormatError
// (never retried) or an *ExhaustedError (every attempt ran out of memory).
func (d *Decoder) Decode(req Request) (*Raster, error) {
	if len(req.Source) == 0 {
		return nil, &FormatError{SampleSize: 1, Err: errEmptySource}
	}

	ceiling, err := d.sampleCeiling(req.Source)
	if err != nil {
		return nil, err
	}

	sample := 1
	if req.Bounded() {
		sample = InitialSampleSize(len(req.Source), req.SizeLimit, d.ratio)
	}
	if sample > ceiling {
		sample = ceiling
	}

	var (
		best     *Raster
		attempts int
		lastErr  error
	)
	for {
		attempts++
		img, err := d.prim.Decode(req.Source, sample, req.Reuse)
		switch {
		case err == nil:
			r := &Raster{
				Image:      img,
				SampleSize: sample,
				Reused:     req.Reuse != nil && sharesPixels(img, req.Reuse),
			}
			if !req.Bounded() || r.Footprint() <= req.SizeLimit {
				r.Attempts = attempts
				r.LimitSatisfied = true
				return r, nil
			}
			if best == nil || r.Footprint() <= best.Footprint() {
				best = r
			}
			d.log("sample %d: footprint %d > limit %d, escalating",
				sample, r.Footprint(), req.SizeLimit)
			if r.Width() <= 1 && r.Height() <= 1 {
				ceiling = sample
			}
		case errors.Is(err, ErrResourceExhausted):
			lastErr = err
			d.log("sample %d: %v, escalating", sample, err)
		default:
			var fe *FormatError
			if errors.As(err, &fe) {
				return nil, err
			}
			return nil, &FormatError{SampleSize: sample, Err: err}
		}

		if sample >= ceiling {
			break
		}
		sample *= 2
	}

	if best != nil {
		best.Attempts = attempts
		return best, nil
	}
	return nil, &ExhaustedError{SampleSize: sample, Attempts: attempts, Err: lastErr}
}

// sampleCeiling is the coarsest sample size worth trying for src.
func (d *Decoder) sampleCeiling(src []byte) (int, error) {
	ceiling := d.maxSampleSize
	cr, ok := d.prim.(ConfigReader)
	if !ok {
		return ceiling, nil
	}
	cfg, err := cr.Config(src)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			return 0, err
		}
		return 0, &FormatError{SampleSize: 1, Err: err}
	}
	side := cfg.Width
	if cfg.Height > side {
		side = cfg.Height
	}
	if side < 1 {
		side = 1
	}
	if c := nextPow2(side); c < ceiling {
		ceiling = c
	}
	return ceiling, nil
}

func (d *Decoder) log(format string, args ...any) {
	if d.logf != nil {
		d.logf(format, args...)
	}
}

// sharesPixels reports whether a and b use the same backing array.
func sharesPixels(a, b *image.NRGBA) bool {
	if a == b {
		return true
	}
	if cap(a.Pix) == 0 || cap(b.Pix) == 0 {
		return false
	}
	return &a.Pix[:1][0] == &b.Pix[:1][0]
}

// nextPow2 saturates at MaxSampleSizeLimit.
func nextPow2(n int) int {
	p := 1
	for p < n && p < MaxSampleSizeLimit {
		p <<= 1
	}
	return p
}
