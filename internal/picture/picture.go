// Package picture holds a captured still as encoded bytes and builds
// decoded renditions of it on demand.
//
// The encoded bytes are the source of truth. Full rasters are expensive
// and only built when forced; thumbnails are bounded by a budget limit.
package picture

import (
	"image"
	"sync"

	"github.com/AnyUserName/boundimg/internal/budget"
	"github.com/AnyUserName/boundimg/internal/decoder"
)

// Picture is safe for concurrent use.
type Picture struct {
	mu  sync.Mutex
	dec *decoder.Decoder
	mc  budget.MemoryClass

	jpeg      []byte
	raster    *decoder.Raster
	thumbnail *decoder.Raster
	// spare is a buffer the caller gave back with Recycle. The next
	// forced decode may decode into it.
	spare *image.NRGBA
}

// Option configures a Picture.
type Option func(*Picture)

// WithDecoder replaces the default decoder.
func WithDecoder(d *decoder.Decoder) Option {
	return func(p *Picture) { p.dec = d }
}

// WithMemoryClass sets the memory class used for quality-based previews.
func WithMemoryClass(mc budget.MemoryClass) Option {
	return func(p *Picture) { p.mc = mc }
}

// New wraps encoded image bytes.
func New(jpeg []byte, opts ...Option) *Picture {
	p := &Picture{jpeg: jpeg, mc: budget.DefaultMemoryClass}
	for _, opt := range opts {
		opt(p)
	}
	if p.dec == nil {
		p.dec = decoder.New()
	}
	return p
}

// JPEG returns the encoded bytes.
func (p *Picture) JPEG() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jpeg
}

// SetJPEG replaces the encoded bytes and drops every cached rendition.
// Rasters already returned stay valid; they belong to the caller.
func (p *Picture) SetJPEG(jpeg []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jpeg = jpeg
	p.raster = nil
	p.thumbnail = nil
}

// Recycle hands r's pixel buffer back for the next forced decode to
// overwrite. The caller must not use r afterwards. Recycling the
// currently cached full raster is a no-op.
func (p *Picture) Recycle(r *decoder.Raster) {
	if r == nil || r.Image == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if r == p.raster {
		return
	}
	p.spare = r.Image
}

// Raster returns the full-resolution rendition. With force false it
// returns only what is cached, possibly nil. With force true it decodes
// without a size limit; the allocator may still force a coarser sample.
func (p *Picture) Raster(force bool) (*decoder.Raster, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.raster != nil || !force {
		return p.raster, nil
	}
	r, err := p.dec.Decode(decoder.Request{Source: p.jpeg, Reuse: p.spare})
	if err != nil {
		return nil, err
	}
	p.raster = r
	p.spare = nil
	return r, nil
}

// PreviewThumbnail returns a cached thumbnail bounded by
// budget.PreviewLimit. The quality of the first call wins until SetJPEG.
func (p *Picture) PreviewThumbnail(quality float64) (*decoder.Raster, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.thumbnail != nil {
		return p.thumbnail, nil
	}
	r, err := p.dec.Decode(decoder.Request{
		Source:    p.jpeg,
		SizeLimit: budget.PreviewLimit(p.mc, quality),
	})
	if err != nil {
		return nil, err
	}
	p.thumbnail = r
	return r, nil
}

// ResultThumbnail decodes a fresh thumbnail bounded by budget.ResultLimit.
// It is not cached.
func (p *Picture) ResultThumbnail() (*decoder.Raster, error) {
	p.mu.Lock()
	src := p.jpeg
	p.mu.Unlock()
	return p.dec.Decode(decoder.Request{Source: src, SizeLimit: budget.ResultLimit})
}

// Thumbnail decodes a fresh rendition under an explicit limit.
func (p *Picture) Thumbnail(limit int64) (*decoder.Raster, error) {
	p.mu.Lock()
	src := p.jpeg
	p.mu.Unlock()
	return p.dec.Decode(decoder.Request{Source: src, SizeLimit: limit})
}
