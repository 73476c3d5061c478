package picture

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/AnyUserName/boundimg/internal/budget"
	"github.com/AnyUserName/boundimg/internal/decoder"
)

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestRaster_ForceAndCache(t *testing.T) {
	p := New(makeJPEG(t, 120, 80))

	r, err := p.Raster(false)
	if err != nil || r != nil {
		t.Fatalf("unforced raster before decode: %v, %v", r, err)
	}

	r, err = p.Raster(true)
	if err != nil {
		t.Fatalf("forced raster: %v", err)
	}
	if r.Width() != 120 || r.Height() != 80 || r.SampleSize != 1 {
		t.Errorf("full raster: %dx%d sample %d", r.Width(), r.Height(), r.SampleSize)
	}

	again, _ := p.Raster(false)
	if again != r {
		t.Error("raster not cached")
	}
}

func TestSetJPEG_Invalidates(t *testing.T) {
	p := New(makeJPEG(t, 120, 80))
	first, err := p.Raster(true)
	if err != nil {
		t.Fatalf("raster: %v", err)
	}
	if _, err := p.PreviewThumbnail(0); err != nil {
		t.Fatalf("thumbnail: %v", err)
	}

	p.SetJPEG(makeJPEG(t, 60, 40))
	if r, _ := p.Raster(false); r != nil {
		t.Error("raster survived SetJPEG")
	}

	second, err := p.Raster(true)
	if err != nil {
		t.Fatalf("raster: %v", err)
	}
	if second.Width() != 60 || second.Height() != 40 {
		t.Errorf("new raster: %dx%d", second.Width(), second.Height())
	}

	// The earlier raster is still the caller's.
	if first.Width() != 120 || first.Height() != 80 {
		t.Errorf("held raster changed to %dx%d", first.Width(), first.Height())
	}
	if second.Reused || sameBacking(first, second) {
		t.Error("new raster overwrote a buffer the caller still holds")
	}
}

func TestRecycle_ReusesReturnedBuffer(t *testing.T) {
	p := New(makeJPEG(t, 120, 80))
	first, err := p.Raster(true)
	if err != nil {
		t.Fatalf("raster: %v", err)
	}

	// Still cached: recycling it must not arm reuse.
	p.Recycle(first)
	p.SetJPEG(makeJPEG(t, 60, 40))
	second, err := p.Raster(true)
	if err != nil {
		t.Fatalf("raster: %v", err)
	}
	if second.Reused {
		t.Error("cached raster was recycled")
	}

	p.SetJPEG(makeJPEG(t, 60, 40))
	p.Recycle(first)
	third, err := p.Raster(true)
	if err != nil {
		t.Fatalf("raster: %v", err)
	}
	if !third.Reused || !sameBacking(first, third) {
		t.Error("recycled buffer was not reused")
	}
	if third.Width() != 60 || third.Height() != 40 {
		t.Errorf("reused raster: %dx%d", third.Width(), third.Height())
	}
}

func sameBacking(a, b *decoder.Raster) bool {
	return &a.Image.Pix[:1][0] == &b.Image.Pix[:1][0]
}

func TestPreviewThumbnail_QualityUsesMemoryClass(t *testing.T) {
	mc := budget.MemoryClass{Standard: 1}
	p := New(makeJPEG(t, 800, 600), WithMemoryClass(mc))

	// 1 MiB * 1 * 0.1 ≈ 104857 bytes.
	r, err := p.PreviewThumbnail(0.1)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if r.Footprint() > budget.PreviewLimit(mc, 0.1) {
		t.Errorf("footprint %d over limit", r.Footprint())
	}

	cached, _ := p.PreviewThumbnail(0.9)
	if cached != r {
		t.Error("preview thumbnail not cached")
	}
}

func TestResultThumbnail_NotCached(t *testing.T) {
	p := New(makeJPEG(t, 800, 600))

	a, err := p.ResultThumbnail()
	if err != nil {
		t.Fatalf("result thumbnail: %v", err)
	}
	b, err := p.ResultThumbnail()
	if err != nil {
		t.Fatalf("result thumbnail: %v", err)
	}
	if a == b {
		t.Error("result thumbnail should be decoded fresh")
	}
	if a.Footprint() > budget.ResultLimit {
		t.Errorf("footprint %d > %d", a.Footprint(), budget.ResultLimit)
	}
}

func TestRaster_FormatError(t *testing.T) {
	p := New([]byte("not a jpeg"))
	if _, err := p.Raster(true); !decoder.IsFormat(err) {
		t.Fatalf("want FormatError, got %v", err)
	}
	if r, _ := p.Raster(false); r != nil {
		t.Error("failed decode must not be cached")
	}
}
