package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/AnyUserName/boundimg/internal/decoder"
	"github.com/AnyUserName/boundimg/internal/hasher"
	"github.com/AnyUserName/boundimg/internal/picture"
	"github.com/AnyUserName/boundimg/internal/report"
)

// processResult holds the result of decoding a single source image.
type processResult struct {
	key   string
	asset report.Asset
	err   error
	kind  string // failure kind, see report.Failure
}

// processImage reads, decodes under the limit, and encodes one source.
func (p *Pipeline) processImage(src Source) processResult {
	result := processResult{key: src.Key}
	fail := func(kind string, err error) processResult {
		result.kind = kind
		result.err = err
		return result
	}

	data, err := os.ReadFile(src.AbsPath)
	if err != nil {
		return fail("io", fmt.Errorf("read %s: %w", src.RelPath, err))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fail("format", fmt.Errorf("decode %s: %w", src.RelPath, err))
	}

	pic := picture.New(data,
		picture.WithDecoder(p.cfg.Decoder),
		picture.WithMemoryClass(p.cfg.MemoryClass),
	)
	r, err := pic.Thumbnail(p.limit)
	if err != nil {
		return fail(failureKind(err), fmt.Errorf("decode %s: %w", src.RelPath, err))
	}
	if !r.LimitSatisfied {
		p.verbosef("warn: %s: smallest raster %d bytes still exceeds limit %d",
			src.Key, r.Footprint(), p.limit)
	}

	result.asset = report.Asset{
		Original: report.Original{
			Width:  cfg.Width,
			Height: cfg.Height,
			Format: src.Format,
			Size:   src.Size,
			Hash:   hasher.ContentHash(data, 16),
		},
		Decode: report.Decode{
			SampleSize:     r.SampleSize,
			Attempts:       r.Attempts,
			Width:          r.Width(),
			Height:         r.Height(),
			Footprint:      r.Footprint(),
			LimitSatisfied: r.LimitSatisfied,
			PixelHash:      hasher.RasterHash(r.Image, 16),
		},
	}

	keyDir := filepath.Dir(src.Key)
	if keyDir != "." {
		if err := os.MkdirAll(filepath.Join(p.cfg.OutputDir, keyDir), 0o755); err != nil {
			return fail("io", fmt.Errorf("create %s: %w", keyDir, err))
		}
	}

	formats := p.cfg.Registry.ResolveFormats(p.cfg.Profile.Formats, hasAlpha(r.Image))
	for _, format := range formats {
		enc := p.cfg.Registry.Get(format)
		if enc == nil {
			continue
		}

		out, err := enc.Encode(r.Image, p.cfg.Profile.Encode)
		if err != nil {
			p.verbosef("warn: encode %s as %s: %v", src.Key, format, err)
			continue
		}

		contentHash := hasher.ContentHash(out, 16)
		fileName := fmt.Sprintf("%s.%d.%d.%s.%s",
			filepath.Base(src.Key), r.Width(), r.Height(), contentHash[:8], enc.Extension())
		relPath := filepath.ToSlash(filepath.Join(keyDir, fileName))

		if err := os.WriteFile(filepath.Join(p.cfg.OutputDir, relPath), out, 0o644); err != nil {
			return fail("io", fmt.Errorf("write %s: %w", relPath, err))
		}

		result.asset.Outputs = append(result.asset.Outputs, report.Output{
			Format: format,
			Size:   int64(len(out)),
			Hash:   contentHash,
			Path:   relPath,
		})
	}

	if len(result.asset.Outputs) == 0 {
		return fail("io", fmt.Errorf("encode %s: no output format succeeded", src.RelPath))
	}
	return result
}

func failureKind(err error) string {
	switch {
	case decoder.IsFormat(err):
		return "format"
	case errors.Is(err, decoder.ErrResourceExhausted):
		return "exhausted"
	default:
		return "io"
	}
}

// hasAlpha reports whether any pixel is not fully opaque.
func hasAlpha(img *image.NRGBA) bool {
	w := img.Rect.Dx() * 4
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		off := img.PixOffset(img.Rect.Min.X, y)
		row := img.Pix[off : off+w]
		for i := 3; i < len(row); i += 4 {
			if row[i] != 0xff {
				return true
			}
		}
	}
	return false
}
