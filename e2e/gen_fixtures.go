//go:build ignore

// gen_fixtures writes a camera-roll style directory for smoke-testing
// `boundimg build` and `boundimg serve`.
// Usage: go run gen_fixtures.go <output_dir>
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	if err := os.MkdirAll(filepath.Join(dir, "DCIM"), 0o755); err != nil {
		panic(err)
	}

	// Camera frames large enough that the preview limit forces sampling.
	for i, size := range [][2]int{{4000, 3000}, {3024, 4032}, {1920, 1080}} {
		name := fmt.Sprintf("IMG_%04d.jpg", i+1)
		write(filepath.Join(dir, "DCIM", name), func(w io.Writer) error {
			return jpeg.Encode(w, noise(size[0], size[1]), &jpeg.Options{Quality: 92})
		})
	}

	write(filepath.Join(dir, "scan.tif"), func(w io.Writer) error {
		return tiff.Encode(w, noise(1200, 1600), &tiff.Options{Compression: tiff.Deflate})
	})
	write(filepath.Join(dir, "icon.bmp"), func(w io.Writer) error {
		return bmp.Encode(w, noise(64, 64))
	})
	write(filepath.Join(dir, "overlay.png"), func(w io.Writer) error {
		return png.Encode(w, alphaGradient(800, 600))
	})

	// Reported as a format failure, never retried.
	write(filepath.Join(dir, "truncated.jpg"), func(w io.Writer) error {
		_, err := w.Write([]byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10})
		return err
	})

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created 7 fixtures in %s\n", dir)
}

// noise is a gradient with a cheap hash pattern so JPEG output stays
// near camera compression ratios.
func noise(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := uint8((x*7919 ^ y*104729) >> 3)
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x*255/w) ^ n&0x1f,
				G: uint8(y*255/h) ^ n&0x1f,
				B: n,
				A: 255,
			})
		}
	}
	return img
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 220, G: 60, B: 30,
				A: uint8(x * 255 / w),
			})
		}
	}
	return img
}

func write(path string, encode func(io.Writer) error) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := encode(f); err != nil {
		panic(err)
	}
}
