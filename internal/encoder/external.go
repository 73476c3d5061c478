package encoder

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

// Atomic counter for unique temp file names across goroutines.
var tempCounter atomic.Int64

// tool locates an external encoder binary once.
type tool struct {
	name string
	once sync.Once
	path string
}

func (t *tool) lookup() string {
	t.once.Do(func() {
		if p, err := exec.LookPath(t.name); err == nil {
			t.path = p
		}
	})
	return t.path
}

// runTool writes img as PNG to a temp file, runs the tool with args
// built from the source and destination paths, and returns the output.
func runTool(t *tool, ext string, img image.Image, args func(src, dst string) []string) ([]byte, error) {
	bin := t.lookup()
	if bin == "" {
		return nil, fmt.Errorf("%s not found in PATH", t.name)
	}

	id := tempCounter.Add(1)
	srcFile, err := os.CreateTemp("", fmt.Sprintf("boundimg_%s_src_%d_*.png", t.name, id))
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	srcPath := srcFile.Name()
	defer os.Remove(srcPath)

	if err := png.Encode(srcFile, img); err != nil {
		srcFile.Close()
		return nil, fmt.Errorf("encode temp png: %w", err)
	}
	if err := srcFile.Close(); err != nil {
		return nil, fmt.Errorf("close temp png: %w", err)
	}

	dstFile, err := os.CreateTemp("", fmt.Sprintf("boundimg_%s_dst_%d_*.%s", t.name, id, ext))
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	dstPath := dstFile.Name()
	dstFile.Close()
	defer os.Remove(dstPath)

	cmd := exec.Command(bin, args(srcPath, dstPath)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", t.name, err, string(out))
	}
	return os.ReadFile(dstPath)
}

// WebPEncoder encodes images to WebP by shelling out to cwebp.
// Install: brew install webp / apt install webp
type WebPEncoder struct {
	cwebp tool
}

func NewWebPEncoder() *WebPEncoder {
	return &WebPEncoder{cwebp: tool{name: "cwebp"}}
}

func (e *WebPEncoder) Format() string      { return "webp" }
func (e *WebPEncoder) Extension() string   { return "webp" }
func (e *WebPEncoder) ContentType() string { return "image/webp" }
func (e *WebPEncoder) Available() bool     { return e.cwebp.lookup() != "" }

func (e *WebPEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	q := strconv.Itoa(clampQuality(quality))
	return runTool(&e.cwebp, "webp", img, func(src, dst string) []string {
		return []string{
			"-q", q,
			"-m", "6", // compression method (0=fast, 6=best)
			"-mt",
			"-quiet",
			src,
			"-o", dst,
		}
	})
}

// AVIFEncoder encodes images to AVIF by shelling out to avifenc.
// Install: brew install libavif / apt install libavif-bin
type AVIFEncoder struct {
	avifenc tool
}

func NewAVIFEncoder() *AVIFEncoder {
	return &AVIFEncoder{avifenc: tool{name: "avifenc"}}
}

func (e *AVIFEncoder) Format() string      { return "avif" }
func (e *AVIFEncoder) Extension() string   { return "avif" }
func (e *AVIFEncoder) ContentType() string { return "image/avif" }
func (e *AVIFEncoder) Available() bool     { return e.avifenc.lookup() != "" }

func (e *AVIFEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	// avifenc: lower = better, 0-63.
	q := strconv.Itoa(avifQuantizer(clampQuality(quality)))
	return runTool(&e.avifenc, "avif", img, func(src, dst string) []string {
		return []string{
			"--min", q,
			"--max", q,
			"--speed", "6",
			"-j", "all",
			src,
			dst,
		}
	})
}

func avifQuantizer(quality int) int {
	return 63 - (quality * 63 / 100)
}
