// Package budget derives decode size limits from the memory available
// to the process.
package budget

import (
	"math"
	"runtime/debug"
)

const (
	// DefaultPreviewLimit applies when no quality fraction is given.
	DefaultPreviewLimit int64 = 2_000_000
	// ResultLimit bounds the thumbnail shown after a capture.
	ResultLimit int64 = 750_000

	mib = 1024 * 1024
)

// MemoryClass is the per-process heap allowance in MiB.
type MemoryClass struct {
	Standard int `yaml:"standard"`
	Large    int `yaml:"large"`
	// LargeHeap selects Large over Standard.
	LargeHeap bool `yaml:"large_heap"`
}

// DefaultMemoryClass is used when the runtime reports no memory limit.
var DefaultMemoryClass = MemoryClass{Standard: 256, Large: 512}

// Effective returns the class in MiB the process may use.
func (mc MemoryClass) Effective() int {
	if mc.LargeHeap && mc.Large > 0 {
		return mc.Large
	}
	return mc.Standard
}

// PreviewLimit returns the preview thumbnail ceiling in bytes. A
// quality strictly between 0 and 1 takes that fraction of the memory
// class; anything else yields DefaultPreviewLimit.
func PreviewLimit(mc MemoryClass, quality float64) int64 {
	if quality <= 0 || quality >= 1 {
		return DefaultPreviewLimit
	}
	class := mc.Effective()
	if class <= 0 {
		return DefaultPreviewLimit
	}
	return int64(float64(mib) * float64(class) * quality)
}

// Detect reads the runtime soft memory limit (GOMEMLIMIT). Without one
// it returns DefaultMemoryClass.
func Detect() MemoryClass {
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit == math.MaxInt64 {
		return DefaultMemoryClass
	}
	class := int(limit / mib)
	if class < 1 {
		class = 1
	}
	return MemoryClass{Standard: class, Large: class}
}
