package decoder

import (
	"fmt"
	"math"
	"runtime"
	"runtime/debug"
)

// Allocator decides whether a raster of n bytes may be allocated.
// Reserve returns an error wrapping ErrResourceExhausted when it may not.
type Allocator interface {
	Reserve(n int64) error
}

// Unlimited never refuses an allocation.
type Unlimited struct{}

func (Unlimited) Reserve(int64) error { return nil }

// FixedAllocator refuses any single raster larger than Max bytes.
type FixedAllocator struct {
	Max int64
}

func (a FixedAllocator) Reserve(n int64) error {
	if a.Max > 0 && n > a.Max {
		return fmt.Errorf("%w: need %d bytes, max %d", ErrResourceExhausted, n, a.Max)
	}
	return nil
}

// HeapAllocator compares a request against the headroom between the
// live heap and the heap limit. The limit is the runtime soft memory
// limit (GOMEMLIMIT) or, when that is unset, Limit.
type HeapAllocator struct {
	// Limit is used when no runtime memory limit is configured.
	// Zero means no limit.
	Limit int64
}

func (a HeapAllocator) Reserve(n int64) error {
	limit := debug.SetMemoryLimit(-1)
	if limit == math.MaxInt64 {
		limit = a.Limit
	}
	if limit <= 0 {
		return nil
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	headroom := limit - int64(ms.HeapAlloc)
	if n > headroom {
		return fmt.Errorf("%w: need %d bytes, headroom %d of %d",
			ErrResourceExhausted, n, headroom, limit)
	}
	return nil
}
