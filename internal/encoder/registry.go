package encoder

import (
	"fmt"
	"strings"
)

// formatOrder is the priority order used for listings and fallbacks.
var formatOrder = []string{"avif", "webp", "jpeg", "png"}

// Registry holds all available encoders and selects the best one per format.
type Registry struct {
	encoders map[string]Encoder
}

// NewRegistry creates a registry, probing all encoders for availability.
func NewRegistry() *Registry {
	return NewRegistryWith(
		NewAVIFEncoder(),
		NewWebPEncoder(),
		&JPEGEncoder{},
		&PNGEncoder{},
	)
}

// NewRegistryWith registers only the given encoders that are available.
func NewRegistryWith(all ...Encoder) *Registry {
	r := &Registry{encoders: make(map[string]Encoder)}
	for _, enc := range all {
		if enc.Available() {
			r.encoders[enc.Format()] = enc
		}
	}
	return r
}

// Get returns an encoder for the given format, or nil if unavailable.
// "jpg" is accepted as an alias of "jpeg".
func (r *Registry) Get(format string) Encoder {
	return r.encoders[normalize(format)]
}

// Available returns all available format names.
func (r *Registry) Available() []string {
	var result []string
	for _, f := range formatOrder {
		if _, ok := r.encoders[f]; ok {
			result = append(result, f)
		}
	}
	return result
}

// ResolveFormats filters requested formats to only those available,
// and ensures at least one fallback format is present.
func (r *Registry) ResolveFormats(requested []string, hasAlpha bool) []string {
	var resolved []string
	seen := map[string]bool{}

	for _, f := range requested {
		f = normalize(f)
		if _, ok := r.encoders[f]; ok && !seen[f] {
			resolved = append(resolved, f)
			seen[f] = true
		}
	}

	if len(resolved) == 0 {
		fallback := "jpeg"
		if hasAlpha {
			fallback = "png"
		}
		if r.encoders[fallback] != nil {
			resolved = append(resolved, fallback)
			seen[fallback] = true
		}
	}

	// JPEG drops alpha; keep a PNG alongside.
	if hasAlpha && !seen["png"] && r.encoders["png"] != nil {
		resolved = append(resolved, "png")
	}

	return resolved
}

// String returns a summary of available encoders.
func (r *Registry) String() string {
	avail := r.Available()
	if len(avail) == 0 {
		return "no encoders available"
	}
	return fmt.Sprintf("encoders: %s", strings.Join(avail, ", "))
}

func normalize(format string) string {
	f := strings.ToLower(strings.TrimPrefix(format, "."))
	if f == "jpg" {
		return "jpeg"
	}
	return f
}
