package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AnyUserName/boundimg/internal/budget"
)

// LimitSource says where a profile's size limit comes from.
type LimitSource string

const (
	// LimitFixed uses Profile.Limit as is.
	LimitFixed LimitSource = "fixed"
	// LimitMemoryClass takes Profile.Quality of the memory class.
	LimitMemoryClass LimitSource = "memory-class"
	// LimitNone decodes at full resolution.
	LimitNone LimitSource = "none"
)

// Profile defines decode and output parameters for a batch run.
type Profile struct {
	Name    string      `yaml:"name"`
	Source  LimitSource `yaml:"source"`
	Limit   int64       `yaml:"limit"`   // bytes, for LimitFixed
	Quality float64     `yaml:"quality"` // memory class fraction, for LimitMemoryClass
	Formats []string    `yaml:"formats"` // output formats in priority order
	Encode  int         `yaml:"encode_quality"`
}

// Built-in profiles.
var profiles = map[string]Profile{
	"preview": {
		Name:    "preview",
		Source:  LimitFixed,
		Limit:   budget.DefaultPreviewLimit,
		Formats: []string{"webp", "jpeg"},
		Encode:  82,
	},
	"result": {
		Name:    "result",
		Source:  LimitFixed,
		Limit:   budget.ResultLimit,
		Formats: []string{"jpeg"},
		Encode:  80,
	},
	"preview-memclass": {
		Name:    "preview-memclass",
		Source:  LimitMemoryClass,
		Quality: 0.1,
		Formats: []string{"webp", "jpeg"},
		Encode:  82,
	},
	"full": {
		Name:    "full",
		Source:  LimitNone,
		Formats: []string{"jpeg"},
		Encode:  90,
	},
}

// Get returns a profile by name.
func Get(name string) (Profile, error) {
	if p, ok := profiles[name]; ok {
		return p, nil
	}
	return Profile{}, fmt.Errorf("unknown profile %q (known: %s)", name, strings.Join(Names(), ", "))
}

// Register adds or replaces a named profile, e.g. from a config file.
// Not safe to call concurrently with Get.
func Register(p Profile) {
	if p.Source == "" {
		p.Source = LimitFixed
	}
	profiles[p.Name] = p
}

// Names lists the known profiles in sorted order.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SizeLimit resolves the profile's decode ceiling in bytes. Zero means
// unbounded.
func (p Profile) SizeLimit(mc budget.MemoryClass) int64 {
	switch p.Source {
	case LimitNone:
		return 0
	case LimitMemoryClass:
		return budget.PreviewLimit(mc, p.Quality)
	default:
		if p.Limit < 0 {
			return 0
		}
		return p.Limit
	}
}
