package report

import (
	"fmt"
	"os"
	"path/filepath"
)

// Validate checks r for internal consistency and that every output
// exists under baseDir with the recorded size.
func Validate(r *Report, baseDir string) []string {
	var errs []string

	if r.Version != SupportedVersion {
		errs = append(errs, fmt.Sprintf("unsupported report version: %d", r.Version))
	}

	for key, a := range r.Assets {
		if a.Original.Width <= 0 || a.Original.Height <= 0 {
			errs = append(errs, fmt.Sprintf("asset %q: invalid original dimensions %dx%d",
				key, a.Original.Width, a.Original.Height))
		}

		d := a.Decode
		if d.SampleSize < 1 || d.SampleSize&(d.SampleSize-1) != 0 {
			errs = append(errs, fmt.Sprintf("asset %q: sample size %d is not a power of two", key, d.SampleSize))
		}
		if d.Attempts < 1 {
			errs = append(errs, fmt.Sprintf("asset %q: no decode attempts recorded", key))
		}
		if want := int64(d.Width) * int64(d.Height) * 4; d.Footprint != want {
			errs = append(errs, fmt.Sprintf("asset %q: footprint %d != %dx%dx4", key, d.Footprint, d.Width, d.Height))
		}
		if r.SizeLimit > 0 && d.LimitSatisfied && d.Footprint > r.SizeLimit {
			errs = append(errs, fmt.Sprintf("asset %q: footprint %d exceeds limit %d but marked satisfied",
				key, d.Footprint, r.SizeLimit))
		}

		if len(a.Outputs) == 0 {
			errs = append(errs, fmt.Sprintf("asset %q: no outputs", key))
		}

		seenPaths := map[string]bool{}
		for i, o := range a.Outputs {
			if o.Format == "" {
				errs = append(errs, fmt.Sprintf("asset %q output[%d]: empty format", key, i))
			}
			if o.Hash == "" {
				errs = append(errs, fmt.Sprintf("asset %q output[%d]: missing hash", key, i))
			}
			if o.Path == "" {
				errs = append(errs, fmt.Sprintf("asset %q output[%d]: missing path", key, i))
				continue
			}

			if seenPaths[o.Path] {
				errs = append(errs, fmt.Sprintf("asset %q output[%d]: duplicate path %q", key, i, o.Path))
			}
			seenPaths[o.Path] = true

			info, err := os.Stat(filepath.Join(baseDir, filepath.FromSlash(o.Path)))
			if err != nil {
				errs = append(errs, fmt.Sprintf("asset %q output[%d]: file not found: %s", key, i, o.Path))
			} else if o.Size > 0 && info.Size() != o.Size {
				errs = append(errs, fmt.Sprintf("asset %q output[%d]: size mismatch: report=%d, disk=%d",
					key, i, o.Size, info.Size()))
			}
		}
	}

	outputs := 0
	for _, a := range r.Assets {
		outputs += len(a.Outputs)
	}
	if r.Stats.TotalAssets != len(r.Assets) {
		errs = append(errs, fmt.Sprintf("stats.total_assets mismatch: %d != %d", r.Stats.TotalAssets, len(r.Assets)))
	}
	if r.Stats.TotalOutputs != outputs {
		errs = append(errs, fmt.Sprintf("stats.total_outputs mismatch: %d != %d", r.Stats.TotalOutputs, outputs))
	}

	return errs
}
