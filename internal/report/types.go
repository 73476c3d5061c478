package report

// Report is the top-level output of a boundimg build.
type Report struct {
	Version     int              `json:"version"`
	BuildID     string           `json:"build_id"`
	GeneratedAt string           `json:"generated_at"`
	Profile     string           `json:"profile"`
	SizeLimit   int64            `json:"size_limit"` // 0 = unbounded
	BuildInfo   *BuildInfo       `json:"build_info,omitempty"`
	Assets      map[string]Asset `json:"assets"`
	Failures    []Failure        `json:"failures,omitempty"`
	Stats       Stats            `json:"stats"`
}

// BuildInfo captures build-time parameters for diagnostics.
type BuildInfo struct {
	Workers          int     `json:"workers"`
	CompressionRatio float64 `json:"compression_ratio"`
	MemoryClassMB    int     `json:"memory_class_mb"`
}

// Asset describes one source image and the raster decoded from it.
type Asset struct {
	Original Original `json:"original"`
	Decode   Decode   `json:"decode"`
	Outputs  []Output `json:"outputs"`
}

// Original holds metadata about the encoded source.
type Original struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Size   int64  `json:"size"`
	Hash   string `json:"hash"` // xxhash64 of the encoded bytes
}

// Decode records how the raster was produced.
type Decode struct {
	SampleSize     int    `json:"sample_size"`
	Attempts       int    `json:"attempts"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Footprint      int64  `json:"footprint"`
	LimitSatisfied bool   `json:"limit_satisfied"`
	PixelHash      string `json:"pixel_hash"`
}

// Output is one encoded rendition of the decoded raster.
type Output struct {
	Format string `json:"format"` // "avif", "webp", "jpeg", "png"
	Size   int64  `json:"size"`   // bytes on disk
	Hash   string `json:"hash"`   // 16 hex chars of xxhash64
	Path   string `json:"path"`   // relative to the report
}

// Failure is a source that could not be decoded.
type Failure struct {
	Key   string `json:"key"`
	Kind  string `json:"kind"` // "format", "exhausted", "io"
	Error string `json:"error"`
}

// Stats aggregates build metrics.
type Stats struct {
	TotalInputBytes     int64 `json:"total_input_bytes"`
	TotalFootprintBytes int64 `json:"total_footprint_bytes"`
	TotalOutputBytes    int64 `json:"total_output_bytes"`
	TotalAssets         int   `json:"total_assets"`
	TotalOutputs        int   `json:"total_outputs"`
	TotalAttempts       int   `json:"total_attempts"`
	LimitMisses         int   `json:"limit_misses,omitempty"` // assets returned over the limit
	Failed              int   `json:"failed,omitempty"`
}

// SupportedVersion is the current schema version.
const SupportedVersion = 1

// DefaultName is the report file written into the output directory.
const DefaultName = "boundimg.report.json"
