package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/AnyUserName/boundimg/internal/budget"
	"github.com/AnyUserName/boundimg/internal/decoder"
	"github.com/AnyUserName/boundimg/internal/encoder"
	"github.com/AnyUserName/boundimg/internal/profile"
	"github.com/AnyUserName/boundimg/internal/report"
)

// Config holds all parameters for a build pipeline run.
type Config struct {
	InputDir    string
	OutputDir   string
	Profile     profile.Profile
	MemoryClass budget.MemoryClass
	Workers     int
	Verbose     bool

	// Decoder defaults to decoder.New().
	Decoder *decoder.Decoder
	// Registry defaults to encoder.NewRegistry().
	Registry *encoder.Registry
	// Log receives verbose and warning lines. Defaults to os.Stderr.
	Log io.Writer
}

// Pipeline orchestrates batch decoding.
type Pipeline struct {
	cfg   Config
	limit int64
}

// New creates a configured pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Decoder == nil {
		cfg.Decoder = decoder.New()
	}
	if cfg.Registry == nil {
		cfg.Registry = encoder.NewRegistry()
	}
	if cfg.Log == nil {
		cfg.Log = os.Stderr
	}
	return &Pipeline{
		cfg:   cfg,
		limit: cfg.Profile.SizeLimit(cfg.MemoryClass),
	}
}

// SizeLimit is the per-image ceiling this pipeline decodes under.
func (p *Pipeline) SizeLimit() int64 { return p.limit }

func (p *Pipeline) logf(format string, args ...any) {
	fmt.Fprintf(p.cfg.Log, "[boundimg] "+format+"\n", args...)
}

func (p *Pipeline) verbosef(format string, args ...any) {
	if p.cfg.Verbose {
		p.logf(format, args...)
	}
}

// Run decodes every image under InputDir and returns the report.
// Cancelling ctx stops new files from starting; files already being
// decoded run to completion.
func (p *Pipeline) Run(ctx context.Context) (*report.Report, error) {
	p.verbosef("%s", p.cfg.Registry.String())

	// Step 1: Scan for images.
	sources, err := ScanImages(p.cfg.InputDir, p.cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no images found in %s", p.cfg.InputDir)
	}
	p.verbosef("found %d images, limit %d bytes", len(sources), p.limit)

	// Step 2: Decode in parallel.
	results := make([]processResult, len(sources))
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.cfg.Workers)

	for i, src := range sources {
		select {
		case <-ctx.Done():
			results[i] = processResult{key: src.Key, err: ctx.Err(), kind: "canceled"}
			continue
		case sem <- struct{}{}: // acquire
		}

		wg.Add(1)
		go func(idx int, s Source) {
			defer wg.Done()
			defer func() { <-sem }() // release

			p.verbosef("decoding: %s", s.Key)
			results[idx] = p.processImage(s)

			if r := results[idx]; r.err == nil {
				p.verbosef("done: %s (sample %d, %d attempts, %d bytes)",
					s.Key, r.asset.Decode.SampleSize, r.asset.Decode.Attempts, r.asset.Decode.Footprint)
			}
		}(i, src)
	}
	wg.Wait()

	// Step 3: Collect results into the report.
	rep := report.New(p.cfg.Profile.Name, p.limit)
	for _, r := range results {
		if r.err != nil {
			p.logf("error: %v", r.err)
			rep.Failures = append(rep.Failures, report.Failure{Key: r.key, Kind: r.kind, Error: r.err.Error()})
			continue
		}
		rep.Assets[r.key] = r.asset
	}

	if n := len(rep.Failures); n > 0 {
		if n == len(sources) {
			return nil, fmt.Errorf("all %d images failed to decode", n)
		}
		p.logf("warning: %d of %d images had errors", n, len(sources))
	}

	rep.BuildInfo = &report.BuildInfo{
		Workers:          p.cfg.Workers,
		CompressionRatio: p.cfg.Decoder.CompressionRatio(),
		MemoryClassMB:    p.cfg.MemoryClass.Effective(),
	}
	rep.ComputeStats()
	return rep, nil
}
