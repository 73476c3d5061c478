package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/boundimg/internal/pipeline"
	"github.com/AnyUserName/boundimg/internal/profile"
	"github.com/AnyUserName/boundimg/internal/report"
)

var (
	buildOutDir   string
	buildProfile  string
	buildWorkers  int
	buildLimit    int64
	buildFormats  []string
	buildQuality  int
	buildCompress bool
)

var buildCmd = &cobra.Command{
	Use:   "build <input_dir>",
	Short: "Decode every image in a directory under a size limit",
	Long: `Scans input directory for images (jpg, jpeg, png, webp, gif, bmp, tiff),
decodes each under the profile's footprint limit, re-encodes the raster
and writes a report of sample sizes, attempts and footprints.

Output filenames are content-addressed: <key>.<w>.<h>.<hash>.ext`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutDir, "out", "o", "./boundimg_out", "output directory")
	buildCmd.Flags().StringVarP(&buildProfile, "profile", "p", "preview", "decode profile")
	buildCmd.Flags().IntVarP(&buildWorkers, "workers", "w", 0, "parallel workers (0 = NumCPU)")
	buildCmd.Flags().Int64VarP(&buildLimit, "limit", "l", -1, "footprint limit in bytes (overrides profile, 0 = unbounded)")
	buildCmd.Flags().StringSliceVar(&buildFormats, "formats", nil, "output formats (overrides profile)")
	buildCmd.Flags().IntVarP(&buildQuality, "quality", "q", 0, "encode quality 1-100 (0 = profile default)")
	buildCmd.Flags().BoolVar(&buildCompress, "compress-report", false, "write the report zstd-compressed")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	start := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	absInput, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}
	absOutput, err := filepath.Abs(buildOutDir)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	prof, err := profile.Get(buildProfile)
	if err != nil {
		return err
	}
	if buildLimit >= 0 {
		prof.Source = profile.LimitFixed
		prof.Limit = buildLimit
	}
	if buildFormats != nil {
		prof.Formats = buildFormats
	}
	if buildQuality > 0 {
		prof.Encode = buildQuality
	}

	logVerbose("input:   %s", absInput)
	logVerbose("output:  %s", absOutput)
	logVerbose("profile: %s (limit=%d, formats=%v)", prof.Name, prof.SizeLimit(cfg.Budget), prof.Formats)

	if err := os.MkdirAll(absOutput, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	p := pipeline.New(pipeline.Config{
		InputDir:    absInput,
		OutputDir:   absOutput,
		Profile:     prof,
		MemoryClass: cfg.Budget,
		Workers:     buildWorkers,
		Verbose:     verbose,
		Decoder:     newDecoder(cfg),
	})

	rep, err := p.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	name := report.DefaultName
	if buildCompress {
		name += ".zst"
	}
	if err := report.WriteJSON(rep, filepath.Join(absOutput, name)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	printBuildReport(rep, name, time.Since(start))
	return nil
}

func printBuildReport(r *report.Report, name string, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════╗")
	fmt.Println("║             boundimg build complete              ║")
	fmt.Println("╚══════════════════════════════════════════════════╝")
	fmt.Println()

	s := r.Stats
	fmt.Printf("  Assets:      %d\n", s.TotalAssets)
	if s.Failed > 0 {
		fmt.Printf("  Failed:      %d\n", s.Failed)
	}
	fmt.Printf("  Input size:  %s\n", formatBytes(s.TotalInputBytes))
	fmt.Printf("  Rasters:     %s\n", formatBytes(s.TotalFootprintBytes))
	fmt.Printf("  Output size: %s (%d files)\n", formatBytes(s.TotalOutputBytes), s.TotalOutputs)
	if r.SizeLimit > 0 {
		fmt.Printf("  Limit:       %s per image\n", formatBytes(r.SizeLimit))
	} else {
		fmt.Printf("  Limit:       unbounded\n")
	}
	if s.LimitMisses > 0 {
		fmt.Printf("  Over limit:  %d (no sample size fits)\n", s.LimitMisses)
	}
	if s.TotalAssets > 0 {
		fmt.Printf("  Attempts:    %.2f per image\n", float64(s.TotalAttempts)/float64(s.TotalAssets))
	}
	fmt.Printf("  Time:        %s\n", elapsed.Round(time.Millisecond))
	fmt.Println()

	// Sample size histogram.
	hist := map[int]int{}
	for _, a := range r.Assets {
		hist[a.Decode.SampleSize]++
	}
	var sizes []int
	for s := range hist {
		sizes = append(sizes, s)
	}
	sort.Ints(sizes)
	fmt.Println("  Sample sizes:")
	for _, s := range sizes {
		fmt.Printf("    1/%-5d %4d images\n", s, hist[s])
	}
	fmt.Println()

	fmt.Printf("  Report:      %s\n", name)
	fmt.Println()
}
