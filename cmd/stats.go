package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/boundimg/internal/report"
)

var statsCmd = &cobra.Command{
	Use:   "stats <out_dir_or_report>",
	Short: "Display statistics for a build report",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// resolveReport accepts a report file or a directory holding one.
func resolveReport(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return path, nil
	}
	for _, name := range []string{report.DefaultName, report.DefaultName + ".zst"} {
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no %s in %s", report.DefaultName, path)
}

func runStats(_ *cobra.Command, args []string) error {
	path, err := resolveReport(args[0])
	if err != nil {
		return err
	}
	r, err := report.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	printStats(r)
	return nil
}

func printStats(r *report.Report) {
	fmt.Println()
	fmt.Printf("  Report version:   %d\n", r.Version)
	fmt.Printf("  Build:            %s\n", r.BuildID)
	fmt.Printf("  Generated:        %s\n", r.GeneratedAt)
	fmt.Printf("  Profile:          %s\n", r.Profile)
	if r.SizeLimit > 0 {
		fmt.Printf("  Limit:            %s\n", formatBytes(r.SizeLimit))
	}
	if r.BuildInfo != nil {
		fmt.Printf("  Workers:          %d\n", r.BuildInfo.Workers)
		fmt.Printf("  Ratio:            %.1f\n", r.BuildInfo.CompressionRatio)
		fmt.Printf("  Memory class:     %d MB\n", r.BuildInfo.MemoryClassMB)
	}
	fmt.Println()

	s := r.Stats
	fmt.Printf("  Total assets:     %d\n", s.TotalAssets)
	fmt.Printf("  Total outputs:    %d\n", s.TotalOutputs)
	fmt.Printf("  Input size:       %s\n", formatBytes(s.TotalInputBytes))
	fmt.Printf("  Raster footprint: %s\n", formatBytes(s.TotalFootprintBytes))
	fmt.Printf("  Output size:      %s\n", formatBytes(s.TotalOutputBytes))
	fmt.Println()

	// Heaviest rasters relative to the limit.
	type row struct {
		key string
		d   report.Decode
	}
	var rows []row
	for key, a := range r.Assets {
		rows = append(rows, row{key, a.Decode})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].d.Footprint > rows[j].d.Footprint })
	if n := min(len(rows), 10); n > 0 {
		fmt.Printf("  Top %d rasters:\n", n)
		for _, it := range rows[:n] {
			fmt.Printf("    %-40s 1/%-4d %5dx%-5d %9s  %d attempts\n",
				truncKey(it.key, 40), it.d.SampleSize, it.d.Width, it.d.Height,
				formatBytes(it.d.Footprint), it.d.Attempts)
		}
		fmt.Println()
	}

	var warnings []string
	for _, row := range rows {
		if !row.d.LimitSatisfied {
			warnings = append(warnings, fmt.Sprintf("asset %q exceeds the limit at sample size %d", row.key, row.d.SampleSize))
		}
	}
	for _, f := range r.Failures {
		warnings = append(warnings, fmt.Sprintf("asset %q failed (%s): %s", f.Key, f.Kind, f.Error))
	}
	if len(warnings) > 0 {
		fmt.Printf("  Warnings (%d):\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("    ⚠ %s\n", w)
		}
		fmt.Println()
	}
}

func truncKey(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
