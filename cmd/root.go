package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/boundimg/internal/config"
	"github.com/AnyUserName/boundimg/internal/decoder"
)

var (
	version    = "0.1.0"
	verbose    bool
	configPath string
	ratioFlag  float64
)

var rootCmd = &cobra.Command{
	Use:   "boundimg",
	Short: "Decode camera stills into rasters that fit a memory budget",
	Long: `boundimg: decodes JPEG captures (and png/webp/gif/bmp/tiff) into
rasters whose in-memory footprint stays under a byte ceiling.

The sample size starts from the encoded-to-limit ratio and doubles until
the raster fits; out-of-memory attempts are retried coarser, malformed
input fails immediately.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().Float64Var(&ratioFlag, "ratio", 0, "assumed decoded/encoded size ratio (0 = config)")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"boundimg %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// logVerbose prints a message only when --verbose is set.
func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[boundimg] "+format+"\n", args...)
	}
}

// loadConfig reads the config file and applies persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if ratioFlag > 0 {
		cfg.Decode.CompressionRatio = ratioFlag
	}
	return cfg, nil
}

// newDecoder builds the decoder described by cfg.
func newDecoder(cfg *config.Config) *decoder.Decoder {
	prim := decoder.NewImagePrimitive(decoder.HeapAllocator{Limit: cfg.HeapLimitBytes()})
	prim.MaxPixels = cfg.Decode.MaxPixels
	return decoder.New(
		decoder.WithPrimitive(prim),
		decoder.WithCompressionRatio(cfg.Decode.CompressionRatio),
		decoder.WithMaxSampleSize(cfg.Decode.MaxSampleSize),
		decoder.WithLogf(logVerbose),
	)
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
