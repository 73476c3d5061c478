package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/boundimg/internal/decoder"
	"github.com/AnyUserName/boundimg/internal/encoder"
	"github.com/AnyUserName/boundimg/internal/picture"
	"github.com/AnyUserName/boundimg/internal/profile"
)

var (
	decodeLimit   int64
	decodeProfile string
	decodeOut     string
	decodeQuality int
)

var decodeCmd = &cobra.Command{
	Use:   "decode <image>",
	Short: "Decode one image under a size limit and optionally write it out",
	Long: `Decodes a single image under --limit bytes (or the --profile limit)
and prints the sample size, attempts and resulting footprint.

With --out the raster is re-encoded; the format follows the extension.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().Int64VarP(&decodeLimit, "limit", "l", -1, "footprint limit in bytes (0 = unbounded, -1 = profile)")
	decodeCmd.Flags().StringVarP(&decodeProfile, "profile", "p", "preview", "decode profile")
	decodeCmd.Flags().StringVarP(&decodeOut, "out", "o", "", "write the raster to this file")
	decodeCmd.Flags().IntVarP(&decodeQuality, "quality", "q", 0, "encode quality 1-100 (0 = profile default)")
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	prof, err := profile.Get(decodeProfile)
	if err != nil {
		return err
	}
	limit := decodeLimit
	if limit < 0 {
		limit = prof.SizeLimit(cfg.Budget)
	}

	dec := newDecoder(cfg)
	logVerbose("%s: %s, limit %d, initial sample %d", args[0], formatBytes(int64(len(data))), limit,
		decoder.InitialSampleSize(len(data), limit, dec.CompressionRatio()))

	pic := picture.New(data, picture.WithDecoder(dec), picture.WithMemoryClass(cfg.Budget))
	r, err := pic.Thumbnail(limit)
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  Raster:      %dx%d\n", r.Width(), r.Height())
	fmt.Fprintf(out, "  Sample size: %d\n", r.SampleSize)
	fmt.Fprintf(out, "  Attempts:    %d\n", r.Attempts)
	fmt.Fprintf(out, "  Footprint:   %s\n", formatBytes(r.Footprint()))
	if limit > 0 {
		fmt.Fprintf(out, "  Limit:       %s\n", formatBytes(limit))
	}
	if !r.LimitSatisfied {
		fmt.Fprintf(out, "  ⚠ no sample size meets the limit; returned the smallest raster\n")
	}

	if decodeOut == "" {
		return nil
	}
	return writeRaster(r, decodeOut, prof)
}

func writeRaster(r *decoder.Raster, path string, prof profile.Profile) error {
	reg := encoder.NewRegistry()
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	enc := reg.Get(format)
	if enc == nil {
		return fmt.Errorf("no encoder for %q (%s)", format, reg.String())
	}

	quality := prof.Encode
	if decodeQuality > 0 {
		quality = decodeQuality
	}
	data, err := enc.Encode(r.Image, quality)
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logVerbose("wrote %s (%s)", path, formatBytes(int64(len(data))))
	return nil
}
