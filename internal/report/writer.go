package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// New creates an empty report with defaults.
func New(profileName string, sizeLimit int64) *Report {
	return &Report{
		Version:     SupportedVersion,
		BuildID:     uuid.NewString(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Profile:     profileName,
		SizeLimit:   sizeLimit,
		Assets:      make(map[string]Asset),
	}
}

// ComputeStats recalculates aggregate statistics from assets.
func (r *Report) ComputeStats() {
	var s Stats
	s.TotalAssets = len(r.Assets)
	s.Failed = len(r.Failures)
	for _, a := range r.Assets {
		s.TotalInputBytes += a.Original.Size
		s.TotalFootprintBytes += a.Decode.Footprint
		s.TotalAttempts += a.Decode.Attempts
		if !a.Decode.LimitSatisfied {
			s.LimitMisses++
		}
		s.TotalOutputs += len(a.Outputs)
		for _, o := range a.Outputs {
			s.TotalOutputBytes += o.Size
		}
	}
	r.Stats = s
}

// Compressed reports whether path names a zstd-compressed report.
func Compressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// WriteJSON serializes the report to path. Paths ending in .zst are
// zstd-compressed.
func WriteJSON(r *Report, path string) error {
	r.ComputeStats()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if Compressed(path) {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("zstd writer: %w", err)
		}
		data = enc.EncodeAll(data, nil)
		if err := enc.Close(); err != nil {
			return fmt.Errorf("zstd close: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads a report written by WriteJSON.
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if Compressed(path) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		if data, err = dec.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	if r.Assets == nil {
		r.Assets = make(map[string]Asset)
	}
	return &r, nil
}
