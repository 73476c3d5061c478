package decoder

import (
	"errors"
	"image"
	"math"
	"testing"
	"time"
)

// fakePrimitive simulates a platform decoder for a w x h source.
type fakePrimitive struct {
	w, h int

	withConfig   bool
	formatErr    bool
	otherErr     error
	exhaustAbove int64 // refuse rasters larger than this (0 = never)
	exhaustAll   bool

	calls []int
}

func (f *fakePrimitive) Decode(_ []byte, sampleSize int, reuse *image.NRGBA) (*image.NRGBA, error) {
	f.calls = append(f.calls, sampleSize)
	if f.formatErr {
		return nil, &FormatError{SampleSize: sampleSize, Err: errors.New("not an image")}
	}
	if f.otherErr != nil {
		return nil, f.otherErr
	}
	w, h := ScaledSize(f.w, f.h, sampleSize)
	need := Footprint(w, h)
	if f.exhaustAll || (f.exhaustAbove > 0 && need > f.exhaustAbove) {
		return nil, ErrResourceExhausted
	}
	if fits(reuse, need) {
		return resliceInto(reuse, w, h), nil
	}
	return image.NewNRGBA(image.Rect(0, 0, w, h)), nil
}

// configPrimitive adds header dimensions to fakePrimitive.
type configPrimitive struct{ *fakePrimitive }

func (c configPrimitive) Config([]byte) (image.Config, error) {
	return image.Config{Width: c.w, Height: c.h}, nil
}

func src(n int) []byte { return make([]byte, n) }

func assertDoubling(t *testing.T, calls []int) {
	t.Helper()
	for i := 1; i < len(calls); i++ {
		if calls[i] != calls[i-1]*2 {
			t.Fatalf("sample sizes not doubling: %v", calls)
		}
	}
	for _, c := range calls {
		if c&(c-1) != 0 {
			t.Fatalf("sample size %d is not a power of two (%v)", c, calls)
		}
	}
}

func TestInitialSampleSize(t *testing.T) {
	tests := []struct {
		name    string
		encoded int
		limit   int64
		want    int
	}{
		{"5MB into 2MB", 5_000_000, 2_000_000, 32},
		{"1MB into 2MB", 1_000_000, 2_000_000, 8},
		{"unbounded", 5_000_000, 0, 1},
		{"negative limit", 5_000_000, -1, 1},
		{"ratio exactly 1", 200_000, 2_000_000, 1},
		{"ratio below 1", 1_000, 2_000_000, 1},
		{"ratio just above 1", 200_001, 2_000_000, 2},
		{"ratio exactly 4", 800_000, 2_000_000, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InitialSampleSize(tt.encoded, tt.limit, DefaultCompressionRatio)
			if got != tt.want {
				t.Errorf("InitialSampleSize(%d, %d) = %d, want %d", tt.encoded, tt.limit, got, tt.want)
			}
		})
	}
}

func TestInitialSampleSize_CustomRatio(t *testing.T) {
	// ratio = 1_000_000 * 2.5 / 2_000_000 = 1.25 → 2
	if got := InitialSampleSize(1_000_000, 2_000_000, 2.5); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}

func TestDecode_UnboundedFullResolution(t *testing.T) {
	fp := &fakePrimitive{w: 4000, h: 3000}
	d := New(WithPrimitive(fp))

	r, err := d.Decode(Request{Source: src(5_000_000)})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.SampleSize != 1 || r.Attempts != 1 {
		t.Errorf("sample=%d attempts=%d, want 1/1", r.SampleSize, r.Attempts)
	}
	if r.Width() != 4000 || r.Height() != 3000 {
		t.Errorf("dims: %dx%d", r.Width(), r.Height())
	}
	if !r.LimitSatisfied {
		t.Error("unbounded decode must report the limit as satisfied")
	}
}

func TestDecode_BoundedEscalatesUntilFit(t *testing.T) {
	fp := &fakePrimitive{w: 4000, h: 3000}
	d := New(WithPrimitive(fp))

	// ratio 0.5 → start at 1; 48 MB, 12 MB, 3 MB, then 750 KB fits.
	r, err := d.Decode(Request{Source: src(100_000), SizeLimit: 2_000_000})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.SampleSize != 8 {
		t.Errorf("sample size: got %d, want 8", r.SampleSize)
	}
	if r.Footprint() > 2_000_000 {
		t.Errorf("footprint %d exceeds limit", r.Footprint())
	}
	if r.Attempts != 4 || len(fp.calls) != 4 {
		t.Errorf("attempts=%d calls=%v", r.Attempts, fp.calls)
	}
	assertDoubling(t, fp.calls)
}

func TestDecode_StartsAtInitialSampleSize(t *testing.T) {
	fp := &fakePrimitive{w: 4000, h: 3000}
	d := New(WithPrimitive(fp))

	if _, err := d.Decode(Request{Source: src(5_000_000), SizeLimit: 2_000_000}); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fp.calls[0] != 32 {
		t.Errorf("first sample size: got %d, want 32", fp.calls[0])
	}
}

func TestDecode_LimitUnsatisfiable(t *testing.T) {
	for _, withConfig := range []bool{false, true} {
		fp := &fakePrimitive{w: 4000, h: 3000}
		var prim Primitive = fp
		if withConfig {
			prim = configPrimitive{fp}
		}
		d := New(WithPrimitive(prim))

		r, err := d.Decode(Request{Source: src(10), SizeLimit: 1})
		if err != nil {
			t.Fatalf("config=%v: decode: %v", withConfig, err)
		}
		if r.LimitSatisfied {
			t.Errorf("config=%v: limit of 1 byte reported as satisfied", withConfig)
		}
		if r.Width() != 1 || r.Height() != 1 {
			t.Errorf("config=%v: want smallest raster 1x1, got %dx%d", withConfig, r.Width(), r.Height())
		}
		if r.SampleSize != 4096 {
			t.Errorf("config=%v: sample size %d, want 4096", withConfig, r.SampleSize)
		}
		assertDoubling(t, fp.calls)
	}
}

func TestDecode_FormatErrorNotRetried(t *testing.T) {
	fp := &fakePrimitive{w: 100, h: 100, formatErr: true}
	d := New(WithPrimitive(fp))

	_, err := d.Decode(Request{Source: src(1000), SizeLimit: 10})
	if !IsFormat(err) {
		t.Fatalf("want FormatError, got %v", err)
	}
	if len(fp.calls) != 1 {
		t.Errorf("format error retried: calls=%v", fp.calls)
	}
}

func TestDecode_UnknownErrorTreatedAsFormat(t *testing.T) {
	boom := errors.New("unexpected EOF")
	fp := &fakePrimitive{w: 100, h: 100, otherErr: boom}
	d := New(WithPrimitive(fp))

	_, err := d.Decode(Request{Source: src(1000)})
	if !IsFormat(err) || !errors.Is(err, boom) {
		t.Fatalf("want FormatError wrapping %v, got %v", boom, err)
	}
	if len(fp.calls) != 1 {
		t.Errorf("calls=%v", fp.calls)
	}
}

func TestDecode_EmptySource(t *testing.T) {
	fp := &fakePrimitive{w: 1, h: 1}
	_, err := New(WithPrimitive(fp)).Decode(Request{})
	if !IsFormat(err) {
		t.Fatalf("want FormatError, got %v", err)
	}
	if len(fp.calls) != 0 {
		t.Errorf("primitive called for empty source")
	}
}

func TestDecode_ResourceExhaustionEscalates(t *testing.T) {
	fp := &fakePrimitive{w: 4000, h: 3000, exhaustAbove: 1_000_000}
	d := New(WithPrimitive(fp))

	r, err := d.Decode(Request{Source: src(5_000_000)})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.SampleSize != 8 {
		t.Errorf("sample size: got %d, want 8", r.SampleSize)
	}
	if !r.LimitSatisfied {
		t.Error("unbounded decode should be satisfied")
	}
	if got := []int{1, 2, 4, 8}; len(fp.calls) != len(got) {
		t.Errorf("calls: got %v, want %v", fp.calls, got)
	}
}

func TestDecode_ResourceExhaustedEverywhere(t *testing.T) {
	fp := &fakePrimitive{w: 4000, h: 3000, exhaustAll: true}
	d := New(WithPrimitive(configPrimitive{fp}))

	_, err := d.Decode(Request{Source: src(1000)})
	if !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("want ErrResourceExhausted, got %v", err)
	}
	var ee *ExhaustedError
	if !errors.As(err, &ee) {
		t.Fatalf("want *ExhaustedError, got %T", err)
	}
	if ee.SampleSize != 4096 || ee.Attempts != 13 {
		t.Errorf("sample=%d attempts=%d, want 4096/13", ee.SampleSize, ee.Attempts)
	}
	assertDoubling(t, fp.calls)
}

func TestDecode_MaxSampleSizeBoundsLoop(t *testing.T) {
	fp := &fakePrimitive{w: 4000, h: 3000, exhaustAll: true}
	d := New(WithPrimitive(fp), WithMaxSampleSize(6))

	_, err := d.Decode(Request{Source: src(1000)})
	if !IsExhausted(err) {
		t.Fatalf("want exhaustion, got %v", err)
	}
	// 6 rounds up to 8.
	if len(fp.calls) != 4 || fp.calls[3] != 8 {
		t.Errorf("calls: %v", fp.calls)
	}
}

func TestDecode_ExhaustionThenLimitMiss(t *testing.T) {
	// Exhausted at 1 and 2, oversized at 4, fits at 8.
	fp := &fakePrimitive{w: 4000, h: 3000, exhaustAbove: 10_000_000}
	d := New(WithPrimitive(fp))

	r, err := d.Decode(Request{Source: src(1000), SizeLimit: 1_000_000})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.SampleSize != 8 || r.Attempts != 4 {
		t.Errorf("sample=%d attempts=%d", r.SampleSize, r.Attempts)
	}
}

func TestDecode_ReuseBuffer(t *testing.T) {
	fp := &fakePrimitive{w: 400, h: 300}
	d := New(WithPrimitive(fp))
	reuse := image.NewNRGBA(image.Rect(0, 0, 400, 300))

	r, err := d.Decode(Request{Source: src(1000), SizeLimit: 200_000, Reuse: reuse})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !r.Reused {
		t.Error("expected raster to share the reuse buffer")
	}
	if r.Footprint() > 200_000 {
		t.Errorf("footprint %d", r.Footprint())
	}

	small := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	r, err = d.Decode(Request{Source: src(1000), Reuse: small})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.Reused {
		t.Error("undersized reuse buffer must not be used")
	}
}

func TestWithCompressionRatio_IgnoresNonPositive(t *testing.T) {
	d := New(WithPrimitive(&fakePrimitive{}), WithCompressionRatio(0))
	if d.CompressionRatio() != DefaultCompressionRatio {
		t.Errorf("ratio: %v", d.CompressionRatio())
	}
	d = New(WithPrimitive(&fakePrimitive{}), WithCompressionRatio(4))
	if d.CompressionRatio() != 4 {
		t.Errorf("ratio: %v", d.CompressionRatio())
	}
}

func TestDecode_LogsRetries(t *testing.T) {
	var lines int
	fp := &fakePrimitive{w: 4000, h: 3000}
	d := New(WithPrimitive(fp), WithLogf(func(string, ...any) { lines++ }))

	if _, err := d.Decode(Request{Source: src(100_000), SizeLimit: 2_000_000}); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if lines != 3 {
		t.Errorf("log lines: got %d, want 3", lines)
	}
}

func TestWithMaxSampleSize_Clamped(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{3, 4},
		{1 << 20, 1 << 20},
		{MaxSampleSizeLimit + 1, MaxSampleSizeLimit},
		{math.MaxInt, MaxSampleSizeLimit},
	}
	for _, tt := range tests {
		done := make(chan int, 1)
		go func() { done <- New(WithPrimitive(&fakePrimitive{}), WithMaxSampleSize(tt.in)).maxSampleSize }()
		select {
		case got := <-done:
			if got != tt.want {
				t.Errorf("WithMaxSampleSize(%d): got %d, want %d", tt.in, got, tt.want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("WithMaxSampleSize(%d) did not return", tt.in)
		}
	}
}
