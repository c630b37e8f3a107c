package pipeline

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/cwbudde/algo-eeg/eeg/buffer"
	"github.com/cwbudde/algo-eeg/eeg/connectivity"
	"github.com/cwbudde/algo-eeg/eeg/detect"
	"github.com/cwbudde/algo-eeg/eeg/filter"
	"github.com/cwbudde/algo-eeg/eeg/spectral"
	"github.com/cwbudde/algo-eeg/eeg/window"
	"github.com/cwbudde/algo-eeg/internal/testutil"
)

// scenarioBuffer is a two-channel recording at 250 Hz: a 10 Hz sine with a
// rectangular spike around sample 500, and an independent noise channel.
func scenarioBuffer(t *testing.T) *buffer.Buffer {
	t.Helper()
	const (
		fs = 250.0
		n  = 1000
	)
	ch1 := testutil.Sine(10, fs, 1, n)
	testutil.Spike(ch1, 500, 3, 8)
	ch2 := testutil.Noise(50, 0.5, n)
	return testutil.MustBuffer(t, fs, []string{"c3", "c4"}, [][]float64{ch1, ch2})
}

// The full chain: an 8-12 Hz bandpass keeps over 90% of the 10 Hz power,
// and the detector flags exactly one spike event near sample 500.
func TestPipeline_EndToEnd(t *testing.T) {
	buf := scenarioBuffer(t)
	p := New(WithLogger(zaptest.NewLogger(t)), WithWorkers(2))
	ctx := context.Background()

	// Detection runs on the raw buffer; the bandpass would smear the
	// spike below threshold.
	events, err := p.Detect(ctx, buf, detect.Config{
		Statistic:     detect.StatRectifiedAmplitude,
		WindowLen:     1,
		ThresholdHigh: 4,
		ThresholdLow:  2,
		MinDuration:   2,
		Refractory:    250,
		Label:         "spike",
	}, detect.WithChannels("c3"))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want exactly 1", len(events))
	}
	ev := events[0]
	if ev.Start < 495 || ev.Start > 505 || ev.End < 495 || ev.End > 505 {
		t.Fatalf("event span [%d, %d), want within 500 +- 5", ev.Start, ev.End)
	}

	spec := filter.Spec{
		Family:  filter.Butterworth,
		Band:    filter.Bandpass,
		Order:   10,
		Cutoff:  8,
		Cutoff2: 12,
	}
	res, err := p.Filter(ctx, buf, spec, filter.WithChannels("c3"))
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	// The spike contributes little energy; compare against the sine alone.
	sine := testutil.Sine(10, 250, 1, 1000)
	filtered, err := res.Buffer.Channel("c3")
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	inBand := testutil.MeanSquare(filtered)
	original := testutil.MeanSquare(sine)
	if ratio := inBand / original; ratio <= 0.9 {
		t.Fatalf("in-band power ratio = %g, want > 0.9", ratio)
	}

	// The PSD of the filtered channel peaks at 10 Hz.
	est, err := p.PSD(ctx, res.Buffer, spectral.SegmentConfig{
		Window:          window.TypeHann,
		SegmentLen:      500,
		OverlapFraction: 0.5,
	})
	if err != nil {
		t.Fatalf("PSD() error = %v", err)
	}
	peak := 0
	for i, pw := range est.Power[0] {
		if pw > est.Power[0][peak] {
			peak = i
		}
	}
	if f := est.Freqs[peak]; math.Abs(f-10) > 0.6 {
		t.Fatalf("filtered peak at %g Hz, want 10 Hz", f)
	}
}

func TestPipeline_DelegatesAllStages(t *testing.T) {
	buf := scenarioBuffer(t)
	p := New(WithWorkers(4))
	ctx := context.Background()

	if _, err := p.Separate(ctx, buf, 2); err != nil {
		t.Fatalf("Separate() error = %v", err)
	}

	m, err := p.Connectivity(ctx, buf, connectivity.MeasureCorrelation)
	if err != nil {
		t.Fatalf("Connectivity() error = %v", err)
	}
	if m.At(0, 1) != m.At(1, 0) {
		t.Fatalf("connectivity matrix asymmetric: %g vs %g", m.At(0, 1), m.At(1, 0))
	}
}

func TestPipeline_DesignErrorPropagates(t *testing.T) {
	buf := scenarioBuffer(t)
	p := New()

	bad := filter.Spec{Family: filter.Butterworth, Band: filter.Lowpass, Order: 4, Cutoff: 300}
	if _, err := p.Filter(context.Background(), buf, bad); err == nil {
		t.Fatal("expected design error for cutoff above Nyquist")
	}
}
