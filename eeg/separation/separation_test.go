package separation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-eeg/internal/testutil"
)

// mixedBuffer builds a full-rank two-channel mixture of a sine and a
// uniform noise source.
func mixedBuffer(t *testing.T) ([]float64, []float64, [][]float64) {
	t.Helper()
	const (
		fs = 250.0
		n  = 2000
	)
	s1 := testutil.Sine(8, fs, 1, n)
	s2 := testutil.Noise(17, 1, n)

	x1 := make([]float64, n)
	x2 := make([]float64, n)
	for i := range n {
		x1[i] = 1.0*s1[i] + 0.5*s2[i] + 2.0
		x2[i] = 0.4*s1[i] + 1.0*s2[i] - 1.0
	}
	return s1, s2, [][]float64{x1, x2}
}

func TestSeparate_InvalidComponents(t *testing.T) {
	_, _, data := mixedBuffer(t)
	buf := testutil.MustBuffer(t, 250, []string{"a", "b"}, data)

	for _, n := range []int{0, -1, 3} {
		if _, err := Separate(context.Background(), buf, n); !errors.Is(err, ErrInvalidComponents) {
			t.Fatalf("Separate(n=%d) error = %v, want ErrInvalidComponents", n, err)
		}
	}
}

func TestSeparate_InsufficientSamples(t *testing.T) {
	buf := testutil.MustBuffer(t, 250, []string{"a", "b"}, [][]float64{{1}, {2}})

	if _, err := Separate(context.Background(), buf, 1); !errors.Is(err, ErrInsufficientSamples) {
		t.Fatalf("Separate() error = %v, want ErrInsufficientSamples", err)
	}
}

func TestSeparate_InsufficientRank(t *testing.T) {
	x := testutil.Sine(10, 250, 1, 1000)
	dup := make([]float64, len(x))
	copy(dup, x)
	buf := testutil.MustBuffer(t, 250, []string{"a", "b"}, [][]float64{x, dup})

	if _, err := Separate(context.Background(), buf, 2); !errors.Is(err, ErrInsufficientRank) {
		t.Fatalf("Separate() error = %v, want ErrInsufficientRank", err)
	}
}

func TestSeparate_NotConverged(t *testing.T) {
	_, _, data := mixedBuffer(t)
	buf := testutil.MustBuffer(t, 250, []string{"a", "b"}, data)

	_, err := Separate(context.Background(), buf, 2,
		WithTolerance(1e-15), WithMaxIterations(1))
	var nc *NotConvergedError
	if !errors.As(err, &nc) {
		t.Fatalf("Separate() error = %v, want *NotConvergedError", err)
	}
	if nc.Iterations != 1 {
		t.Fatalf("Iterations = %d, want 1", nc.Iterations)
	}
	if nc.LastDelta <= 0 || math.IsNaN(nc.LastDelta) {
		t.Fatalf("LastDelta = %g, want positive", nc.LastDelta)
	}
}

// Reconstructing without removing any component must round-trip the input.
func TestSeparate_RoundTripIdentity(t *testing.T) {
	_, _, data := mixedBuffer(t)
	buf := testutil.MustBuffer(t, 250, []string{"a", "b"}, data)

	res, err := Separate(context.Background(), buf, 2,
		WithTolerance(1e-5), WithMaxIterations(500))
	if err != nil {
		t.Fatalf("Separate() error = %v", err)
	}

	rebuilt, err := Reconstruct(res, nil)
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	if rebuilt.Len() != buf.Len() || rebuilt.NumChannels() != buf.NumChannels() {
		t.Fatalf("rebuilt shape %dx%d, want %dx%d",
			rebuilt.NumChannels(), rebuilt.Len(), buf.NumChannels(), buf.Len())
	}

	for i, id := range buf.ChannelIDs() {
		got, err := rebuilt.Channel(id)
		if err != nil {
			t.Fatalf("Channel(%s): %v", id, err)
		}
		testutil.RequireSliceNearlyEqual(t, got, data[i], 1e-8)
	}
}

func TestSeparate_RemovalChangesOutput(t *testing.T) {
	_, _, data := mixedBuffer(t)
	buf := testutil.MustBuffer(t, 250, []string{"a", "b"}, data)

	res, err := Separate(context.Background(), buf, 2,
		WithTolerance(1e-5), WithMaxIterations(500))
	if err != nil {
		t.Fatalf("Separate() error = %v", err)
	}

	cleaned, err := Reconstruct(res, []int{0})
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	orig, _ := buf.Channel("a")
	got, _ := cleaned.Channel("a")
	diff, err := testutil.MaxAbsDiff(got, orig)
	if err != nil {
		t.Fatalf("MaxAbsDiff: %v", err)
	}
	if diff < 1e-6 {
		t.Fatalf("removing a component left channel unchanged (max diff %g)", diff)
	}

	if _, err := Reconstruct(res, []int{5}); !errors.Is(err, ErrUnknownComponent) {
		t.Fatalf("Reconstruct(bad index) error = %v, want ErrUnknownComponent", err)
	}
}

func TestSeparate_Deterministic(t *testing.T) {
	_, _, data := mixedBuffer(t)
	buf := testutil.MustBuffer(t, 250, []string{"a", "b"}, data)

	opts := []Option{WithTolerance(1e-5), WithMaxIterations(500)}
	first, err := Separate(context.Background(), buf, 2, opts...)
	if err != nil {
		t.Fatalf("Separate() error = %v", err)
	}
	second, err := Separate(context.Background(), buf, 2, opts...)
	if err != nil {
		t.Fatalf("Separate() error = %v", err)
	}

	if first.Iterations != second.Iterations {
		t.Fatalf("iteration counts differ: %d vs %d", first.Iterations, second.Iterations)
	}
	for i := range first.Components {
		diff, err := testutil.MaxAbsDiff(first.Components[i], second.Components[i])
		if err != nil {
			t.Fatalf("MaxAbsDiff: %v", err)
		}
		if diff != 0 {
			t.Fatalf("component %d differs across runs by %g", i, diff)
		}
	}
}

func TestSeparate_CancelledContext(t *testing.T) {
	_, _, data := mixedBuffer(t)
	buf := testutil.MustBuffer(t, 250, []string{"a", "b"}, data)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Separate(ctx, buf, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("Separate() error = %v, want context.Canceled", err)
	}
}

func TestExcessKurtosis(t *testing.T) {
	spiky := make([]float64, 1000)
	spiky[500] = 10
	if k := excessKurtosis(spiky); k < 100 {
		t.Fatalf("kurtosis of spike train = %g, want large positive", k)
	}

	flat := make([]float64, 100)
	for i := range flat {
		flat[i] = 3
	}
	if k := excessKurtosis(flat); k != 0 {
		t.Fatalf("kurtosis of constant = %g, want 0", k)
	}

	// Sinusoids are sub-Gaussian with excess kurtosis -1.5.
	sine := testutil.Sine(5, 100, 1, 10_000)
	testutil.RequireNearlyEqual(t, excessKurtosis(sine), -1.5, 0.01)
}

func TestSeparate_ReferenceScoring(t *testing.T) {
	_, s2, data := mixedBuffer(t)
	// Third channel tracks the noise source directly, acting as the
	// artifact reference. It adds no new source, so only two components
	// are recoverable.
	ref := make([]float64, len(s2))
	copy(ref, s2)
	buf := testutil.MustBuffer(t, 250, []string{"a", "b", "eog"},
		[][]float64{data[0], data[1], ref})

	res, err := Separate(context.Background(), buf, 2,
		WithTolerance(1e-5), WithMaxIterations(500),
		WithReferenceChannels("eog"))
	if err != nil {
		t.Fatalf("Separate() error = %v", err)
	}

	var best float64
	for _, s := range res.Scores {
		if s.MaxRefCorr > best {
			best = s.MaxRefCorr
		}
		if s.MaxRefCorr > 0 && s.RefChannel != "eog" {
			t.Fatalf("RefChannel = %q, want eog", s.RefChannel)
		}
	}
	if best < 0.9 {
		t.Fatalf("max reference correlation = %g, want > 0.9", best)
	}
}
