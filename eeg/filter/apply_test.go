package filter

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-eeg/eeg/buffer"
	"github.com/cwbudde/algo-eeg/internal/testutil"
)

func sineBuffer(t *testing.T, freqs []float64, sr float64, n int) *buffer.Buffer {
	t.Helper()
	ids := make([]string, len(freqs))
	data := make([][]float64, len(freqs))
	for i, f := range freqs {
		ids[i] = string(rune('A' + i))
		data[i] = testutil.Sine(f, sr, 1, n)
	}
	return testutil.MustBuffer(t, sr, ids, data)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	buf := sineBuffer(t, []float64{10}, 250, 500)
	before := append([]float64(nil), buf.ChannelAt(0)...)

	coeffs, err := Design(Spec{Family: Butterworth, Band: Lowpass, Order: 4, Cutoff: 30}, 250)
	if err != nil {
		t.Fatalf("Design: %v", err)
	}
	if _, err := Apply(context.Background(), coeffs, buf); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, buf.ChannelAt(0), before, 0)
}

func TestApply_ChannelSubsetUntouched(t *testing.T) {
	buf := sineBuffer(t, []float64{10, 60}, 250, 500)
	coeffs, err := Design(Spec{Family: Butterworth, Band: Lowpass, Order: 4, Cutoff: 30}, 250)
	if err != nil {
		t.Fatalf("Design: %v", err)
	}

	res, err := Apply(context.Background(), coeffs, buf, WithChannels("A"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, res.Buffer.ChannelAt(1), buf.ChannelAt(1), 0)

	if _, err := Apply(context.Background(), coeffs, buf, WithChannels("nope")); !errors.Is(err, buffer.ErrUnknownChannel) {
		t.Fatalf("err=%v, want ErrUnknownChannel", err)
	}
}

func TestApply_ZeroPhaseImpulseSymmetry(t *testing.T) {
	n := 501
	buf := testutil.MustBuffer(t, 250, []string{"imp"}, [][]float64{testutil.Impulse(n, n / 2)})

	coeffs, err := Design(Spec{Family: Butterworth, Band: Lowpass, Order: 4, Cutoff: 20}, 250)
	if err != nil {
		t.Fatalf("Design: %v", err)
	}
	res, err := Apply(context.Background(), coeffs, buf, WithMode(ZeroPhase))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	y := res.Buffer.ChannelAt(0)
	peak := 0
	for i, v := range y {
		if math.Abs(v) > math.Abs(y[peak]) {
			peak = i
		}
	}
	if peak != n/2 {
		t.Fatalf("zero-phase response peaks at %d, want %d (no group delay)", peak, n/2)
	}
	for k := 1; k < 100; k++ {
		if math.Abs(y[peak-k]-y[peak+k]) > 1e-8 {
			t.Fatalf("asymmetry at offset %d: %v vs %v", k, y[peak-k], y[peak+k])
		}
	}
}

func TestApply_ZeroPhaseFIRSymmetry(t *testing.T) {
	n := 401
	buf := testutil.MustBuffer(t, 250, []string{"imp"}, [][]float64{testutil.Impulse(n, n / 2)})

	coeffs, err := Design(Spec{Family: FIR, Band: Lowpass, Order: 32, Cutoff: 20}, 250)
	if err != nil {
		t.Fatalf("Design: %v", err)
	}
	res, err := Apply(context.Background(), coeffs, buf, WithMode(ZeroPhase))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	y := res.Buffer.ChannelAt(0)
	for k := 1; k < 60; k++ {
		if math.Abs(y[n/2-k]-y[n/2+k]) > 1e-10 {
			t.Fatalf("asymmetry at offset %d: %v vs %v", k, y[n/2-k], y[n/2+k])
		}
	}
}

func TestApply_CausalSineGainMatchesResponse(t *testing.T) {
	sr := 250.0
	n := 2000
	buf := sineBuffer(t, []float64{10}, sr, n)

	coeffs, err := Design(Spec{Family: Butterworth, Band: Lowpass, Order: 4, Cutoff: 30}, sr)
	if err != nil {
		t.Fatalf("Design: %v", err)
	}
	res, err := Apply(context.Background(), coeffs, buf)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Steady-state RMS gain should match |H| at the tone frequency.
	y := res.Buffer.ChannelAt(0)[500:]
	x := buf.ChannelAt(0)[500:]
	gain := math.Sqrt(testutil.MeanSquare(y) / testutil.MeanSquare(x))
	wantGain := math.Pow(10, coeffs.MagnitudeDB(10)/20)
	testutil.RequireNearlyEqual(t, gain, wantGain, 0.01)
}

func TestApply_EdgeModesDiffer(t *testing.T) {
	sr := 250.0
	buf := sineBuffer(t, []float64{3}, sr, 300)
	coeffs, err := Design(Spec{Family: Butterworth, Band: Highpass, Order: 4, Cutoff: 1}, sr)
	if err != nil {
		t.Fatalf("Design: %v", err)
	}

	reflect, err := Apply(context.Background(), coeffs, buf, WithEdgeMode(EdgeReflect))
	if err != nil {
		t.Fatalf("Apply reflect: %v", err)
	}
	zero, err := Apply(context.Background(), coeffs, buf, WithEdgeMode(EdgeZeroPad))
	if err != nil {
		t.Fatalf("Apply zeropad: %v", err)
	}
	if reflect.Edge != EdgeReflect || zero.Edge != EdgeZeroPad {
		t.Fatal("edge mode not recorded in result")
	}
	if reflect.PadLen != 12 {
		t.Fatalf("pad=%d, want 3x order = 12", reflect.PadLen)
	}

	diff, err := testutil.MaxAbsDiff(reflect.Buffer.ChannelAt(0), zero.Buffer.ChannelAt(0))
	if err != nil {
		t.Fatal(err)
	}
	if diff == 0 {
		t.Fatal("reflect and zero padding produced identical startup transients")
	}
}

func TestApply_Cancelled(t *testing.T) {
	buf := sineBuffer(t, []float64{10, 20, 30, 40}, 250, 1000)
	coeffs, err := Design(Spec{Family: Butterworth, Band: Lowpass, Order: 4, Cutoff: 30}, 250)
	if err != nil {
		t.Fatalf("Design: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Apply(ctx, coeffs, buf)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if res != nil {
		t.Fatal("cancelled Apply must not expose a partial result")
	}
}
