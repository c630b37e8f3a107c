package filter

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-eeg/eeg/window"
)

// designFIR computes windowed-sinc tap weights. The tap count is Order+1;
// highpass and bandstop responses need a center tap, so those bands require
// an even order.
func designFIR(spec Spec, sampleRate float64) ([]float64, error) {
	numTaps := spec.Order + 1

	if (spec.Band == Highpass || spec.Band == Bandstop) && spec.Order%2 != 0 {
		return nil, fmt.Errorf("%w: %s FIR requires an even order, got %d",
			ErrInvalidOrder, spec.Band, spec.Order)
	}

	var taps []float64
	switch spec.Band {
	case Lowpass:
		taps = sincLowpass(numTaps, spec.Cutoff/sampleRate)
	case Highpass:
		taps = spectralInvert(sincLowpass(numTaps, spec.Cutoff/sampleRate))
	case Bandpass:
		lo := sincLowpass(numTaps, spec.Cutoff/sampleRate)
		hi := sincLowpass(numTaps, spec.Cutoff2/sampleRate)
		taps = make([]float64, numTaps)
		for i := range taps {
			taps[i] = hi[i] - lo[i]
		}
	case Bandstop:
		lo := sincLowpass(numTaps, spec.Cutoff/sampleRate)
		hi := sincLowpass(numTaps, spec.Cutoff2/sampleRate)
		band := make([]float64, numTaps)
		for i := range band {
			band[i] = hi[i] - lo[i]
		}
		taps = spectralInvert(band)
	}
	return taps, nil
}

// sincLowpass returns Hamming-windowed sinc taps for a lowpass with
// normalized cutoff fc (cycles per sample), scaled to exactly unit DC
// gain. Spectral inversion and band differencing both rely on that
// scaling to cancel without a passband leak.
func sincLowpass(numTaps int, fc float64) []float64 {
	taps := make([]float64, numTaps)
	w := window.Generate(window.TypeHamming, numTaps)
	center := float64(numTaps-1) / 2
	wc := 2 * math.Pi * fc

	sum := 0.0
	for i := range taps {
		m := float64(i) - center
		if m == 0 {
			taps[i] = 2 * fc
		} else {
			taps[i] = math.Sin(wc*m) / (math.Pi * m)
		}
		taps[i] *= w[i]
		sum += taps[i]
	}
	for i := range taps {
		taps[i] /= sum
	}
	return taps
}

// spectralInvert flips a lowpass/bandpass response into its complement.
// Requires an odd tap count (integer center).
func spectralInvert(taps []float64) []float64 {
	out := make([]float64, len(taps))
	for i, t := range taps {
		out[i] = -t
	}
	out[(len(taps)-1)/2] += 1
	return out
}
