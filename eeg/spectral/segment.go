package spectral

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-eeg/eeg/window"
)

var (
	ErrSegmentTooLong    = errors.New("spectral: segment exceeds available samples")
	ErrInvalidSegmentLen = errors.New("spectral: segment length must be >= 2")
	ErrInvalidOverlap    = errors.New("spectral: overlap fraction must lie in [0, 1)")
	ErrInvalidNFFT       = errors.New("spectral: nfft must be a power of two >= segment length")
)

// SegmentConfig controls Welch segmentation and windowing.
//
// NFFT of zero selects the next power of two >= SegmentLen; an explicit
// NFFT must be a power of two no smaller than SegmentLen. No randomized
// padding is ever applied, so identical inputs yield identical estimates.
type SegmentConfig struct {
	Window          window.Type
	SegmentLen      int
	OverlapFraction float64
	NFFT            int
}

// DefaultSegmentConfig returns the conventional Welch setup: Hann window,
// 256-sample segments, 50% overlap.
func DefaultSegmentConfig() SegmentConfig {
	return SegmentConfig{
		Window:          window.TypeHann,
		SegmentLen:      256,
		OverlapFraction: 0.5,
	}
}

// validate checks the config against the available sample count and
// resolves the effective FFT length.
func (c SegmentConfig) validate(available int) (nfft int, err error) {
	if c.SegmentLen < 2 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSegmentLen, c.SegmentLen)
	}
	if c.SegmentLen > available {
		return 0, fmt.Errorf("%w: %d > %d", ErrSegmentTooLong, c.SegmentLen, available)
	}
	if c.OverlapFraction < 0 || c.OverlapFraction >= 1 {
		return 0, fmt.Errorf("%w: %f", ErrInvalidOverlap, c.OverlapFraction)
	}

	nfft = c.NFFT
	if nfft == 0 {
		nfft = nextPowerOf2(c.SegmentLen)
	}
	if nfft < c.SegmentLen || nfft != nextPowerOf2(nfft) {
		return 0, fmt.Errorf("%w: %d with segment length %d", ErrInvalidNFFT, nfft, c.SegmentLen)
	}
	return nfft, nil
}

// step returns the hop size between segment starts, at least one sample.
func (c SegmentConfig) step() int {
	step := int(math.Round(float64(c.SegmentLen) * (1 - c.OverlapFraction)))
	if step < 1 {
		step = 1
	}
	return step
}

// segmentStarts lists the start index of every full segment, in order.
func (c SegmentConfig) segmentStarts(available int) []int {
	step := c.step()
	var starts []int
	for s := 0; s+c.SegmentLen <= available; s += step {
		starts = append(starts, s)
	}
	return starts
}

// FreqAxis returns the one-sided frequency bin centers for an FFT length.
func FreqAxis(nfft int, sampleRate float64) []float64 {
	bins := nfft/2 + 1
	out := make([]float64, bins)
	df := sampleRate / float64(nfft)
	for i := range out {
		out[i] = float64(i) * df
	}
	return out
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
