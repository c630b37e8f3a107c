package spectral

import (
	"context"
	"math/cmplx"

	"github.com/cwbudde/algo-eeg/eeg/buffer"
)

// CrossResult holds segment-averaged auto- and cross-spectra for a channel
// pair, plus the averaged unit cross-phasors needed for phase-locking
// measures. All slices share the Freqs axis. The spectra are raw
// periodogram averages; window and rate normalization cancels in every
// ratio built from them, so none is applied.
type CrossResult struct {
	Freqs    []float64
	Sxx, Syy []float64
	Sxy      []complex128
	// PLV is the magnitude of the segment-averaged unit cross-phasor
	// per bin (phase-locking value, 1 = perfectly locked phase).
	PLV      []float64
	Segments int
}

// CoherenceEstimate is the magnitude-squared coherence for a channel pair,
// clamped to [0, 1] per bin.
type CoherenceEstimate struct {
	ChannelA, ChannelB string
	Freqs              []float64
	Coherence          []float64
	Segments           int
}

// CrossSpectra computes segment-averaged auto/cross spectra for two equal
// length series at the given rate. This is the shared machinery behind
// coherence and the frequency-domain connectivity measures.
func CrossSpectra(ctx context.Context, x, y []float64, sampleRate float64, cfg SegmentConfig) (*CrossResult, error) {
	available := len(x)
	if len(y) < available {
		available = len(y)
	}
	nfft, err := cfg.validate(available)
	if err != nil {
		return nil, err
	}

	wx := welchState{cfg: cfg, nfft: nfft}
	if err := wx.init(); err != nil {
		return nil, err
	}
	wy := welchState{cfg: cfg, nfft: nfft}
	if err := wy.init(); err != nil {
		return nil, err
	}

	bins := wx.bins()
	res := &CrossResult{
		Freqs: FreqAxis(nfft, sampleRate),
		Sxx:   make([]float64, bins),
		Syy:   make([]float64, bins),
		Sxy:   make([]complex128, bins),
		PLV:   make([]float64, bins),
	}
	plvAcc := make([]complex128, bins)

	starts := cfg.segmentStarts(available)
	for _, start := range starts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := wx.transform(x[start : start+cfg.SegmentLen]); err != nil {
			return nil, err
		}
		if err := wy.transform(y[start : start+cfg.SegmentLen]); err != nil {
			return nil, err
		}

		for k := range bins {
			xc := complex(wx.re[k], wx.im[k])
			yc := complex(wy.re[k], wy.im[k])
			cross := xc * cmplx.Conj(yc)

			res.Sxx[k] += wx.re[k]*wx.re[k] + wx.im[k]*wx.im[k]
			res.Syy[k] += wy.re[k]*wy.re[k] + wy.im[k]*wy.im[k]
			res.Sxy[k] += cross

			if mag := cmplx.Abs(cross); mag > 0 {
				plvAcc[k] += cross / complex(mag, 0)
			}
		}
	}
	res.Segments = len(starts)

	inv := 1 / float64(len(starts))
	for k := range bins {
		res.Sxx[k] *= inv
		res.Syy[k] *= inv
		res.Sxy[k] *= complex(inv, 0)
		res.PLV[k] = cmplx.Abs(plvAcc[k]) * inv
	}
	return res, nil
}

// Coherence estimates magnitude-squared coherence between two buffer
// channels: |avg Sxy|^2 / (avg Sxx * avg Syy), clamped to [0, 1].
func Coherence(ctx context.Context, buf *buffer.Buffer, channelA, channelB string, cfg SegmentConfig) (*CoherenceEstimate, error) {
	x, err := buf.Channel(channelA)
	if err != nil {
		return nil, err
	}
	y, err := buf.Channel(channelB)
	if err != nil {
		return nil, err
	}

	cross, err := CrossSpectra(ctx, x, y, buf.SampleRate(), cfg)
	if err != nil {
		return nil, err
	}

	coh := make([]float64, len(cross.Freqs))
	for k := range coh {
		den := cross.Sxx[k] * cross.Syy[k]
		if den <= 0 {
			continue
		}
		c := real(cross.Sxy[k])*real(cross.Sxy[k]) + imag(cross.Sxy[k])*imag(cross.Sxy[k])
		coh[k] = clamp01(c / den)
	}

	return &CoherenceEstimate{
		ChannelA:  channelA,
		ChannelB:  channelB,
		Freqs:     cross.Freqs,
		Coherence: coh,
		Segments:  cross.Segments,
	}, nil
}

// clamp01 absorbs floating-point overshoot just outside [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
