package spectral

import (
	"context"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-eeg/eeg/buffer"
	"github.com/cwbudde/algo-eeg/eeg/window"
	"github.com/cwbudde/algo-eeg/internal/parallel"
)

// Estimate is a one-sided Welch power spectral density for one channel.
// Power is reported per Hz; Freqs ascends from DC to Nyquist.
type Estimate struct {
	Channel  string
	Freqs    []float64
	Power    []float64
	Segments int
}

// MultiEstimate holds per-channel PSDs over a shared frequency axis, in
// buffer channel order.
type MultiEstimate struct {
	ChannelIDs []string
	Freqs      []float64
	Power      [][]float64
	Segments   int
}

// PSD estimates the power spectral density of one channel using Welch
// averaging with the given segmentation.
func PSD(ctx context.Context, buf *buffer.Buffer, channel string, cfg SegmentConfig) (*Estimate, error) {
	x, err := buf.Channel(channel)
	if err != nil {
		return nil, err
	}
	return psdSeries(ctx, x, buf.SampleRate(), channel, cfg)
}

// PSDEpoch estimates the PSD of one channel restricted to an epoch.
func PSDEpoch(ctx context.Context, e *buffer.Epoch, channel string, cfg SegmentConfig) (*Estimate, error) {
	x, err := e.Channel(channel)
	if err != nil {
		return nil, err
	}
	return psdSeries(ctx, x, e.SampleRate(), channel, cfg)
}

// PSDBuffer estimates PSDs for every channel in parallel. Channel order in
// the result matches the buffer regardless of scheduling.
func PSDBuffer(ctx context.Context, buf *buffer.Buffer, cfg SegmentConfig, workers int) (*MultiEstimate, error) {
	nfft, err := cfg.validate(buf.Len())
	if err != nil {
		return nil, err
	}

	out := &MultiEstimate{
		ChannelIDs: buf.ChannelIDs(),
		Freqs:      FreqAxis(nfft, buf.SampleRate()),
		Power:      make([][]float64, buf.NumChannels()),
		// The segment count depends only on the config and buffer length,
		// so it is fixed before the fan-out; workers write only their own
		// Power slot.
		Segments: len(cfg.segmentStarts(buf.Len())),
	}

	err = parallel.ForEach(ctx, buf.NumChannels(), workers, func(i int) error {
		est, err := psdSeries(ctx, buf.ChannelAt(i), buf.SampleRate(), out.ChannelIDs[i], cfg)
		if err != nil {
			return err
		}
		out.Power[i] = est.Power
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// psdSeries runs Welch averaging over a raw sample slice.
func psdSeries(ctx context.Context, x []float64, sampleRate float64, channel string, cfg SegmentConfig) (*Estimate, error) {
	nfft, err := cfg.validate(len(x))
	if err != nil {
		return nil, err
	}

	w := welchState{cfg: cfg, nfft: nfft}
	if err := w.init(); err != nil {
		return nil, err
	}

	starts := cfg.segmentStarts(len(x))
	acc := make([]float64, w.bins())
	tmp := make([]float64, w.bins())

	for _, start := range starts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := w.transform(x[start : start+cfg.SegmentLen]); err != nil {
			return nil, err
		}
		vecmath.Power(tmp, w.re, w.im)
		vecmath.AddBlockInPlace(acc, tmp)
	}

	scalePSD(acc, len(starts), w.windowEnergy, sampleRate)

	return &Estimate{
		Channel:  channel,
		Freqs:    FreqAxis(nfft, sampleRate),
		Power:    acc,
		Segments: len(starts),
	}, nil
}

// scalePSD averages segment periodograms and normalizes to power per Hz,
// doubling interior bins of the one-sided spectrum.
func scalePSD(acc []float64, segments int, windowEnergy, sampleRate float64) {
	scale := 1 / (float64(segments) * windowEnergy * sampleRate)
	vecmath.ScaleBlock(acc, acc, scale)
	for i := 1; i < len(acc)-1; i++ {
		acc[i] *= 2
	}
}

// welchState holds the per-call FFT plan, window, and scratch space.
type welchState struct {
	cfg          SegmentConfig
	nfft         int
	plan         *algofft.Plan[complex128]
	coeffs       []float64
	windowEnergy float64
	in           []complex128
	out          []complex128
	re, im       []float64
}

func (w *welchState) bins() int { return w.nfft/2 + 1 }

func (w *welchState) init() error {
	plan, err := algofft.NewPlan64(w.nfft)
	if err != nil {
		return fmt.Errorf("spectral: fft plan: %w", err)
	}
	w.plan = plan

	w.coeffs = window.Generate(w.cfg.Window, w.cfg.SegmentLen, window.WithPeriodic())
	energy, err := window.Energy(w.coeffs)
	if err != nil {
		return err
	}
	w.windowEnergy = energy

	w.in = make([]complex128, w.nfft)
	w.out = make([]complex128, w.nfft)
	w.re = make([]float64, w.bins())
	w.im = make([]float64, w.bins())
	return nil
}

// transform windows one segment, runs the FFT, and unpacks the one-sided
// bins into the re/im scratch slices.
func (w *welchState) transform(segment []float64) error {
	for i := range w.in {
		w.in[i] = 0
	}
	for i, v := range segment {
		w.in[i] = complex(v*w.coeffs[i], 0)
	}

	if err := w.plan.Forward(w.out, w.in); err != nil {
		return fmt.Errorf("spectral: forward FFT: %w", err)
	}

	for i := range w.bins() {
		w.re[i] = real(w.out[i])
		w.im[i] = imag(w.out[i])
	}
	return nil
}
