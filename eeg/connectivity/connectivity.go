// Package connectivity computes pairwise coupling measures across buffer
// channels: magnitude-squared coherence, Pearson correlation, and phase
// locking. Frequency measures ride on the spectral package's cross-spectra
// machinery rather than duplicating FFT logic.
package connectivity

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/algo-eeg/eeg/buffer"
	"github.com/cwbudde/algo-eeg/eeg/spectral"
	"github.com/cwbudde/algo-eeg/internal/parallel"
)

// Measure selects the coupling statistic. All covered measures are
// undirected, so the resulting matrix is symmetric with unit diagonal.
type Measure int

const (
	// MeasureCoherence is magnitude-squared coherence averaged over the
	// requested band.
	MeasureCoherence Measure = iota

	// MeasureCorrelation is the time-domain Pearson correlation.
	MeasureCorrelation

	// MeasurePhaseLocking is the phase-locking value averaged over the
	// requested band.
	MeasurePhaseLocking
)

func (m Measure) String() string {
	switch m {
	case MeasureCoherence:
		return "coherence"
	case MeasureCorrelation:
		return "correlation"
	case MeasurePhaseLocking:
		return "phase-locking"
	default:
		return fmt.Sprintf("measure(%d)", int(m))
	}
}

var (
	ErrUnknownMeasure      = errors.New("connectivity: unknown measure")
	ErrInvalidBand         = errors.New("connectivity: invalid frequency band")
	ErrInsufficientSamples = errors.New("connectivity: analysis window too short for measure")
)

// Band restricts frequency-domain measures to [Low, High] Hz. The zero
// value means the full spectrum. Bands are ignored by time-domain
// measures.
type Band struct {
	Low, High float64
}

func (b Band) full() bool { return b.Low == 0 && b.High == 0 }

// Matrix is a symmetric channel-by-channel coupling matrix. Values index
// as [row][col] in buffer channel order.
type Matrix struct {
	ChannelIDs []string
	Values     [][]float64
	Measure    Measure
	Band       Band
}

// At returns the coupling between channels i and j.
func (m *Matrix) At(i, j int) float64 { return m.Values[i][j] }

type options struct {
	band    Band
	segment spectral.SegmentConfig
	workers int
}

// Option adjusts a connectivity computation.
type Option func(*options)

// WithBand restricts frequency measures to [low, high] Hz.
func WithBand(low, high float64) Option {
	return func(o *options) { o.band = Band{Low: low, High: high} }
}

// WithSegmentConfig overrides the Welch segmentation used by frequency
// measures.
func WithSegmentConfig(cfg spectral.SegmentConfig) Option {
	return func(o *options) { o.segment = cfg }
}

// WithWorkers bounds pair-level parallelism.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// Compute builds the full coupling matrix for the chosen measure. Each
// unordered pair is computed once, in parallel, and mirrored.
func Compute(ctx context.Context, buf *buffer.Buffer, measure Measure, opts ...Option) (*Matrix, error) {
	o := options{segment: spectral.DefaultSegmentConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	switch measure {
	case MeasureCoherence, MeasureCorrelation, MeasurePhaseLocking:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMeasure, int(measure))
	}

	if !o.band.full() {
		nyquist := buf.SampleRate() / 2
		if o.band.Low < 0 || o.band.High <= o.band.Low || o.band.High > nyquist {
			return nil, fmt.Errorf("%w: [%g, %g] Hz with Nyquist %g", ErrInvalidBand, o.band.Low, o.band.High, nyquist)
		}
	}

	if measure == MeasureCorrelation {
		if buf.Len() < 2 {
			return nil, fmt.Errorf("%w: correlation needs at least 2 samples, got %d", ErrInsufficientSamples, buf.Len())
		}
	} else if buf.Len() < o.segment.SegmentLen {
		return nil, fmt.Errorf("%w: %d samples, segment length %d", ErrInsufficientSamples, buf.Len(), o.segment.SegmentLen)
	}

	channels := buf.NumChannels()
	m := &Matrix{
		ChannelIDs: buf.ChannelIDs(),
		Values:     make([][]float64, channels),
		Measure:    measure,
		Band:       o.band,
	}
	for i := range channels {
		m.Values[i] = make([]float64, channels)
		m.Values[i][i] = 1
	}

	type pair struct{ i, j int }
	pairs := make([]pair, 0, channels*(channels-1)/2)
	for i := range channels {
		for j := i + 1; j < channels; j++ {
			pairs = append(pairs, pair{i, j})
		}
	}

	err := parallel.ForEach(ctx, len(pairs), o.workers, func(k int) error {
		p := pairs[k]
		v, err := pairValue(ctx, buf, p.i, p.j, measure, o)
		if err != nil {
			return err
		}
		m.Values[p.i][p.j] = v
		m.Values[p.j][p.i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func pairValue(ctx context.Context, buf *buffer.Buffer, i, j int, measure Measure, o options) (float64, error) {
	x := buf.ChannelAt(i)
	y := buf.ChannelAt(j)

	if measure == MeasureCorrelation {
		r := stat.Correlation(x, y, nil)
		// A constant channel has zero variance and an undefined correlation.
		// Report no coupling instead of letting NaN poison the matrix.
		if math.IsNaN(r) {
			return 0, nil
		}
		return r, nil
	}

	cross, err := spectral.CrossSpectra(ctx, x, y, buf.SampleRate(), o.segment)
	if err != nil {
		return 0, err
	}

	var sum float64
	bins := 0
	for k, f := range cross.Freqs {
		if !o.band.full() && (f < o.band.Low || f > o.band.High) {
			continue
		}
		switch measure {
		case MeasureCoherence:
			den := cross.Sxx[k] * cross.Syy[k]
			if den > 0 {
				c := real(cross.Sxy[k])*real(cross.Sxy[k]) + imag(cross.Sxy[k])*imag(cross.Sxy[k])
				sum += clampUnit(c / den)
			}
		case MeasurePhaseLocking:
			sum += cross.PLV[k]
		}
		bins++
	}
	if bins == 0 {
		return 0, fmt.Errorf("%w: no frequency bins inside [%g, %g] Hz", ErrInvalidBand, o.band.Low, o.band.High)
	}
	return sum / float64(bins), nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
