package separation

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-eeg/eeg/buffer"
)

var (
	// ErrInvalidComponents reports a component count outside [1, channels].
	ErrInvalidComponents = errors.New("separation: component count must be in [1, channel count]")

	// ErrInsufficientRank reports a covariance matrix whose effective rank
	// is below the requested component count.
	ErrInsufficientRank = errors.New("separation: covariance rank below requested components")

	// ErrInsufficientSamples reports a buffer too short to estimate a
	// covariance matrix.
	ErrInsufficientSamples = errors.New("separation: need at least 2 samples per channel")

	// ErrUnknownComponent reports a removal index outside the result.
	ErrUnknownComponent = errors.New("separation: component index out of range")
)

// NotConvergedError reports that the fixed-point iteration hit its cap
// before the unmixing matrix settled. The caller may retry with a relaxed
// tolerance or fewer components.
type NotConvergedError struct {
	Iterations int
	LastDelta  float64
}

func (e *NotConvergedError) Error() string {
	return fmt.Sprintf("separation: not converged after %d iterations (last delta %.3e)", e.Iterations, e.LastDelta)
}

const (
	defaultTolerance     = 1e-6
	defaultMaxIterations = 200

	// rankTolerance scales the largest eigenvalue to decide which
	// directions carry no usable variance.
	rankTolerance = 1e-12
)

type config struct {
	tolerance     float64
	maxIterations int
	references    []string
}

// Option configures a separation run.
type Option func(*config)

// WithTolerance sets the convergence tolerance on the per-row rotation of
// the unmixing matrix between iterations.
func WithTolerance(eps float64) Option {
	return func(c *config) { c.tolerance = eps }
}

// WithMaxIterations caps the fixed-point iteration count.
func WithMaxIterations(n int) Option {
	return func(c *config) { c.maxIterations = n }
}

// WithReferenceChannels names buffer channels whose correlation with each
// component contributes to its artifact score.
func WithReferenceChannels(ids ...string) Option {
	return func(c *config) { c.references = append(c.references, ids...) }
}

// Result holds the separated components together with the transforms
// needed to invert them.
type Result struct {
	// Components holds one source time series per row, same length as the
	// input buffer.
	Components [][]float64

	// Mixing maps components back to channels (channels x components).
	Mixing *mat.Dense

	// Unmixing maps centered channels to components (components x channels).
	Unmixing *mat.Dense

	// Scores holds one advisory artifact score per component.
	Scores []Score

	// Iterations is the number of fixed-point rounds run.
	Iterations int

	channelIDs []string
	sampleRate float64
	means      []float64
}

// Separate estimates nComponents independent sources from the buffer.
// Results are deterministic for identical inputs.
func Separate(ctx context.Context, buf *buffer.Buffer, nComponents int, opts ...Option) (*Result, error) {
	cfg := config{
		tolerance:     defaultTolerance,
		maxIterations: defaultMaxIterations,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.tolerance <= 0 {
		return nil, fmt.Errorf("separation: tolerance must be positive, got %g", cfg.tolerance)
	}
	if cfg.maxIterations < 1 {
		return nil, fmt.Errorf("separation: max iterations must be at least 1, got %d", cfg.maxIterations)
	}

	channels := buf.NumChannels()
	if nComponents < 1 || nComponents > channels {
		return nil, fmt.Errorf("%w: got %d with %d channels", ErrInvalidComponents, nComponents, channels)
	}
	if buf.Len() < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientSamples, buf.Len())
	}

	refs := make([][]float64, len(cfg.references))
	for i, id := range cfg.references {
		ch, err := buf.Channel(id)
		if err != nil {
			return nil, err
		}
		refs[i] = ch
	}

	centered, means := centerChannels(buf)
	wh, err := whiten(centered, buf.Len(), nComponents)
	if err != nil {
		return nil, err
	}

	rotation, iterations, err := fixedPoint(ctx, wh.sources, cfg)
	if err != nil {
		return nil, err
	}

	// Unmixing folds the whitening step into the rotation; Mixing is its
	// exact inverse because the rotation stays orthogonal.
	unmixing := new(mat.Dense)
	unmixing.Mul(rotation, wh.whitening)
	mixing := new(mat.Dense)
	mixing.Mul(wh.dewhitening, rotation.T())

	components := new(mat.Dense)
	components.Mul(rotation, wh.sources)

	res := &Result{
		Components: make([][]float64, nComponents),
		Mixing:     mixing,
		Unmixing:   unmixing,
		Iterations: iterations,
		channelIDs: buf.ChannelIDs(),
		sampleRate: buf.SampleRate(),
		means:      means,
	}
	for i := range nComponents {
		res.Components[i] = mat.Row(nil, i, components)
	}
	res.Scores = scoreComponents(res.Components, cfg.references, refs)
	return res, nil
}

// NumComponents returns the number of separated sources.
func (r *Result) NumComponents() int { return len(r.Components) }

// fixedPoint runs the symmetric tanh-contrast iteration on whitened
// sources (components x samples) and returns the orthogonal rotation.
func fixedPoint(ctx context.Context, z *mat.Dense, cfg config) (*mat.Dense, int, error) {
	comps, samples := z.Dims()
	w := identity(comps)

	lastDelta := math.Inf(1)
	for iter := 1; iter <= cfg.maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		next := contrastUpdate(w, z, comps, samples)
		if err := symmetricDecorrelate(next); err != nil {
			return nil, 0, err
		}

		lastDelta = rotationDelta(next, w)
		w = next
		if lastDelta < cfg.tolerance {
			return w, iter, nil
		}
	}
	return nil, 0, &NotConvergedError{Iterations: cfg.maxIterations, LastDelta: lastDelta}
}

// contrastUpdate computes one fixed-point step
// W' = E[g(WZ) Z^T] - diag(E[g'(WZ)]) W with g = tanh.
func contrastUpdate(w, z *mat.Dense, comps, samples int) *mat.Dense {
	projected := new(mat.Dense)
	projected.Mul(w, z)

	g := mat.NewDense(comps, samples, nil)
	gPrimeMean := make([]float64, comps)
	for i := range comps {
		row := projected.RawRowView(i)
		var sum float64
		for j, v := range row {
			th := math.Tanh(v)
			g.Set(i, j, th)
			sum += 1 - th*th
		}
		gPrimeMean[i] = sum / float64(samples)
	}

	next := new(mat.Dense)
	next.Mul(g, z.T())
	next.Scale(1/float64(samples), next)

	scaled := new(mat.Dense)
	scaled.Mul(mat.NewDiagDense(comps, gPrimeMean), w)
	next.Sub(next, scaled)
	return next
}

// symmetricDecorrelate replaces W with (W W^T)^{-1/2} W, keeping all rows
// orthonormal at once so no component dominates the rotation.
func symmetricDecorrelate(w *mat.Dense) error {
	comps, _ := w.Dims()

	wwt := new(mat.Dense)
	wwt.Mul(w, w.T())

	sym := mat.NewSymDense(comps, nil)
	for i := range comps {
		for j := i; j < comps; j++ {
			sym.SetSym(i, j, wwt.At(i, j))
		}
	}

	invSqrt, err := invSqrtSym(sym)
	if err != nil {
		return err
	}

	decorrelated := new(mat.Dense)
	decorrelated.Mul(invSqrt, w)
	w.Copy(decorrelated)
	return nil
}

// rotationDelta measures how far each unmixing row rotated away from its
// previous direction, ignoring sign flips.
func rotationDelta(next, prev *mat.Dense) float64 {
	comps, cols := next.Dims()
	var delta float64
	for i := range comps {
		var dot float64
		for j := 0; j < cols; j++ {
			dot += next.At(i, j) * prev.At(i, j)
		}
		if d := math.Abs(1 - math.Abs(dot)); d > delta {
			delta = d
		}
	}
	return delta
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := range n {
		m.Set(i, i, 1)
	}
	return m
}
