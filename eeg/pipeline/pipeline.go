// Package pipeline wraps the processing engines behind one handle with
// structured logging and a shared worker budget. It adds no behavior of
// its own; every method delegates to the engine packages.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-eeg/eeg/buffer"
	"github.com/cwbudde/algo-eeg/eeg/connectivity"
	"github.com/cwbudde/algo-eeg/eeg/detect"
	"github.com/cwbudde/algo-eeg/eeg/filter"
	"github.com/cwbudde/algo-eeg/eeg/separation"
	"github.com/cwbudde/algo-eeg/eeg/spectral"
)

// Pipeline runs processing stages with shared logging and parallelism
// settings. The zero worker count lets each engine pick its own.
type Pipeline struct {
	log     *zap.Logger
	workers int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger attaches a structured logger; the default discards logs.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithWorkers sets the worker budget passed to every stage.
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// New builds a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{log: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Filter designs the given spec against the buffer's rate and applies it.
func (p *Pipeline) Filter(ctx context.Context, buf *buffer.Buffer, spec filter.Spec, opts ...filter.ApplyOption) (*filter.Result, error) {
	start := time.Now()
	coeffs, err := filter.Design(spec, buf.SampleRate())
	if err != nil {
		p.log.Error("filter design failed", zap.Error(err))
		return nil, err
	}

	opts = append([]filter.ApplyOption{filter.WithWorkers(p.workers)}, opts...)
	res, err := filter.Apply(ctx, coeffs, buf, opts...)
	if err != nil {
		p.log.Error("filter apply failed", zap.Error(err))
		return nil, err
	}

	p.log.Debug("filter stage done",
		zap.Int("order", coeffs.Order()),
		zap.Int("channels", buf.NumChannels()),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// PSD estimates power spectral densities for every channel.
func (p *Pipeline) PSD(ctx context.Context, buf *buffer.Buffer, cfg spectral.SegmentConfig) (*spectral.MultiEstimate, error) {
	start := time.Now()
	est, err := spectral.PSDBuffer(ctx, buf, cfg, p.workers)
	if err != nil {
		p.log.Error("psd stage failed", zap.Error(err))
		return nil, err
	}

	p.log.Debug("psd stage done",
		zap.Int("channels", buf.NumChannels()),
		zap.Int("segments", est.Segments),
		zap.Duration("elapsed", time.Since(start)))
	return est, nil
}

// Separate runs blind source separation.
func (p *Pipeline) Separate(ctx context.Context, buf *buffer.Buffer, nComponents int, opts ...separation.Option) (*separation.Result, error) {
	start := time.Now()
	res, err := separation.Separate(ctx, buf, nComponents, opts...)
	if err != nil {
		p.log.Error("separation stage failed", zap.Error(err))
		return nil, err
	}

	p.log.Debug("separation stage done",
		zap.Int("components", res.NumComponents()),
		zap.Int("iterations", res.Iterations),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// Detect runs the threshold event detector.
func (p *Pipeline) Detect(ctx context.Context, buf *buffer.Buffer, cfg detect.Config, opts ...detect.Option) ([]detect.Event, error) {
	start := time.Now()
	opts = append([]detect.Option{detect.WithWorkers(p.workers)}, opts...)
	events, err := detect.Detect(ctx, buf, cfg, opts...)
	if err != nil {
		p.log.Error("detect stage failed", zap.Error(err))
		return nil, err
	}

	p.log.Debug("detect stage done",
		zap.Int("events", len(events)),
		zap.Duration("elapsed", time.Since(start)))
	return events, nil
}

// Connectivity computes the pairwise coupling matrix.
func (p *Pipeline) Connectivity(ctx context.Context, buf *buffer.Buffer, measure connectivity.Measure, opts ...connectivity.Option) (*connectivity.Matrix, error) {
	start := time.Now()
	opts = append([]connectivity.Option{connectivity.WithWorkers(p.workers)}, opts...)
	m, err := connectivity.Compute(ctx, buf, measure, opts...)
	if err != nil {
		p.log.Error("connectivity stage failed", zap.Error(err))
		return nil, err
	}

	p.log.Debug("connectivity stage done",
		zap.String("measure", measure.String()),
		zap.Int("channels", buf.NumChannels()),
		zap.Duration("elapsed", time.Since(start)))
	return m, nil
}
