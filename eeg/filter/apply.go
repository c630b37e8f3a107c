package filter

import (
	"context"
	"fmt"

	"github.com/cwbudde/algo-eeg/eeg/buffer"
	"github.com/cwbudde/algo-eeg/internal/parallel"
)

// Mode selects how the filter is run over each channel.
type Mode int

const (
	// Causal applies the filter once, front to back.
	Causal Mode = iota
	// ZeroPhase applies the filter forward then backward, cancelling
	// group delay at the cost of doubling the effective order.
	ZeroPhase
)

// EdgeMode selects how samples beyond the channel edges are synthesized
// while the filter state charges up.
type EdgeMode int

const (
	// EdgeReflect mirrors the signal about its endpoints (default).
	EdgeReflect EdgeMode = iota
	// EdgeZeroPad extends the signal with zeros.
	EdgeZeroPad
)

// transientFactor sets the padding length to 3x the filter order.
const transientFactor = 3

// Result carries the filtered buffer together with the edge-handling
// metadata downstream stages need to pick a valid analysis region.
type Result struct {
	Buffer *buffer.Buffer
	Mode   Mode
	Edge   EdgeMode
	// PadLen is the synthetic padding applied beyond each processed edge.
	PadLen int
	// ValidFrom and ValidTo bound the region free of edge transients.
	// When the channel was long enough for full padding this is the whole
	// buffer.
	ValidFrom, ValidTo int
}

// ApplyOption configures Apply.
type ApplyOption func(*applyConfig)

type applyConfig struct {
	mode     Mode
	edge     EdgeMode
	channels []string
	workers  int
}

// WithMode selects causal or zero-phase operation. Default is Causal.
func WithMode(m Mode) ApplyOption {
	return func(c *applyConfig) { c.mode = m }
}

// WithEdgeMode selects the edge padding strategy. Default is EdgeReflect.
func WithEdgeMode(e EdgeMode) ApplyOption {
	return func(c *applyConfig) { c.edge = e }
}

// WithChannels restricts filtering to the given channel ids; all other
// channels are copied through untouched. Default is all channels.
func WithChannels(ids ...string) ApplyOption {
	return func(c *applyConfig) { c.channels = ids }
}

// WithWorkers bounds the per-channel fan-out. Default is GOMAXPROCS.
func WithWorkers(n int) ApplyOption {
	return func(c *applyConfig) { c.workers = n }
}

// Apply filters the selected channels of buf and returns a new buffer; the
// input is never mutated. Channels are processed in parallel with fresh
// filter state each, and the output channel order matches the input.
func Apply(ctx context.Context, coeffs *Coefficients, buf *buffer.Buffer, opts ...ApplyOption) (*Result, error) {
	if coeffs == nil {
		return nil, fmt.Errorf("filter: nil coefficients")
	}

	cfg := applyConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	selected := make(map[int]bool, buf.NumChannels())
	if cfg.channels == nil {
		for i := range buf.NumChannels() {
			selected[i] = true
		}
	} else {
		for _, id := range cfg.channels {
			i, err := buf.ChannelIndex(id)
			if err != nil {
				return nil, err
			}
			selected[i] = true
		}
	}

	n := buf.Len()
	order := coeffs.Order()
	padLen := transientFactor * order
	if padLen > n-1 {
		padLen = n - 1
	}
	if padLen < 0 {
		padLen = 0
	}

	data := make([][]float64, buf.NumChannels())
	err := parallel.ForEach(ctx, buf.NumChannels(), cfg.workers, func(i int) error {
		src := buf.ChannelAt(i)
		if !selected[i] {
			data[i] = append([]float64(nil), src...)
			return nil
		}
		data[i] = filterChannel(coeffs, src, cfg.mode, cfg.edge, padLen)
		return nil
	})
	if err != nil {
		return nil, err
	}

	out, err := buffer.New(buf.SampleRate(), buf.ChannelIDs(), data)
	if err != nil {
		return nil, err
	}

	residual := transientFactor*order - padLen
	validTo := n
	if cfg.mode == ZeroPhase {
		validTo = n - residual
	}
	if validTo < residual {
		validTo = residual
	}

	return &Result{
		Buffer:    out,
		Mode:      cfg.mode,
		Edge:      cfg.edge,
		PadLen:    padLen,
		ValidFrom: residual,
		ValidTo:   validTo,
	}, nil
}

// filterChannel runs one channel through the filter with edge padding.
func filterChannel(coeffs *Coefficients, src []float64, mode Mode, edge EdgeMode, padLen int) []float64 {
	if mode == ZeroPhase {
		work := pad(src, padLen, padLen, edge)
		run(coeffs, work)
		reverse(work)
		run(coeffs, work)
		reverse(work)
		return work[padLen : padLen+len(src)]
	}

	work := pad(src, padLen, 0, edge)
	run(coeffs, work)
	return work[padLen:]
}

// pad returns a copy of src with pre samples before and post samples after,
// synthesized per the edge mode.
func pad(src []float64, pre, post int, edge EdgeMode) []float64 {
	out := make([]float64, pre+len(src)+post)
	copy(out[pre:], src)

	if edge == EdgeReflect && len(src) > 1 {
		for j := range pre {
			out[pre-1-j] = src[j+1]
		}
		for j := range post {
			out[pre+len(src)+j] = src[len(src)-2-j]
		}
	}
	return out
}

// run filters work in place with fresh state.
func run(coeffs *Coefficients, work []float64) {
	if coeffs.IsIIR() {
		for _, s := range coeffs.sections {
			var d0, d1 float64
			for i, x := range work {
				y := s.B0*x + d0
				d0 = s.B1*x - s.A1*y + d1
				d1 = s.B2*x - s.A2*y
				work[i] = y
			}
		}
		return
	}

	taps := coeffs.taps
	delay := make([]float64, len(taps))
	pos := 0
	for i, x := range work {
		delay[pos] = x
		var y float64
		p := pos
		for k := range taps {
			y += taps[k] * delay[p]
			p--
			if p < 0 {
				p = len(taps) - 1
			}
		}
		pos++
		if pos >= len(taps) {
			pos = 0
		}
		work[i] = y
	}
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
