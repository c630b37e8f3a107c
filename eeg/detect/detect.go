// Package detect finds threshold events in multi-channel buffers using a
// sliding-window statistic and a per-channel hysteresis state machine.
//
// A channel moves from Idle to Candidate when the statistic crosses the
// high threshold, is Confirmed once it stays above the low threshold for
// the minimum duration, and closes at the first sample dropping below the
// low threshold. After a confirmed event the channel ignores new
// candidates for the refractory span. Channels never couple.
package detect

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwbudde/algo-eeg/eeg/buffer"
	"github.com/cwbudde/algo-eeg/internal/parallel"
)

// Statistic selects the sliding-window statistic driving the detector.
type Statistic int

const (
	// StatRectifiedAmplitude averages |x| over the window.
	StatRectifiedAmplitude Statistic = iota

	// StatEnergy averages x*x over the window.
	StatEnergy
)

func (s Statistic) String() string {
	switch s {
	case StatRectifiedAmplitude:
		return "rectified-amplitude"
	case StatEnergy:
		return "energy"
	default:
		return fmt.Sprintf("statistic(%d)", int(s))
	}
}

var (
	ErrInvalidWindow     = errors.New("detect: window length must be at least 1")
	ErrInvalidThresholds = errors.New("detect: thresholds must satisfy 0 < low <= high")
	ErrInvalidDuration   = errors.New("detect: minimum duration must be at least 1")
	ErrInvalidRefractory = errors.New("detect: refractory span must not be negative")
	ErrUnknownStatistic  = errors.New("detect: unknown statistic")
)

// Config parameterizes one detection run. Durations are in samples.
type Config struct {
	Statistic     Statistic
	WindowLen     int
	ThresholdHigh float64
	ThresholdLow  float64
	MinDuration   int
	Refractory    int

	// Label tags emitted events; empty defaults to "event".
	Label string
}

func (c Config) validate() error {
	if c.Statistic != StatRectifiedAmplitude && c.Statistic != StatEnergy {
		return fmt.Errorf("%w: %d", ErrUnknownStatistic, int(c.Statistic))
	}
	if c.WindowLen < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidWindow, c.WindowLen)
	}
	if c.ThresholdLow <= 0 || c.ThresholdHigh < c.ThresholdLow {
		return fmt.Errorf("%w: low %g, high %g", ErrInvalidThresholds, c.ThresholdLow, c.ThresholdHigh)
	}
	if c.MinDuration < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidDuration, c.MinDuration)
	}
	if c.Refractory < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidRefractory, c.Refractory)
	}
	return nil
}

func (c Config) label() string {
	if c.Label == "" {
		return "event"
	}
	return c.Label
}

// Event is one confirmed detection. Start is the sample where the
// statistic crossed the high threshold; End is the first sample below the
// low threshold afterwards (or the buffer length when the event runs off
// the end). Score is the peak statistic inside the event.
type Event struct {
	Channel string
	Start   int
	End     int
	Type    string
	Score   float64
}

type options struct {
	channels []string
	workers  int
}

// Option adjusts a detection run.
type Option func(*options)

// WithChannels restricts detection to the listed channels. Others emit no
// events.
func WithChannels(ids ...string) Option {
	return func(o *options) { o.channels = append(o.channels, ids...) }
}

// WithWorkers bounds detection parallelism.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// Detect runs the state machine over every selected channel in parallel
// and returns all confirmed events sorted by channel order, then start.
func Detect(ctx context.Context, buf *buffer.Buffer, cfg Config, opts ...Option) ([]Event, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	selected := make([]int, 0, buf.NumChannels())
	if len(o.channels) == 0 {
		for i := range buf.NumChannels() {
			selected = append(selected, i)
		}
	} else {
		for _, id := range o.channels {
			idx, err := buf.ChannelIndex(id)
			if err != nil {
				return nil, err
			}
			selected = append(selected, idx)
		}
	}

	ids := buf.ChannelIDs()
	perChannel := make([][]Event, len(selected))
	err := parallel.ForEach(ctx, len(selected), o.workers, func(i int) error {
		idx := selected[i]
		perChannel[i] = detectChannel(buf.ChannelAt(idx), ids[idx], cfg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, evs := range perChannel {
		events = append(events, evs...)
	}
	return events, nil
}

// detectChannel runs the hysteresis state machine over one channel.
// Events within a channel come out ordered by start already.
func detectChannel(x []float64, channel string, cfg Config) []Event {
	stat := slidingStatistic(x, cfg.Statistic, cfg.WindowLen)

	var events []Event
	var (
		inCandidate bool
		start       int
		peak        float64
		quietUntil  int
	)

	for i, v := range stat {
		if !inCandidate {
			if v >= cfg.ThresholdHigh && i >= quietUntil {
				inCandidate = true
				start = i
				peak = v
			}
			continue
		}

		if v >= cfg.ThresholdLow {
			if v > peak {
				peak = v
			}
			continue
		}

		// Dropped below the low threshold: confirm or reject.
		if i-start >= cfg.MinDuration {
			events = append(events, Event{
				Channel: channel,
				Start:   start,
				End:     i,
				Type:    cfg.label(),
				Score:   peak,
			})
			quietUntil = i + cfg.Refractory
		}
		inCandidate = false
	}

	// An event still open at the end of the data counts when it sustained
	// long enough; its end clamps to the buffer length.
	if inCandidate && len(stat)-start >= cfg.MinDuration {
		events = append(events, Event{
			Channel: channel,
			Start:   start,
			End:     len(stat),
			Type:    cfg.label(),
			Score:   peak,
		})
	}
	return events
}

// slidingStatistic computes a causal moving mean of |x| or x*x. stat[i]
// covers samples (i-window, i].
func slidingStatistic(x []float64, s Statistic, window int) []float64 {
	stat := make([]float64, len(x))
	var sum float64
	for i, v := range x {
		if s == StatEnergy {
			v *= v
		} else if v < 0 {
			v = -v
		}
		sum += v
		if i >= window {
			old := x[i-window]
			if s == StatEnergy {
				old *= old
			} else if old < 0 {
				old = -old
			}
			sum -= old
		}
		n := i + 1
		if n > window {
			n = window
		}
		stat[i] = sum / float64(n)
	}
	return stat
}
