package buffer

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownChannel  = errors.New("buffer: unknown channel")
	ErrDuplicateID     = errors.New("buffer: duplicate channel id")
	ErrRaggedChannels  = errors.New("buffer: channels must have equal length")
	ErrInvalidRate     = errors.New("buffer: sample rate must be > 0")
	ErrEmpty           = errors.New("buffer: at least one channel required")
	ErrNoSamples       = errors.New("buffer: channels must hold at least one sample")
	ErrInvalidInterval = errors.New("buffer: invalid sample interval")
)

// Buffer is a rectangular multi-channel time series at a shared sampling rate.
//
// Channel order is fixed at construction and preserved by every stage.
type Buffer struct {
	sampleRate float64
	ids        []string
	index      map[string]int
	data       [][]float64
}

// New constructs a Buffer from channel ids and per-channel sample slices.
// The slices are adopted, not copied; the caller must not mutate them
// afterwards. ids and data must have equal length, all channels must have
// the same sample count, and ids must be unique.
func New(sampleRate float64, ids []string, data [][]float64) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %f", ErrInvalidRate, sampleRate)
	}
	if len(ids) == 0 || len(data) == 0 {
		return nil, ErrEmpty
	}
	if len(ids) != len(data) {
		return nil, fmt.Errorf("buffer: %d ids for %d channels", len(ids), len(data))
	}

	n := len(data[0])
	if n == 0 {
		return nil, ErrNoSamples
	}
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("buffer: empty channel id at index %d", i)
		}
		if _, dup := index[id]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
		}
		index[id] = i
		if len(data[i]) != n {
			return nil, fmt.Errorf("%w: %q has %d samples, want %d", ErrRaggedChannels, id, len(data[i]), n)
		}
	}

	return &Buffer{
		sampleRate: sampleRate,
		ids:        append([]string(nil), ids...),
		index:      index,
		data:       data,
	}, nil
}

// SampleRate returns the sampling rate in Hz.
func (b *Buffer) SampleRate() float64 { return b.sampleRate }

// Len returns the number of samples per channel.
func (b *Buffer) Len() int {
	if len(b.data) == 0 {
		return 0
	}
	return len(b.data[0])
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int { return len(b.ids) }

// ChannelIDs returns a copy of the channel ids in buffer order.
func (b *Buffer) ChannelIDs() []string {
	return append([]string(nil), b.ids...)
}

// ChannelIndex returns the position of a channel id in buffer order.
func (b *Buffer) ChannelIndex(id string) (int, error) {
	i, ok := b.index[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownChannel, id)
	}
	return i, nil
}

// Channel returns the sample slice for the given channel id.
// The slice is the backing storage; treat it as read-only.
func (b *Buffer) Channel(id string) ([]float64, error) {
	i, err := b.ChannelIndex(id)
	if err != nil {
		return nil, err
	}
	return b.data[i], nil
}

// ChannelAt returns the sample slice at buffer position i.
// The slice is the backing storage; treat it as read-only.
func (b *Buffer) ChannelAt(i int) []float64 { return b.data[i] }

// Copy returns a deep copy of the buffer.
func (b *Buffer) Copy() *Buffer {
	data := make([][]float64, len(b.data))
	for i, ch := range b.data {
		data[i] = append([]float64(nil), ch...)
	}
	out, _ := New(b.sampleRate, b.ids, data)
	return out
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(b.Len()) / b.sampleRate
}
