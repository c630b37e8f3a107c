package buffer

import "fmt"

// Epoch is a labeled [Start, End) view into a parent buffer.
//
// Epochs reference the parent's samples and may overlap freely. They are
// cheap to create and carry no copy of the data.
type Epoch struct {
	parent *Buffer
	Label  string
	Start  int
	End    int
}

// Epoch creates a labeled sub-range view. start must be >= 0, end must not
// exceed the buffer length, and the range must be non-empty.
func (b *Buffer) Epoch(label string, start, end int) (*Epoch, error) {
	if start < 0 || end > b.Len() || start >= end {
		return nil, fmt.Errorf("%w: [%d, %d) of %d samples", ErrInvalidInterval, start, end, b.Len())
	}
	return &Epoch{parent: b, Label: label, Start: start, End: end}, nil
}

// Len returns the epoch length in samples.
func (e *Epoch) Len() int { return e.End - e.Start }

// SampleRate returns the parent's sampling rate.
func (e *Epoch) SampleRate() float64 { return e.parent.sampleRate }

// Channel returns the epoch's view of a channel. Treat it as read-only.
func (e *Epoch) Channel(id string) ([]float64, error) {
	ch, err := e.parent.Channel(id)
	if err != nil {
		return nil, err
	}
	return ch[e.Start:e.End], nil
}

// Materialize copies the epoch range into a standalone buffer.
func (e *Epoch) Materialize() *Buffer {
	data := make([][]float64, e.parent.NumChannels())
	for i := range data {
		data[i] = append([]float64(nil), e.parent.data[i][e.Start:e.End]...)
	}
	out, _ := New(e.parent.sampleRate, e.parent.ids, data)
	return out
}
