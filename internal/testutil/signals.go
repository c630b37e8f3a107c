// Package testutil provides tolerance helpers and deterministic synthetic
// signals for tests across the engine packages.
package testutil

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/algo-eeg/eeg/buffer"
)

// Sine generates a deterministic sine wave.
func Sine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// Noise generates white noise in [-amplitude, amplitude] with a fixed seed.
func Noise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// Spike adds a rectangular amplitude burst of the given width and height
// centered at pos, returning the modified slice.
func Spike(signal []float64, pos, width int, height float64) []float64 {
	start := pos - width/2
	for i := range width {
		if k := start + i; k >= 0 && k < len(signal) {
			signal[k] += height
		}
	}
	return signal
}

// MustBuffer builds a buffer from ids and channel data, failing t on error.
func MustBuffer(t *testing.T, sampleRate float64, ids []string, data [][]float64) *buffer.Buffer {
	t.Helper()
	b, err := buffer.New(sampleRate, ids, data)
	if err != nil {
		t.Fatalf("buffer.New: %v", err)
	}
	return b
}
