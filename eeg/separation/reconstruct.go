package separation

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-eeg/eeg/buffer"
)

// Reconstruct re-mixes the components into channel space with the listed
// components zeroed out, restoring the channel means removed before
// separation. An empty removal set round-trips the original buffer when
// the separation kept full rank.
func Reconstruct(r *Result, remove []int) (*buffer.Buffer, error) {
	comps := r.NumComponents()
	removed := make(map[int]bool, len(remove))
	for _, idx := range remove {
		if idx < 0 || idx >= comps {
			return nil, fmt.Errorf("%w: %d of %d", ErrUnknownComponent, idx, comps)
		}
		removed[idx] = true
	}

	n := len(r.Components[0])
	kept := mat.NewDense(comps, n, nil)
	for i, comp := range r.Components {
		if removed[i] {
			continue
		}
		kept.SetRow(i, comp)
	}

	mixed := new(mat.Dense)
	mixed.Mul(r.Mixing, kept)

	channels := len(r.channelIDs)
	data := make([][]float64, channels)
	for ch := range channels {
		row := mat.Row(nil, ch, mixed)
		for j := range row {
			row[j] += r.means[ch]
		}
		data[ch] = row
	}

	return buffer.New(r.sampleRate, r.channelIDs, data)
}
