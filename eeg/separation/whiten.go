package separation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-eeg/eeg/buffer"
)

// errEigen reports a failed symmetric eigendecomposition.
var errEigen = errors.New("separation: eigendecomposition failed")

// whitened bundles the decorrelated sources with the transforms that
// produced them.
type whitened struct {
	// sources is the whitened data, components x samples, unit variance
	// per row.
	sources *mat.Dense

	// whitening maps centered channels to whitened sources
	// (components x channels); dewhitening is its pseudo-inverse.
	whitening   *mat.Dense
	dewhitening *mat.Dense
}

// centerChannels copies every channel with its mean removed and returns
// the removed means in channel order.
func centerChannels(buf *buffer.Buffer) ([][]float64, []float64) {
	channels := buf.NumChannels()
	n := buf.Len()

	centered := make([][]float64, channels)
	means := make([]float64, channels)
	for i := range channels {
		src := buf.ChannelAt(i)
		var sum float64
		for _, v := range src {
			sum += v
		}
		mean := sum / float64(n)
		means[i] = mean

		row := make([]float64, n)
		for j, v := range src {
			row[j] = v - mean
		}
		centered[i] = row
	}
	return centered, means
}

// whiten decorrelates the centered channels through the covariance
// eigendecomposition, keeping the nComponents strongest directions.
// Directions with near-zero variance are discarded before the rank check.
func whiten(centered [][]float64, n, nComponents int) (*whitened, error) {
	channels := len(centered)

	cov := mat.NewSymDense(channels, nil)
	for i := range channels {
		for j := i; j < channels; j++ {
			var dot float64
			for k := range n {
				dot += centered[i][k] * centered[j][k]
			}
			cov.SetSym(i, j, dot/float64(n-1))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return nil, errEigen
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Eigenvalues ascend; usable rank counts those above a relative floor.
	floor := values[len(values)-1] * rankTolerance
	rank := 0
	for _, v := range values {
		if v > floor && v > 0 {
			rank++
		}
	}
	if rank < nComponents {
		return nil, fmt.Errorf("%w: rank %d, requested %d", ErrInsufficientRank, rank, nComponents)
	}

	// Strongest directions first.
	whitening := mat.NewDense(nComponents, channels, nil)
	dewhitening := mat.NewDense(channels, nComponents, nil)
	for c := range nComponents {
		idx := len(values) - 1 - c
		scale := math.Sqrt(values[idx])
		for ch := range channels {
			v := vectors.At(ch, idx)
			whitening.Set(c, ch, v/scale)
			dewhitening.Set(ch, c, v*scale)
		}
	}

	data := mat.NewDense(channels, n, nil)
	for i, row := range centered {
		data.SetRow(i, row)
	}
	sources := new(mat.Dense)
	sources.Mul(whitening, data)

	return &whitened{
		sources:     sources,
		whitening:   whitening,
		dewhitening: dewhitening,
	}, nil
}

// invSqrtSym computes M^{-1/2} for a symmetric positive definite M.
func invSqrtSym(m *mat.SymDense) (*mat.Dense, error) {
	var eig mat.EigenSym
	if !eig.Factorize(m, true) {
		return nil, errEigen
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	n := len(values)
	scaled := mat.NewDense(n, n, nil)
	for j, v := range values {
		if v <= 0 {
			return nil, fmt.Errorf("%w: non-positive eigenvalue %g", errEigen, v)
		}
		inv := 1 / math.Sqrt(v)
		for i := range n {
			scaled.Set(i, j, vectors.At(i, j)*inv)
		}
	}

	out := new(mat.Dense)
	out.Mul(scaled, vectors.T())
	return out, nil
}
