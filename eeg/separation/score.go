package separation

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Score is an advisory artifact rating for one component. High absolute
// kurtosis flags spiky, blink- or muscle-like activity; high reference
// correlation flags components tracking a designated artifact channel.
type Score struct {
	// Kurtosis is the excess kurtosis of the component time series.
	Kurtosis float64

	// MaxRefCorr is the largest |Pearson r| against any reference channel,
	// zero when no references were supplied. RefChannel names its channel.
	MaxRefCorr float64
	RefChannel string

	// Combined is |Kurtosis| plus MaxRefCorr, for coarse ranking only.
	Combined float64
}

// scoreComponents rates every component. refIDs and refs run in parallel.
func scoreComponents(components [][]float64, refIDs []string, refs [][]float64) []Score {
	scores := make([]Score, len(components))
	for i, comp := range components {
		k := excessKurtosis(comp)
		s := Score{Kurtosis: k}

		for r, ref := range refs {
			c := math.Abs(stat.Correlation(comp, ref, nil))
			if math.IsNaN(c) {
				continue
			}
			if c > s.MaxRefCorr {
				s.MaxRefCorr = c
				s.RefChannel = refIDs[r]
			}
		}
		s.Combined = math.Abs(k) + s.MaxRefCorr
		scores[i] = s
	}
	return scores
}

// excessKurtosis returns m4/m2^2 - 3 over the series; zero for a series
// with no variance.
func excessKurtosis(x []float64) float64 {
	n := float64(len(x))
	if n == 0 {
		return 0
	}
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= n

	var m2, m4 float64
	for _, v := range x {
		d := v - mean
		d2 := d * d
		m2 += d2
		m4 += d2 * d2
	}
	m2 /= n
	m4 /= n
	if m2 == 0 {
		return 0
	}
	return m4/(m2*m2) - 3
}
