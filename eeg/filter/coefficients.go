package filter

import (
	"math"
	"math/cmplx"
)

// stabilityTol is the margin inside the unit circle a pole must keep.
const stabilityTol = 1e-9

// Section holds the transfer function coefficients for one second-order
// section. a0 is normalized to 1 and not stored.
//
// The sign convention follows Direct Form II Transposed:
//
//	y  = B0*x + d0
//	d0 = B1*x - A1*y + d1
//	d1 = B2*x - A2*y
type Section struct {
	B0, B1, B2 float64 // feedforward (numerator)
	A1, A2     float64 // feedback (denominator)
}

// Poles returns the z-plane poles of the section denominator:
//
//	1 + A1*z^-1 + A2*z^-2 = 0
func (s Section) Poles() [2]complex128 {
	return quadraticRoots(1, s.A1, s.A2)
}

func quadraticRoots(a, b, c float64) [2]complex128 {
	if a == 0 {
		if b == 0 {
			return [2]complex128{}
		}
		return [2]complex128{complex(-c/b, 0), 0}
	}

	discriminant := complex(b*b-4*a*c, 0)
	sqrtDiscriminant := cmplx.Sqrt(discriminant)
	den := complex(2*a, 0)
	return [2]complex128{
		(-complex(b, 0) + sqrtDiscriminant) / den,
		(-complex(b, 0) - sqrtDiscriminant) / den,
	}
}

// Coefficients is an immutable designed filter, reusable across Apply calls
// and safe for concurrent use.
type Coefficients struct {
	spec       Spec
	sampleRate float64
	sections   []Section // IIR realization
	taps       []float64 // FIR realization
}

// Spec returns the spec the filter was designed from.
func (c *Coefficients) Spec() Spec { return c.spec }

// SampleRate returns the design sampling rate in Hz.
func (c *Coefficients) SampleRate() float64 { return c.sampleRate }

// IsIIR reports whether the filter is realized as recursive sections.
func (c *Coefficients) IsIIR() bool { return len(c.sections) > 0 }

// Sections returns a copy of the second-order sections (empty for FIR).
func (c *Coefficients) Sections() []Section {
	return append([]Section(nil), c.sections...)
}

// Taps returns a copy of the FIR tap weights (empty for IIR).
func (c *Coefficients) Taps() []float64 {
	return append([]float64(nil), c.taps...)
}

// Order returns the effective filter order.
func (c *Coefficients) Order() int {
	if c.IsIIR() {
		order := 0
		for _, s := range c.sections {
			if s.B2 != 0 || s.A2 != 0 {
				order += 2
			} else {
				order++
			}
		}
		return order
	}
	return len(c.taps) - 1
}

// Poles returns all z-plane poles across sections (empty for FIR).
func (c *Coefficients) Poles() []complex128 {
	out := make([]complex128, 0, 2*len(c.sections))
	for _, s := range c.sections {
		p := s.Poles()
		out = append(out, p[0])
		if s.A2 != 0 || s.A1 != 0 {
			out = append(out, p[1])
		}
	}
	return out
}

// checkStability reports the first pole on or outside the unit circle.
func (c *Coefficients) checkStability() error {
	for _, p := range c.Poles() {
		if cmplx.Abs(p) >= 1-stabilityTol {
			return ErrUnstable
		}
	}
	return nil
}

// Response evaluates the complex frequency response H(e^{jw}) at freqHz.
func (c *Coefficients) Response(freqHz float64) complex128 {
	w := 2 * math.Pi * freqHz / c.sampleRate
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1

	if c.IsIIR() {
		h := complex(1, 0)
		for _, s := range c.sections {
			num := complex(s.B0, 0) + complex(s.B1, 0)*z1 + complex(s.B2, 0)*z2
			den := complex(1, 0) + complex(s.A1, 0)*z1 + complex(s.A2, 0)*z2
			h *= num / den
		}
		return h
	}

	var h complex128
	zk := complex(1, 0)
	for _, tap := range c.taps {
		h += complex(tap, 0) * zk
		zk *= z1
	}
	return h
}

// MagnitudeDB returns the magnitude response in dB at freqHz.
func (c *Coefficients) MagnitudeDB(freqHz float64) float64 {
	return 20 * math.Log10(cmplx.Abs(c.Response(freqHz)))
}
