package filter

import (
	"fmt"
	"math"
)

// Design computes filter coefficients from a spec at the given sampling
// rate. It validates the spec, designs the realization, and verifies pole
// stability before returning; no partially designed filter escapes.
func Design(spec Spec, sampleRate float64) (*Coefficients, error) {
	if err := spec.validate(sampleRate); err != nil {
		return nil, err
	}

	c := &Coefficients{spec: spec, sampleRate: sampleRate}

	switch spec.Family {
	case Butterworth, Chebyshev:
		sections, err := designIIR(spec, sampleRate)
		if err != nil {
			return nil, err
		}
		c.sections = sections
		if err := c.checkStability(); err != nil {
			return nil, err
		}
	case FIR:
		taps, err := designFIR(spec, sampleRate)
		if err != nil {
			return nil, err
		}
		c.taps = taps
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFamily, int(spec.Family))
	}

	return c, nil
}

func designIIR(spec Spec, sampleRate float64) ([]Section, error) {
	switch spec.Band {
	case Lowpass:
		return iirCascade(spec, spec.Cutoff, sampleRate, false), nil
	case Highpass:
		return iirCascade(spec, spec.Cutoff, sampleRate, true), nil
	case Bandpass:
		// Highpass at the lower edge cascaded with lowpass at the upper
		// edge, each of the full requested order.
		hp := iirCascade(spec, spec.Cutoff, sampleRate, true)
		lp := iirCascade(spec, spec.Cutoff2, sampleRate, false)
		return append(hp, lp...), nil
	case Bandstop:
		return notchCascade(spec, sampleRate), nil
	}
	return nil, fmt.Errorf("filter: unknown band %d", int(spec.Band))
}

// iirCascade builds a lowpass or highpass cascade for the spec's family.
// For odd orders, the final section is first-order (B2=A2=0).
func iirCascade(spec Spec, freq, sampleRate float64, highpass bool) []Section {
	order := spec.Order
	sections := make([]Section, 0, (order+1)/2)

	switch spec.Family {
	case Chebyshev:
		sections = append(sections, chebyshev1Sections(freq, order, spec.rippleOrDefault(), sampleRate, highpass)...)
	default:
		n2 := order / 2
		for i := n2 - 1; i >= 0; i-- {
			q := butterworthQ(order, i)
			if highpass {
				sections = append(sections, highpassRBJ(freq, q, sampleRate))
			} else {
				sections = append(sections, lowpassRBJ(freq, q, sampleRate))
			}
		}
	}

	if order%2 != 0 {
		if highpass {
			sections = append(sections, firstOrderHP(freq, sampleRate))
		} else {
			sections = append(sections, firstOrderLP(freq, sampleRate))
		}
	}
	return sections
}

// notchCascade realizes a bandstop as a cascade of identical-Q notch
// sections centered on the geometric band center. Stop-band depth grows
// with section count; both families share this realization.
func notchCascade(spec Spec, sampleRate float64) []Section {
	f0 := math.Sqrt(spec.Cutoff * spec.Cutoff2)
	bw := spec.Cutoff2 - spec.Cutoff
	q := f0 / bw

	n := (spec.Order + 1) / 2
	sections := make([]Section, 0, n)
	for range n {
		sections = append(sections, notchRBJ(f0, q, sampleRate))
	}
	return sections
}

// butterworthQ returns the quality factor for a Butterworth cascade section.
// index ranges from 0 to (order/2 - 1).
func butterworthQ(order, index int) float64 {
	theta := math.Pi * float64(2*index+1) / (2 * float64(order))

	s := math.Sin(theta)
	if s == 0 {
		return 1 / math.Sqrt2
	}
	return 1 / (2 * s)
}

// cheby1RippleFactors computes ripple-dependent factors for Chebyshev Type I.
// Returns (r0, r1) with r0 = cosh^2(asinh(ripple)/order), r1 = sinh(asinh(ripple)/order).
func cheby1RippleFactors(order int, rippleDB float64) (float64, float64) {
	if order <= 0 {
		return 1, 0
	}
	if rippleDB <= 0 {
		rippleDB = defaultChebyshevRippleDB
	}

	t := math.Asinh(rippleDB) / float64(order)
	r1 := math.Sinh(t)
	r0 := math.Cosh(t)
	return r0 * r0, r1
}

// chebyshev1Sections designs the full-biquad part of a Chebyshev Type I
// lowpass or highpass cascade via the bilinear transform.
func chebyshev1Sections(freq float64, order int, rippleDB, sampleRate float64, highpass bool) []Section {
	k := math.Tan(math.Pi * freq / sampleRate)
	r0, r1 := cheby1RippleFactors(order, rippleDB)
	sections := make([]Section, 0, order/2)
	k2 := k * k

	for i := (order / 2) - 1; i >= 0; i-- {
		if highpass {
			s := math.Sin(float64(2*i+1) * math.Pi / (4 * float64(order)))
			tt := s * s
			a := 1 / (r0 + 4*tt - 4*tt*tt - 1)
			b := 2 * k * a * r1 * (1 - 2*tt)
			t := 1 / (b + 1 + a*k2)
			sections = append(sections, Section{
				B0: t,
				B1: -2 * t,
				B2: t,
				A1: -2 * (1 - a*k2) * t,
				A2: (1 + a*k2 - b) * t,
			})
			continue
		}

		tt := math.Cos(float64(2*i+1) * math.Pi / (2 * float64(order)))
		b := 1 / (r0 - tt*tt)
		a := k * 2 * b * r1 * tt
		t := 1 / (a + b + k2)
		sections = append(sections, Section{
			B0: k2 * t,
			B1: 2 * k2 * t,
			B2: k2 * t,
			A1: 2 * (k2 - b) * t,
			A2: (b + k2 - a) * t,
		})
	}
	return sections
}

// lowpassRBJ designs a lowpass biquad at freq (Hz) with quality factor q.
func lowpassRBJ(freq, q, sampleRate float64) Section {
	w0 := 2 * math.Pi * freq / sampleRate
	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)

	b1 := 1 - cw
	b0 := b1 / 2
	return normalizeSection(b0, b1, b0, 1+alpha, -2*cw, 1-alpha)
}

// highpassRBJ designs a highpass biquad at freq (Hz) with quality factor q.
func highpassRBJ(freq, q, sampleRate float64) Section {
	w0 := 2 * math.Pi * freq / sampleRate
	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)

	b0 := (1 + cw) / 2
	return normalizeSection(b0, -(1 + cw), b0, 1+alpha, -2*cw, 1-alpha)
}

// notchRBJ designs a notch biquad centered at freq (Hz).
func notchRBJ(freq, q, sampleRate float64) Section {
	w0 := 2 * math.Pi * freq / sampleRate
	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)

	return normalizeSection(1, -2*cw, 1, 1+alpha, -2*cw, 1-alpha)
}

// firstOrderLP designs a first-order lowpass section for odd orders.
func firstOrderLP(freq, sampleRate float64) Section {
	k := math.Tan(math.Pi * freq / sampleRate)
	norm := 1 / (1 + k)

	return Section{
		B0: k * norm,
		B1: k * norm,
		A1: (k - 1) * norm,
	}
}

// firstOrderHP designs a first-order highpass section for odd orders.
func firstOrderHP(freq, sampleRate float64) Section {
	k := math.Tan(math.Pi * freq / sampleRate)
	norm := 1 / (1 + k)

	return Section{
		B0: norm,
		B1: -norm,
		A1: (k - 1) * norm,
	}
}

func normalizeSection(b0, b1, b2, a0, a1, a2 float64) Section {
	inv := 1 / a0
	return Section{
		B0: b0 * inv,
		B1: b1 * inv,
		B2: b2 * inv,
		A1: a1 * inv,
		A2: a2 * inv,
	}
}
