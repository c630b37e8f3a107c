// Package filter designs and applies digital filters to buffer channels.
//
// IIR designs (Butterworth, Chebyshev Type I) are realized as cascades of
// bilinear-transform second-order sections; FIR designs use windowed-sinc
// taps. Design validates parameters and checks pole stability before any
// coefficients are returned, so Apply never runs an unstable filter.
package filter

import (
	"errors"
	"fmt"
)

// Family identifies the filter design family.
type Family int

const (
	Butterworth Family = iota
	Chebyshev
	FIR
)

// Band identifies the frequency band shape.
type Band int

const (
	Lowpass Band = iota
	Highpass
	Bandpass
	Bandstop
)

var (
	ErrInvalidCutoff    = errors.New("filter: cutoff must lie strictly inside (0, sampleRate/2)")
	ErrInvalidOrder     = errors.New("filter: invalid order")
	ErrRippleOutOfRange = errors.New("filter: chebyshev ripple out of range")
	ErrUnstable         = errors.New("filter: design produced poles on or outside the unit circle")
	ErrUnknownFamily    = errors.New("filter: unknown family")
)

// String returns the family name.
func (f Family) String() string {
	switch f {
	case Butterworth:
		return "butterworth"
	case Chebyshev:
		return "chebyshev"
	case FIR:
		return "fir"
	default:
		return fmt.Sprintf("filter.Family(%d)", int(f))
	}
}

// String returns the band name.
func (b Band) String() string {
	switch b {
	case Lowpass:
		return "lowpass"
	case Highpass:
		return "highpass"
	case Bandpass:
		return "bandpass"
	case Bandstop:
		return "bandstop"
	default:
		return fmt.Sprintf("filter.Band(%d)", int(b))
	}
}

// Spec describes a filter to design.
//
// Cutoff is the edge frequency for Lowpass/Highpass and the lower band edge
// for Bandpass/Bandstop; Cutoff2 is the upper band edge. RippleDB applies to
// the Chebyshev family only (passband ripple in dB; 0 selects the 1 dB
// default).
type Spec struct {
	Family   Family
	Band     Band
	Order    int
	Cutoff   float64
	Cutoff2  float64
	RippleDB float64
}

const defaultChebyshevRippleDB = 1.0

// validate checks the spec against a sampling rate before any design work.
func (s Spec) validate(sampleRate float64) error {
	if sampleRate <= 0 {
		return fmt.Errorf("filter: sample rate must be > 0: %f", sampleRate)
	}
	if s.Order < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidOrder, s.Order)
	}

	nyquist := sampleRate / 2
	if s.Cutoff <= 0 || s.Cutoff >= nyquist {
		return fmt.Errorf("%w: %f Hz at %f Hz", ErrInvalidCutoff, s.Cutoff, sampleRate)
	}

	switch s.Band {
	case Bandpass, Bandstop:
		if s.Cutoff2 <= 0 || s.Cutoff2 >= nyquist {
			return fmt.Errorf("%w: %f Hz at %f Hz", ErrInvalidCutoff, s.Cutoff2, sampleRate)
		}
		if s.Cutoff >= s.Cutoff2 {
			return fmt.Errorf("%w: band edges %f >= %f", ErrInvalidCutoff, s.Cutoff, s.Cutoff2)
		}
	case Lowpass, Highpass:
	default:
		return fmt.Errorf("filter: unknown band %d", int(s.Band))
	}

	if s.Family == Chebyshev {
		if s.RippleDB < 0 || s.RippleDB > 10 {
			return fmt.Errorf("%w: %f dB", ErrRippleOutOfRange, s.RippleDB)
		}
	}
	return nil
}

// rippleOrDefault returns the effective Chebyshev ripple.
func (s Spec) rippleOrDefault() float64 {
	if s.RippleDB <= 0 {
		return defaultChebyshevRippleDB
	}
	return s.RippleDB
}
