// Package spectral estimates power spectral densities and cross-channel
// coherence using Welch's method of averaged, windowed, overlapping
// segments.
//
// The segment machinery ([SegmentConfig], [CrossSpectra]) is exported so the
// connectivity package can compute band-restricted coupling measures through
// the same validated FFT path instead of duplicating it.
//
// All estimates are produced fresh per call and are bit-reproducible for
// identical inputs: segmentation, windowing, and averaging follow a fixed
// order regardless of scheduling.
package spectral
