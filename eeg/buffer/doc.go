// Package buffer provides the canonical in-memory representation of a
// multi-channel, uniformly sampled recording.
//
// A Buffer holds one fixed-length sample slice per channel at a shared
// sampling rate. All processing stages consume and produce Buffers: read-only
// stages (spectral analysis, detection, connectivity) may read a Buffer
// concurrently, while mutating stages (filtering, reconstruction) return a
// fresh Buffer and never alias their input.
//
// An Epoch is a labeled [start, end) view into a parent Buffer, used for
// windowed analysis. Epochs reference the parent's samples without copying.
package buffer
