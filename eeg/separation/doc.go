// Package separation performs blind source separation on multi-channel
// buffers using a fixed-point independent-component iteration.
//
// Channels are centered and whitened through an eigendecomposition of the
// covariance matrix, then rotated toward statistical independence with a
// tanh contrast and symmetric decorrelation. Initialization is the identity
// rotation, so identical inputs always produce identical components.
//
// Components are scored by excess kurtosis and, when reference channels are
// supplied, by correlation against them. Scores are advisory: the caller
// chooses which components to remove before reconstruction.
package separation
