// Package ica implements FastICA for separating a multichannel recording
// into statistically independent components.
//
// Fit centers and whitens the data through an eigendecomposition of the
// channel covariance, then runs the symmetric fixed-point iteration with the
// tanh contrast function. The decomposition is deterministic for a fixed
// seed. Components map back to channel space through the mixing matrix, so
// flagged components can be inspected or projected out without touching the
// stored recording.
package ica
