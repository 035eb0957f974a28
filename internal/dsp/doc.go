// Package dsp holds the numeric kernels the preprocessing steps are built
// from: robust statistics, zero-phase FIR filtering, fixed-length epoch
// slicing, and band-power estimates.
//
// Robust statistics (median, MAD, quantiles) drive the flagging steps, where
// means and standard deviations would be dragged around by the very
// artifacts being flagged. Filters are windowed-sinc FIR designs applied
// centered with reflected edges, so filtering shifts nothing in time.
package dsp
