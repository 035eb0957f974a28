// Package lossless is the preprocessing pipeline itself: an ordered set
// of flagging and decomposition steps driven by a YAML recipe. A run
// takes a continuous recording and produces channel, window, and
// component flags, bad-span annotations, and a derivative dataset that
// records exactly what was decided and why.
//
// Nothing is ever removed from the signal. Flagged channels are marked
// bad, flagged spans annotated, flagged components listed; downstream
// analysis chooses what to exclude.
package lossless
