// Package preprocess runs the lossless recipe against staged recordings.
//
// It loads the staged EDF, validates that the recipe can run at the
// recording's sample rate, drives the pipeline while persisting progress,
// and writes the derivative tree with its QC sidecars. Flag counts and
// step timings land on the queue item so status displays and the report
// stage can show what a run flagged without reopening the signal.
//
// Keep additional preprocessing logic here so the workflow manager and
// report stage can assume a single source of truth for derivatives.
package preprocess
