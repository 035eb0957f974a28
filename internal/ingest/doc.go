// Package ingest runs the intake stage for queued recordings.
//
// The handler parses the source EDF, resolves the BIDS entities that will
// name the recording for the rest of the workflow, validates that the file
// actually carries usable EEG signal, and stages a format-clean copy under
// the staging directory for the preprocessing stage. It emits ntfy
// notifications when a recording finishes intake and surfaces structured
// errors so malformed files land in review rather than the retry loop.
//
// Centralize new intake behaviours here so the workflow manager interacts
// with a single, well-tested abstraction.
package ingest
