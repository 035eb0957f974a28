// Package eeg defines the in-memory representation of a continuous EEG
// recording: channel metadata, sample data, annotations, and stimulus
// events.
//
// A Raw holds one recording fully loaded. Data is stored per channel in the
// channel's physical unit (microvolts for EEG). Annotations mark spans of
// the recording by onset and duration in seconds; they carry the pipeline's
// flags once preprocessing has run. Mutating operations work in place;
// Clone gives an independent copy when the original must survive.
package eeg
