// Package edf reads and writes EDF (European Data Format) recordings.
//
// EDF stores a fixed-width ASCII header (256 bytes plus 256 per signal)
// followed by data records of interleaved little-endian 16-bit samples,
// scaled between a physical and a digital range declared per signal. The
// writer emits one-second data records and requires an integer sample rate;
// recordings whose length is not a whole number of seconds get a zero-padded
// final record, with the true sample count noted in the reserved header
// field so a read restores the exact length.
//
// Channel types ride the signal label as an uppercase prefix ("EEG Cz",
// "STIM STI 014"); labels without a known prefix come back as misc channels.
// Annotations are not stored here. They belong to the events and annotation
// sidecars next to the data file.
package edf
