// Package bids lays out, names, reads, and writes EEG datasets in BIDS
// (Brain Imaging Data Structure) form.
//
// A Path pins one recording inside a dataset tree by its entity labels
// (subject, session, task, acquisition, run) plus suffix, datatype, and
// extension, and renders deterministically to the BIDS directory and
// filename for those entities. ReadRaw and WriteRaw move recordings between
// the tree and memory: the data file is EDF, channel metadata and events
// ride TSV sidecars, and the recording sidecar and dataset description are
// JSON.
//
// ConvertDataset builds a BIDS tree from vendor recordings. The caller
// supplies an import callback plus two parameter tables, one row per
// recording: the first carries the callback's arguments, the second the
// destination entities. Imported recordings round-trip through a scratch
// EDF before writing so every output is format-clean regardless of how the
// callback produced it.
package bids
