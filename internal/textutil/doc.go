// Package textutil provides text normalization for filenames and BIDS
// entity labels.
//
// BIDS labels must be strictly alphanumeric. BIDSLabel folds a free-form
// value into that shape: diacritics are decomposed and stripped, everything
// outside [a-zA-Z0-9] is dropped. SanitizeFileName handles the looser case
// of report and log filenames where only filesystem-unsafe characters need
// replacing.
package textutil
