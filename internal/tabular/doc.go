// Package tabular provides ordered key/value record tables that round-trip
// through delimited files.
//
// A Table keeps a stable column order (first-seen order across appends) and a
// list of rows; cells absent from a row read back as empty strings, so a table
// written to disk and read again compares equal to the original. Comma and tab
// delimiters are supported, chosen from the file extension (.tsv selects tab).
//
// Conversion runs and BIDS sidecars are both expressed as tables: import and
// path parameter sets load from CSV files, channels and events sidecars write
// as TSV.
package tabular
