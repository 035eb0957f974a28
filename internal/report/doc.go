// Package report renders QC reports for preprocessed recordings.
//
// It turns the flag set and derivative signal of a recording into a static
// HTML report of go-echarts charts: channel dispersion with flagged
// channels highlighted, flagged windows, flagged components, and step
// timings. Each run also regenerates a dataset-wide summary page linking
// the per-recording reports, so reviewers can start from one file.
//
// Reports are plain files under reports_dir; nothing here serves HTTP.
package report
