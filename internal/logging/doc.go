// Package logging builds the slog loggers the whole binary shares: a
// one-line console handler, a JSON handler, multi-writer output to
// stdout plus the log file, typed attribute helpers, context-carried
// recording/stage/run fields, log retention, and a progress sampler
// for chatty step callbacks.
package logging
