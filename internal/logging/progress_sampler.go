package logging

import "strings"

// ProgressSampler thins out step and download progress logs: an event is
// worth a line when the step changes or the percentage crosses into a new
// bucket, not on every callback.
type ProgressSampler struct {
	bucket     float64
	lastStep   string
	lastBucket int
}

// NewProgressSampler returns a sampler with the given bucket width in
// percent. Widths of zero or less fall back to 5.
func NewProgressSampler(bucket float64) *ProgressSampler {
	if bucket <= 0 {
		bucket = 5
	}
	return &ProgressSampler{bucket: bucket, lastBucket: -1}
}

// ShouldLog reports whether this progress event deserves a log line.
// A negative percent means unknown progress and only step changes emit.
// The message is ignored for deduplication; it usually carries volatile
// detail like byte counts.
func (s *ProgressSampler) ShouldLog(percent float64, step, message string) bool {
	if s == nil {
		return true
	}
	_ = message

	emit := false
	if step = strings.TrimSpace(step); step != "" && step != s.lastStep {
		s.lastStep = step
		s.lastBucket = -1
		emit = true
	}
	if percent < 0 {
		return emit
	}
	bucket := int(percent / s.bucket)
	if percent >= 100 {
		bucket = int(100 / s.bucket)
	}
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}

// Reset clears sampler state so the next recording starts fresh.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastStep = ""
	s.lastBucket = -1
}
