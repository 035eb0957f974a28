package queue

import (
	"fmt"
	"path/filepath"
	"strings"

	"lossless/internal/textutil"
)

// StagingRoot is the per-recording scratch directory under base. The
// source fingerprint keys it when known, so a re-enqueued file lands in
// the same directory; otherwise the ledger id does.
func (i Item) StagingRoot(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	key := strings.ToUpper(strings.TrimSpace(i.SourceFingerprint))
	if key == "" {
		key = fmt.Sprintf("rec-%d", i.ID)
	}
	return filepath.Join(base, stagingSegment(key))
}

// stagingSegment reduces key to a safe single path segment.
func stagingSegment(key string) string {
	cleaned := textutil.SanitizeFileName(key)
	cleaned = strings.ReplaceAll(cleaned, " ", "-")
	cleaned = strings.Trim(cleaned, "-_")
	if cleaned == "" {
		return "rec"
	}
	return cleaned
}
