package openneuro

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DownloadOptions controls a dataset download.
type DownloadOptions struct {
	// Snapshot pins a snapshot tag. Empty resolves the latest.
	Snapshot string
	// IncludePrefixes restricts the download to matching dataset paths.
	// Root-level files (dataset_description.json, participants.tsv, ...)
	// are always included so the result stays a readable BIDS tree.
	IncludePrefixes []string
	// Overwrite re-downloads files that already exist with the right size.
	Overwrite bool
	// Progress, when set, is invoked once per file.
	Progress func(ProgressUpdate)
}

// ProgressUpdate reports one file of a dataset download.
type ProgressUpdate struct {
	Filename string
	Index    int
	Total    int
	Bytes    int64
	Skipped  bool
}

// DownloadSummary totals a dataset download.
type DownloadSummary struct {
	Snapshot   string
	Files      int
	Downloaded int
	Skipped    int
	Bytes      int64
}

// DownloadDataset fetches a dataset (or the subset selected by include
// prefixes) into destDir, skipping files already present with the expected
// size.
func (c *Client) DownloadDataset(ctx context.Context, datasetID, destDir string, opts DownloadOptions) (*DownloadSummary, error) {
	datasetID = strings.TrimSpace(datasetID)
	if datasetID == "" {
		return nil, errors.New("dataset id must not be empty")
	}
	destDir = strings.TrimSpace(destDir)
	if destDir == "" {
		return nil, errors.New("destination directory must not be empty")
	}

	tag := strings.TrimSpace(opts.Snapshot)
	if tag == "" {
		latest, err := c.LatestSnapshot(ctx, datasetID)
		if err != nil {
			return nil, err
		}
		tag = latest
	}

	files, err := c.ListFiles(ctx, datasetID, tag)
	if err != nil {
		return nil, err
	}

	selected := make([]File, 0, len(files))
	for _, file := range files {
		if matchesInclude(file.Filename, opts.IncludePrefixes) {
			selected = append(selected, file)
		}
	}

	summary := &DownloadSummary{Snapshot: tag, Files: len(selected)}
	for i, file := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := filepath.Join(destDir, filepath.FromSlash(file.Filename))
		if !opts.Overwrite && existsWithSize(target, file.Size) {
			summary.Skipped++
			if opts.Progress != nil {
				opts.Progress(ProgressUpdate{Filename: file.Filename, Index: i + 1, Total: len(selected), Skipped: true})
			}
			continue
		}
		var written int64
		err := c.withRetry(ctx, fmt.Sprintf("download %s", file.Filename), func() error {
			n, err := c.downloadFile(ctx, file, target)
			written = n
			return err
		})
		if err != nil {
			return nil, err
		}
		summary.Downloaded++
		summary.Bytes += written
		if opts.Progress != nil {
			opts.Progress(ProgressUpdate{Filename: file.Filename, Index: i + 1, Total: len(selected), Bytes: written})
		}
	}
	return summary, nil
}

func (c *Client) downloadFile(ctx context.Context, file File, target string) (int64, error) {
	if len(file.URLs) == 0 {
		return 0, fmt.Errorf("no download url for %s", file.Filename)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create directory for %s: %w", file.Filename, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URLs[0], nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	requestStart := time.Now()
	resp, err := c.downloadClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return 0, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download of %s returned %d (latency=%v)", file.Filename, resp.StatusCode, latency)
	}

	// Write through a partial file so an interrupted download never leaves a
	// truncated file that a later run would skip as already present.
	partial := target + ".partial"
	out, err := os.Create(partial)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", partial, err)
	}
	written, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err != nil {
		_ = os.Remove(partial)
		return 0, fmt.Errorf("write %s: %w", file.Filename, err)
	}
	if closeErr != nil {
		_ = os.Remove(partial)
		return 0, fmt.Errorf("close %s: %w", file.Filename, closeErr)
	}
	if file.Size > 0 && written != file.Size {
		_ = os.Remove(partial)
		return 0, fmt.Errorf("size mismatch for %s: got %d bytes, want %d", file.Filename, written, file.Size)
	}
	if err := os.Rename(partial, target); err != nil {
		_ = os.Remove(partial)
		return 0, fmt.Errorf("finalize %s: %w", file.Filename, err)
	}
	return written, nil
}

func matchesInclude(filename string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	// Dataset-level metadata always comes along.
	if !strings.Contains(filename, "/") {
		return true
	}
	for _, prefix := range prefixes {
		prefix = strings.Trim(strings.TrimSpace(prefix), "/")
		if prefix == "" {
			continue
		}
		if filename == prefix || strings.HasPrefix(filename, prefix+"/") {
			return true
		}
	}
	return false
}

func existsWithSize(path string, size int64) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if size <= 0 {
		return true
	}
	return info.Size() == size
}
