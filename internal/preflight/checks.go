package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"lossless/internal/lossless"
)

// minStagingBytes is the free-space floor for the staging volume. A single
// high-density EEG session stages up to a few hundred megabytes, so anything
// under a gigabyte risks a mid-run failure.
const minStagingBytes = 1 << 30

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies the volume holding path has room for staged
// intermediates.
func CheckDiskSpace(name, path string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free on %s", humanize.IBytes(free), path)
	if free < minStagingBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need at least %s)", detail, humanize.IBytes(minStagingBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckRecipe parses and validates the configured pipeline recipe. An empty
// path means the built-in defaults, which always validate.
func CheckRecipe(path string) Result {
	const name = "Pipeline recipe"

	if strings.TrimSpace(path) == "" {
		cfg, err := lossless.LoadDefault()
		if err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("built-in defaults unusable: %v", err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("built-in defaults (hash %s)", cfg.Hash())}
	}

	cfg, err := lossless.Load(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (hash %s)", filepath.Base(path), cfg.Hash())}
}

// CheckNtfy verifies the configured ntfy topic responds. A GET against the
// topic URL does not publish anything.
func CheckNtfy(ctx context.Context, topic string) Result {
	const name = "Notifications"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, topic, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid topic url (%v)", err)}
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("topic unreachable (%v)", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Result{Name: name, Detail: fmt.Sprintf("topic returned %d", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "topic reachable"}
}
