package workflow

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"lossless/internal/config"
	"lossless/internal/logging"
	"lossless/internal/queue"
)

// BackgroundLogger manages dedicated log files for background processing lanes.
type BackgroundLogger struct {
	baseDir string
	cfg     *config.Config
}

// NewBackgroundLogger creates a new background logger.
func NewBackgroundLogger(cfg *config.Config) *BackgroundLogger {
	dir := ""
	if cfg != nil && cfg.Paths.LogDir != "" {
		dir = filepath.Join(cfg.Paths.LogDir, "background")
	}
	return &BackgroundLogger{
		baseDir: dir,
		cfg:     cfg,
	}
}

// PathFor returns the log path for an item. The name depends only on the
// item, so every stage and every retry appends to the same file.
func (b *BackgroundLogger) PathFor(item *queue.Item) string {
	if item == nil || strings.TrimSpace(b.baseDir) == "" {
		return ""
	}
	return filepath.Join(b.baseDir, b.filename(item))
}

// Ensure prepares the log directory and returns the item's log path.
func (b *BackgroundLogger) Ensure(item *queue.Item) (string, error) {
	if item == nil {
		return "", fmt.Errorf("queue item is nil")
	}
	if strings.TrimSpace(b.baseDir) == "" {
		return "", fmt.Errorf("background log directory not configured")
	}
	path := b.PathFor(item)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("ensure background log directory: %w", err)
	}
	return path, nil
}

// CreateHandler builds a slog.Handler writing to the specified path.
func (b *BackgroundLogger) CreateHandler(path string) (slog.Handler, error) {
	level := "info"
	format := "json"
	if b.cfg != nil {
		if strings.TrimSpace(b.cfg.Logging.Level) != "" {
			level = b.cfg.Logging.Level
		}
		if strings.TrimSpace(b.cfg.Logging.Format) != "" {
			format = b.cfg.Logging.Format
		}
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           format,
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
		Development:      false,
	})
	if err != nil {
		return nil, err
	}
	return logger.Handler(), nil
}

func (b *BackgroundLogger) filename(item *queue.Item) string {
	slug := sanitizeSlug(queue.EntitiesFromItem(item).BaseName())
	if slug == "" {
		return fmt.Sprintf("item-%d.log", item.ID)
	}
	return fmt.Sprintf("item-%d-%s.log", item.ID, slug)
}

func sanitizeSlug(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	var builder strings.Builder
	builder.Grow(len(value))
	lastDash := false
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
			lastDash = false
		case r >= 'A' && r <= 'Z':
			builder.WriteRune(unicode.ToLower(r))
			lastDash = false
		case unicode.IsDigit(r):
			builder.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				builder.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(builder.String(), "-")
	if slug == "" {
		return ""
	}
	return slug
}
