package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizePipeline(); err != nil {
		return err
	}
	c.normalizeOpenNeuro()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.IntakeDir) != "" {
		if c.Paths.IntakeDir, err = expandPath(c.Paths.IntakeDir); err != nil {
			return fmt.Errorf("paths.intake_dir: %w", err)
		}
	} else {
		c.Paths.IntakeDir = ""
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DerivativesDir) == "" {
		c.Paths.DerivativesDir = filepath.Join(c.Paths.DataDir, "derivatives", "lossless")
	}
	if c.Paths.DerivativesDir, err = expandPath(c.Paths.DerivativesDir); err != nil {
		return fmt.Errorf("paths.derivatives_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ReportsDir) == "" {
		c.Paths.ReportsDir = filepath.Join(c.Paths.DerivativesDir, "reports")
	}
	if c.Paths.ReportsDir, err = expandPath(c.Paths.ReportsDir); err != nil {
		return fmt.Errorf("paths.reports_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePipeline() error {
	c.Pipeline.ConfigPath = strings.TrimSpace(c.Pipeline.ConfigPath)
	if c.Pipeline.ConfigPath == "" {
		return nil
	}
	expanded, err := expandPath(c.Pipeline.ConfigPath)
	if err != nil {
		return fmt.Errorf("pipeline.config_path: %w", err)
	}
	c.Pipeline.ConfigPath = expanded
	return nil
}

func (c *Config) normalizeOpenNeuro() {
	c.OpenNeuro.Endpoint = strings.TrimSpace(c.OpenNeuro.Endpoint)
	if c.OpenNeuro.Endpoint == "" {
		c.OpenNeuro.Endpoint = defaultOpenNeuroEndpoint
	}
	if c.OpenNeuro.RequestTimeout <= 0 {
		c.OpenNeuro.RequestTimeout = defaultOpenNeuroRequestTimeout
	}
	if c.OpenNeuro.DownloadTimeout <= 0 {
		c.OpenNeuro.DownloadTimeout = defaultOpenNeuroDownloadTimeout
	}
	if c.OpenNeuro.MaxRetries < 0 {
		c.OpenNeuro.MaxRetries = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
