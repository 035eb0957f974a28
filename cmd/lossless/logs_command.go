package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const currentLogName = "lossless.log"

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display recent log output",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logPath := filepath.Join(cfg.Paths.LogDir, currentLogName)
			stdout := cmd.OutOrStdout()

			data, err := os.ReadFile(logPath)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("read log file: %w", err)
			}

			printed := false
			for _, line := range tailLines(data, lines) {
				fmt.Fprintln(stdout, line)
				printed = true
			}
			if !follow {
				if !printed {
					fmt.Fprintln(stdout, "No log entries available")
				}
				return nil
			}

			return followLog(cmd, logPath, int64(len(data)))
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	return cmd
}

// tailLines returns the last limit lines of data. A limit of zero keeps
// everything.
func tailLines(data []byte, limit int) []string {
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil
	}
	all := strings.Split(text, "\n")
	if limit <= 0 || len(all) <= limit {
		return all
	}
	return all[len(all)-limit:]
}

// followLog polls the log file for appended bytes until the command context
// is cancelled. The current pointer is re-opened on every poll because each
// run relinks it at a fresh file.
func followLog(cmd *cobra.Command, logPath string, offset int64) error {
	stdout := cmd.OutOrStdout()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
		}

		info, err := os.Stat(logPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				offset = 0
				continue
			}
			return fmt.Errorf("stat log file: %w", err)
		}
		if info.Size() < offset {
			// The pointer was relinked at a new run log.
			offset = 0
		}
		if info.Size() == offset {
			continue
		}

		file, err := os.Open(logPath)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			file.Close()
			return fmt.Errorf("seek log file: %w", err)
		}
		chunk, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(chunk))
		for _, line := range tailLines(chunk, 0) {
			fmt.Fprintln(stdout, line)
		}
	}
}
