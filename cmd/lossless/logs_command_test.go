package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogsShowsRecentLines(t *testing.T) {
	env := setupCLITestEnv(t)

	logPath := filepath.Join(env.cfg.Paths.LogDir, currentLogName)
	for i := 1; i <= 15; i++ {
		if err := appendLine(logPath, fmt.Sprintf("entry %d", i)); err != nil {
			t.Fatalf("append log line: %v", err)
		}
	}

	out, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "entry 15")
	requireContains(t, out, "entry 6")
	if strings.Contains(out, "entry 5\n") {
		t.Fatalf("expected only the last 10 lines, got:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs -n 2: %v", err)
	}
	requireContains(t, out, "entry 14")
	requireContains(t, out, "entry 15")
	if strings.Contains(out, "entry 13") {
		t.Fatalf("expected only the last 2 lines, got:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"logs", "-n", "0"}, env.configPath)
	if err != nil {
		t.Fatalf("logs -n 0: %v", err)
	}
	requireContains(t, out, "entry 1")
	requireContains(t, out, "entry 15")
}

func TestLogsEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log entries available")
}

func TestTailLines(t *testing.T) {
	data := []byte("one\ntwo\nthree\n")

	got := tailLines(data, 2)
	if len(got) != 2 || got[0] != "two" || got[1] != "three" {
		t.Fatalf("unexpected tail: %v", got)
	}
	if got := tailLines(data, 0); len(got) != 3 {
		t.Fatalf("expected all lines for zero limit, got %v", got)
	}
	if got := tailLines(nil, 5); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	if got := tailLines([]byte("solo"), 5); len(got) != 1 || got[0] != "solo" {
		t.Fatalf("unexpected tail for unterminated line: %v", got)
	}
}
