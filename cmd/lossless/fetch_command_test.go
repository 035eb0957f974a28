package main

import (
	"strings"
	"testing"
)

func TestFetchListKnownDatasets(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"fetch", "--list"}, env.configPath)
	if err != nil {
		t.Fatalf("fetch --list: %v", err)
	}
	requireContains(t, out, "ds002778")
	requireContains(t, out, "UC San Diego")
	requireContains(t, out, "pd6")
}

func TestFetchRequiresDatasetID(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"fetch"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "dataset id required") {
		t.Fatalf("expected dataset id error, got %v", err)
	}
}
