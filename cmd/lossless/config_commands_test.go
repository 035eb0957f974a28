package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	// validate resolves through HOME, which points at the test config
	out, _, err := runCLI(t, []string{"config", "validate"}, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Pipeline recipe valid")

	tmp := t.TempDir()
	target := filepath.Join(tmp, "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already-exists error, got %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, env.configPath)
	if err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
}

func TestConfigInitRecipe(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(t.TempDir(), "recipe.yaml")
	out, _, err := runCLI(t, []string{"config", "init", "--recipe", "--path", target}, env.configPath)
	if err != nil {
		t.Fatalf("config init --recipe: %v", err)
	}
	requireContains(t, out, "Wrote default pipeline recipe")

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read recipe: %v", err)
	}
	if !strings.Contains(string(data), "flag_channels:") {
		t.Fatalf("expected recipe YAML with flag_channels, got:\n%s", data)
	}
}

func TestConfigShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "# "+env.configPath)
	requireContains(t, out, "[paths]")
	requireContains(t, out, env.cfg.Paths.DataDir)

	out, _, err = runCLI(t, []string{"config", "show", "--recipe"}, env.configPath)
	if err != nil {
		t.Fatalf("config show --recipe: %v", err)
	}
	requireContains(t, out, "# built-in defaults (hash ")
	requireContains(t, out, "flag_channels:")
}
