package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "lxe.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[package]
name = "Demo"
id = "com.ex.demo"
version = "1.0.0"
executable = "run"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Build.Input != "./dist" {
		t.Errorf("Build.Input = %q, want ./dist default", cfg.Build.Input)
	}
	if cfg.Build.Compression != 19 {
		t.Errorf("Build.Compression = %d, want 19 default", cfg.Build.Compression)
	}
	if !cfg.Installer.ShowLaunch {
		t.Errorf("Installer.ShowLaunch should default true")
	}
}

func TestLoadRejectsMissingDot(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[package]
name = "Demo"
id = "demo"
version = "1.0.0"
executable = "run"
`)
	if _, err := Load(path); err == nil {
		t.Errorf("expected error for non-reverse-DNS id")
	}
}

func TestLoadRejectsBadCompression(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[package]
name = "Demo"
id = "com.ex.demo"
version = "1.0.0"
executable = "run"

[build]
compression = 99
`)
	if _, err := Load(path); err == nil {
		t.Errorf("expected error for out-of-range compression")
	}
}

func TestLoadRejectsUnknownPackageKey(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[package]
name = "Demo"
id = "com.ex.demo"
version = "1.0.0"
executable = "run"
bogus = "nope"
`)
	if _, err := Load(path); err == nil {
		t.Errorf("expected error for unknown [package] key")
	}
}

func TestLoadToleratesUnknownInstallerKey(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[package]
name = "Demo"
id = "com.ex.demo"
version = "1.0.0"
executable = "run"

[installer]
some_future_knob = "fine"
`)
	if _, err := Load(path); err != nil {
		t.Errorf("unexpected error for unknown [installer] key: %v", err)
	}
}
