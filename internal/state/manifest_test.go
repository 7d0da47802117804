package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveLoadDeleteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{
		AppID:       "com.ex.demo",
		Name:        "Demo",
		Version:     "1.0.0",
		InstalledAt: time.Now().UTC().Truncate(time.Second),
		IsSystem:    false,
		Files:       []string{filepath.Join(dir, "share/com.ex.demo/run")},
	}
	if err := Save(dir, m); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(dir, "com.ex.demo")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil || loaded.Version != "1.0.0" || len(loaded.Files) != 1 {
		t.Fatalf("unexpected loaded manifest: %+v", loaded)
	}

	if err := Delete(dir, "com.ex.demo"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	again, err := Load(dir, "com.ex.demo")
	if err != nil {
		t.Fatalf("Load after delete: %v", err)
	}
	if again != nil {
		t.Errorf("expected nil manifest after delete, got %+v", again)
	}
}

func TestLoadMissingReturnsNilNoError(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(dir, "nonexistent")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil for missing manifest")
	}
}

func TestCompareVersionsNumeric(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.1.0", -1},
		{"1.10.0", "1.9.0", 1}, // numeric, not lexicographic
		{"2.0.0", "1.9.9", 1},
		{"1.0", "1.0.0", 0},
	}
	for _, c := range cases {
		if got := CompareVersions(c.a, c.b); got != c.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestDetectFresh(t *testing.T) {
	dir := t.TempDir()
	state, _, err := Detect(filepath.Join(dir, "missing.desktop"), "1.0.0")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if state != Fresh {
		t.Errorf("state = %v, want Fresh", state)
	}
}

func TestDetectUpgradeableAndCorrupted(t *testing.T) {
	dir := t.TempDir()
	exec := filepath.Join(dir, "run")
	os.WriteFile(exec, []byte("#!/bin/sh\n"), 0o755)

	desktop := filepath.Join(dir, "app.desktop")
	content := "[Desktop Entry]\nExec=" + exec + "\nX-LXE-Version=1.0.0\n"
	os.WriteFile(desktop, []byte(content), 0o644)

	st, ver, err := Detect(desktop, "1.1.0")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if st != Upgradeable || ver != "1.0.0" {
		t.Errorf("got state=%v version=%q, want Upgradeable/1.0.0", st, ver)
	}

	os.Remove(exec)
	st, _, err = Detect(desktop, "1.1.0")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if st != Corrupted {
		t.Errorf("got state=%v, want Corrupted after exec removed", st)
	}
}

func TestDetectIgnoresExecArgs(t *testing.T) {
	dir := t.TempDir()
	exec := filepath.Join(dir, "run")
	os.WriteFile(exec, []byte("#!/bin/sh\n"), 0o755)

	desktop := filepath.Join(dir, "app.desktop")
	content := "[Desktop Entry]\nExec=" + exec + " --flag %u\nX-LXE-Version=1.0.0\n"
	os.WriteFile(desktop, []byte(content), 0o644)

	st, _, err := Detect(desktop, "1.0.0")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if st != Installed {
		t.Errorf("got state=%v, want Installed (exec_args should not cause Corrupted)", st)
	}
}
