package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lxe-core/lxe/internal/authz"
	"github.com/lxe-core/lxe/internal/config"
	"github.com/lxe-core/lxe/internal/locator"
	"github.com/lxe-core/lxe/internal/packager"
	"github.com/lxe-core/lxe/internal/progress"
	"github.com/lxe-core/lxe/internal/state"
)

func buildTestPackage(t *testing.T, dir string, configure func(*config.Config)) string {
	t.Helper()
	dist := filepath.Join(dir, "dist")
	if err := os.MkdirAll(dist, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dist, "run"), []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatalf("WriteFile run: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dist, "icon.svg"), []byte("<svg/>"), 0o644); err != nil {
		t.Fatalf("WriteFile icon: %v", err)
	}

	runtimePath := filepath.Join(dir, "runtime")
	if err := os.WriteFile(runtimePath, []byte("#!/bin/sh\necho stand-in runtime\n"), 0o755); err != nil {
		t.Fatalf("WriteFile runtime: %v", err)
	}

	cfg := &config.Config{}
	cfg.Package = config.Package{
		Name: "Demo", ID: "com.ex.demo", Version: "1.0.0",
		Executable: "run", Icon: "icon.svg", Categories: []string{"Utility"},
	}
	cfg.Build = config.Build{Input: "./dist", Compression: 3, Output: "./out.lxe"}
	cfg.Runtime = config.Runtime{Path: "./runtime"}
	if configure != nil {
		configure(cfg)
	}

	opts := &packager.Options{Config: cfg, BaseDir: dir}
	result, err := packager.Build(opts)
	if err != nil {
		t.Fatalf("packager.Build: %v", err)
	}
	return result.OutputPath
}

func locateTestPackage(t *testing.T, pkgPath string) *locator.PayloadInfo {
	t.Helper()
	f, err := os.Open(pkgPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	info, err := locator.Locate(f)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	return info
}

func TestInstallUninstallRoundTrip(t *testing.T) {
	buildDir := t.TempDir()
	pkgPath := buildTestPackage(t, buildDir, nil)
	info := locateTestPackage(t, pkgPath)

	home := t.TempDir()
	cfg := UserTargetAt(home)

	var events []string
	listener := func(e progress.Event) { events = append(events, e.String()) }

	if err := Install(context.Background(), pkgPath, info, cfg, authz.Fake{}, listener); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if len(events) == 0 {
		t.Errorf("expected progress events during install")
	}

	desktopPath := filepath.Join(cfg.applicationsDir(), "com.ex.demo.desktop")
	if _, err := os.Stat(desktopPath); err != nil {
		t.Errorf("desktop file missing: %v", err)
	}
	symlinkPath := filepath.Join(cfg.binDir(), "run")
	if _, err := os.Lstat(symlinkPath); err != nil {
		t.Errorf("launcher symlink missing: %v", err)
	}
	iconPath := filepath.Join(cfg.iconsDir(), "scalable", "apps", "com.ex.demo.svg")
	if _, err := os.Stat(iconPath); err != nil {
		t.Errorf("icon missing: %v", err)
	}
	runtimeCopy := filepath.Join(cfg.binDir(), "lxe-runtime")
	if _, err := os.Stat(runtimeCopy); err != nil {
		t.Errorf("runtime copy missing: %v", err)
	}

	m, err := state.Load(cfg.BaseDir, "com.ex.demo")
	if err != nil || m == nil {
		t.Fatalf("manifest should exist after install: %v", err)
	}
	if m.Version != "1.0.0" {
		t.Errorf("manifest version = %q, want 1.0.0", m.Version)
	}

	if err := Uninstall(context.Background(), "com.ex.demo", cfg, authz.Fake{}, nil); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}

	if _, err := os.Stat(desktopPath); !os.IsNotExist(err) {
		t.Errorf("desktop file should be removed")
	}
	if _, err := os.Lstat(symlinkPath); !os.IsNotExist(err) {
		t.Errorf("launcher symlink should be removed")
	}
	if _, err := os.Stat(cfg.appDir("com.ex.demo")); !os.IsNotExist(err) {
		t.Errorf("app directory should be removed")
	}
	if m, err := state.Load(cfg.BaseDir, "com.ex.demo"); err != nil || m != nil {
		t.Errorf("manifest should be gone after uninstall")
	}
}

func TestInstallRunsHooks(t *testing.T) {
	buildDir := t.TempDir()
	marker := filepath.Join(buildDir, "post-install-ran")

	pkgPath := buildTestPackage(t, buildDir, func(cfg *config.Config) {
		script := filepath.Join(buildDir, "dist", "post.sh")
		if err := os.WriteFile(script, []byte("#!/bin/sh\ntouch \""+marker+"\"\n"), 0o755); err != nil {
			t.Fatalf("WriteFile post.sh: %v", err)
		}
		cfg.Hooks.PostInstall = "post.sh"
	})
	info := locateTestPackage(t, pkgPath)

	home := t.TempDir()
	cfg := UserTargetAt(home)

	if err := Install(context.Background(), pkgPath, info, cfg, authz.Fake{}, nil); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("post_install hook should have run: %v", err)
	}
}

func TestRuntimeBinarySurvivesOtherAppsUninstall(t *testing.T) {
	home := t.TempDir()
	cfg := UserTargetAt(home)
	runtimeCopy := filepath.Join(cfg.binDir(), "lxe-runtime")

	buildDirA := t.TempDir()
	pkgA := buildTestPackage(t, buildDirA, nil)
	infoA := locateTestPackage(t, pkgA)
	if err := Install(context.Background(), pkgA, infoA, cfg, authz.Fake{}, nil); err != nil {
		t.Fatalf("Install A: %v", err)
	}

	buildDirB := t.TempDir()
	pkgB := buildTestPackage(t, buildDirB, func(c *config.Config) {
		c.Package.ID = "com.ex.other"
	})
	infoB := locateTestPackage(t, pkgB)
	if err := Install(context.Background(), pkgB, infoB, cfg, authz.Fake{}, nil); err != nil {
		t.Fatalf("Install B: %v", err)
	}

	if _, err := os.Stat(runtimeCopy); err != nil {
		t.Fatalf("runtime copy missing after both installs: %v", err)
	}

	if err := Uninstall(context.Background(), "com.ex.demo", cfg, authz.Fake{}, nil); err != nil {
		t.Fatalf("Uninstall A: %v", err)
	}
	if _, err := os.Stat(runtimeCopy); err != nil {
		t.Errorf("runtime copy should survive while com.ex.other is still installed: %v", err)
	}

	if err := Uninstall(context.Background(), "com.ex.other", cfg, authz.Fake{}, nil); err != nil {
		t.Fatalf("Uninstall B: %v", err)
	}
	if _, err := os.Stat(runtimeCopy); !os.IsNotExist(err) {
		t.Errorf("runtime copy should be removed once no manifests remain, err = %v", err)
	}
}

func TestInstallRefusesWhenLockHeld(t *testing.T) {
	buildDir := t.TempDir()
	pkgPath := buildTestPackage(t, buildDir, nil)
	info := locateTestPackage(t, pkgPath)

	cfg := UserTargetAt(t.TempDir())
	if err := os.MkdirAll(cfg.shareDir(), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	lockPath := filepath.Join(cfg.shareDir(), ".lxe-installing-com.ex.demo.lock")
	if err := os.WriteFile(lockPath, nil, 0o644); err != nil {
		t.Fatalf("WriteFile lock: %v", err)
	}

	err := Install(context.Background(), pkgPath, info, cfg, authz.Fake{}, nil)
	if err != ErrAlreadyInstalling {
		t.Fatalf("Install error = %v, want ErrAlreadyInstalling", err)
	}
}

func TestInstallSystemScopeRequiresAuthorization(t *testing.T) {
	buildDir := t.TempDir()
	pkgPath := buildTestPackage(t, buildDir, nil)
	info := locateTestPackage(t, pkgPath)

	cfg := UserTargetAt(t.TempDir())
	cfg.IsSystem = true

	err := Install(context.Background(), pkgPath, info, cfg, authz.Fake{Granted: false}, nil)
	if err == nil {
		t.Fatalf("expected authorization error")
	}
}

func TestUninstallRefusesWithoutManifest(t *testing.T) {
	cfg := UserTargetAt(t.TempDir())
	err := Uninstall(context.Background(), "com.ex.nonexistent", cfg, authz.Fake{}, nil)
	if err == nil {
		t.Fatalf("expected error for missing manifest")
	}
}

func TestVerifyRemovalIsSafeRejectsEscapingPath(t *testing.T) {
	cfg := UserTargetAt(t.TempDir())
	outside := filepath.Join(cfg.BaseDir, "..", "elsewhere")
	if err := verifyRemovalIsSafe(outside, cfg); err == nil {
		t.Errorf("expected rejection of a path escaping the share directory")
	}
}
