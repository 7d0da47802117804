package installer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lxe-core/lxe/internal/authz"
	"github.com/lxe-core/lxe/internal/lxeerr"
	"github.com/lxe-core/lxe/internal/progress"
	"github.com/lxe-core/lxe/internal/state"
)

// Uninstall reverses everything Install recorded in the manifest for
// appID, running the pre/post uninstall hooks (if any) around removal.
// The post_uninstall script is copied out of the app tree before it is
// deleted, since it must run after the tree is gone.
func Uninstall(ctx context.Context, appID string, cfg TargetConfig, az authz.Authorizer, listener progress.Listener) error {
	if cfg.IsSystem && !authz.IsRoot() {
		granted, err := az.IsAuthorized(ctx, authz.ActionUninstallSystem)
		if err != nil || !granted {
			return fmt.Errorf("%w: system uninstall requires administrator privileges", lxeerr.ErrAuthorizationDenied)
		}
	}

	m, err := state.Load(cfg.BaseDir, appID)
	if err != nil {
		return fmt.Errorf("%w: load manifest: %v", lxeerr.ErrExtractionFailed, err)
	}
	if m == nil {
		return fmt.Errorf("%w: no manifest recorded for %s", lxeerr.ErrUnsafeRemovalRefused, appID)
	}

	appDir := cfg.appDir(appID)
	if err := verifyRemovalIsSafe(appDir, cfg); err != nil {
		return err
	}

	emit := func(step string) {
		if listener != nil {
			listener(progress.InstallStep{Step: step, AppID: appID})
		}
	}
	log := logrus.WithField("app_id", appID)
	warn := func(step string, err error) {
		log.WithField("step", step).Warnf("non-fatal uninstall step failed: %v", err)
		if listener != nil {
			listener(progress.InstallStep{Step: step, AppID: appID, Warning: err.Error()})
		}
	}

	if m.PreUninstallHook != "" {
		if err := runHook(ctx, appDir, m.PreUninstallHook); err != nil {
			warn("pre_uninstall hook", err)
		}
	}

	// The post-uninstall hook must survive removal of appDir, so stage a
	// copy in a temp file ahead of time.
	var stagedPostHook string
	if m.PostUninstallHook != "" {
		if staged, err := stageHookCopy(appDir, m.PostUninstallHook); err == nil {
			stagedPostHook = staged
			defer os.Remove(stagedPostHook)
		} else {
			warn("stage post_uninstall hook", err)
		}
	}

	for _, path := range m.Files {
		if path == appDir {
			continue
		}
		// A launcher symlink is removed only while it still points into
		// this app's tree; another app may have replaced it since.
		if target, err := os.Readlink(path); err == nil && !strings.HasPrefix(target, appDir+string(filepath.Separator)) {
			continue
		}
		if err := removeInstalledFile(path); err != nil {
			warn("remove "+path, err)
		}
	}

	if err := os.RemoveAll(appDir); err != nil {
		warn("remove_tree", err)
	} else {
		emit("remove_tree")
	}

	if err := state.Delete(cfg.BaseDir, appID); err != nil {
		warn("delete manifest", err)
	} else {
		emit("manifest_deleted")
	}

	if err := removeRuntimeBinaryIfUnused(cfg); err != nil {
		warn("remove lxe-runtime", err)
	}

	if stagedPostHook != "" {
		cmd := exec.CommandContext(ctx, stagedPostHook)
		if err := cmd.Run(); err != nil {
			warn("post_uninstall hook", err)
		}
	}

	if listener != nil {
		listener(progress.Complete{AppID: appID})
	}
	return nil
}

// verifyRemovalIsSafe refuses to remove an appDir whose path does not
// resolve cleanly under cfg.shareDir(), guarding against a manifest or
// app_id crafted to point removal at an unrelated directory.
func verifyRemovalIsSafe(appDir string, cfg TargetConfig) error {
	shareDir := cfg.shareDir()
	rel, err := filepath.Rel(shareDir, appDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: app directory %s escapes %s", lxeerr.ErrUnsafeRemovalRefused, appDir, shareDir)
	}
	fi, err := os.Lstat(appDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: stat app directory: %v", lxeerr.ErrUnsafeRemovalRefused, err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("%w: app directory %s is a symlink", lxeerr.ErrUnsafeRemovalRefused, appDir)
	}
	return nil
}

// removeRuntimeBinaryIfUnused deletes the shared lxe-runtime copy under
// cfg.binDir() once the last manifest under cfg.BaseDir is gone; while
// any app remains installed, its desktop entry's Uninstall action still
// invokes it.
func removeRuntimeBinaryIfUnused(cfg TargetConfig) error {
	entries, err := os.ReadDir(state.Dir(cfg.BaseDir))
	if err != nil {
		if os.IsNotExist(err) {
			entries = nil
		} else {
			return err
		}
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".json") {
			return nil
		}
	}
	return removeInstalledFile(filepath.Join(cfg.binDir(), "lxe-runtime"))
}

func removeInstalledFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func stageHookCopy(appDir, relPath string) (string, error) {
	src := filepath.Join(appDir, relPath)
	b, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp("", "lxe-post-uninstall-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
