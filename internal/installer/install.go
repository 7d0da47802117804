package installer

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lxe-core/lxe/internal/authz"
	"github.com/lxe-core/lxe/internal/extractor"
	"github.com/lxe-core/lxe/internal/locator"
	"github.com/lxe-core/lxe/internal/lxeerr"
	"github.com/lxe-core/lxe/internal/metadata"
	"github.com/lxe-core/lxe/internal/progress"
	"github.com/lxe-core/lxe/internal/state"
)

// Install performs §4.5.4 in full: authorize (system scope only),
// extract, then run every idempotent post-placement step in order,
// persisting the manifest on success.
func Install(ctx context.Context, pkgPath string, info *locator.PayloadInfo, cfg TargetConfig, az authz.Authorizer, listener progress.Listener) error {
	log := logrus.WithField("app_id", info.Metadata.AppID)

	if cfg.IsSystem && !authz.IsRoot() {
		granted, err := az.IsAuthorized(ctx, authz.ActionInstallSystem)
		if err != nil || !granted {
			return fmt.Errorf("%w: system install requires administrator privileges", lxeerr.ErrAuthorizationDenied)
		}
	}

	if err := os.MkdirAll(cfg.shareDir(), 0o755); err != nil {
		return fmt.Errorf("%w: create share dir: %v", lxeerr.ErrExtractionFailed, err)
	}

	unlock, err := acquireInstallLock(cfg.shareDir(), info.Metadata.AppID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := extractor.Extract(ctx, pkgPath, info, cfg.shareDir(), info.Metadata.AppID, listener); err != nil {
		return err
	}

	appDir := cfg.appDir(info.Metadata.AppID)
	var files []string
	emit := func(step string) {
		if listener != nil {
			listener(progress.InstallStep{Step: step, AppID: info.Metadata.AppID})
		}
	}
	warn := func(step string, err error) {
		log.WithField("step", step).Warnf("non-fatal install step failed: %v", err)
		if listener != nil {
			listener(progress.InstallStep{Step: step, AppID: info.Metadata.AppID, Warning: err.Error()})
		}
	}

	if info.Metadata.Hooks != nil && info.Metadata.Hooks.PreInstall != "" {
		if err := runHook(ctx, appDir, info.Metadata.Hooks.PreInstall); err != nil {
			warn("pre_install hook", err)
		}
	}

	// lxe-runtime is shared across every app installed under cfg.BaseDir,
	// so it is deliberately not added to this app's manifest Files: that
	// list is "what this app's uninstall may delete", and a copy serving
	// other apps must survive this one's uninstall (see removeRuntimeBinaryIfUnused).
	runtimeCopy := filepath.Join(cfg.binDir(), "lxe-runtime")
	if err := copyRuntimeBinary(pkgPath, runtimeCopy); err != nil {
		return fmt.Errorf("%w: copy runtime binary: %v", lxeerr.ErrExtractionFailed, err)
	}
	emit("copy_runtime")

	if !cfg.IsSystem {
		if err := ensurePathEntry(cfg.binDir()); err != nil {
			warn("ensure_path_entry", err)
		} else {
			emit("ensure_path_entry")
		}
	}

	desktopPath, err := writeDesktopEntry(info.Metadata, cfg, runtimeCopy)
	if err != nil {
		return fmt.Errorf("%w: write desktop entry: %v", lxeerr.ErrExtractionFailed, err)
	}
	files = append(files, desktopPath)
	emit("desktop_entry")

	symlinkPath := filepath.Join(cfg.binDir(), filepath.Base(info.Metadata.Exec))
	if err := createLauncherSymlink(symlinkPath, filepath.Join(appDir, info.Metadata.Exec)); err != nil {
		return fmt.Errorf("%w: create launcher symlink: %v", lxeerr.ErrExtractionFailed, err)
	}
	files = append(files, symlinkPath)
	emit("launcher_symlink")

	if info.Metadata.Icon != "" {
		iconPath, err := installIcon(appDir, info.Metadata, cfg)
		if err != nil {
			warn("install_icon", err)
		} else {
			files = append(files, iconPath)
			refreshIconCache(cfg.iconsDir())
			emit("install_icon")
		}
	}

	if info.Metadata.Hooks != nil && info.Metadata.Hooks.PostInstall != "" {
		if err := runHook(ctx, appDir, info.Metadata.Hooks.PostInstall); err != nil {
			warn("post_install hook", err)
		}
	}

	files = append(files, appDir)
	m := &state.Manifest{
		AppID:       info.Metadata.AppID,
		Name:        info.Metadata.Name,
		Version:     info.Metadata.Version,
		InstalledAt: time.Now().UTC(),
		IsSystem:    cfg.IsSystem,
		Files:       files,
	}
	if info.Metadata.Hooks != nil {
		m.PreUninstallHook = info.Metadata.Hooks.PreUninstall
		m.PostUninstallHook = info.Metadata.Hooks.PostUninstall
	}
	if err := state.Save(cfg.BaseDir, m); err != nil {
		return fmt.Errorf("%w: persist manifest: %v", lxeerr.ErrExtractionFailed, err)
	}
	emit("manifest_persisted")

	if listener != nil {
		listener(progress.Complete{AppID: info.Metadata.AppID})
	}
	return nil
}

// acquireInstallLock takes an exclusive lock file for appID under
// shareDir so two concurrent installs of the same app never race on the
// same staging directory. The returned func releases it; callers must
// defer it immediately.
func acquireInstallLock(shareDir, appID string) (func(), error) {
	lockPath := filepath.Join(shareDir, ".lxe-installing-"+appID+".lock")
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrAlreadyInstalling
		}
		return nil, fmt.Errorf("%w: acquire install lock: %v", lxeerr.ErrExtractionFailed, err)
	}
	f.Close()
	return func() { os.Remove(lockPath) }, nil
}

func runHook(ctx context.Context, appDir, relPath string) error {
	scriptPath := filepath.Join(appDir, relPath)
	cmd := exec.CommandContext(ctx, scriptPath)
	cmd.Dir = appDir
	return cmd.Run()
}

func copyRuntimeBinary(pkgPath, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	// The currently running executable IS the runtime; copying it forward
	// means a later uninstall works even after the original package file
	// is gone.
	src, err := os.Open(pkgPath)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp := dest + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := copyAll(out, src); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

func copyAll(dst *os.File, src *os.File) (int64, error) {
	buf := make([]byte, 1<<20)
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
	}
}

// ensurePathEntry appends an export stanza for binDir to the first
// existing shell config among .zshrc, .bashrc, .profile, creating
// .profile if none exist. Skipped entirely for system installs.
func ensurePathEntry(binDir string) error {
	if pathContains(os.Getenv("PATH"), binDir) {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	candidates := []string{".zshrc", ".bashrc", ".profile"}
	stanza := fmt.Sprintf("\n# added by lxe\nexport PATH=\"%s:$PATH\"\n", binDir)

	for _, name := range candidates {
		path := filepath.Join(home, name)
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if strings.Contains(string(b), binDir) {
			return nil
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = f.WriteString(stanza)
		return err
	}

	path := filepath.Join(home, ".profile")
	return os.WriteFile(path, []byte(stanza), 0o644)
}

func pathContains(pathEnv, dir string) bool {
	for _, entry := range strings.Split(pathEnv, ":") {
		if entry == dir {
			return true
		}
	}
	return false
}

func writeDesktopEntry(m *metadata.Metadata, cfg TargetConfig, runtimePath string) (string, error) {
	if err := os.MkdirAll(cfg.applicationsDir(), 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(cfg.applicationsDir(), m.DesktopFilename())

	execPath := filepath.Join(cfg.appDir(m.AppID), m.Exec)
	if m.ExecArgs != "" {
		execPath = execPath + " " + m.ExecArgs
	}

	icon := m.AppID
	if m.Icon != "" {
		iconPath := filepath.Join(cfg.appDir(m.AppID), m.Icon)
		if _, err := os.Stat(iconPath); err == nil {
			icon = iconPath
		}
	}
	comment := m.Description
	if comment == "" {
		comment = m.Name
	}
	terminal := "false"
	if m.Terminal {
		terminal = "true"
	}

	content := fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=%s
Comment=%s
Exec=%s
Icon=%s
Terminal=%s
Categories=%s
StartupWMClass=%s
X-LXE-Version=%s
X-LXE-AppId=%s
Actions=Uninstall;

[Desktop Action Uninstall]
Name=Uninstall %s
Exec=%s --uninstall-gui %s
`,
		m.Name, comment, execPath, icon, terminal, m.CategoriesString(),
		m.WMClassOrDefault(), m.Version, m.AppID,
		m.Name, runtimePath, m.AppID)

	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return "", err
	}
	return path, nil
}

func createLauncherSymlink(linkPath, target string) error {
	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		return err
	}
	if _, err := os.Lstat(linkPath); err == nil {
		if err := os.Remove(linkPath); err != nil {
			return err
		}
	}
	return os.Symlink(target, linkPath)
}

func iconSizeDir(iconFile string) string {
	if strings.HasSuffix(iconFile, ".svg") {
		return "scalable"
	}
	return "48x48"
}

func installIcon(appDir string, m *metadata.Metadata, cfg TargetConfig) (string, error) {
	src := filepath.Join(appDir, m.Icon)
	ext := strings.TrimPrefix(filepath.Ext(m.Icon), ".")
	sizeDir := iconSizeDir(m.Icon)
	destDir := filepath.Join(cfg.iconsDir(), sizeDir, "apps")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(destDir, m.AppID+"."+ext)

	in, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dest, in, 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

func refreshIconCache(hicolorDir string) {
	cmd := exec.Command("gtk-update-icon-cache", "-f", hicolorDir)
	if err := cmd.Run(); err != nil {
		// best effort: logged as a warning, the install proceeds
		logrus.WithField("step", "refresh_icon_cache").Warnf("icon cache refresh failed: %v", err)
	}
}
