package installer

import (
	"errors"
	"os"
	"path/filepath"
)

// TargetConfig selects where an install or uninstall operates.
type TargetConfig struct {
	// BaseDir is {base}: a user data parent directory (e.g. ~/.local) for
	// user installs, or the system base directory (e.g. /usr) for system
	// installs.
	BaseDir  string
	IsSystem bool
}

// UserTarget resolves the user-scope base directory to ~/.local under the
// user's home directory. XDG_DATA_HOME is not consulted.
func UserTarget() (TargetConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return TargetConfig{}, err
	}
	return TargetConfig{BaseDir: filepath.Join(home, ".local"), IsSystem: false}, nil
}

// UserTargetAt overrides the base directory (the runtime CLI's
// --install-dir flag), still scoped as a user install.
func UserTargetAt(dir string) TargetConfig {
	return TargetConfig{BaseDir: dir, IsSystem: false}
}

// SystemTarget is the system-wide install scope.
func SystemTarget() TargetConfig {
	return TargetConfig{BaseDir: "/usr", IsSystem: true}
}

func (c TargetConfig) applicationsDir() string { return filepath.Join(c.BaseDir, "share", "applications") }
func (c TargetConfig) binDir() string          { return filepath.Join(c.BaseDir, "bin") }
func (c TargetConfig) iconsDir() string        { return filepath.Join(c.BaseDir, "share", "icons", "hicolor") }
func (c TargetConfig) shareDir() string        { return filepath.Join(c.BaseDir, "share") }
func (c TargetConfig) appDir(appID string) string { return filepath.Join(c.shareDir(), appID) }

// ErrAlreadyInstalling is returned when the install lock file for the
// app_id (.lxe-installing-{app_id}.lock in the share directory) already
// exists. Kept as a distinct sentinel so callers can decide whether to
// wait or fail.
var ErrAlreadyInstalling = errors.New("installer: another install for this app_id appears to be in progress")
