package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lxe-core/lxe/internal/lxeerr"
)

// Package holds application identity, the [package] table.
type Package struct {
	Name        string   `toml:"name"`
	ID          string   `toml:"id"`
	Version     string   `toml:"version"`
	Executable  string   `toml:"executable"`
	Icon        string   `toml:"icon"`
	Description string   `toml:"description"`
	Categories  []string `toml:"categories"`
	Terminal    bool     `toml:"terminal"`
	WMClass     string   `toml:"wm_class"`
}

// Build holds build-time knobs, the [build] table.
type Build struct {
	Input       string `toml:"input"`
	Script      string `toml:"script"`
	Compression int    `toml:"compression"`
	Output      string `toml:"output"`
}

// Runtime holds the [runtime] table.
type Runtime struct {
	Path string `toml:"path"`
}

// Security holds the [security] table.
type Security struct {
	Key string `toml:"key"`
}

// Installer holds cosmetic wizard knobs, the [installer] table.
type Installer struct {
	WelcomeTitle   string `toml:"welcome_title"`
	WelcomeText    string `toml:"welcome_text"`
	FinishTitle    string `toml:"finish_title"`
	FinishText     string `toml:"finish_text"`
	AccentColor    string `toml:"accent_color"`
	Theme          string `toml:"theme"`
	ShowLaunch     bool   `toml:"show_launch"`
	License        string `toml:"license"`
	Banner         string `toml:"banner"`
	Logo           string `toml:"logo"`
	AllowCustomDir bool   `toml:"allow_custom_dir"`
}

// Hooks holds the [hooks] table (supplemented feature; see
// internal/metadata.Hooks for the runtime-side counterpart).
type Hooks struct {
	PreInstall    string `toml:"pre_install"`
	PostInstall   string `toml:"post_install"`
	PreUninstall  string `toml:"pre_uninstall"`
	PostUninstall string `toml:"post_uninstall"`
}

// Config is the full decoded lxe.toml document.
type Config struct {
	Package   Package   `toml:"package"`
	Build     Build     `toml:"build"`
	Runtime   Runtime   `toml:"runtime"`
	Security  Security  `toml:"security"`
	Installer Installer `toml:"installer"`
	Hooks     Hooks     `toml:"hooks"`
}

func defaults() Config {
	return Config{
		Build: Build{
			Input:       "./dist",
			Compression: 19,
		},
		Installer: Installer{
			ShowLaunch: true,
		},
	}
}

// Load parses path into a Config, applying defaults and enforcing strict
// unknown-key checking on [package] and [build] — the rest of the
// document tolerates unknown keys for forward compatibility.
func Load(path string) (*Config, error) {
	cfg := defaults()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", lxeerr.ErrConfigInvalid, path, err)
	}
	for _, key := range meta.Undecoded() {
		top := key.String()
		if strings.HasPrefix(top, "package.") || strings.HasPrefix(top, "build.") ||
			top == "package" || top == "build" {
			return nil, fmt.Errorf("%w: unknown key %q in %s", lxeerr.ErrConfigInvalid, top, path)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces §4.4's configuration surface rules: id must contain
// a dot, compression must be in [1, 22], and input must be non-empty
// (existence on disk is checked later, after any build script runs).
func (c *Config) Validate() error {
	if c.Package.Name == "" {
		return fmt.Errorf("%w: package.name is required", lxeerr.ErrConfigInvalid)
	}
	if !strings.Contains(c.Package.ID, ".") {
		return fmt.Errorf("%w: package.id must be reverse-DNS (contain a dot): %q", lxeerr.ErrConfigInvalid, c.Package.ID)
	}
	if c.Package.Version == "" {
		return fmt.Errorf("%w: package.version is required", lxeerr.ErrConfigInvalid)
	}
	if c.Package.Executable == "" {
		return fmt.Errorf("%w: package.executable is required", lxeerr.ErrConfigInvalid)
	}
	if c.Build.Compression < 1 || c.Build.Compression > 22 {
		return fmt.Errorf("%w: build.compression %d out of range [1, 22]", lxeerr.ErrConfigInvalid, c.Build.Compression)
	}
	if c.Build.Input == "" {
		return fmt.Errorf("%w: build.input must not be empty", lxeerr.ErrConfigInvalid)
	}
	return nil
}
