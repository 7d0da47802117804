package packager

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"github.com/lxe-core/lxe/internal/config"
	"github.com/lxe-core/lxe/internal/lxeerr"
	"github.com/lxe-core/lxe/internal/lxeformat"
	"github.com/lxe-core/lxe/internal/metadata"
	"github.com/lxe-core/lxe/internal/progress"
	"github.com/lxe-core/lxe/internal/signing"
)

// Options configures one build run.
type Options struct {
	Config *config.Config

	// BaseDir is the directory lxe.toml lives in; relative paths in the
	// config (input, script, output, license, key) resolve against it;
	// the icon path is relative to the input tree.
	BaseDir string

	// RuntimePath is the runtime binary to embed. If empty, it is
	// resolved from Config.Runtime.Path (relative to BaseDir) and must
	// exist.
	RuntimePath string

	// SkipScript disables step 1 (the pre-build script), matching the
	// builder CLI's --no-script flag.
	SkipScript bool

	Listener progress.Listener
}

// Result reports what Build produced.
type Result struct {
	OutputPath string
	Signed     bool
	SizeBytes  int64
}

func (o *Options) emit(e progress.Event) {
	if o.Listener != nil {
		o.Listener(e)
	}
}

func (o *Options) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(o.BaseDir, path)
}

// Build runs the full packager algorithm (§4.4): optional pre-build
// script, tar the input tree, zstd-compress it, digest it, build (and
// optionally sign) the metadata object, and assemble the final
// self-locating executable.
func Build(opts *Options) (*Result, error) {
	cfg := opts.Config

	if cfg.Build.Script != "" && !opts.SkipScript {
		if err := runBuildScript(opts.resolve(cfg.Build.Script), opts.BaseDir); err != nil {
			return nil, err
		}
	}

	input := opts.resolve(cfg.Build.Input)
	if info, err := os.Stat(input); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: input directory %s does not exist", lxeerr.ErrConfigInvalid, input)
	}
	if cfg.Package.Icon == "" {
		logrus.Warn("packager: no icon configured")
	} else if _, err := os.Stat(filepath.Join(input, cfg.Package.Icon)); err != nil {
		return nil, fmt.Errorf("%w: icon %s not found in input directory", lxeerr.ErrConfigInvalid, cfg.Package.Icon)
	}

	var tarBuf bytes.Buffer
	installSize, err := buildTar(input, &tarBuf, opts.Listener)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lxeerr.ErrConfigInvalid, err)
	}

	payload, err := compressZstd(tarBuf.Bytes(), cfg.Build.Compression, opts.Listener)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(payload)

	meta := buildMetadata(cfg, installSize, digest)
	if meta.Installer != nil && cfg.Installer.License != "" {
		text, err := os.ReadFile(opts.resolve(cfg.Installer.License))
		if err != nil {
			return nil, fmt.Errorf("%w: read license file: %v", lxeerr.ErrConfigInvalid, err)
		}
		meta.Installer.License = string(text)
	}

	signed := false
	if cfg.Security.Key != "" {
		keyPath := opts.resolve(cfg.Security.Key)
		if _, err := os.Stat(keyPath); err == nil {
			priv, err := signing.ReadKeyFile(keyPath)
			if err != nil {
				return nil, err
			}
			msg := append(metadata.SignableBytes(meta), digest[:]...)
			sig := signing.Sign(priv, msg)
			pub, ok := priv.Public().(ed25519.PublicKey)
			if !ok {
				return nil, fmt.Errorf("packager: unexpected public key type from signing key")
			}
			meta.PublicKey = signing.EncodePublicKey(pub)
			meta.Signature = signing.EncodeSignature(sig)
			signed = true
		}
	}
	if !signed {
		logrus.Warn("packager: no signing key found; building an unsigned package")
	}

	runtimeBytes, err := resolveRuntime(opts)
	if err != nil {
		return nil, err
	}

	outPath := opts.resolve(cfg.Build.Output)
	if outPath == "" {
		outPath = filepath.Join(opts.BaseDir, cfg.Package.Name+".lxe")
	}

	if err := assemble(outPath, runtimeBytes, meta, digest, payload); err != nil {
		return nil, err
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return nil, fmt.Errorf("packager: stat output file: %w", err)
	}

	opts.emit(progress.BuildComplete{OutputPath: outPath, Signed: signed, SizeBytes: info.Size()})

	return &Result{OutputPath: outPath, Signed: signed, SizeBytes: info.Size()}, nil
}

func resolveRuntime(opts *Options) ([]byte, error) {
	path := opts.RuntimePath
	if path == "" {
		path = opts.resolve(opts.Config.Runtime.Path)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: no runtime binary configured; set [runtime].path", lxeerr.ErrRuntimeNotFound)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lxeerr.ErrRuntimeNotFound, err)
	}
	return b, nil
}

func runBuildScript(scriptPath, dir string) error {
	cmd := exec.Command(scriptPath)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v", lxeerr.ErrBuildScriptFailed, err)
	}
	return nil
}

func compressZstd(tarBytes []byte, level int, emit progress.Listener) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("packager: create zstd encoder: %w", err)
	}
	if emit != nil {
		emit(progress.BuildProgress{Phase: "compress", BytesRead: int64(len(tarBytes))})
	}
	if _, err := enc.Write(tarBytes); err != nil {
		enc.Close()
		return nil, fmt.Errorf("packager: zstd compress: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("packager: close zstd encoder: %w", err)
	}
	return buf.Bytes(), nil
}

func buildMetadata(cfg *config.Config, installSize int64, digest [32]byte) *metadata.Metadata {
	m := &metadata.Metadata{
		FormatVersion:   metadata.FormatVersion,
		AppID:           cfg.Package.ID,
		Name:            cfg.Package.Name,
		Version:         cfg.Package.Version,
		Arch:            runtime.GOARCH,
		InstallSize:     uint64(installSize),
		Exec:            cfg.Package.Executable,
		Icon:            cfg.Package.Icon,
		Categories:      cfg.Package.Categories,
		Description:     cfg.Package.Description,
		PayloadChecksum: hex.EncodeToString(digest[:]),
		Terminal:        cfg.Package.Terminal,
		WMClass:         cfg.Package.WMClass,
	}
	if hasInstallerBranding(cfg.Installer) {
		m.Installer = &metadata.Installer{
			WelcomeTitle:   cfg.Installer.WelcomeTitle,
			WelcomeText:    cfg.Installer.WelcomeText,
			FinishTitle:    cfg.Installer.FinishTitle,
			FinishText:     cfg.Installer.FinishText,
			AccentColor:    cfg.Installer.AccentColor,
			Theme:          cfg.Installer.Theme,
			ShowLaunch:     cfg.Installer.ShowLaunch,
			License:        cfg.Installer.License,
			Banner:         cfg.Installer.Banner,
			Logo:           cfg.Installer.Logo,
			AllowCustomDir: cfg.Installer.AllowCustomDir,
		}
	}
	if hasHooks(cfg.Hooks) {
		m.Hooks = &metadata.Hooks{
			PreInstall:    cfg.Hooks.PreInstall,
			PostInstall:   cfg.Hooks.PostInstall,
			PreUninstall:  cfg.Hooks.PreUninstall,
			PostUninstall: cfg.Hooks.PostUninstall,
		}
	}
	return m
}

func hasInstallerBranding(i config.Installer) bool {
	return i.WelcomeTitle != "" || i.WelcomeText != "" || i.FinishTitle != "" ||
		i.FinishText != "" || i.AccentColor != "" || i.Theme != "" || i.License != "" ||
		i.Banner != "" || i.Logo != "" || i.AllowCustomDir
}

func hasHooks(h config.Hooks) bool {
	return h.PreInstall != "" || h.PostInstall != "" || h.PreUninstall != "" || h.PostUninstall != ""
}

// assemble writes the final package file: runtime bytes, header, digest,
// payload, footer — in exactly that order, with the footer emitted last
// so any post-processing that preserves the file tail preserves
// locatability.
func assemble(outPath string, runtimeBytes []byte, meta *metadata.Metadata, digest [32]byte, payload []byte) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("packager: create output file: %w", err)
	}
	defer f.Close()

	var written int64
	n, err := f.Write(runtimeBytes)
	written += int64(n)
	if err != nil {
		return fmt.Errorf("packager: write runtime bytes: %w", err)
	}
	headerOffset := written

	metaBytes, err := metadata.Serialize(meta)
	if err != nil {
		return fmt.Errorf("packager: serialize metadata: %w", err)
	}

	hn, err := lxeformat.WriteHeader(f, metaBytes)
	written += hn
	if err != nil {
		return fmt.Errorf("packager: write header: %w", err)
	}

	n, err = f.Write(digest[:])
	written += int64(n)
	if err != nil {
		return fmt.Errorf("packager: write digest: %w", err)
	}

	n, err = f.Write(payload)
	written += int64(n)
	if err != nil {
		return fmt.Errorf("packager: write payload: %w", err)
	}

	if _, err := lxeformat.WriteFooter(f, uint64(headerOffset)); err != nil {
		return fmt.Errorf("packager: write footer: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("packager: close output file: %w", err)
	}
	if err := os.Chmod(outPath, 0o755); err != nil {
		return fmt.Errorf("packager: chmod output file: %w", err)
	}
	return nil
}
