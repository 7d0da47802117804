// Command lxe is the single self-extracting-installer binary: the same
// executable acts as the builder CLI during development and as the
// runtime installer once a payload has been appended to it (§2, §6).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.yaml.in/yaml/v3"

	"github.com/lxe-core/lxe/internal/authz"
	"github.com/lxe-core/lxe/internal/config"
	"github.com/lxe-core/lxe/internal/installer"
	"github.com/lxe-core/lxe/internal/locator"
	"github.com/lxe-core/lxe/internal/lxeerr"
	"github.com/lxe-core/lxe/internal/packager"
	"github.com/lxe-core/lxe/internal/progress"
	"github.com/lxe-core/lxe/internal/signing"
	"github.com/lxe-core/lxe/internal/state"
)

var log = logrus.StandardLogger()

// processStart is captured at package init so --measure-startup reflects
// time since process launch, not time since flag parsing began.
var processStart = time.Now()

func main() {
	self, err := os.Executable()
	if err != nil {
		log.Fatalf("lxe: cannot resolve own executable path: %v", err)
	}

	info, err := locateSelf(self)
	if err != nil {
		if errors.Is(err, lxeerr.ErrNoPayload) {
			runBuilder(os.Args[1:])
			return
		}
		log.Fatalf("lxe: %v", err)
	}
	runRuntime(self, info, os.Args[1:])
}

func locateSelf(path string) (*locator.PayloadInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open self: %w", err)
	}
	defer f.Close()
	return locator.Locate(f)
}

// --- builder CLI -----------------------------------------------------

func runBuilder(args []string) {
	if len(args) == 0 {
		printBuilderUsage()
		os.Exit(1)
	}
	switch args[0] {
	case "build":
		cmdBuild(args[1:])
	case "init":
		cmdInit(args[1:])
	case "key":
		cmdKey(args[1:])
	case "verify":
		cmdVerify(args[1:])
	case "runtime":
		cmdRuntime(args[1:])
	case "uninstall":
		cmdUninstall(args[1:])
	case "self-update":
		fmt.Println("lxe: self-update is out of scope for this core")
	case "-h", "--help", "help":
		printBuilderUsage()
	default:
		printBuilderUsage()
		os.Exit(1)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

func printBuilderUsage() {
	fmt.Println("Usage: lxe <command> [flags]")
	fmt.Println("\nCommands:")
	fmt.Println("  build              Build a package from ./lxe.toml")
	fmt.Println("  init               Write a starter lxe.toml")
	fmt.Println("  key generate       Create an Ed25519 signing keypair")
	fmt.Println("  verify FILE        Check a package's self-location and signature")
	fmt.Println("  runtime download   Report the cached runtime (no download source is configured)")
	fmt.Println("  runtime status     Show the cached runtime binary's status")
	fmt.Println("  uninstall ID       Remove an installed application")
	fmt.Println("  self-update        (out of scope)")
}

func cmdBuild(args []string) {
	fs := newFlagSet("build")
	configPath := fs.String("config", "./lxe.toml", "path to the build configuration")
	noScript := fs.Bool("no-script", false, "skip the pre-build script")
	silent := fs.Bool("silent", false, "suppress non-error output")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("lxe build: %v", err)
	}

	listener := progress.Listener(nil)
	if !*silent {
		listener = func(e progress.Event) { fmt.Println(e.String()) }
	}

	opts := &packager.Options{
		Config:     cfg,
		BaseDir:    filepath.Dir(*configPath),
		SkipScript: *noScript,
		Listener:   listener,
	}
	result, err := packager.Build(opts)
	if err != nil {
		log.Fatalf("lxe build: %v", err)
	}
	fmt.Printf("built %s (%d bytes, signed=%v)\n", result.OutputPath, result.SizeBytes, result.Signed)
}

func cmdInit(args []string) {
	fs := newFlagSet("init")
	fs.Bool("yes", false, "accept detected defaults without prompting (init never prompts)")
	preset := fs.String("preset", "", "starter preset: tauri, python, or electron")
	fs.Parse(args)

	const path = "./lxe.toml"
	if _, err := os.Stat(path); err == nil {
		log.Fatalf("lxe init: %s already exists; refusing to overwrite", path)
	}

	resolved := *preset
	descriptor, err := detectProjectDescriptor(".")
	if err != nil {
		log.Warnf("lxe init: project descriptor detection skipped: %v", err)
	}
	if resolved == "" && descriptor != nil {
		resolved = descriptor.Preset
	}

	body := starterTOML(resolved, descriptor)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		log.Fatalf("lxe init: %v", err)
	}
	fmt.Printf("wrote %s\n", path)
}

// projectDescriptor is the handful of fields an `init` preset loader can
// pick up from a project's own YAML descriptor (e.g. a Tauri
// `tauri.conf.yaml`-style file) ahead of falling back to the built-in
// preset defaults.
type projectDescriptor struct {
	Preset     string `yaml:"preset"`
	Name       string `yaml:"name"`
	ID         string `yaml:"id"`
	Executable string `yaml:"executable"`
}

// detectProjectDescriptor looks for a "lxe.project.yaml" sidecar in dir
// and, if present, parses it for init's auto-detection step (§6 builder
// CLI `init [--preset ...]`). Absence is not an error.
func detectProjectDescriptor(dir string) (*projectDescriptor, error) {
	path := filepath.Join(dir, "lxe.project.yaml")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var d projectDescriptor
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &d, nil
}

func starterTOML(preset string, descriptor *projectDescriptor) string {
	name, id, exec := "My Application", "com.example.app", "run"
	switch preset {
	case "tauri":
		exec = "my-tauri-app"
	case "python":
		exec = "run.sh"
	case "electron":
		exec = "electron-app"
	}
	if descriptor != nil {
		if descriptor.Name != "" {
			name = descriptor.Name
		}
		if descriptor.ID != "" {
			id = descriptor.ID
		}
		if descriptor.Executable != "" {
			exec = descriptor.Executable
		}
	}
	return fmt.Sprintf(`[package]
name = "%s"
id = "%s"
version = "0.1.0"
executable = "%s"

[build]
input = "./dist"
compression = 19

[runtime]
path = "./lxe-runtime"
`, name, id, exec)
}

func cmdKey(args []string) {
	if len(args) == 0 || args[0] != "generate" {
		fmt.Println("Usage: lxe key generate [--output PATH]")
		os.Exit(1)
	}
	fs := newFlagSet("key generate")
	output := fs.String("output", "./lxe.key", "path for the new key file")
	fs.Parse(args[1:])

	kp, err := signing.GenerateKeyPair()
	if err != nil {
		log.Fatalf("lxe key generate: %v", err)
	}
	if err := signing.WriteKeyFile(*output, kp.Private); err != nil {
		log.Fatalf("lxe key generate: %v", err)
	}
	fmt.Printf("wrote %s (public key: %s)\n", *output, signing.EncodePublicKey(kp.Public))
}

func cmdVerify(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: lxe verify FILE")
		os.Exit(1)
	}
	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("lxe verify: %v", err)
	}
	defer f.Close()

	info, err := locator.Locate(f)
	if errors.Is(err, lxeerr.ErrUnauthenticPackage) {
		fmt.Println("Signature is INVALID")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("lxe verify: %v", err)
	}

	fmt.Printf("app_id:  %s\n", info.Metadata.AppID)
	fmt.Printf("name:    %s\n", info.Metadata.Name)
	fmt.Printf("version: %s\n", info.Metadata.Version)

	if !info.Metadata.IsSigned() {
		fmt.Println("Package is UNSIGNED")
		return
	}
	fmt.Println("Signature is VALID")
	fmt.Printf("public key: %s\n", info.Metadata.PublicKey)
}

func cmdRuntime(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: lxe runtime <download|status> [flags]")
		os.Exit(1)
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		log.Fatalf("lxe runtime: %v", err)
	}
	cachePath := filepath.Join(cacheDir, "lxe", "lxe-runtime")

	switch args[0] {
	case "download":
		fs := newFlagSet("runtime download")
		force := fs.Bool("force", false, "re-download even if cached")
		fs.Parse(args[1:])
		if _, err := os.Stat(cachePath); err == nil && !*force {
			fmt.Printf("runtime already cached at %s\n", cachePath)
			return
		}
		fmt.Println("lxe runtime download: no runtime release source configured; this is a reference implementation stub")
	case "status":
		if fi, err := os.Stat(cachePath); err == nil {
			fmt.Printf("cached: %s (%d bytes, modified %s)\n", cachePath, fi.Size(), fi.ModTime().Format(time.RFC3339))
		} else {
			fmt.Println("no cached runtime binary")
		}
	default:
		fmt.Println("Usage: lxe runtime <download|status> [flags]")
		os.Exit(1)
	}
}

func cmdUninstall(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: lxe uninstall ID [--yes] [--system]")
		os.Exit(1)
	}
	appID := args[0]
	fs := newFlagSet("uninstall")
	yes := fs.Bool("yes", false, "skip confirmation")
	system := fs.Bool("system", false, "uninstall from the system scope")
	fs.Parse(args[1:])

	if !*yes {
		fmt.Printf("uninstall %s? [y/N]: ", appID)
		var reply string
		fmt.Scanln(&reply)
		if strings.ToLower(strings.TrimSpace(reply)) != "y" {
			fmt.Println("aborted")
			return
		}
	}

	cfg, az := resolveTarget(*system)
	listener := func(e progress.Event) { fmt.Println(e.String()) }
	if err := installer.Uninstall(context.Background(), appID, cfg, az, listener); err != nil {
		log.Fatalf("lxe uninstall: %v", err)
	}
	fmt.Printf("uninstalled %s\n", appID)
}

// --- runtime CLI -------------------------------------------------------

func runRuntime(self string, info *locator.PayloadInfo, args []string) {
	fs := newFlagSet("lxe")
	silent := fs.Bool("silent", false, "suppress non-error output")
	system := fs.Bool("system", false, "install system-wide instead of per-user")
	installDir := fs.String("install-dir", "", "override the install base directory")
	force := fs.Bool("force", false, "reinstall over an existing installation")
	installPolicy := fs.Bool("install-policy", false, "write the authorization policy document and exit")
	uninstallID := fs.String("uninstall", "", "uninstall the named application and exit")
	uninstallGUI := fs.String("uninstall-gui", "", "uninstall the named application with interactive confirmation and exit")
	list := fs.Bool("list", false, "list installed applications and exit")
	measureStartup := fs.Bool("measure-startup", false, "print the elapsed time to reach this point and exit")
	fs.Parse(args)

	if *measureStartup {
		fmt.Printf("startup: %s\n", time.Since(processStart))
		return
	}

	cfg, az := resolveTarget(*system)
	if *installDir != "" {
		cfg = installer.UserTargetAt(*installDir)
		cfg.IsSystem = *system
	}

	if *installPolicy {
		if err := writePolicyDocument(); err != nil {
			log.Fatalf("lxe --install-policy: %v", err)
		}
		return
	}

	if *list {
		listInstalled(cfg)
		return
	}

	if *uninstallID != "" {
		if err := installer.Uninstall(context.Background(), *uninstallID, cfg, az, consoleListener(*silent)); err != nil {
			log.Fatalf("lxe --uninstall: %v", err)
		}
		return
	}
	if *uninstallGUI != "" {
		fmt.Printf("uninstall %s? [y/N]: ", *uninstallGUI)
		var reply string
		fmt.Scanln(&reply)
		if strings.ToLower(strings.TrimSpace(reply)) != "y" {
			return
		}
		if err := installer.Uninstall(context.Background(), *uninstallGUI, cfg, az, consoleListener(*silent)); err != nil {
			log.Fatalf("lxe --uninstall-gui: %v", err)
		}
		return
	}

	desktopPath := filepath.Join(cfg.BaseDir, "share", "applications", info.Metadata.DesktopFilename())
	existing, _, _ := state.Detect(desktopPath, info.Metadata.Version)
	if existing == state.Installed && !*force {
		fmt.Printf("%s is already installed at this version; pass --force to reinstall\n", info.Metadata.AppID)
		return
	}

	if err := installer.Install(context.Background(), self, info, cfg, az, consoleListener(*silent)); err != nil {
		log.Fatalf("lxe: install failed: %v", err)
	}
}

func consoleListener(silent bool) progress.Listener {
	if silent {
		return nil
	}
	return func(e progress.Event) { fmt.Println(e.String()) }
}

func resolveTarget(system bool) (installer.TargetConfig, authz.Authorizer) {
	if system {
		return installer.SystemTarget(), authz.PolkitAuthorizer{}
	}
	cfg, err := installer.UserTarget()
	if err != nil {
		log.Fatalf("lxe: resolve user target: %v", err)
	}
	return cfg, authz.PolkitAuthorizer{}
}

func writePolicyDocument() error {
	const path = "/usr/share/polkit-1/actions/org.lxe.policy"
	if !authz.IsRoot() {
		return fmt.Errorf("writing the policy document requires root")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(authz.PolicyXML()), 0o644)
}

func listInstalled(cfg installer.TargetConfig) {
	dir := state.Dir(cfg.BaseDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no applications installed")
			return
		}
		log.Fatalf("lxe --list: %v", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		appID := strings.TrimSuffix(entry.Name(), ".json")
		m, err := state.Load(cfg.BaseDir, appID)
		if err != nil || m == nil {
			continue
		}
		fmt.Printf("%s\t%s\t%s\n", m.AppID, m.Name, m.Version)
	}
}
