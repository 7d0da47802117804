// Package authz treats privilege brokering as a narrow boolean oracle.
// The host authorization daemon itself (polkit or equivalent) is an
// external collaborator out of scope for this core; lxe only needs to
// ask it one question and act on the answer.
package authz

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Action IDs registered with the host authorization daemon. Kept
// identical to the reference implementation's polkit action names so a
// generated policy document and daemon rules stay interchangeable.
const (
	ActionInstallSystem   = "org.lxe.install.system"
	ActionUninstallSystem = "org.lxe.uninstall.system"
)

// Authorizer answers whether the current caller may perform actionID.
type Authorizer interface {
	IsAuthorized(ctx context.Context, actionID string) (bool, error)
}

// IsRoot reports whether the process is running with effective UID 0.
func IsRoot() bool {
	return os.Geteuid() == 0
}

// PolkitAuthorizer requests authorization via pkexec, prompting for
// interactive authentication when the session supports it.
type PolkitAuthorizer struct{}

// IsAuthorized returns true for root. Otherwise it runs the elevated no-op
// `pkexec --disable-internal-agent true`; a zero exit is treated as
// authorized, and any failure to reach or satisfy the daemon as not
// authorized, with the underlying error preserved for diagnostics.
// actionID appears only in that error; pkexec is not asked about the
// specific action.
func (PolkitAuthorizer) IsAuthorized(ctx context.Context, actionID string) (bool, error) {
	if IsRoot() {
		return true, nil
	}
	cmd := exec.CommandContext(ctx, "pkexec", "--disable-internal-agent", "true")
	if err := cmd.Run(); err != nil {
		return false, fmt.Errorf("authz: pkexec request for %s failed: %w", actionID, err)
	}
	return true, nil
}

// Fake is a deterministic in-memory Authorizer for tests that exercise
// system-scope install/uninstall paths without a real polkit daemon.
type Fake struct{ Granted bool }

// IsAuthorized returns f.Granted unconditionally.
func (f Fake) IsAuthorized(context.Context, string) (bool, error) {
	return f.Granted, nil
}

// PolicyXML renders the polkit policy document registering both lxe
// actions, each requiring administrator authentication with session
// caching for active-session callers.
func PolicyXML() string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE policyconfig PUBLIC "-//freedesktop//DTD PolicyKit Policy Configuration 1.0//EN"
 "http://www.freedesktop.org/standards/PolicyKit/1/policyconfig.dtd">
<policyconfig>
  <vendor>lxe</vendor>
  <action id="` + ActionInstallSystem + `">
    <description>Install an application system-wide</description>
    <message>Authentication is required to install this application for all users</message>
    <defaults>
      <allow_any>auth_admin</allow_any>
      <allow_inactive>auth_admin</allow_inactive>
      <allow_active>auth_admin_keep</allow_active>
    </defaults>
  </action>
  <action id="` + ActionUninstallSystem + `">
    <description>Uninstall a system-wide application</description>
    <message>Authentication is required to remove this application for all users</message>
    <defaults>
      <allow_any>auth_admin</allow_any>
      <allow_inactive>auth_admin</allow_inactive>
      <allow_active>auth_admin_keep</allow_active>
    </defaults>
  </action>
</policyconfig>
`
}
