package metadata

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lxe-core/lxe/internal/lxeerr"
)

// FormatVersion is the only metadata schema version this implementation
// understands.
const FormatVersion = 1

// Installer carries purely cosmetic wizard knobs. It is never covered by
// the signature: branding text may be edited after signing without
// invalidating trust in the payload.
type Installer struct {
	WelcomeTitle   string `json:"welcome_title,omitempty"`
	WelcomeText    string `json:"welcome_text,omitempty"`
	FinishTitle    string `json:"finish_title,omitempty"`
	FinishText     string `json:"finish_text,omitempty"`
	AccentColor    string `json:"accent_color,omitempty"`
	Theme          string `json:"theme,omitempty"`
	ShowLaunch     bool   `json:"show_launch"`
	License        string `json:"license,omitempty"`
	Banner         string `json:"banner,omitempty"`
	Logo           string `json:"logo,omitempty"`
	AllowCustomDir bool   `json:"allow_custom_dir,omitempty"`
}

// Hooks carries install-lifecycle scripts. Like Installer, it is excluded
// from the signable projection: hooks are resolved to paths inside the
// already-verified payload, so binding them to the signature would add
// no trust the payload digest doesn't already provide, and it would force
// re-signing on every script tweak.
type Hooks struct {
	PreInstall    string `json:"pre_install,omitempty"`
	PostInstall   string `json:"post_install,omitempty"`
	PreUninstall  string `json:"pre_uninstall,omitempty"`
	PostUninstall string `json:"post_uninstall,omitempty"`
}

// Metadata is the full object embedded in a package, including fields
// added after signing (PublicKey, Signature) and the two cosmetic
// subtrees (Installer, Hooks).
type Metadata struct {
	FormatVersion     int        `json:"format_version"`
	AppID             string     `json:"app_id"`
	Name              string     `json:"name"`
	Version           string     `json:"version"`
	Arch              string     `json:"arch"`
	InstallSize       uint64     `json:"install_size"`
	Exec              string     `json:"exec"`
	Icon              string     `json:"icon,omitempty"`
	Categories        []string   `json:"categories"`
	Description       string     `json:"description,omitempty"`
	PayloadChecksum   string     `json:"payload_checksum"`
	Terminal          bool       `json:"terminal"`
	WMClass           string     `json:"wm_class,omitempty"`
	MinRuntimeVersion string     `json:"min_runtime_version,omitempty"`
	License           string     `json:"license,omitempty"`
	Homepage          string     `json:"homepage,omitempty"`
	ExecArgs          string     `json:"exec_args,omitempty"`
	Installer         *Installer `json:"installer,omitempty"`
	Hooks             *Hooks     `json:"hooks,omitempty"`
	PublicKey         string     `json:"public_key,omitempty"`
	Signature         string     `json:"signature,omitempty"`
}

// signable is the canonical subset of Metadata, in the fixed field order
// the signature is computed over. It is deliberately a struct: re-encoding
// a struct never reorders fields, whereas a map would.
type signable struct {
	FormatVersion     int      `json:"format_version"`
	AppID             string   `json:"app_id"`
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	Arch              string   `json:"arch"`
	InstallSize       uint64   `json:"install_size"`
	Exec              string   `json:"exec"`
	Icon              string   `json:"icon,omitempty"`
	Categories        []string `json:"categories"`
	Description       string   `json:"description,omitempty"`
	PayloadChecksum   string   `json:"payload_checksum"`
	MinRuntimeVersion string   `json:"min_runtime_version,omitempty"`
	License           string   `json:"license,omitempty"`
	Homepage          string   `json:"homepage,omitempty"`
	ExecArgs          string   `json:"exec_args,omitempty"`
	Terminal          bool     `json:"terminal"`
}

// Serialize emits the full metadata object as JSON, the form embedded in
// a package.
func Serialize(m *Metadata) ([]byte, error) {
	if m.Categories == nil {
		m.Categories = []string{}
	}
	return json.Marshal(m)
}

// SignableBytes emits only the signable projection, in the fixed field
// order above. Both builder and runtime MUST derive signing bytes from
// this function to avoid verification mismatches that look like
// tampering.
func SignableBytes(m *Metadata) []byte {
	categories := m.Categories
	if categories == nil {
		categories = []string{}
	}
	s := signable{
		FormatVersion:     m.FormatVersion,
		AppID:             m.AppID,
		Name:              m.Name,
		Version:           m.Version,
		Arch:              m.Arch,
		InstallSize:       m.InstallSize,
		Exec:              m.Exec,
		Icon:              m.Icon,
		Categories:        categories,
		Description:       m.Description,
		PayloadChecksum:   m.PayloadChecksum,
		MinRuntimeVersion: m.MinRuntimeVersion,
		License:           m.License,
		Homepage:          m.Homepage,
		ExecArgs:          m.ExecArgs,
		Terminal:          m.Terminal,
	}
	// A struct field's json.Marshal output follows struct declaration
	// order regardless of map iteration concerns, which is exactly the
	// byte-stability this projection depends on.
	b, err := json.Marshal(s)
	if err != nil {
		// signable contains no types that can fail to marshal.
		panic(fmt.Sprintf("metadata: signable projection failed to marshal: %v", err))
	}
	return b
}

// Parse decodes metadata JSON. Unknown fields are ignored (forward
// compatible); the required fields are checked strictly.
func Parse(b []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", lxeerr.ErrMetadataParse, err)
	}
	if m.FormatVersion == 0 {
		return nil, fmt.Errorf("%w: missing format_version", lxeerr.ErrMetadataParse)
	}
	if m.AppID == "" {
		return nil, fmt.Errorf("%w: missing app_id", lxeerr.ErrMetadataParse)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("%w: missing name", lxeerr.ErrMetadataParse)
	}
	if m.Version == "" {
		return nil, fmt.Errorf("%w: missing version", lxeerr.ErrMetadataParse)
	}
	if m.Exec == "" {
		return nil, fmt.Errorf("%w: missing exec", lxeerr.ErrMetadataParse)
	}
	if m.PayloadChecksum == "" {
		return nil, fmt.Errorf("%w: missing payload_checksum", lxeerr.ErrMetadataParse)
	}
	return &m, nil
}

// IsSigned reports whether both public_key and signature are present.
func (m *Metadata) IsSigned() bool {
	return m.PublicKey != "" && m.Signature != ""
}

// HasPartialSignature reports whether exactly one of public_key/signature
// is present — the MalformedSignature condition.
func (m *Metadata) HasPartialSignature() bool {
	return (m.PublicKey == "") != (m.Signature == "")
}

// DesktopFilename returns "{app_id}.desktop".
func (m *Metadata) DesktopFilename() string {
	return m.AppID + ".desktop"
}

// CategoriesString joins categories with ';' and appends a trailing ';'
// when non-empty, matching the .desktop Categories= convention.
func (m *Metadata) CategoriesString() string {
	if len(m.Categories) == 0 {
		return ""
	}
	return strings.Join(m.Categories, ";") + ";"
}

// WMClassOrDefault returns WMClass if set, else the last dot-separated
// segment of AppID.
func (m *Metadata) WMClassOrDefault() string {
	if m.WMClass != "" {
		return m.WMClass
	}
	parts := strings.Split(m.AppID, ".")
	return parts[len(parts)-1]
}
