// Package progress defines the event/listener pattern used to report
// build and install progress without the foreground ever blocking on the
// worker goroutine doing the actual compression, decompression, or file
// I/O.
package progress

import (
	"encoding/json"
	"fmt"
)

// Listener receives events emitted by the packager or the extractor's
// worker goroutine. Implementations must not block.
type Listener func(Event)

// Event is any progress or completion record; String renders it for
// human-readable log lines.
type Event interface {
	fmt.Stringer
}

func jsonString(v interface{}) string {
	b, _ := json.Marshal(map[string]interface{}{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// BuildProgress is emitted while the packager walks, tars, and compresses
// the input tree.
type BuildProgress struct {
	Phase       string `json:"phase,omitempty"` // "tar" or "compress"
	FilesSeen   int    `json:"files_seen,omitempty"`
	BytesRead   int64  `json:"bytes_read,omitempty"`
	CurrentFile string `json:"current_file,omitempty"`
}

func (e BuildProgress) String() string { return jsonString(e) }

// BuildComplete is the last event for a build run.
type BuildComplete struct {
	OutputPath string `json:"output_path,omitempty"`
	Signed     bool   `json:"signed,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
}

func (e BuildComplete) String() string { return jsonString(e) }

// ExtractProgress is emitted per tar entry unpacked into the staging
// directory.
type ExtractProgress struct {
	TotalBytes     uint64 `json:"total_bytes,omitempty"`
	ExtractedBytes uint64 `json:"extracted_bytes,omitempty"`
	FilesExtracted int    `json:"files_extracted,omitempty"`
	CurrentFile    string `json:"current_file,omitempty"`
}

func (e ExtractProgress) String() string { return jsonString(e) }

// InstallStep is emitted after each idempotent post-placement install
// step (desktop entry, symlink, icon, hook, ...).
type InstallStep struct {
	Step    string `json:"step,omitempty"`
	AppID   string `json:"app_id,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func (e InstallStep) String() string { return jsonString(e) }

// Complete is the terminal event of an install or uninstall run.
type Complete struct {
	AppID string `json:"app_id,omitempty"`
	Err   string `json:"error,omitempty"`
}

func (e Complete) String() string { return jsonString(e) }
