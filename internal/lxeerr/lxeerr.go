// Package lxeerr defines the error taxonomy shared by the builder and the
// runtime. Every distinct failure mode is a sentinel here so callers can
// errors.Is against it; the outermost command handler is the only place
// that turns these into exit codes and user-facing text.
package lxeerr

import "errors"

var (
	// ErrConfigInvalid signals a missing required field, an out-of-range
	// compression level, or an input directory absent without a build script.
	ErrConfigInvalid = errors.New("config invalid")

	// ErrBuildScriptFailed signals a nonzero exit from the pre-build script.
	ErrBuildScriptFailed = errors.New("build script failed")

	// ErrRuntimeNotFound signals that no runtime binary is available to embed.
	ErrRuntimeNotFound = errors.New("runtime binary not found")

	// ErrNoPayload signals that the current executable carries no embedded
	// payload: footer absent and no magic found in the legacy scan window.
	// The runtime treats this as "I am a development binary" rather than
	// a hard failure.
	ErrNoPayload = errors.New("no embedded payload")

	// ErrMetadataTooLarge signals metadata length N > 1 MiB.
	ErrMetadataTooLarge = errors.New("metadata too large")

	// ErrMetadataParse signals malformed metadata JSON or a missing
	// required field.
	ErrMetadataParse = errors.New("metadata parse error")

	// ErrMalformedSignature signals that exactly one of public_key/signature
	// is present.
	ErrMalformedSignature = errors.New("malformed signature")

	// ErrUnauthenticPackage signals Ed25519 verification failure.
	ErrUnauthenticPackage = errors.New("unauthentic package")

	// ErrCorruptPayload signals the optional payload digest recheck failed.
	ErrCorruptPayload = errors.New("corrupt payload")

	// ErrExtractionFailed signals a decompression or tar error, or a
	// forbidden path inside a tar entry.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrAuthorizationDenied signals a system-scope operation attempted
	// without privilege and without an authorization grant.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrUnsafeRemovalRefused signals the uninstall safety check failed.
	ErrUnsafeRemovalRefused = errors.New("unsafe removal refused")
)
