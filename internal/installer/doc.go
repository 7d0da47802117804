// Package installer implements the post-placement installer (§4.5.4),
// install-state detection (§4.5.5), and the uninstaller (§4.5.6). All
// post-placement steps are idempotent and individually recorded to the
// per-app manifest so uninstall can reverse exactly what install did.
package installer
