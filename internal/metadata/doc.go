// Package metadata defines the full lxe metadata schema, its canonical
// signable projection, and the serialization helpers both the builder and
// the runtime use to move bytes in and out of a package.
//
// Two serializations exist because the embedded metadata must carry
// extras (signature, installer branding, install hooks) while the bytes
// fed to Ed25519 must be perfectly stable across implementations: the
// signable projection is a struct with a fixed field order, never a map,
// so re-encoding never reorders fields.
package metadata
