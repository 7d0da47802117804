// Package signing implements Ed25519 signing and verification over the
// canonical message lxe signs: the metadata's signable projection bytes
// concatenated with the raw 32-byte payload digest. Binding the digest
// into the signed message ties the signature to both package identity
// and payload content.
//
// Keys are kept in stdlib crypto/ed25519 form; no third-party crypto
// library is used here, matching how the reference corpus itself reaches
// for crypto/ed25519 directly wherever it needs a bare Ed25519 keypair
// rather than an OpenPGP envelope (see DESIGN.md for the full
// justification).
package signing
