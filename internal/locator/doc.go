// Package locator implements the self-locator and the parse+authenticate
// step: given an arbitrary file (in normal use, the currently running
// executable), find the embedded payload, parse its metadata, and
// verify its signature before anything else touches the payload bytes.
//
// Signature verification happens here, inside Locate, rather than as a
// separate later phase — matching the reference implementation's own
// read_payload_info, which bails out before returning payload
// information if the signature does not check out. This guarantees the
// "abort before any wizard/UI" ordering the spec requires.
package locator
