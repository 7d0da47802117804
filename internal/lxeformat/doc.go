// Package lxeformat provides a pure Go library for the bit-exact on-disk
// layout of an lxe package: runtime image, header magic, length-prefixed
// metadata, payload digest, compressed payload, and a footer that makes
// self-location O(1).
//
// # Design Philosophy
//
// The package operates primarily in-memory, treating the header and
// footer as structured values that can be written to and read from
// streams (io.Writer/io.Reader/io.ReaderAt). Building a package never
// requires the input runtime or payload to touch disk more than once;
// locating one requires only a handful of seeks.
package lxeformat
