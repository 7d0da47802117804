// Package packager implements the builder half of lxe: walk an input
// directory into a tar stream, compress it with zstd, digest it, build
// and optionally sign a metadata object, and assemble the final
// self-locating executable in the exact byte order the runtime expects.
package packager
