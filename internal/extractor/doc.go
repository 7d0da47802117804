// Package extractor implements the streaming extractor (§4.5.3): seek to
// the payload offset, decode a zstd stream, feed it into a tar reader,
// and place entries atomically into the target tree via a staging
// directory. Extract runs on the caller's goroutine; Async runs it on its
// own goroutine so a foreground event loop never blocks on decompression
// or disk I/O.
package extractor
