package lxeformat

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic is the 8-byte constant that marks both the header and the footer.
// Chosen to be distinct from typical runtime binary contents.
var Magic = [8]byte{0x00, 'L', 'X', 'E', 0xF0, 0x9F, 0x93, 0x01}

const (
	// MaxMetadataLen is the parser's hard ceiling on metadata length.
	MaxMetadataLen = 1 << 20 // 1 MiB

	// DigestLen is the length in bytes of the raw SHA-256 payload digest.
	DigestLen = 32

	// FooterLen is the total length of the trailing footer: an 8-byte
	// LE offset followed by the 8-byte magic.
	FooterLen = 16

	// ScanWindow bounds the legacy fallback scan to the first N bytes
	// of the file, keeping worst-case startup cost bounded.
	ScanWindow = 10 << 20 // 10 MiB
)

// WriteHeader emits the header magic, the u32 LE metadata length, and the
// metadata bytes themselves, in that order. It does not write the digest
// or the payload; callers assemble those separately so that the digest
// can be computed from payload bytes the caller already has in hand.
func WriteHeader(w io.Writer, metadata []byte) (int64, error) {
	if len(metadata) > MaxMetadataLen {
		return 0, fmt.Errorf("lxeformat: metadata length %d exceeds %d byte ceiling", len(metadata), MaxMetadataLen)
	}
	var written int64
	n, err := w.Write(Magic[:])
	written += int64(n)
	if err != nil {
		return written, err
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(metadata)))
	n, err = w.Write(lenBuf[:])
	written += int64(n)
	if err != nil {
		return written, err
	}
	n, err = w.Write(metadata)
	written += int64(n)
	return written, err
}

// WriteFooter emits the u64 LE header offset followed by the footer magic.
func WriteFooter(w io.Writer, headerOffset uint64) (int64, error) {
	var buf [FooterLen]byte
	binary.LittleEndian.PutUint64(buf[:8], headerOffset)
	copy(buf[8:], Magic[:])
	n, err := w.Write(buf[:])
	return int64(n), err
}

// ParseHeaderLen decodes the u32 LE metadata length that immediately
// follows the 8-byte header magic.
func ParseHeaderLen(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("lxeformat: short header length field")
	}
	n := binary.LittleEndian.Uint32(b[:4])
	if n > MaxMetadataLen {
		return 0, fmt.Errorf("lxeformat: metadata length %d exceeds %d byte ceiling", n, MaxMetadataLen)
	}
	return n, nil
}

// ParseFooter decodes the trailing 16 bytes of a package file. It returns
// the header offset only if the footer magic matches; ok is false
// otherwise (including when b is too short), signaling the caller should
// fall back to a scan.
func ParseFooter(b []byte) (offset uint64, ok bool) {
	if len(b) < FooterLen {
		return 0, false
	}
	tail := b[len(b)-FooterLen:]
	if !matchesMagic(tail[8:]) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(tail[:8]), true
}

func matchesMagic(b []byte) bool {
	if len(b) != 8 {
		return false
	}
	for i := range Magic {
		if b[i] != Magic[i] {
			return false
		}
	}
	return true
}

// FindLastMagic returns the index of the last occurrence of Magic within
// b, or -1 if not found. Used by the legacy fallback scan, which by
// construction looks only at the first ScanWindow bytes of the file.
func FindLastMagic(b []byte) int {
	for i := len(b) - len(Magic); i >= 0; i-- {
		if matchesMagic(b[i : i+8]) {
			return i
		}
	}
	return -1
}
