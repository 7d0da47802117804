package locator

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lxe-core/lxe/internal/lxeerr"
	"github.com/lxe-core/lxe/internal/lxeformat"
	"github.com/lxe-core/lxe/internal/metadata"
	"github.com/lxe-core/lxe/internal/signing"
)

// PayloadInfo describes a located, parsed, and (if signed) verified
// payload within a package file.
type PayloadInfo struct {
	// HeaderOffset is the absolute offset of the header magic.
	HeaderOffset int64
	// PayloadOffset is the absolute offset of the first payload byte.
	PayloadOffset int64
	// PayloadSize is the number of payload bytes, running to the footer
	// (len−16), or to the end of the file when no footer magic is present.
	PayloadSize int64
	// Metadata is the parsed metadata object.
	Metadata *metadata.Metadata
	// Digest is the raw 32-byte payload digest read from the file.
	Digest [32]byte
	// Verified is true when the metadata carried a signature and it was
	// successfully verified. It is false for unsigned packages. A failed
	// verification never reaches this struct: Locate returns
	// ErrUnauthenticPackage instead.
	Verified bool
}

// statter is the minimal surface of *os.File that Locate needs in
// addition to io.ReaderAt.
type statter interface {
	io.ReaderAt
	Stat() (os.FileInfo, error)
}

// Locate runs the full self-locator (§4.5.1) and parse+authenticate
// (§4.5.2) sequence against f, typically the currently running
// executable opened read-only.
func Locate(f statter) (*PayloadInfo, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("locator: stat: %w", err)
	}
	return LocateSized(f, info.Size())
}

// LocateSized runs the same sequence as Locate against a reader of known
// size, for callers that already have the length (or are working against
// a non-*os.File io.ReaderAt, such as a test fixture in memory).
func LocateSized(r io.ReaderAt, size int64) (*PayloadInfo, error) {
	if size < lxeformat.FooterLen {
		return nil, lxeerr.ErrNoPayload
	}

	headerOffset, payloadEnd, err := findHeaderOffset(r, size)
	if err != nil {
		return nil, err
	}

	return parseAndAuthenticate(r, payloadEnd, headerOffset)
}

// findHeaderOffset returns the header offset and the offset at which the
// payload ends: the start of the footer when the footer magic is present,
// else the end of the file.
func findHeaderOffset(r io.ReaderAt, size int64) (int64, int64, error) {
	tail := make([]byte, lxeformat.FooterLen)
	if _, err := r.ReadAt(tail, size-lxeformat.FooterLen); err != nil {
		return 0, 0, fmt.Errorf("locator: read footer: %w", err)
	}
	payloadEnd := size
	if offset, ok := lxeformat.ParseFooter(tail); ok {
		payloadEnd = size - lxeformat.FooterLen
		if int64(offset) < payloadEnd {
			return int64(offset), payloadEnd, nil
		}
		// Corrupt: footer claims an offset that overlaps or exceeds the
		// footer itself. Fall through to the scan fallback.
	}

	// Legacy fallback: scan the first min(size, ScanWindow) bytes for the
	// last occurrence of the magic.
	window := size
	if window > lxeformat.ScanWindow {
		window = lxeformat.ScanWindow
	}
	buf := make([]byte, window)
	if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
		return 0, 0, fmt.Errorf("locator: scan read: %w", err)
	}
	idx := lxeformat.FindLastMagic(buf)
	if idx < 0 {
		return 0, 0, lxeerr.ErrNoPayload
	}
	return int64(idx), payloadEnd, nil
}

func parseAndAuthenticate(r io.ReaderAt, payloadEnd, headerOffset int64) (*PayloadInfo, error) {
	head := make([]byte, 8+4)
	if _, err := r.ReadAt(head, headerOffset); err != nil {
		return nil, fmt.Errorf("locator: read header: %w", err)
	}
	metaLen, err := lxeformat.ParseHeaderLen(head[8:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lxeerr.ErrMetadataTooLarge, err)
	}

	metaBytes := make([]byte, metaLen)
	metaOffset := headerOffset + 8 + 4
	if metaLen > 0 {
		if _, err := r.ReadAt(metaBytes, metaOffset); err != nil {
			return nil, fmt.Errorf("locator: read metadata bytes: %w", err)
		}
	}

	meta, err := metadata.Parse(metaBytes)
	if err != nil {
		return nil, err
	}

	digestOffset := metaOffset + int64(metaLen)
	var digest [32]byte
	if _, err := r.ReadAt(digest[:], digestOffset); err != nil {
		return nil, fmt.Errorf("locator: read digest: %w", err)
	}

	payloadOffset := digestOffset + lxeformat.DigestLen
	payloadSize := payloadEnd - payloadOffset
	if payloadSize < 0 {
		return nil, lxeerr.ErrNoPayload
	}

	if meta.HasPartialSignature() {
		return nil, lxeerr.ErrMalformedSignature
	}

	verified := false
	if meta.IsSigned() {
		pub, ok := signing.DecodePublicKey(meta.PublicKey)
		if !ok {
			return nil, lxeerr.ErrMalformedSignature
		}
		sig, ok := signing.DecodeSignature(meta.Signature)
		if !ok {
			return nil, lxeerr.ErrMalformedSignature
		}
		msg := append(metadata.SignableBytes(meta), digest[:]...)
		if !signing.Verify(pub, msg, sig) {
			return nil, lxeerr.ErrUnauthenticPackage
		}
		verified = true
	}

	info := &PayloadInfo{
		HeaderOffset:  headerOffset,
		PayloadOffset: payloadOffset,
		PayloadSize:   payloadSize,
		Metadata:      meta,
		Digest:        digest,
		Verified:      verified,
	}
	if verified {
		// The signature covers the stored digest; hashing the payload binds
		// it to the payload bytes actually present in the file.
		if err := VerifyPayloadDigest(r, info); err != nil {
			if errors.Is(err, lxeerr.ErrCorruptPayload) {
				return nil, lxeerr.ErrUnauthenticPackage
			}
			return nil, err
		}
	}
	return info, nil
}

// VerifyPayloadDigest is the second line of defense (§4.5.2 step 5): it
// hashes the payload byte range and compares it with the stored digest,
// surfacing any mismatch as CorruptPayload. Locate runs it for signed
// packages (reporting a mismatch there as ErrUnauthenticPackage); for
// unsigned packages callers opt into it.
func VerifyPayloadDigest(r io.ReaderAt, info *PayloadInfo) error {
	h := sha256.New()
	buf := make([]byte, 1<<20)
	remaining := info.PayloadSize
	offset := info.PayloadOffset
	for remaining > 0 {
		n := int64(len(buf))
		if n > remaining {
			n = remaining
		}
		read, err := r.ReadAt(buf[:n], offset)
		if err != nil && err != io.EOF {
			return fmt.Errorf("locator: read payload for digest check: %w", err)
		}
		h.Write(buf[:read])
		offset += int64(read)
		remaining -= int64(read)
		if read == 0 {
			break
		}
	}
	sum := h.Sum(nil)
	for i := range sum {
		if sum[i] != info.Digest[i] {
			return lxeerr.ErrCorruptPayload
		}
	}
	return nil
}
