package extractor

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/lxe-core/lxe/internal/locator"
	"github.com/lxe-core/lxe/internal/lxeerr"
	"github.com/lxe-core/lxe/internal/progress"
)

// stagingName returns the staging directory for appID under targetDir,
// a sibling of the final {targetDir}/{appID}. The appID component
// disambiguates concurrent or leftover staging directories from
// different apps sharing a target directory.
func stagingName(targetDir, appID string) string {
	return filepath.Join(targetDir, ".lxe-extracting-"+appID)
}

// Extract runs the streaming extractor synchronously against the located
// package at pkgPath (which it opens itself), placing the result atomically at
// {targetDir}/{appID}. Progress events are delivered to listener, if
// non-nil, as each tar entry is written.
func Extract(ctx context.Context, pkgPath string, info *locator.PayloadInfo, targetDir, appID string, listener progress.Listener) error {
	f, err := os.Open(pkgPath)
	if err != nil {
		return fmt.Errorf("%w: open package: %v", lxeerr.ErrExtractionFailed, err)
	}
	defer f.Close()

	section := io.NewSectionReader(f, info.PayloadOffset, info.PayloadSize)
	zr, err := zstd.NewReader(section)
	if err != nil {
		return fmt.Errorf("%w: create zstd reader: %v", lxeerr.ErrExtractionFailed, err)
	}
	defer zr.Close()

	staging := stagingName(targetDir, appID)
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("%w: clear stale staging dir: %v", lxeerr.ErrExtractionFailed, err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("%w: create staging dir: %v", lxeerr.ErrExtractionFailed, err)
	}

	if err := extractEntries(ctx, zr, staging, info.Metadata.InstallSize, listener); err != nil {
		os.RemoveAll(staging) // best effort, preserve prior install
		return err
	}

	final := filepath.Join(targetDir, appID)
	if _, err := os.Lstat(final); err == nil {
		if err := os.RemoveAll(final); err != nil {
			os.RemoveAll(staging)
			return fmt.Errorf("%w: remove prior install: %v", lxeerr.ErrExtractionFailed, err)
		}
	}
	if err := os.Rename(staging, final); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("%w: promote staging dir: %v", lxeerr.ErrExtractionFailed, err)
	}
	return nil
}

func extractEntries(ctx context.Context, r io.Reader, staging string, totalBytes uint64, listener progress.Listener) error {
	tr := tar.NewReader(r)
	var extracted uint64
	files := 0

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: cancelled: %v", lxeerr.ErrExtractionFailed, ctx.Err())
		default:
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: tar read: %v", lxeerr.ErrExtractionFailed, err)
		}

		if err := validateEntryPath(hdr.Name); err != nil {
			return err
		}

		dest := filepath.Join(staging, filepath.FromSlash(hdr.Name))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("%w: create parent dir: %v", lxeerr.ErrExtractionFailed, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, os.FileMode(hdr.Mode)|0o700); err != nil {
				return fmt.Errorf("%w: create dir entry: %v", lxeerr.ErrExtractionFailed, err)
			}
		case tar.TypeSymlink:
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				return fmt.Errorf("%w: create symlink entry: %v", lxeerr.ErrExtractionFailed, err)
			}
		case tar.TypeReg:
			n, err := writeRegularFile(dest, tr, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			extracted += uint64(n)
		default:
			// Ignore device/fifo/other special entries; application trees
			// do not legitimately contain them.
		}

		files++
		if listener != nil {
			listener(progress.ExtractProgress{
				TotalBytes:     totalBytes,
				ExtractedBytes: extracted,
				FilesExtracted: files,
				CurrentFile:    hdr.Name,
			})
		}
	}
}

func writeRegularFile(dest string, r io.Reader, mode os.FileMode) (int64, error) {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, fmt.Errorf("%w: create file entry: %v", lxeerr.ErrExtractionFailed, err)
	}
	defer f.Close()
	n, err := io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("%w: write file entry: %v", lxeerr.ErrExtractionFailed, err)
	}
	return n, nil
}

// validateEntryPath rejects absolute paths and ".." segments, per
// §4.5.3's path safety rule.
func validateEntryPath(name string) error {
	clean := filepath.ToSlash(name)
	if strings.HasPrefix(clean, "/") {
		return fmt.Errorf("%w: absolute path in tar entry: %s", lxeerr.ErrExtractionFailed, name)
	}
	for _, segment := range strings.Split(clean, "/") {
		if segment == ".." {
			return fmt.Errorf("%w: path traversal in tar entry: %s", lxeerr.ErrExtractionFailed, name)
		}
	}
	return nil
}

// Async runs Extract on its own goroutine, reporting progress over a
// buffered channel the caller polls without ever blocking, and the
// terminal error (nil on success) over a second channel. This realizes
// §5's single-producer/single-consumer worker-thread model.
func Async(ctx context.Context, pkgPath string, info *locator.PayloadInfo, targetDir, appID string) (<-chan progress.Event, <-chan error) {
	events := make(chan progress.Event, 32)
	done := make(chan error, 1)

	go func() {
		defer close(events)
		err := Extract(ctx, pkgPath, info, targetDir, appID, func(e progress.Event) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		})
		done <- err
	}()

	return events, done
}
