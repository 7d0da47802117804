package packager

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lxe-core/lxe/internal/progress"
)

// countingWriter wraps an io.Writer and counts the bytes written. Used to
// size the uncompressed tar stream as it is produced, without a second
// pass over the buffer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// buildTar walks root and emits an uncompressed tar stream to w,
// preserving relative paths and not following symlinks (symlink entries
// are written as TypeSymlink, never dereferenced). Returns the number of
// uncompressed bytes written (install_size).
func buildTar(root string, w io.Writer, emit progress.Listener) (int64, error) {
	cw := &countingWriter{w: w}
	tw := tar.NewWriter(cw)
	filesSeen := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("packager: stat %s: %w", path, err)
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			link, err = os.Readlink(path)
			if err != nil {
				return fmt.Errorf("packager: readlink %s: %w", path, err)
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("packager: tar header for %s: %w", path, err)
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("packager: write tar header for %s: %w", path, err)
		}

		if info.Mode().IsRegular() {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("packager: open %s: %w", path, err)
			}
			defer f.Close()
			if _, err := io.Copy(tw, f); err != nil {
				return fmt.Errorf("packager: copy %s into tar: %w", path, err)
			}
		}

		filesSeen++
		if emit != nil {
			emit(progress.BuildProgress{Phase: "tar", FilesSeen: filesSeen, BytesRead: cw.n, CurrentFile: rel})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := tw.Close(); err != nil {
		return 0, fmt.Errorf("packager: close tar writer: %w", err)
	}
	return cw.n, nil
}
