package backup

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

type archiveStats struct {
	Files int
	Bytes int64
}

// writeArchive streams srcDir into w as a gzip compressed tar. Entries are
// rooted at the directory's base name. Files that cannot be opened are
// skipped and reported in the joined error; stats cover what was written.
func writeArchive(w io.Writer, srcDir string) (archiveStats, error) {
	var stats archiveStats

	info, err := os.Stat(srcDir)
	if err != nil {
		return stats, fmt.Errorf("stat %s: %w", srcDir, err)
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("%s is not a directory", srcDir)
	}

	gz, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
	if err != nil {
		return stats, err
	}
	tw := tar.NewWriter(gz)
	root := filepath.Base(filepath.Clean(srcDir))

	var skipped []error
	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			skipped = append(skipped, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Join(root, rel))

		switch {
		case d.IsDir():
			fi, err := d.Info()
			if err != nil {
				skipped = append(skipped, err)
				return nil
			}
			hdr, err := tar.FileInfoHeader(fi, "")
			if err != nil {
				return err
			}
			hdr.Name = name + "/"
			return tw.WriteHeader(hdr)
		case d.Type().IsRegular():
			n, err := addFile(tw, path, name)
			if err != nil {
				var skip *skipError
				if errors.As(err, &skip) {
					skipped = append(skipped, skip.err)
					return nil
				}
				return err
			}
			stats.Files++
			stats.Bytes += n
		}
		// Sockets, devices and symlinks are not game data.
		return nil
	})

	if walkErr != nil {
		tw.Close()
		gz.Close()
		return stats, fmt.Errorf("archive %s: %w", srcDir, walkErr)
	}
	if err := tw.Close(); err != nil {
		gz.Close()
		return stats, fmt.Errorf("finish tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return stats, fmt.Errorf("finish gzip: %w", err)
	}
	return stats, errors.Join(skipped...)
}

type skipError struct{ err error }

func (e *skipError) Error() string { return e.err.Error() }

func addFile(tw *tar.Writer, path, name string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &skipError{err: err}
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, &skipError{err: err}
	}
	hdr, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return 0, err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return 0, err
	}

	// The server may still be appending; copy only the size recorded in
	// the header.
	n, err := io.CopyN(tw, f, hdr.Size)
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", path, err)
	}
	return n, nil
}
