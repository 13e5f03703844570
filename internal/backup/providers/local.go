package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalProvider stores backups on a local or mounted filesystem.
type LocalProvider struct {
	BasePath string
}

func NewLocalProvider(basePath string) *LocalProvider {
	return &LocalProvider{BasePath: filepath.Clean(basePath)}
}

// Upload copies a file into the local backup store.
func (p *LocalProvider) Upload(_ context.Context, localPath, remotePath string) error {
	if remotePath == "" {
		return errors.New("remote path is required")
	}
	dest := filepath.Join(p.BasePath, filepath.FromSlash(remotePath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	return copyFile(localPath, dest)
}

// List returns every file under prefix. A missing prefix lists nothing.
func (p *LocalProvider) List(_ context.Context, prefix string) ([]string, error) {
	root := filepath.Join(p.BasePath, filepath.FromSlash(prefix))
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	var results []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.BasePath, path)
		if err != nil {
			return err
		}
		results = append(results, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return results, nil
}

// Delete removes a file from the store. Deleting a missing file succeeds.
func (p *LocalProvider) Delete(_ context.Context, remotePath string) error {
	if remotePath == "" {
		return errors.New("remote path is required")
	}
	target := filepath.Join(p.BasePath, filepath.FromSlash(remotePath))
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	// Write beside the destination and rename so a partial copy never
	// looks like a finished archive.
	tmp := dest + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("copy file: %w", err)
	}
	return os.Rename(tmp, dest)
}
