// Package atomicfile provides a single primitive for durable file writes:
// write to a temp sibling, then rename into place.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// ReplaceCreatingDirs writes data to path atomically. It creates path's
// parent directories on first failure and retries once. The temp file is
// created in the same directory as path so the final rename is same-filesystem.
func ReplaceCreatingDirs(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := writeTemp(dir, data, perm)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0750); mkErr != nil {
			return fmt.Errorf("create parent dirs for %s: %w", path, mkErr)
		}
		tmp, err = writeTemp(dir, data, perm)
	}
	if err != nil {
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s into place: %w", path, err)
	}
	return nil
}

func writeTemp(dir string, data []byte, perm os.FileMode) (string, error) {
	f, err := os.CreateTemp(dir, ".atomicfile-*.tmp")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	if err := os.Chmod(name, perm); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

// CopyFile copies src to dst atomically, creating dst's parent directories
// if they do not exist.
func CopyFile(dst, src string, perm os.FileMode) error {
	// #nosec G304 - src is constructed internally from content-addressed paths.
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	return ReplaceCreatingDirs(dst, data, perm)
}
