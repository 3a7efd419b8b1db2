package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wolfire/ogda/internal/atomicfile"
)

// FSStore is a filesystem-backed Store using the database layout:
//
//	<database-dir>/
//	  files/
//	    <source_item_hash>/
//	      <dest_hash>
type FSStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFSStore creates a filesystem-backed store rooted at basePath.
func NewFSStore(basePath string) (*FSStore, error) {
	if err := os.MkdirAll(filepath.Join(basePath, "files"), 0750); err != nil {
		return nil, fmt.Errorf("create database files dir: %w", err)
	}
	return &FSStore{basePath: basePath}, nil
}

func (s *FSStore) payloadPath(sourceHash, destHash string) string {
	return filepath.Join(s.basePath, "files", sourceHash, destHash)
}

// Put stores data under (sourceHash, destHash).
func (s *FSStore) Put(sourceHash, destHash string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return atomicfile.ReplaceCreatingDirs(s.payloadPath(sourceHash, destHash), data, 0644)
}

// PutFile stores the contents of srcPath under (sourceHash, destHash).
func (s *FSStore) PutFile(sourceHash, destHash, srcPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return atomicfile.CopyFile(s.payloadPath(sourceHash, destHash), srcPath, 0644)
}

// Get retrieves the payload stored under (sourceHash, destHash).
func (s *FSStore) Get(sourceHash, destHash string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// #nosec G304 - path is built from content hashes, not user input.
	data, err := os.ReadFile(s.payloadPath(sourceHash, destHash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{SourceHash: sourceHash, DestHash: destHash}
		}
		return nil, fmt.Errorf("read database payload: %w", err)
	}
	return data, nil
}

// CopyTo copies the stored payload to destPath, creating parent directories.
func (s *FSStore) CopyTo(sourceHash, destHash, destPath string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.payloadPath(sourceHash, destHash)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound{SourceHash: sourceHash, DestHash: destHash}
		}
		return fmt.Errorf("stat database payload: %w", err)
	}
	return atomicfile.CopyFile(destPath, src, 0644)
}

// Exists reports whether a payload is stored under (sourceHash, destHash).
func (s *FSStore) Exists(sourceHash, destHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.payloadPath(sourceHash, destHash))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat database payload: %w", err)
	}
	return true, nil
}

// Close releases resources (no-op for the filesystem store).
func (s *FSStore) Close() error {
	return nil
}
