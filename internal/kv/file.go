package kv

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	fileStoreDirPerm  = 0o755
	fileStoreFilePerm = 0o644
	fileStoreExt      = ".json"
)

// FileStore persists each key as one file under a root directory.
// Slashes in keys become subdirectories.
type FileStore struct {
	mu     sync.RWMutex
	root   string
	closed bool
}

// NewFileStore creates the root directory if needed and returns a store.
func NewFileStore(root string) (*FileStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("kv: file store root is required")
	}
	if err := os.MkdirAll(root, fileStoreDirPerm); err != nil {
		return nil, fmt.Errorf("kv: create store root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Get returns the value for key, or ErrNotFound.
func (s *FileStore) Get(key string) ([]byte, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("kv: read %s: %w", key, err)
	}
	return data, nil
}

// Set writes the value for key, replacing any existing value.
// The write goes through a temp file and rename so readers never
// observe a partial value.
func (s *FileStore) Set(key string, value []byte) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := os.MkdirAll(filepath.Dir(path), fileStoreDirPerm); err != nil {
		return fmt.Errorf("kv: create key dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, fileStoreFilePerm); err != nil {
		return fmt.Errorf("kv: write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("kv: commit %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Missing keys are ignored.
func (s *FileStore) Delete(key string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("kv: delete %s: %w", key, err)
	}
	return nil
}

// Keys walks the root directory and returns sorted keys with the prefix.
func (s *FileStore) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var keys []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, fileStoreExt) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := strings.TrimSuffix(filepath.ToSlash(rel), fileStoreExt)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("kv: list keys: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Close marks the store closed. Subsequent operations fail with ErrClosed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// keyPath validates a key and maps it to its on-disk location.
// Path traversal segments are rejected.
func (s *FileStore) keyPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return filepath.Join(s.root, filepath.FromSlash(key)+fileStoreExt), nil
}
