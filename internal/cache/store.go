package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Handle is an opened cache entry.
type Handle interface {
	Path() string
	// Existed reports whether the entry was present before Open.
	Existed() bool
	Size() (int64, error)
	IsEmpty() (bool, error)
	Read() ([]byte, error)
	Write(data []byte) error
}

// Store maps keys to blobs.
type Store interface {
	// Open ensures the entry exists, creating an empty placeholder if needed.
	// An existing blob is never truncated.
	Open(key Key) (Handle, error)
	// Housekeep keeps only the date roots for now and the day before, creating both.
	// It returns the names of the removed roots.
	Housekeep(now time.Time) ([]string, error)
}

// Equal reports whether two handles resolve to the same entry.
func Equal(a, b Handle) bool {
	if a == nil || b == nil {
		return a == b
	}
	return resolve(a.Path()) == resolve(b.Path())
}

func resolve(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// DiskStore keeps cache entries under a root directory.
type DiskStore struct {
	Root string
}

// NewDiskStore creates a DiskStore rooted at root.
func NewDiskStore(root string) *DiskStore {
	return &DiskStore{Root: root}
}

func (s *DiskStore) Open(key Key) (Handle, error) {
	path := filepath.Join(s.Root, key.RelPath())
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	existed := true
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		existed = false
	} else if err != nil {
		return nil, fmt.Errorf("stat cache entry: %w", err)
	}

	if !existed {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return nil, fmt.Errorf("create cache entry: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("close cache entry: %w", err)
		}
	}
	return &fileHandle{path: path, existed: existed}, nil
}

func (s *DiskStore) Housekeep(now time.Time) ([]string, error) {
	if err := os.MkdirAll(s.Root, 0755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	keep := retainedRoots(now)

	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("list cache root: %w", err)
	}
	var removed []string
	for _, e := range entries {
		if !e.IsDir() || keep[e.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.Root, e.Name())); err != nil {
			return removed, fmt.Errorf("remove stale root %s: %w", e.Name(), err)
		}
		removed = append(removed, e.Name())
	}
	for name := range keep {
		if err := os.MkdirAll(filepath.Join(s.Root, name), 0755); err != nil {
			return removed, fmt.Errorf("create root %s: %w", name, err)
		}
	}
	return removed, nil
}

// retainedRoots returns the root names of today and yesterday relative to now.
func retainedRoots(now time.Time) map[string]bool {
	return map[string]bool{
		AsOfDate(now):                  true,
		AsOfDate(now.AddDate(0, 0, -1)): true,
	}
}

type fileHandle struct {
	path    string
	existed bool
}

func (h *fileHandle) Path() string  { return h.path }
func (h *fileHandle) Existed() bool { return h.existed }

func (h *fileHandle) Size() (int64, error) {
	info, err := os.Stat(h.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (h *fileHandle) IsEmpty() (bool, error) {
	size, err := h.Size()
	if err != nil {
		return false, err
	}
	return size == 0, nil
}

func (h *fileHandle) Read() ([]byte, error) {
	return os.ReadFile(h.path)
}

// Write replaces the blob through a temp file and rename.
func (h *fileHandle) Write(data []byte) error {
	dir := filepath.Dir(h.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(h.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, h.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache entry: %w", err)
	}
	return nil
}
