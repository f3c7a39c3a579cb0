package cache

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used for dry runs and tests.
type MemoryStore struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	writes map[string]int
	roots  map[string]bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs:  make(map[string][]byte),
		writes: make(map[string]int),
		roots:  make(map[string]bool),
	}
}

func (s *MemoryStore) Open(key Key) (Handle, error) {
	path := filepath.ToSlash(key.RelPath())
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.blobs[path]
	if !existed {
		s.blobs[path] = nil
	}
	s.roots[key.AsOf] = true
	return &memHandle{store: s, path: path, existed: existed}, nil
}

func (s *MemoryStore) Housekeep(now time.Time) ([]string, error) {
	keep := retainedRoots(now)
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var removed []string
	drop := func(root string) {
		if !seen[root] {
			seen[root] = true
			removed = append(removed, root)
		}
	}
	for path := range s.blobs {
		root, _, _ := strings.Cut(path, "/")
		if keep[root] {
			continue
		}
		delete(s.blobs, path)
		drop(root)
	}
	for root := range s.roots {
		if !keep[root] {
			delete(s.roots, root)
			drop(root)
		}
	}
	for root := range keep {
		s.roots[root] = true
	}
	return removed, nil
}

// Put stores data at key directly.
func (s *MemoryStore) Put(key Key, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[filepath.ToSlash(key.RelPath())] = append([]byte(nil), data...)
	s.roots[key.AsOf] = true
}

// Roots returns the date roots present in the store, sorted.
func (s *MemoryStore) Roots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.roots))
	for root := range s.roots {
		out = append(out, root)
	}
	sort.Strings(out)
	return out
}

// Get returns the blob at key.
func (s *MemoryStore) Get(key Key) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[filepath.ToSlash(key.RelPath())]
	return data, ok
}

// Writes returns how many times the entry at key was written through a handle.
func (s *MemoryStore) Writes(key Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[filepath.ToSlash(key.RelPath())]
}

// Len returns the number of entries, placeholders included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

type memHandle struct {
	store   *MemoryStore
	path    string
	existed bool
}

func (h *memHandle) Path() string  { return h.path }
func (h *memHandle) Existed() bool { return h.existed }

func (h *memHandle) Size() (int64, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return int64(len(h.store.blobs[h.path])), nil
}

func (h *memHandle) IsEmpty() (bool, error) {
	size, err := h.Size()
	return size == 0, err
}

func (h *memHandle) Read() ([]byte, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return append([]byte(nil), h.store.blobs[h.path]...), nil
}

func (h *memHandle) Write(data []byte) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.blobs[h.path] = append([]byte(nil), data...)
	h.store.writes[h.path]++
	return nil
}
