// Package fingerprint maps content digests to the destination of the first
// filed copy and persists that mapping across runs.
package fingerprint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Index is the persisted digest -> destination path mapping.
type Index struct {
	mu       sync.RWMutex
	filePath string
	entries  map[string]string
}

func New(filePath string) *Index {
	return &Index{
		filePath: filePath,
		entries:  make(map[string]string),
	}
}

// Load reads the index at filePath. A missing file yields an empty index.
func Load(filePath string) (*Index, error) {
	idx := New(filePath)

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fingerprint index: %w", err)
	}
	if len(data) == 0 {
		return idx, nil
	}

	if err := json.Unmarshal(data, &idx.entries); err != nil {
		return nil, fmt.Errorf("parse fingerprint index %s: %w", filePath, err)
	}
	if idx.entries == nil {
		idx.entries = make(map[string]string)
	}

	return idx, nil
}

func (idx *Index) Lookup(digest string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	dest, ok := idx.entries[digest]
	return dest, ok
}

// Record stores dest for digest. An existing mapping is kept.
func (idx *Index) Record(digest, dest string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.entries[digest]; ok {
		return
	}
	idx.entries[digest] = dest
}

func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Save merges the in-memory entries with whatever is on disk and rewrites
// the file atomically.
func (idx *Index) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if onDisk, err := Load(idx.filePath); err == nil {
		for digest, dest := range onDisk.entries {
			if _, ok := idx.entries[digest]; !ok {
				idx.entries[digest] = dest
			}
		}
	}

	return writeJSONAtomic(idx.filePath, idx.entries)
}

func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
