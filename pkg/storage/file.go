package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// File keeps every key of an origin in one JSON object on disk, the way a
// browser profile keeps localStorage. The file is re-read on every call so
// separate processes see each other's writes; the last writer wins.
type File struct {
	path string
}

// NewFile returns a store backed by path. The file is created on first write.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file.
func (f *File) Path() string {
	return f.path
}

func (f *File) GetItem(ctx context.Context, key string) (string, bool, error) {
	items, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := items[key]
	return v, ok, nil
}

func (f *File) SetItem(ctx context.Context, key, value string) error {
	items, err := f.load()
	if err != nil {
		return err
	}
	items[key] = value
	return f.save(items)
}

// Keys returns every stored key, sorted.
func (f *File) Keys() ([]string, error) {
	items, err := f.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *File) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to read store: %w", err)
	}

	var items map[string]string
	if err := json.Unmarshal(data, &items); err != nil || items == nil {
		// Corrupted - start fresh
		return make(map[string]string), nil
	}
	return items, nil
}

// save writes the store atomically.
func (f *File) save(items map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	return os.Rename(tempPath, f.path)
}
