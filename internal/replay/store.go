package replay

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// fileMutex serialises writers within this process.
var fileMutex sync.Mutex

// Save writes rec to path as indented JSON, replacing any existing file.
// The write goes to a temporary file first and is renamed into place.
func Save(rec *Recording, path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &StoreError{Kind: KindIO, Op: "save", Path: path, Err: err}
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &StoreError{Kind: KindIO, Op: "save", Path: path, Err: err}
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return &StoreError{Kind: KindIO, Op: "save", Path: path, Err: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return &StoreError{Kind: KindIO, Op: "save", Path: path, Err: err}
	}

	return nil
}

// Load reads a recording written by Save. A missing file yields an error
// matching ErrNotFound; unparseable content one matching ErrMalformed.
func Load(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &StoreError{Kind: KindNotFound, Op: "load", Path: path, Err: err}
		}
		return nil, &StoreError{Kind: KindIO, Op: "load", Path: path, Err: err}
	}

	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &StoreError{Kind: KindMalformed, Op: "load", Path: path, Err: err}
	}

	return &rec, nil
}
