package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
)

// FileKV keeps the whole key space in one JSON file, rewritten on every Apply.
type FileKV struct {
	mu       sync.Mutex
	filePath string
	data     map[string]string
}

// NewFileKV loads filePath, starting empty if the file doesn't exist.
func NewFileKV(filePath string) (*FileKV, error) {
	f := &FileKV{filePath: filePath, data: map[string]string{}}
	raw, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, errors.Wrap(err, "read state file")
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &f.data); err != nil {
			return nil, errors.Wrap(err, "parse state file")
		}
	}
	return f, nil
}

func (f *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *FileKV) Apply(_ context.Context, puts map[string]string, dels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := make(map[string]string, len(f.data)+len(puts))
	for k, v := range f.data {
		next[k] = v
	}
	for k, v := range puts {
		next[k] = v
	}
	for _, k := range dels {
		delete(next, k)
	}
	if err := f.write(next); err != nil {
		return err
	}
	f.data = next
	return nil
}

func (f *FileKV) Close() error { return nil }

// write replaces the file via rename so a crash never leaves half a document.
func (f *FileKV) write(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode state file")
	}
	if dir := filepath.Dir(f.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create state dir")
		}
	}
	tmp := f.filePath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return errors.Wrap(err, "write state file")
	}
	return errors.Wrap(os.Rename(tmp, f.filePath), "replace state file")
}
