package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/alvmarrod/contact-weaver/internal/storage"
)

// JSONLines appends one JSON object per line to a dataset file
type JSONLines struct {
	mu   sync.Mutex
	file *os.File
}

// NewJSONLines opens (or creates) path for appending
func NewJSONLines(path string) (*JSONLines, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create dataset directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // user-supplied output path
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	return &JSONLines{file: file}, nil
}

// Append writes rec as a single line
func (j *JSONLines) Append(_ context.Context, rec storage.Record) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Close flushes and closes the file
func (j *JSONLines) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.file.Sync(); err != nil {
		j.file.Close()
		return fmt.Errorf("failed to sync dataset file: %w", err)
	}
	return j.file.Close()
}
