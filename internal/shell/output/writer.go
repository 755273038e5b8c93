// Package output persists the generated compose document.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"
)

// ErrWriteFailed wraps every failure to persist a document.
var ErrWriteFailed = errors.New("write failed")

// FileWriter writes documents atomically: readers see either the previous
// file or the complete new one, never a partial write.
type FileWriter struct {
	Perm os.FileMode
}

// NewFileWriter returns a writer producing 0644 files.
func NewFileWriter() *FileWriter {
	return &FileWriter{Perm: 0o644}
}

// Write replaces path with content, creating parent directories as needed.
func (w *FileWriter) Write(path string, content []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create output directory: %w", ErrWriteFailed, err)
		}
	}
	if err := atomicwriter.WriteFile(path, content, w.Perm); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	return nil
}
