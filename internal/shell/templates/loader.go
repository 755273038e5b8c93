// Package templates reads fragment templates from a directory.
package templates

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/artpar/handel/internal/core/fragment"
	"github.com/spf13/afero"
)

var ErrTemplateDir = errors.New("template directory unreadable")

// Loader builds a fragment registry from *.yml and *.yaml files. Each file
// is one fragment named after its file stem.
type Loader struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewLoader creates a loader over fs.
func NewLoader(fs afero.Fs, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{fs: fs, logger: logger}
}

// Load parses every template in dir. Sub-directories are skipped; other
// files are ignored with a warning. The first invalid template aborts the
// load.
func (l *Loader) Load(dir string) (*fragment.Registry, error) {
	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateDir, dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var fragments []fragment.Fragment
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yml" && ext != ".yaml" {
			l.logger.Warn("ignoring non-template file", "dir", dir, "file", entry.Name())
			continue
		}

		path := filepath.Join(dir, entry.Name())
		content, err := afero.ReadFile(l.fs, path)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", path, err)
		}

		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		f, err := fragment.Parse(name, content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		fragments = append(fragments, f)
	}

	reg, err := fragment.NewRegistry(fragments)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	l.logger.Debug("loaded templates", "dir", dir, "fragments", reg.Len())
	return reg, nil
}
