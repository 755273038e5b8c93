// Package project loads the handel project file: where the templates live,
// the dynamic port pool, the reference feed, the scenarios and the volume
// initialisation entries.
package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/artpar/handel/internal/core/ports"
	"github.com/artpar/handel/internal/core/scenario"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound       = errors.New("project file not found")
	ErrInvalidProject = errors.New("invalid project file")
)

// Project is the decoded project file.
type Project struct {
	Path        string // file the project was loaded from
	TemplateDir string // absolute, or relative to the working directory
	PortRange   *ports.Range
	Reference   Reference
	Scenarios   map[string][]string
	VolumeInit  []VolumeInit
}

// Reference configures the reference version feed.
type Reference struct {
	URL         string            `yaml:"url"`
	EnvMappings map[string]string `yaml:"env-mappings"`
	JQFilter    string            `yaml:"jq-filter"`
}

// VolumeInit seeds a host directory from a zip archive before the stack runs.
type VolumeInit struct {
	Name     string   `yaml:"name"`
	Source   string   `yaml:"source"` // local path or s3://bucket/key
	Target   string   `yaml:"target"`
	Services []string `yaml:"services"` // empty = always
}

// rawProject mirrors the file layout; keys are kebab-case.
type rawProject struct {
	TemplateFolderPath string              `yaml:"template-folder-path"`
	PortRange          string              `yaml:"port-range"`
	Reference          Reference           `yaml:"reference"`
	Scenarios          map[string][]string `yaml:"scenarios"`
	VolumeInit         []VolumeInit        `yaml:"volume-init"`
}

// Load reads and validates the project file at path. A relative
// template-folder-path is resolved against the project file's directory.
func Load(fs afero.Fs, path string) (*Project, error) {
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, afero.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read project file %s: %w", path, err)
	}
	return Parse(path, content)
}

// Parse decodes project file content. path is used for error messages and to
// anchor a relative template directory.
func Parse(path string, content []byte) (*Project, error) {
	var raw rawProject
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidProject, path, err)
	}

	if strings.TrimSpace(raw.TemplateFolderPath) == "" {
		return nil, fmt.Errorf("%w: %s: template-folder-path is required", ErrInvalidProject, path)
	}

	p := &Project{
		Path:        path,
		TemplateDir: raw.TemplateFolderPath,
		Reference:   raw.Reference,
		Scenarios:   raw.Scenarios,
		VolumeInit:  raw.VolumeInit,
	}
	if !filepath.IsAbs(p.TemplateDir) {
		p.TemplateDir = filepath.Join(filepath.Dir(path), p.TemplateDir)
	}
	if p.Scenarios == nil {
		p.Scenarios = map[string][]string{}
	}

	if strings.TrimSpace(raw.PortRange) != "" {
		r, err := ports.ParseRange(raw.PortRange)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: port-range: %v", ErrInvalidProject, path, err)
		}
		p.PortRange = &r
	}

	for i, v := range p.VolumeInit {
		if strings.TrimSpace(v.Source) == "" || strings.TrimSpace(v.Target) == "" {
			return nil, fmt.Errorf("%w: %s: volume-init[%d]: source and target are required", ErrInvalidProject, path, i)
		}
		if v.Name == "" {
			p.VolumeInit[i].Name = filepath.Base(v.Target)
		}
	}

	return p, nil
}

// ScenarioGraph builds the scenario graph of the project.
func (p *Project) ScenarioGraph() (*scenario.Graph, error) {
	return scenario.NewGraph(p.Scenarios)
}

// ScenarioNames returns the scenario names, sorted.
func (p *Project) ScenarioNames() []string {
	names := make([]string, 0, len(p.Scenarios))
	for name := range p.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
