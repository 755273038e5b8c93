// Package engine runs one generation: load the project and templates, fetch
// the version sources, resolve, verify, initialise volumes, write the compose
// file and print a summary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/artpar/handel/internal/core/compose"
	"github.com/artpar/handel/internal/core/fragment"
	"github.com/artpar/handel/internal/core/graph"
	"github.com/artpar/handel/internal/core/resolve"
	"github.com/artpar/handel/internal/core/scenario"
	"github.com/artpar/handel/internal/core/version"
	"github.com/artpar/handel/internal/shell/project"
	"github.com/artpar/handel/internal/shell/reference"
	"github.com/artpar/handel/internal/shell/templates"
	"github.com/artpar/handel/internal/shell/volumes"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Collaborators
// =============================================================================

// LocalInventory lists locally built images.
type LocalInventory interface {
	LocalVersions(ctx context.Context) ([]version.VersionRecord, error)
}

// ReferenceSource fetches the versions a reference environment runs.
type ReferenceSource interface {
	Fetch(ctx context.Context, feed reference.Feed, env string) (version.ReferenceMap, error)
}

// VolumeInitializer seeds volume directories after resolution.
type VolumeInitializer interface {
	Initialise(ctx context.Context, entries []volumes.Entry, resolved graph.Set) ([]volumes.Outcome, error)
}

// DocumentWriter persists the generated document.
type DocumentWriter interface {
	Write(path string, content []byte) error
}

// =============================================================================
// Engine
// =============================================================================

// DefaultSince is the look-back window used when Options.Since is empty.
const DefaultSince = "24h"

// ErrScenarioRequired is returned when no scenario was given.
var ErrScenarioRequired = errors.New("scenario required")

// ScenarioError reports a missing or unknown scenario with the choices.
type ScenarioError struct {
	Name      string
	Available []string
}

func (e *ScenarioError) Error() string {
	list := "none defined"
	if len(e.Available) > 0 {
		list = strings.Join(e.Available, ", ")
	}
	if e.Name == "" {
		return fmt.Sprintf("no scenario given; available scenarios: %s", list)
	}
	return fmt.Sprintf("unknown scenario %q; available scenarios: %s", e.Name, list)
}

func (e *ScenarioError) Unwrap() error {
	if e.Name == "" {
		return ErrScenarioRequired
	}
	return scenario.ErrUnknownName
}

// Config holds the collaborators of an Engine.
type Config struct {
	FS        afero.Fs          // project file and templates; defaults to the OS filesystem
	Inventory LocalInventory    // nil disables local builds
	Reference ReferenceSource   // nil disables the reference feed
	Volumes   VolumeInitializer // nil disables volume initialisation
	Writer    DocumentWriter
	Stdout    io.Writer // run summary; defaults to os.Stdout
	Logger    *slog.Logger
	Now       func() time.Time
}

// Engine generates compose files.
type Engine struct {
	fs        afero.Fs
	inventory LocalInventory
	reference ReferenceSource
	volumes   VolumeInitializer
	writer    DocumentWriter
	stdout    io.Writer
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Engine from cfg.
func New(cfg Config) *Engine {
	if cfg.FS == nil {
		cfg.FS = afero.NewOsFs()
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		fs:        cfg.FS,
		inventory: cfg.Inventory,
		reference: cfg.Reference,
		volumes:   cfg.Volumes,
		writer:    cfg.Writer,
		stdout:    cfg.Stdout,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

// Options selects what one run generates.
type Options struct {
	ProjectFile string
	Scenario    string
	Env         string
	Since       string // look-back window for local builds, e.g. "24h"
	Output      string
}

// Run generates the compose file for opts. Nothing is written unless every
// stage succeeds.
func (e *Engine) Run(ctx context.Context, opts Options) (*resolve.Result, error) {
	start := e.now()
	log := e.logger.With("run_id", uuid.NewString())

	if opts.Since == "" {
		opts.Since = DefaultSince
	}
	since, err := version.ParseSince(opts.Since)
	if err != nil {
		return nil, err
	}

	proj, reg, scenarios, err := e.load(opts.ProjectFile, log)
	if err != nil {
		return nil, err
	}
	if err := checkScenario(opts.Scenario, proj, reg); err != nil {
		return nil, err
	}
	log.Info("resolving", "scenario", opts.Scenario, "env", opts.Env, "since", since, "fragments", reg.Len())

	// The version sources are independent of the graph work, so fetch them
	// while the selection is computed.
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(fetchCtx)

	var local []version.VersionRecord
	refs := version.ReferenceMap{}
	if e.inventory != nil {
		g.Go(func() error {
			recs, err := e.inventory.LocalVersions(gctx)
			if err != nil {
				return &version.ExternalSourceError{Source: "local images", Err: err}
			}
			local = recs
			return nil
		})
	}
	if e.reference != nil {
		feed := reference.Feed{
			URL:         proj.Reference.URL,
			EnvMappings: proj.Reference.EnvMappings,
			JQFilter:    proj.Reference.JQFilter,
		}
		g.Go(func() error {
			m, err := e.reference.Fetch(gctx, feed, opts.Env)
			if err != nil {
				return &version.ExternalSourceError{Source: "reference feed", Err: err}
			}
			refs = m
			return nil
		})
	}

	sel, selErr := resolve.Select(reg, scenarios, opts.Scenario)
	if selErr != nil {
		cancel()
	}
	fetchErr := g.Wait()
	if selErr != nil {
		return nil, selErr
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	for _, w := range sel.Warnings {
		log.Warn("dependency cycle", "error", w)
	}

	res, err := resolve.Complete(sel, resolve.Snapshot{
		Local:     local,
		Reference: refs,
		Since:     since,
		Now:       start,
		Pool:      proj.PortRange,
	})
	if err != nil {
		return nil, err
	}

	content, err := compose.Marshal(res.Document)
	if err != nil {
		return nil, err
	}
	if err := compose.Verify(ctx, content, res.Document.ServiceNames()); err != nil {
		return nil, fmt.Errorf("generated document rejected: %w", err)
	}

	var outcomes []volumes.Outcome
	if e.volumes != nil && len(proj.VolumeInit) > 0 {
		outcomes, err = e.volumes.Initialise(ctx, volumeEntries(proj.VolumeInit), res.Services)
		if err != nil {
			return nil, err
		}
	}

	if e.writer != nil {
		if err := e.writer.Write(opts.Output, content); err != nil {
			return nil, err
		}
	}
	log.Info("compose file written", "path", opts.Output, "services", res.Services.Len(), "bytes", len(content))

	writeSummary(e.stdout, res, outcomes, opts.Output, start)
	return res, nil
}

// Scenarios lists the scenario names of a project.
func (e *Engine) Scenarios(projectFile string) ([]string, error) {
	proj, err := project.Load(e.fs, projectFile)
	if err != nil {
		return nil, err
	}
	return proj.ScenarioNames(), nil
}

func (e *Engine) load(path string, log *slog.Logger) (*project.Project, *fragment.Registry, *scenario.Graph, error) {
	proj, err := project.Load(e.fs, path)
	if err != nil {
		return nil, nil, nil, err
	}
	scenarios, err := proj.ScenarioGraph()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	reg, err := templates.NewLoader(e.fs, log).Load(proj.TemplateDir)
	if err != nil {
		return nil, nil, nil, err
	}
	return proj, reg, scenarios, nil
}

// checkScenario accepts a scenario name or a bare fragment name.
func checkScenario(name string, proj *project.Project, reg *fragment.Registry) error {
	if name == "" {
		return &ScenarioError{Available: proj.ScenarioNames()}
	}
	if _, ok := proj.Scenarios[name]; ok || reg.Has(name) {
		return nil
	}
	return &ScenarioError{Name: name, Available: proj.ScenarioNames()}
}

func volumeEntries(in []project.VolumeInit) []volumes.Entry {
	out := make([]volumes.Entry, 0, len(in))
	for _, v := range in {
		out = append(out, volumes.Entry{
			Name:     v.Name,
			Source:   v.Source,
			Target:   v.Target,
			Services: v.Services,
		})
	}
	return out
}
