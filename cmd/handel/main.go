package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/artpar/handel/internal/core/fragment"
	"github.com/artpar/handel/internal/core/scenario"
	"github.com/artpar/handel/internal/core/version"
	"github.com/artpar/handel/internal/engine"
	"github.com/artpar/handel/internal/shell/output"
	"github.com/artpar/handel/internal/shell/project"
	"github.com/artpar/handel/internal/shell/templates"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitGenerateError = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitSourceError   = 4
	ExitWriteError    = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCommand(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &usage),
		errors.Is(err, engine.ErrScenarioRequired),
		errors.Is(err, scenario.ErrUnknownName):
		return ExitUsageError
	case errors.Is(err, version.ErrExternalSource):
		return ExitSourceError
	case errors.Is(err, output.ErrWriteFailed):
		return ExitWriteError
	case errors.Is(err, project.ErrNotFound),
		errors.Is(err, project.ErrInvalidProject),
		errors.Is(err, templates.ErrTemplateDir),
		errors.Is(err, version.ErrInvalidSince),
		errors.Is(err, scenario.ErrNamespaceConflict),
		errors.Is(err, scenario.ErrInvalidScenario),
		errors.Is(err, fragment.ErrDuplicateFragment),
		errors.As(err, new(*fragment.ParseError)),
		errors.Is(err, errConfig):
		return ExitConfigError
	default:
		return ExitGenerateError
	}
}
