package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/artpar/handel/internal/core/version"
	"github.com/artpar/handel/internal/engine"
	"github.com/artpar/handel/internal/shell/docker"
	"github.com/artpar/handel/internal/shell/output"
	"github.com/artpar/handel/internal/shell/reference"
	"github.com/artpar/handel/internal/shell/volumes"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// usageError reports bad command line usage.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// =============================================================================
// Commands
// =============================================================================

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var (
		verbose int
		quiet   bool
	)

	root := &cobra.Command{
		Use:   "handel [scenario]",
		Short: "Generate a docker-compose file from fragment templates",
		Long: `handel expands a scenario from the project file into a set of services,
adds their dependencies, picks an image version for each one (a recent local
build, the version a reference environment runs, or the template default),
allocates host ports and writes a docker-compose file.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return &usageError{msg: fmt.Sprintf("expected at most one scenario, got %d", len(args))}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			switch {
			case quiet:
				cfg.Log.Level = "error"
			case verbose > 0:
				cfg.Log.Level = "debug"
			}
			logger := SetupLogger(cfg, stderr)

			var name string
			if len(args) == 1 {
				name = args[0]
			}
			return generate(cmd, cfg, name, stdout, logger)
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "project file (default handel.yml)")
	flags.StringP("env", "e", "", "reference environment")
	flags.StringP("since", "s", "", "look-back window for local builds, e.g. 24h, 2d, 0.5 (default 24h)")
	flags.StringP("output", "o", "", "compose file to write (default docker-compose.yml)")
	flags.String("log-format", "", "log format: text or json")
	root.Flags().CountVarP(&verbose, "verbose", "v", "debug logging")
	root.Flags().BoolVarP(&quiet, "quiet", "q", false, "log errors only")

	root.AddCommand(newScenariosCommand(stdout), newVersionCommand(stdout))
	return root
}

func newScenariosCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the scenarios defined in the project file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			names, err := engine.New(engine.Config{Stdout: stdout}).Scenarios(cfg.Project)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(stdout, n)
			}
			return nil
		},
	}
}

func newVersionCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(stdout, "handel %s (built %s)\n", Version, BuildTime)
		},
	}
}

// =============================================================================
// Wiring
// =============================================================================

func generate(cmd *cobra.Command, cfg *Config, scenario string, stdout io.Writer, logger *slog.Logger) error {
	ecfg := engine.Config{
		FS:     afero.NewOsFs(),
		Writer: output.NewFileWriter(),
		Stdout: stdout,
		Logger: logger,
		Reference: reference.NewClient(reference.Config{
			Timeout:   cfg.Reference.Timeout,
			UserAgent: "handel/" + Version,
		}, reference.JQ{Path: cfg.Reference.JQPath}, logger),
	}

	if cfg.Docker.Enabled {
		dc, err := docker.NewDockerClient(cfg.Docker.Host, logger)
		if err != nil {
			return &version.ExternalSourceError{Source: "local images", Err: err}
		}
		defer dc.Close()
		ecfg.Inventory = dc
	}

	if cfg.Volumes.Enabled {
		store, err := volumes.NewS3Store(volumes.S3Config{
			Endpoint: cfg.S3.Endpoint,
			Region:   cfg.S3.Region,
			UseSSL:   cfg.S3.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("%w: s3: %w", errConfig, err)
		}
		ecfg.Volumes = volumes.NewInitializer(afero.NewOsFs(), store, logger)
	}

	logger.Debug("generating", "project", cfg.Project, "scenario", scenario, "env", cfg.Env, "docker", cfg.Docker.Enabled)
	_, err := engine.New(ecfg).Run(cmd.Context(), engine.Options{
		ProjectFile: cfg.Project,
		Scenario:    scenario,
		Env:         cfg.Env,
		Since:       cfg.Since,
		Output:      cfg.Output,
	})
	return err
}
