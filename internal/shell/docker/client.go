// Package docker reads the local image inventory from the Docker daemon.
package docker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/artpar/handel/internal/core/fragment"
	"github.com/artpar/handel/internal/core/version"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// =============================================================================
// Docker Client Implementation
// =============================================================================

// DockerClient implements the Inventory interface using the Docker SDK.
type DockerClient struct {
	cli    *client.Client
	images imageLister
	logger *slog.Logger
}

// NewDockerClient creates a new Docker client.
// If host is empty, it uses the default Docker host from environment.
// On macOS with Docker Desktop, it automatically detects the correct socket.
func NewDockerClient(host string, logger *slog.Logger) (*DockerClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts []client.Opt
	opts = append(opts, client.FromEnv)
	opts = append(opts, client.WithAPIVersionNegotiation())

	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewDockerError("NewDockerClient", "", "", err.Error(), ErrConnectionFailed)
	}

	// Try to ping with default settings
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, pingErr := cli.Ping(ctx); pingErr != nil && host == "" {
		// If default socket fails, try Docker Desktop socket on macOS
		homeDir, _ := os.UserHomeDir()
		dockerDesktopSocket := "unix://" + homeDir + "/.docker/run/docker.sock"

		cli2, err2 := client.NewClientWithOpts(
			client.WithHost(dockerDesktopSocket),
			client.WithAPIVersionNegotiation(),
		)
		if err2 == nil {
			if _, pingErr2 := cli2.Ping(ctx); pingErr2 == nil {
				logger.Debug("using docker desktop socket", "host", dockerDesktopSocket)
				cli.Close()
				return &DockerClient{cli: cli2, images: cli2, logger: logger}, nil
			}
			cli2.Close()
		}
	}

	return &DockerClient{cli: cli, images: cli, logger: logger}, nil
}

// Ping checks if Docker daemon is reachable.
func (d *DockerClient) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return NewDockerError("Ping", "", "", fmt.Sprintf("failed to ping docker: %v", err), ErrConnectionFailed)
	}
	return nil
}

// Close closes the Docker client connection.
func (d *DockerClient) Close() error {
	if d.cli == nil {
		return nil
	}
	return d.cli.Close()
}

// =============================================================================
// Image Operations
// =============================================================================

// LocalVersions lists non-dangling local images and converts every usable
// repo tag into a VersionRecord.
func (d *DockerClient) LocalVersions(ctx context.Context) ([]version.VersionRecord, error) {
	summaries, err := d.images.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("dangling", "false")),
	})
	if err != nil {
		return nil, NewDockerError("LocalVersions", "image", "", err.Error(), ErrImageListFailed)
	}

	records := RecordsFromSummaries(summaries)
	d.logger.Debug("listed local images", "images", len(summaries), "records", len(records))
	return records, nil
}

// RecordsFromSummaries converts image summaries to version records.
// Untagged images and TRUNK builds are skipped. The service name of an image
// is the last path component of its repository. Records come back sorted by
// service, then newest first.
func RecordsFromSummaries(summaries []image.Summary) []version.VersionRecord {
	records := make([]version.VersionRecord, 0, len(summaries))
	for _, s := range summaries {
		builtAt := time.Unix(s.Created, 0).UTC()
		for _, repoTag := range s.RepoTags {
			if strings.HasPrefix(repoTag, untaggedRepository) {
				continue
			}
			ref, err := fragment.ParseImage(repoTag)
			if err != nil || ref.Tag == "" || strings.HasSuffix(ref.Tag, trunkSuffix) {
				continue
			}
			records = append(records, version.VersionRecord{
				Service:    ref.ShortName(),
				Repository: ref.Repository(),
				Tag:        ref.Tag,
				BuiltAt:    builtAt,
			})
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Service != records[j].Service {
			return records[i].Service < records[j].Service
		}
		return records[i].BuiltAt.After(records[j].BuiltAt)
	})
	return records
}
