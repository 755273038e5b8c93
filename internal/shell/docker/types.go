package docker

import (
	"context"

	"github.com/docker/docker/api/types/image"
)

// imageLister is the part of the Docker SDK client the inventory calls.
type imageLister interface {
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
}

const (
	// untaggedRepository marks dangling images in docker's output.
	untaggedRepository = "<none>"
	// trunkSuffix marks CI builds of the main line, never run locally.
	trunkSuffix = "TRUNK"
)
