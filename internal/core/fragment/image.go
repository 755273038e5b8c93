package fragment

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"
)

// ImageRef is a parsed image reference split into repository and tag.
type ImageRef struct {
	named reference.Named // repository only, tag and digest stripped
	Tag   string
}

// ParseImage parses an image string such as "wurstmeister/kafka:2.12-2.4.0"
// or "1234.dkr.ecr.us-east-1.amazonaws.com/api:1.0.423".
func ParseImage(image string) (ImageRef, error) {
	named, err := reference.ParseNormalizedNamed(strings.TrimSpace(image))
	if err != nil {
		return ImageRef{}, fmt.Errorf("%w: %q: %v", ErrInvalidImage, image, err)
	}

	ref := ImageRef{named: reference.TrimNamed(named)}
	if tagged, ok := named.(reference.Tagged); ok {
		ref.Tag = tagged.Tag()
	}
	return ref, nil
}

// Repository returns the repository in its familiar form, e.g. "memcached"
// rather than "docker.io/library/memcached".
func (r ImageRef) Repository() string {
	return reference.FamiliarName(r.named)
}

// ShortName returns the last path component of the repository. Local images
// and reference entries are keyed by it.
//
// Example:
//
//	ref, _ := ParseImage("registry.example.com/team/contentrepo:1.0")
//	ref.ShortName() // "contentrepo"
func (r ImageRef) ShortName() string {
	path := reference.Path(r.named)
	return path[strings.LastIndex(path, "/")+1:]
}

// WithTag returns the repository combined with tag in familiar form.
func (r ImageRef) WithTag(tag string) (string, error) {
	tagged, err := reference.WithTag(r.named, tag)
	if err != nil {
		return "", fmt.Errorf("%w: tag %q: %v", ErrInvalidImage, tag, err)
	}
	return reference.FamiliarString(tagged), nil
}

func (r ImageRef) String() string {
	if r.Tag == "" {
		return r.Repository()
	}
	return r.Repository() + ":" + r.Tag
}
