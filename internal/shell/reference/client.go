// Package reference fetches the versions a reference environment runs from
// an HTTP feed, optionally reshaped by a jq program.
package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/artpar/handel/internal/core/version"
	"github.com/go-resty/resty/v2"
)

// envPlaceholder is replaced by the mapped environment name in Feed.URL.
const envPlaceholder = "{env}"

// Feed describes one reference source from the project file.
type Feed struct {
	URL         string
	EnvMappings map[string]string // run env → env name used in the URL
	JQFilter    string
}

// Configured reports whether a feed URL is set.
func (f Feed) Configured() bool {
	return strings.TrimSpace(f.URL) != ""
}

// MappedEnv translates env through EnvMappings; unmapped names pass through.
func (f Feed) MappedEnv(env string) string {
	if mapped, ok := f.EnvMappings[env]; ok {
		return mapped
	}
	return env
}

// URLFor returns the feed URL for env.
//
// Example:
//
//	Feed{URL: "https://versions.example.com/{env}.json", EnvMappings: map[string]string{"stg": "staging"}}.URLFor("stg")
//	// "https://versions.example.com/staging.json"
func (f Feed) URLFor(env string) (string, error) {
	if !strings.Contains(f.URL, envPlaceholder) {
		return f.URL, nil
	}
	mapped := f.MappedEnv(env)
	if mapped == "" {
		return "", ErrEnvRequired
	}
	return strings.ReplaceAll(f.URL, envPlaceholder, mapped), nil
}

// =============================================================================
// Client Implementation
// =============================================================================

// Config holds configuration for the reference client.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// DefaultConfig returns default reference client configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:   10 * time.Second,
		UserAgent: "handel",
	}
}

// Client reads reference feeds over HTTP.
type Client struct {
	http   *resty.Client
	filter Filter
	logger *slog.Logger
}

// NewClient creates a reference client. filter runs the feed's jq program;
// it may be nil when no feed uses one.
func NewClient(cfg Config, filter Filter, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		http: resty.New().
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", cfg.UserAgent),
		filter: filter,
		logger: logger,
	}
}

// entry is one element of the decoded feed.
type entry struct {
	Name    string     `json:"name"`
	Version flexString `json:"version"`
}

// Fetch downloads the feed for env and returns service → version. An
// unconfigured feed yields an empty map. The first entry for a name wins.
func (c *Client) Fetch(ctx context.Context, feed Feed, env string) (version.ReferenceMap, error) {
	refs := version.ReferenceMap{}
	if !feed.Configured() {
		return refs, nil
	}

	url, err := feed.URLFor(env)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, &FeedError{URL: url, Message: err.Error(), Err: ErrFeedUnreachable}
	}
	if resp.IsError() {
		return nil, &FeedError{URL: url, Status: resp.StatusCode(), Message: resp.Status(), Err: ErrFeedStatus}
	}

	body := resp.Body()
	if strings.TrimSpace(feed.JQFilter) != "" {
		if c.filter == nil {
			return nil, &FeedError{URL: url, Message: "jq-filter set but no filter available", Err: ErrFilterFailed}
		}
		body, err = c.filter.Apply(ctx, feed.JQFilter, body)
		if err != nil {
			return nil, &FeedError{URL: url, Message: err.Error(), Err: ErrFilterFailed}
		}
	}

	var entries []entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, &FeedError{URL: url, Message: fmt.Sprintf("want [{\"name\": ..., \"version\": ...}]: %v", err), Err: ErrInvalidFeed}
	}

	for _, e := range entries {
		if e.Name == "" || e.Version == "" {
			continue
		}
		if _, seen := refs[e.Name]; seen {
			continue
		}
		refs[e.Name] = string(e.Version)
	}

	c.logger.Debug("fetched reference versions", "url", url, "entries", len(entries), "services", len(refs))
	return refs, nil
}

// flexString decodes a JSON string or number as text.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("version must be a string or a number, got %s", data)
	}
	*s = flexString(num.String())
	return nil
}
