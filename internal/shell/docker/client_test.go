package docker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/docker/docker/api/types/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func skipIfNoDocker(t *testing.T) *DockerClient {
	t.Helper()
	cli, err := NewDockerClient("", testLogger())
	if err != nil {
		t.Skip("Docker not available:", err)
	}
	if err := cli.Ping(context.Background()); err != nil {
		cli.Close()
		t.Skip("Docker not reachable:", err)
	}
	return cli
}

// fakeLister returns canned summaries.
type fakeLister struct {
	summaries []image.Summary
	err       error
	opts      image.ListOptions
}

func (f *fakeLister) ImageList(_ context.Context, opts image.ListOptions) ([]image.Summary, error) {
	f.opts = opts
	return f.summaries, f.err
}

// =============================================================================
// Conversion Tests
// =============================================================================

func TestRecordsFromSummaries(t *testing.T) {
	older := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	summaries := []image.Summary{
		{Created: older.Unix(), RepoTags: []string{"1234.dkr.ecr.us-east-1.amazonaws.com/api:1.0.1"}},
		{Created: newer.Unix(), RepoTags: []string{"1234.dkr.ecr.us-east-1.amazonaws.com/api:1.0.2", "api:latest-local"}},
		{Created: newer.Unix(), RepoTags: []string{"<none>:<none>"}},
		{Created: newer.Unix(), RepoTags: []string{"team/web:5.0.0-TRUNK"}},
		{Created: newer.Unix(), RepoTags: []string{"team/web:5.0.0"}},
		{Created: newer.Unix(), RepoTags: nil},
	}

	got := RecordsFromSummaries(summaries)
	require.Len(t, got, 4)

	assert.Equal(t, "api", got[0].Service)
	assert.Equal(t, newer, got[0].BuiltAt)
	assert.Equal(t, "api", got[2].Service)
	assert.Equal(t, "1.0.1", got[2].Tag)
	assert.Equal(t, "1234.dkr.ecr.us-east-1.amazonaws.com/api", got[2].Repository)

	assert.Equal(t, "web", got[3].Service)
	assert.Equal(t, "5.0.0", got[3].Tag)
	assert.Equal(t, "team/web", got[3].Repository)
}

func TestRecordsFromSummaries_Empty(t *testing.T) {
	got := RecordsFromSummaries(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLocalVersions_FakeLister(t *testing.T) {
	lister := &fakeLister{summaries: []image.Summary{
		{Created: time.Now().Unix(), RepoTags: []string{"redis:6"}},
	}}
	d := &DockerClient{images: lister, logger: testLogger()}

	got, err := d.LocalVersions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "redis", got[0].Service)
	assert.Equal(t, "6", got[0].Tag)
	assert.Equal(t, []string{"false"}, lister.opts.Filters.Get("dangling"))
}

func TestLocalVersions_Error(t *testing.T) {
	d := &DockerClient{images: &fakeLister{err: errors.New("daemon gone")}, logger: testLogger()}

	_, err := d.LocalVersions(context.Background())
	assert.ErrorIs(t, err, ErrImageListFailed)

	var de *DockerError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "LocalVersions", de.Op)
	assert.Contains(t, err.Error(), "daemon gone")
}

// =============================================================================
// Daemon Tests
// =============================================================================

func TestNewDockerClient_Success(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	assert.NotNil(t, cli)
}

func TestLocalVersions_Daemon(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	records, err := cli.LocalVersions(context.Background())
	require.NoError(t, err)
	for _, r := range records {
		assert.NotEmpty(t, r.Service)
		assert.NotEmpty(t, r.Tag)
	}
}
