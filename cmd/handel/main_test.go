package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/handel/internal/core/fragment"
	"github.com/artpar/handel/internal/core/scenario"
	"github.com/artpar/handel/internal/core/version"
	"github.com/artpar/handel/internal/engine"
	"github.com/artpar/handel/internal/shell/output"
	"github.com/artpar/handel/internal/shell/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Exit Code Tests
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", &usageError{msg: "too many"}, ExitUsageError},
		{"no scenario", &engine.ScenarioError{}, ExitUsageError},
		{"unknown scenario", &engine.ScenarioError{Name: "x"}, ExitUsageError},
		{"external source", &version.ExternalSourceError{Source: "local images", Err: errors.New("down")}, ExitSourceError},
		{"write", fmt.Errorf("%w: disk full", output.ErrWriteFailed), ExitWriteError},
		{"project missing", fmt.Errorf("load: %w", project.ErrNotFound), ExitConfigError},
		{"bad fragment", fragment.NewParseError("api", "image", "required", fragment.ErrMissingImage), ExitConfigError},
		{"namespace", scenario.ErrNamespaceConflict, ExitConfigError},
		{"settings", errConfig, ExitConfigError},
		{"unresolvable", &version.UnresolvableVersionError{Service: "api"}, ExitGenerateError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

// =============================================================================
// Command Tests
// =============================================================================

const testProject = `
template-folder-path: templates
port-range: "31000-31005"
scenarios:
  App:
    - api
`

var testTemplates = map[string]string{
	"api.yml": `
image: example/api:2.0
depends_on: [db]
ports:
  - "80"
`,
	"db.yml": `
image: postgres:16
`,
}

func writeTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "templates"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "handel.yml"), []byte(testProject), 0o644))
	for name, content := range testTemplates {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "templates", name), []byte(content), 0o644))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	clearEnv(t)
	t.Setenv("HANDEL_DOCKER_ENABLED", "false")

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestRootCommand_Generates(t *testing.T) {
	dir := writeTestProject(t)
	out := filepath.Join(dir, "out", "docker-compose.yml")

	stdout, err := execute(t, "-c", filepath.Join(dir, "handel.yml"), "-o", out, "-q", "App")
	require.NoError(t, err)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, `services:
  api:
    image: example/api:2.0
    depends_on:
      - db
    ports:
      - 31000:80
  db:
    image: postgres:16
`, string(content))
	assert.Contains(t, stdout, "Required services (start order): db, api")
}

func TestRootCommand_UnknownScenario(t *testing.T) {
	dir := writeTestProject(t)
	out := filepath.Join(dir, "docker-compose.yml")

	_, err := execute(t, "-c", filepath.Join(dir, "handel.yml"), "-o", out, "-q", "Nope")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
	assert.Contains(t, err.Error(), "available scenarios: App")
	assert.NoFileExists(t, out)
}

func TestRootCommand_TooManyArgs(t *testing.T) {
	_, err := execute(t, "App", "Other")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestScenariosCommand(t *testing.T) {
	dir := writeTestProject(t)

	stdout, err := execute(t, "scenarios", "-c", filepath.Join(dir, "handel.yml"))
	require.NoError(t, err)
	assert.Equal(t, "App\n", stdout)
}

func TestVersionCommand(t *testing.T) {
	stdout, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "handel dev (built unknown)\n", stdout)
}
