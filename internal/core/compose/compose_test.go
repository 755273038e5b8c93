package compose

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/artpar/handel/internal/core/fragment"
	"github.com/artpar/handel/internal/core/graph"
	"github.com/artpar/handel/internal/core/ports"
	"github.com/bradleyjkemp/cupaloy/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fixtures
// =============================================================================

func fixtureRegistry(t *testing.T) *fragment.Registry {
	t.Helper()
	reg, err := fragment.NewRegistry([]fragment.Fragment{
		{
			Name:        "api",
			Image:       "example/api:1.0",
			Restart:     fragment.RestartAlways,
			DependsOn:   []string{"db"},
			Environment: fragment.Environment{"A": ptr("1")},
			Ports:       []fragment.PortRequest{{ContainerPort: 80, Protocol: "tcp"}},
		},
		{
			Name:    "db",
			Image:   "mysql:8.0",
			Restart: fragment.RestartNo,
		},
		{
			Name:        "web",
			Image:       "registry.example.com/team/web",
			Restart:     fragment.RestartUnlessStopped,
			Platform:    "linux/amd64",
			DependsOn:   []string{"api"},
			Environment: fragment.Environment{"Z_LAST": ptr("z"), "API_URL": ptr("http://api:80"), "TOKEN": ptr("${TOKEN}"), "FROM_SHELL": nil},
			Ports: []fragment.PortRequest{
				{ContainerPort: 80, HostPort: 8080, Protocol: "tcp"},
				{ContainerPort: 53, Protocol: "udp", HostIP: "127.0.0.1"},
			},
			Volumes: []string{"./static:/usr/share/nginx/html:ro"},
		},
	})
	require.NoError(t, err)
	return reg
}

const expectedTwoServices = `services:
  api:
    image: example/api:1.0
    restart: always
    depends_on:
      - db
    environment:
      A: "1"
    ports:
      - 30000:80
  db:
    image: mysql:8.0
`

// =============================================================================
// Assemble Tests
// =============================================================================

func TestAssemble_ExactOutput(t *testing.T) {
	reg := fixtureRegistry(t)
	alloc := ports.Allocation{{Service: "api", ContainerPort: 80, Protocol: "tcp"}: 30000}

	doc, err := Assemble(reg, graph.NewSet("api", "db"), map[string]string{"api": "1.0", "db": "8.0"}, alloc)
	require.NoError(t, err)

	out, err := Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, expectedTwoServices, string(out))
}

func TestAssemble_Fields(t *testing.T) {
	reg := fixtureRegistry(t)
	alloc := ports.Allocation{
		{Service: "api", ContainerPort: 80, Protocol: "tcp"}: 30000,
		{Service: "web", ContainerPort: 80, Protocol: "tcp"}: 8080,
		{Service: "web", ContainerPort: 53, Protocol: "udp"}: 30001,
	}
	versions := map[string]string{"api": "1.1-dev", "db": "8.0", "web": "2.0"}

	doc, err := Assemble(reg, graph.NewSet("api", "db", "web"), versions, alloc)
	require.NoError(t, err)

	assert.Equal(t, []string{"api", "db", "web"}, doc.ServiceNames())

	web := doc.Services["web"]
	assert.Equal(t, "registry.example.com/team/web:2.0", web.Image)
	assert.Equal(t, "unless-stopped", web.Restart)
	assert.Equal(t, "linux/amd64", web.Platform)
	assert.Equal(t, []string{"api"}, web.DependsOn)
	assert.Equal(t, []string{"8080:80", "127.0.0.1:30001:53/udp"}, web.Ports)
	assert.Equal(t, ptr("${TOKEN}"), web.Environment["TOKEN"])
	require.Contains(t, web.Environment, "FROM_SHELL")
	assert.Nil(t, web.Environment["FROM_SHELL"])
	assert.Equal(t, []string{"./static:/usr/share/nginx/html:ro"}, web.Volumes)

	assert.Equal(t, "example/api:1.1-dev", doc.Services["api"].Image)
	assert.Empty(t, doc.Services["db"].Restart, "restart no is omitted")
}

func TestAssemble_Errors(t *testing.T) {
	reg := fixtureRegistry(t)
	alloc := ports.Allocation{{Service: "api", ContainerPort: 80, Protocol: "tcp"}: 30000}

	tests := []struct {
		name     string
		services graph.Set
		versions map[string]string
		alloc    ports.Allocation
		wantErr  error
	}{
		{"missing version", graph.NewSet("db"), map[string]string{}, alloc, ErrMissingVersion},
		{"missing port", graph.NewSet("api", "db"), map[string]string{"api": "1", "db": "1"}, ports.Allocation{}, ErrMissingPort},
		{"dependency outside selection", graph.NewSet("api"), map[string]string{"api": "1"}, alloc, ErrForeignDependency},
		{"unknown service", graph.NewSet("ghost"), map[string]string{"ghost": "1"}, alloc, ErrUnknownService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(reg, tt.services, tt.versions, tt.alloc)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

// =============================================================================
// Marshal Tests
// =============================================================================

func TestMarshal_Deterministic(t *testing.T) {
	reg := fixtureRegistry(t)
	alloc := ports.Allocation{
		{Service: "api", ContainerPort: 80, Protocol: "tcp"}: 30000,
		{Service: "web", ContainerPort: 80, Protocol: "tcp"}: 8080,
		{Service: "web", ContainerPort: 53, Protocol: "udp"}: 30001,
	}
	versions := map[string]string{"api": "1", "db": "2", "web": "3"}

	var first []byte
	for i := 0; i < 20; i++ {
		doc, err := Assemble(reg, graph.NewSet("web", "db", "api"), versions, alloc)
		require.NoError(t, err)
		out, err := Marshal(doc)
		require.NoError(t, err)
		if first == nil {
			first = out
			continue
		}
		assert.Equal(t, string(first), string(out))
	}

	s := string(first)
	assert.Less(t, strings.Index(s, "API_URL"), strings.Index(s, "TOKEN"))
	assert.Less(t, strings.Index(s, "TOKEN"), strings.Index(s, "Z_LAST"))
}

func TestMarshal_ByteOrder(t *testing.T) {
	doc := &Document{Services: map[string]Service{
		"svc9":  {Image: "a:1"},
		"svc10": {Image: "b:1"},
		"Alpha": {Image: "c:1"},
	}}
	out, err := Marshal(doc)
	require.NoError(t, err)

	s := string(out)
	assert.Less(t, strings.Index(s, "Alpha:"), strings.Index(s, "svc10:"))
	assert.Less(t, strings.Index(s, "svc10:"), strings.Index(s, "svc9:"))
}

func TestMarshal_Empty(t *testing.T) {
	out, err := Marshal(&Document{})
	require.NoError(t, err)
	assert.Equal(t, "services: {}\n", string(out))
}

func TestMarshal_NullEnvironmentValue(t *testing.T) {
	doc := &Document{Services: map[string]Service{
		"svc": {Image: "svc:1", Environment: Environment{"FROM_SHELL": nil, "SET": ptr("")}},
	}}
	out, err := Marshal(doc)
	require.NoError(t, err)

	assert.Equal(t, `services:
  svc:
    image: svc:1
    environment:
      FROM_SHELL: null
      SET: ""
`, string(out))
	assert.NoError(t, Verify(context.Background(), out, []string{"svc"}))
}

func TestMarshal_Snapshot(t *testing.T) {
	reg := fixtureRegistry(t)
	alloc := ports.Allocation{
		{Service: "api", ContainerPort: 80, Protocol: "tcp"}: 30000,
		{Service: "web", ContainerPort: 80, Protocol: "tcp"}: 8080,
		{Service: "web", ContainerPort: 53, Protocol: "udp"}: 30001,
	}
	doc, err := Assemble(reg, graph.NewSet("api", "db", "web"), map[string]string{"api": "1", "db": "2", "web": "3"}, alloc)
	require.NoError(t, err)

	out, err := Marshal(doc)
	require.NoError(t, err)
	cupaloy.SnapshotT(t, string(out))
}

// =============================================================================
// Verify Tests
// =============================================================================

func TestVerify(t *testing.T) {
	reg := fixtureRegistry(t)
	alloc := ports.Allocation{
		{Service: "api", ContainerPort: 80, Protocol: "tcp"}: 30000,
		{Service: "web", ContainerPort: 80, Protocol: "tcp"}: 8080,
		{Service: "web", ContainerPort: 53, Protocol: "udp"}: 30001,
	}
	doc, err := Assemble(reg, graph.NewSet("api", "db", "web"), map[string]string{"api": "1", "db": "2", "web": "3"}, alloc)
	require.NoError(t, err)
	out, err := Marshal(doc)
	require.NoError(t, err)

	assert.NoError(t, Verify(context.Background(), out, doc.ServiceNames()))
}

func TestVerify_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []string
		wantErr  error
	}{
		{"empty", "  ", nil, ErrEmptyInput},
		{"not yaml", "services: [", nil, ErrInvalidYAML},
		{"undefined dependency", "services:\n  a:\n    image: a:1\n    depends_on:\n      - b\n", nil, ErrInvalidDocument},
		{"missing service", "services:\n  a:\n    image: a:1\n", []string{"a", "b"}, ErrServiceMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(context.Background(), []byte(tt.content), tt.expected)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func ptr(s string) *string { return &s }
