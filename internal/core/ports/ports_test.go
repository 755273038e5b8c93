package ports

import (
	"errors"
	"testing"

	"github.com/artpar/handel/internal/core/fragment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func explicit(service string, host, container int) Request {
	return Request{Service: service, Port: fragment.PortRequest{ContainerPort: container, HostPort: host, Protocol: "tcp"}}
}

func dynamic(service string, container int) Request {
	return Request{Service: service, Port: fragment.PortRequest{ContainerPort: container, Protocol: "tcp"}}
}

func key(service string, container int) Key {
	return Key{Service: service, ContainerPort: container, Protocol: "tcp"}
}

// =============================================================================
// Range Tests
// =============================================================================

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    Range
		wantErr bool
	}{
		{"30000-30100", Range{30000, 30100}, false},
		{" 30100 - 30000 ", Range{30000, 30100}, false},
		{"8080-8080", Range{8080, 8080}, false},
		{"0-10", Range{}, true},
		{"1-70000", Range{}, true},
		{"30000", Range{}, true},
		{"a-b", Range{}, true},
		{"", Range{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRange(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPortRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRange(t *testing.T) {
	r := Range{Start: 30000, End: 30009}
	assert.Equal(t, 10, r.Size())
	assert.Equal(t, "30000-30009", r.String())
}

// =============================================================================
// Allocate Tests
// =============================================================================

func TestAllocate_ExplicitThenDynamic(t *testing.T) {
	pool := &Range{Start: 30000, End: 30010}
	reqs := []Request{
		dynamic("api", 8080),
		explicit("web", 30000, 80),
		dynamic("db", 3306),
		explicit("admin", 30002, 80),
	}

	got, err := Allocate(reqs, pool)
	require.NoError(t, err)
	assert.Equal(t, Allocation{
		key("web", 80):   30000,
		key("admin", 80): 30002,
		key("api", 8080): 30001,
		key("db", 3306):  30003,
	}, got)
}

func TestAllocate_ExplicitOutsidePoolIsKept(t *testing.T) {
	got, err := Allocate([]Request{explicit("web", 8080, 80)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, got[key("web", 80)])
}

func TestAllocate_Conflict(t *testing.T) {
	reqs := []Request{
		explicit("svc-b", 8080, 80),
		dynamic("svc-c", 80),
		explicit("svc-a", 8080, 9000),
	}

	got, err := Allocate(reqs, &Range{Start: 30000, End: 30010})
	require.Error(t, err)
	assert.Nil(t, got, "no partial allocation")

	var ce *PortConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 8080, ce.HostPort)
	assert.Equal(t, []string{"svc-a", "svc-b"}, ce.Services)
	assert.ErrorIs(t, err, ErrPortConflict)
	assert.Contains(t, err.Error(), "svc-a and svc-b")
}

func TestAllocate_SamePortDifferentProtocol(t *testing.T) {
	reqs := []Request{
		explicit("dns", 53, 53),
		{Service: "dns", Port: fragment.PortRequest{ContainerPort: 53, HostPort: 53, Protocol: "udp"}},
	}
	got, err := Allocate(reqs, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAllocate_Exhaustion(t *testing.T) {
	pool := &Range{Start: 30000, End: 30001}
	reqs := []Request{
		explicit("web", 30000, 80),
		dynamic("a", 1),
		dynamic("b", 2),
	}

	_, err := Allocate(reqs, pool)
	var ee *PortExhaustionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "b", ee.Service)
	assert.Equal(t, 2, ee.ContainerPort)
	assert.ErrorIs(t, err, ErrPortExhausted)
}

func TestAllocate_NoPool(t *testing.T) {
	_, err := Allocate([]Request{dynamic("api", 80)}, nil)
	assert.ErrorIs(t, err, ErrNoPortPool)
}

func TestAllocate_Deterministic(t *testing.T) {
	pool := &Range{Start: 40000, End: 40100}
	reqs := []Request{dynamic("a", 1), dynamic("b", 2), explicit("c", 40001, 3), dynamic("d", 4)}

	first, err := Allocate(reqs, pool)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Allocate(reqs, pool)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 40000, first[key("a", 1)])
	assert.Equal(t, 40002, first[key("b", 2)])
	assert.Equal(t, 40003, first[key("d", 4)])
}

func TestAllocate_DuplicateRequest(t *testing.T) {
	_, err := Allocate([]Request{explicit("web", 8080, 80), explicit("web", 8081, 80)}, nil)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestAllocate_Empty(t *testing.T) {
	got, err := Allocate(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
