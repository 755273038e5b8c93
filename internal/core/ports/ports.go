// Package ports assigns host ports to the port requests of selected services.
// Pure functions only: the caller passes the requests and the pool, and
// receives the full allocation or an error, never a partial result.
package ports

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/artpar/handel/internal/core/fragment"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrNoPortPool       = errors.New("dynamic host port requested but no port-range is configured")
	ErrPortConflict     = errors.New("host port requested twice")
	ErrPortExhausted    = errors.New("no available ports in range")
	ErrInvalidPortRange = errors.New("invalid port range")
	ErrDuplicateRequest = errors.New("container port published twice by one service")
)

// PortConflictError names an explicit host port and every service that asked
// for it.
type PortConflictError struct {
	HostPort int
	Protocol string
	Services []string
}

func (e *PortConflictError) Error() string {
	return fmt.Sprintf("host port %d/%s requested by %s", e.HostPort, e.Protocol, strings.Join(e.Services, " and "))
}

func (e *PortConflictError) Unwrap() error {
	return ErrPortConflict
}

// PortExhaustionError is returned when the pool has no free port left for a
// dynamic request.
type PortExhaustionError struct {
	Service       string
	ContainerPort int
	Pool          Range
}

func (e *PortExhaustionError) Error() string {
	return fmt.Sprintf("service %s: no free host port in %s for container port %d", e.Service, e.Pool, e.ContainerPort)
}

func (e *PortExhaustionError) Unwrap() error {
	return ErrPortExhausted
}

// =============================================================================
// Range
// =============================================================================

// Range defines the pool dynamic host ports are drawn from.
type Range struct {
	Start int // Inclusive, e.g., 30000
	End   int // Inclusive, e.g., 30100
}

var rangePattern = regexp.MustCompile(`^\s*(\d{1,5})\s*-\s*(\d{1,5})\s*$`)

// ParseRange parses "start-end". Reversed bounds are swapped; ports must be
// in 1..65535.
//
// Example:
//
//	ParseRange("30100-30000") // Range{Start: 30000, End: 30100}
func ParseRange(s string) (Range, error) {
	m := rangePattern.FindStringSubmatch(s)
	if m == nil {
		return Range{}, fmt.Errorf("%w: %q (want start-end)", ErrInvalidPortRange, s)
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if start > end {
		start, end = end, start
	}
	if start < 1 || end > 65535 {
		return Range{}, fmt.Errorf("%w: %q (ports must be 1-65535)", ErrInvalidPortRange, s)
	}
	return Range{Start: start, End: end}, nil
}

// Size returns the number of ports in the range.
func (r Range) Size() int {
	return r.End - r.Start + 1
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// =============================================================================
// Allocation
// =============================================================================

// Request is one port request of one service.
type Request struct {
	Service string
	Port    fragment.PortRequest
}

// Key identifies an allocated binding.
type Key struct {
	Service       string
	ContainerPort int
	Protocol      string
}

// Allocation maps each request to its host port.
type Allocation map[Key]int

// KeyFor builds the allocation key of a request.
func KeyFor(service string, p fragment.PortRequest) Key {
	return Key{Service: service, ContainerPort: p.ContainerPort, Protocol: p.Protocol}
}

type reservation struct {
	port     int
	protocol string
}

// Allocate assigns host ports.
//
// Explicit host ports are reserved first, in request order; a host port
// requested twice for the same protocol fails with PortConflictError naming
// every service involved. Dynamic requests then receive, in request order,
// the lowest port of pool not already reserved. pool may be nil when no
// request is dynamic.
//
// The result is identical for identical input.
func Allocate(requests []Request, pool *Range) (Allocation, error) {
	alloc := make(Allocation, len(requests))
	reserved := make(map[reservation]string)
	taken := make(map[int]bool)

	keys := make(map[Key]bool, len(requests))
	for _, req := range requests {
		k := KeyFor(req.Service, req.Port)
		if keys[k] {
			return nil, fmt.Errorf("%w: service %s container port %d/%s", ErrDuplicateRequest, req.Service, k.ContainerPort, k.Protocol)
		}
		keys[k] = true
	}

	for _, req := range requests {
		if req.Port.Dynamic() {
			continue
		}
		key := reservation{port: req.Port.HostPort, protocol: req.Port.Protocol}
		if _, dup := reserved[key]; dup {
			return nil, conflict(requests, key)
		}
		reserved[key] = req.Service
		taken[req.Port.HostPort] = true
		alloc[KeyFor(req.Service, req.Port)] = req.Port.HostPort
	}

	next := 0
	for _, req := range requests {
		if !req.Port.Dynamic() {
			continue
		}
		if pool == nil {
			return nil, fmt.Errorf("%w: service %s container port %d", ErrNoPortPool, req.Service, req.Port.ContainerPort)
		}
		if next < pool.Start {
			next = pool.Start
		}
		for next <= pool.End && taken[next] {
			next++
		}
		if next > pool.End {
			return nil, &PortExhaustionError{Service: req.Service, ContainerPort: req.Port.ContainerPort, Pool: *pool}
		}
		taken[next] = true
		alloc[KeyFor(req.Service, req.Port)] = next
	}

	return alloc, nil
}

// conflict collects every service requesting the duplicated port.
func conflict(requests []Request, key reservation) *PortConflictError {
	seen := make(map[string]bool)
	var services []string
	for _, req := range requests {
		if req.Port.Dynamic() || req.Port.HostPort != key.port || req.Port.Protocol != key.protocol {
			continue
		}
		if !seen[req.Service] {
			seen[req.Service] = true
			services = append(services, req.Service)
		}
	}
	sort.Strings(services)
	return &PortConflictError{HostPort: key.port, Protocol: key.protocol, Services: services}
}
