package fragment

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Fragment
// =============================================================================

// Fragment is one service template. It is immutable once loaded: the registry
// hands out copies and nothing in the resolution pipeline mutates it.
type Fragment struct {
	Name        string
	Image       string
	DependsOn   []string // sorted, no duplicates
	Restart     RestartPolicy
	Environment Environment
	Ports       []PortRequest // in declaration order
	Platform    string
	Volumes     []string // compose short syntax, passed through verbatim
}

// Environment maps variable names to values. A nil value is passed through
// from the host environment when the stack starts.
type Environment map[string]*string

// =============================================================================
// Ports
// =============================================================================

// PortRequest asks for a container port to be published on the host.
type PortRequest struct {
	ContainerPort int
	HostPort      int    // 0 = dynamic, picked from the project port pool
	Protocol      string // tcp, udp, sctp
	HostIP        string // bind address, empty = all interfaces
}

// Dynamic reports whether the host port must be allocated.
func (p PortRequest) Dynamic() bool {
	return p.HostPort == 0
}

// String renders the request in compose short syntax, with "?" standing in
// for a dynamic host port.
//
// Example:
//
//	PortRequest{ContainerPort: 80, HostPort: 8080, Protocol: "tcp"}.String() // "8080:80"
//	PortRequest{ContainerPort: 53, Protocol: "udp"}.String()                 // "?:53/udp"
func (p PortRequest) String() string {
	host := "?"
	if !p.Dynamic() {
		host = strconv.Itoa(p.HostPort)
	}
	return FormatBinding(p.HostIP, host, p.ContainerPort, p.Protocol)
}

// FormatBinding renders a host/container port pair in compose short syntax.
// The protocol suffix is omitted for tcp.
func FormatBinding(hostIP, hostPort string, containerPort int, protocol string) string {
	var b strings.Builder
	if hostIP != "" {
		if strings.Contains(hostIP, ":") {
			fmt.Fprintf(&b, "[%s]:", hostIP)
		} else {
			b.WriteString(hostIP + ":")
		}
	}
	fmt.Fprintf(&b, "%s:%d", hostPort, containerPort)
	if protocol != "" && protocol != "tcp" {
		b.WriteString("/" + protocol)
	}
	return b.String()
}

// =============================================================================
// Restart Policy
// =============================================================================

// RestartPolicy represents the restart policy.
type RestartPolicy string

const (
	RestartNo            RestartPolicy = "no"
	RestartAlways        RestartPolicy = "always"
	RestartOnFailure     RestartPolicy = "on-failure"
	RestartUnlessStopped RestartPolicy = "unless-stopped"
)

// ParseRestartPolicy normalises a restart value. Empty, "no" and "none" all
// mean RestartNo; "on-failure:N" keeps its retry count.
func ParseRestartPolicy(s string) (RestartPolicy, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "no", "none":
		return RestartNo, nil
	case string(RestartAlways), string(RestartOnFailure), string(RestartUnlessStopped):
		return RestartPolicy(s), nil
	}
	if retries, ok := strings.CutPrefix(s, string(RestartOnFailure)+":"); ok {
		if n, err := strconv.Atoi(retries); err == nil && n >= 0 {
			return RestartPolicy(s), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRestart, s)
}
