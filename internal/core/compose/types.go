package compose

import (
	"sort"
	"strconv"

	"github.com/artpar/handel/internal/core/fragment"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Document - Main Output Type
// =============================================================================

// Document is the generated compose file. Only the fields the engine merges
// are modelled.
type Document struct {
	Services map[string]Service
}

// ServiceNames returns the service names in lexicographic order.
func (d *Document) ServiceNames() []string {
	names := make([]string, 0, len(d.Services))
	for name := range d.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Service is one entry under services. Field order is the output key order.
type Service struct {
	Image       string      `yaml:"image"`
	Platform    string      `yaml:"platform,omitempty"`
	Restart     string      `yaml:"restart,omitempty"`
	DependsOn   []string    `yaml:"depends_on,omitempty"`
	Environment Environment `yaml:"environment,omitempty"`
	Ports       []string    `yaml:"ports,omitempty"`
	Volumes     []string    `yaml:"volumes,omitempty"`
}

// Environment renders with keys in byte order. A nil value renders as null,
// which compose reads as "take it from the host".
type Environment map[string]*string

// MarshalYAML implements yaml.Marshaler.
func (e Environment) MarshalYAML() (interface{}, error) {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		val := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		if v := e[k]; v != nil {
			val = strNode(*v)
		}
		node.Content = append(node.Content, strNode(k), val)
	}
	return node, nil
}

// =============================================================================
// Resolved Services
// =============================================================================

// ResolvedService is a fragment with its version and host ports fixed.
type ResolvedService struct {
	Name  string
	Image string // repository:tag
	Tag   string
	Ports []PortBinding
}

// PortBinding is one published port with its host port decided.
type PortBinding struct {
	HostIP        string
	HostPort      int
	ContainerPort int
	Protocol      string
}

// String renders the binding in compose short syntax.
//
// Example:
//
//	PortBinding{HostPort: 30001, ContainerPort: 80, Protocol: "tcp"}.String() // "30001:80"
func (b PortBinding) String() string {
	return fragment.FormatBinding(b.HostIP, strconv.Itoa(b.HostPort), b.ContainerPort, b.Protocol)
}

func strNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
