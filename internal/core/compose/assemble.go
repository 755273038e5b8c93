package compose

import (
	"bytes"
	"fmt"

	"github.com/artpar/handel/internal/core/fragment"
	"github.com/artpar/handel/internal/core/graph"
	"github.com/artpar/handel/internal/core/ports"
	"gopkg.in/yaml.v3"
)

// Fragments is the view of the fragment registry the assembler needs.
type Fragments interface {
	Get(name string) (fragment.Fragment, bool)
}

// =============================================================================
// Assembly
// =============================================================================

// ResolveServices fixes the image tag and host ports of every service, in
// name order. A service without a version or a port request without an
// allocation is an error.
func ResolveServices(fragments Fragments, services graph.Set, versions map[string]string, alloc ports.Allocation) ([]ResolvedService, error) {
	out := make([]ResolvedService, 0, services.Len())
	for _, name := range services.Sorted() {
		f, ok := fragments.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownService, name)
		}
		tag, ok := versions[name]
		if !ok || tag == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingVersion, name)
		}

		ref, err := fragment.ParseImage(f.Image)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", name, err)
		}
		image, err := ref.WithTag(tag)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", name, err)
		}

		rs := ResolvedService{Name: name, Image: image, Tag: tag}
		for _, p := range f.Ports {
			host, ok := alloc[ports.KeyFor(name, p)]
			if !ok {
				return nil, fmt.Errorf("%w: service %s port %s", ErrMissingPort, name, p)
			}
			rs.Ports = append(rs.Ports, PortBinding{
				HostIP:        p.HostIP,
				HostPort:      host,
				ContainerPort: p.ContainerPort,
				Protocol:      p.Protocol,
			})
		}
		out = append(out, rs)
	}
	return out, nil
}

// Merge combines resolved services with their fragments into a Document.
// depends_on must stay inside the resolved selection.
func Merge(fragments Fragments, resolved []ResolvedService) (*Document, error) {
	selected := make(graph.Set, len(resolved))
	for _, rs := range resolved {
		selected.Add(rs.Name)
	}

	doc := &Document{Services: make(map[string]Service, len(resolved))}
	for _, rs := range resolved {
		f, ok := fragments.Get(rs.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownService, rs.Name)
		}

		svc := Service{
			Image:    rs.Image,
			Platform: f.Platform,
			Volumes:  append([]string(nil), f.Volumes...),
		}
		if f.Restart != fragment.RestartNo {
			svc.Restart = string(f.Restart)
		}
		for _, dep := range f.DependsOn {
			if !selected.Has(dep) {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrForeignDependency, rs.Name, dep)
			}
			svc.DependsOn = append(svc.DependsOn, dep)
		}
		if len(f.Environment) > 0 {
			svc.Environment = make(Environment, len(f.Environment))
			for k, v := range f.Environment {
				if v != nil {
					s := *v
					v = &s
				}
				svc.Environment[k] = v
			}
		}
		for _, b := range rs.Ports {
			svc.Ports = append(svc.Ports, b.String())
		}
		doc.Services[rs.Name] = svc
	}
	return doc, nil
}

// Assemble resolves and merges in one step.
func Assemble(fragments Fragments, services graph.Set, versions map[string]string, alloc ports.Allocation) (*Document, error) {
	resolved, err := ResolveServices(fragments, services, versions, alloc)
	if err != nil {
		return nil, err
	}
	return Merge(fragments, resolved)
}

// =============================================================================
// Serialisation
// =============================================================================

// Marshal renders doc as YAML with two-space indentation and services in
// byte order. Identical documents always produce identical bytes.
func Marshal(doc *Document) ([]byte, error) {
	services := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range doc.ServiceNames() {
		node := &yaml.Node{}
		if err := node.Encode(doc.Services[name]); err != nil {
			return nil, fmt.Errorf("encode service %s: %w", name, err)
		}
		services.Content = append(services.Content, strNode(name), node)
	}
	root := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{strNode("services"), services}}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}
