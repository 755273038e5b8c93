package fragment

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"
	"gopkg.in/yaml.v3"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// =============================================================================
// Parser Functions
// =============================================================================

// Parse decodes one template document into a Fragment.
// This is a pure function - the caller supplies the name (the template's
// file stem) and the raw YAML content.
//
// Accepted keys: image (required), restart, depends_on (list or map form),
// environment (map or KEY=VALUE list), ports (short syntax strings or long
// syntax maps), platform, volumes. Unknown keys are ignored.
func Parse(name string, content []byte) (Fragment, error) {
	if !namePattern.MatchString(name) {
		return Fragment{}, NewParseError(name, "", "name must be alphanumeric with . _ -", ErrInvalidName)
	}
	if strings.TrimSpace(string(content)) == "" {
		return Fragment{}, NewParseError(name, "", "template is empty", ErrEmptyInput)
	}

	var raw rawFragment
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return Fragment{}, NewParseError(name, "", err.Error(), ErrInvalidYAML)
	}

	if strings.TrimSpace(raw.Image) == "" {
		return Fragment{}, NewParseError(name, "image", "image is required", ErrMissingImage)
	}
	if _, err := ParseImage(raw.Image); err != nil {
		return Fragment{}, NewParseError(name, "image", err.Error(), ErrInvalidImage)
	}

	restart, err := ParseRestartPolicy(raw.Restart)
	if err != nil {
		return Fragment{}, NewParseError(name, "restart", err.Error(), ErrInvalidRestart)
	}

	f := Fragment{
		Name:        name,
		Image:       strings.TrimSpace(raw.Image),
		DependsOn:   normaliseNames(raw.DependsOn),
		Restart:     restart,
		Environment: Environment(raw.Environment),
		Platform:    strings.TrimSpace(raw.Platform),
		Volumes:     raw.Volumes,
	}
	if f.Environment == nil {
		f.Environment = Environment{}
	}

	for i, entry := range raw.Ports {
		reqs, err := entry.requests()
		if err != nil {
			return Fragment{}, NewParseError(name, "ports["+strconv.Itoa(i)+"]", err.Error(), ErrInvalidPort)
		}
		f.Ports = append(f.Ports, reqs...)
	}

	return f, nil
}

// rawFragment mirrors the accepted template keys before validation.
type rawFragment struct {
	Image       string      `yaml:"image"`
	Restart     string      `yaml:"restart"`
	DependsOn   nameList    `yaml:"depends_on"`
	Environment environment `yaml:"environment"`
	Ports       []portEntry `yaml:"ports"`
	Platform    string      `yaml:"platform"`
	Volumes     []string    `yaml:"volumes"`
}

// nameList accepts both the list form and the long map form of depends_on.
type nameList []string

func (l *nameList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := value.Decode(&names); err != nil {
			return err
		}
		*l = names
	case yaml.MappingNode:
		for i := 0; i < len(value.Content); i += 2 {
			*l = append(*l, value.Content[i].Value)
		}
	case yaml.ScalarNode:
		if value.Tag != "!!null" {
			return fmt.Errorf("line %d: depends_on must be a list or a map", value.Line)
		}
	default:
		return fmt.Errorf("line %d: depends_on must be a list or a map", value.Line)
	}
	return nil
}

// environment accepts both the map form and the KEY=VALUE list form. A null
// value or a bare KEY stays nil.
type environment Environment

func (e *environment) UnmarshalYAML(value *yaml.Node) error {
	out := make(environment)
	switch value.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			key, val := value.Content[i], value.Content[i+1]
			if val.Tag == "!!null" {
				out[key.Value] = nil
				continue
			}
			if val.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: %w: %s must be a scalar", val.Line, ErrInvalidEnv, key.Value)
			}
			v := val.Value
			out[key.Value] = &v
		}
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		for _, item := range items {
			key, val, ok := strings.Cut(item, "=")
			if strings.TrimSpace(key) == "" {
				return fmt.Errorf("line %d: %w: %q", value.Line, ErrInvalidEnv, item)
			}
			if !ok {
				out[key] = nil
				continue
			}
			out[key] = &val
		}
	case yaml.ScalarNode:
		if value.Tag != "!!null" {
			return fmt.Errorf("line %d: environment must be a map or a list", value.Line)
		}
	default:
		return fmt.Errorf("line %d: environment must be a map or a list", value.Line)
	}
	*e = out
	return nil
}

// portEntry holds one ports item in either syntax.
type portEntry struct {
	short string
	long  *longPort
}

type longPort struct {
	Target    int    `yaml:"target"`
	Published string `yaml:"published"`
	Protocol  string `yaml:"protocol"`
	HostIP    string `yaml:"host_ip"`
}

func (p *portEntry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		p.short = value.Value
	case yaml.MappingNode:
		p.long = &longPort{}
		return value.Decode(p.long)
	default:
		return fmt.Errorf("line %d: port must be a string or a map", value.Line)
	}
	return nil
}

func (p portEntry) requests() ([]PortRequest, error) {
	if p.long != nil {
		return p.long.requests()
	}

	mappings, err := nat.ParsePortSpec(strings.TrimSpace(p.short))
	if err != nil {
		return nil, err
	}

	reqs := make([]PortRequest, 0, len(mappings))
	for _, m := range mappings {
		req := PortRequest{
			ContainerPort: m.Port.Int(),
			Protocol:      m.Port.Proto(),
			HostIP:        m.Binding.HostIP,
		}
		if m.Binding.HostPort != "" {
			host, err := parsePortNumber(m.Binding.HostPort)
			if err != nil {
				return nil, fmt.Errorf("host port %q: %w", m.Binding.HostPort, err)
			}
			req.HostPort = host
		}
		if err := req.validate(); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func (l longPort) requests() ([]PortRequest, error) {
	req := PortRequest{
		ContainerPort: l.Target,
		Protocol:      strings.ToLower(l.Protocol),
		HostIP:        l.HostIP,
	}
	if req.Protocol == "" {
		req.Protocol = "tcp"
	}
	if l.Published != "" {
		host, err := parsePortNumber(l.Published)
		if err != nil {
			return nil, fmt.Errorf("published %q: %w", l.Published, err)
		}
		req.HostPort = host
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	return []PortRequest{req}, nil
}

func (p PortRequest) validate() error {
	if p.ContainerPort <= 0 || p.ContainerPort > 65535 {
		return fmt.Errorf("container port %d out of range", p.ContainerPort)
	}
	if p.HostPort < 0 || p.HostPort > 65535 {
		return fmt.Errorf("host port %d out of range", p.HostPort)
	}
	switch p.Protocol {
	case "tcp", "udp", "sctp":
		return nil
	}
	return fmt.Errorf("unsupported protocol %q", p.Protocol)
}

// parsePortNumber accepts a single literal port. Host port ranges are not
// supported; dynamic ports come from the project port pool instead.
func parsePortNumber(s string) (int, error) {
	if strings.Contains(s, "-") {
		return 0, fmt.Errorf("host port ranges are not supported, omit the host port to allocate one")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	return n, nil
}

// normaliseNames trims, drops empties and duplicates and sorts.
func normaliseNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
