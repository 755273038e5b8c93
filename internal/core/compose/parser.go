package compose

import (
	"context"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Verification
// =============================================================================

// Verify loads a serialised document back through compose-go and checks
// that every expected service survived. Interpolation is skipped so that
// ${VAR} references in environment values reach the output untouched;
// consistency checks (depends_on targets and the like) stay on.
func Verify(ctx context.Context, content []byte, expected []string) error {
	if strings.TrimSpace(string(content)) == "" {
		return ErrEmptyInput
	}

	project, err := loadComposeDocument(ctx, content)
	if err != nil {
		return err
	}

	for _, name := range expected {
		if _, ok := project.Services[name]; !ok {
			return NewParseError("services."+name, "service missing after load", ErrServiceMissing)
		}
	}
	return nil
}

// loadComposeDocument loads a compose document using compose-go
func loadComposeDocument(ctx context.Context, content []byte) (*types.Project, error) {
	// Parse YAML into a map first
	var dict map[string]interface{}
	if err := yaml.Unmarshal(content, &dict); err != nil {
		return nil, NewParseError("", err.Error(), ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "document is not a mapping", ErrInvalidYAML)
	}

	project, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Filename: "docker-compose.yml",
				Content:  content,
				Config:   dict,
			},
		},
		Environment: types.Mapping{},
	}, func(opts *loader.Options) {
		opts.SetProjectName("handel", false)
		opts.SkipInterpolation = true
		opts.SkipNormalization = true
		opts.ResolvePaths = false
		opts.SkipExtends = true
	})
	if err != nil {
		return nil, NewParseError("", err.Error(), ErrInvalidDocument)
	}
	return project, nil
}
