package instruction

import (
	"embed"
	"fmt"
	"strings"

	"github.com/parleylab/parley/pkg/registry"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// baseTemplateNames are the four selection outcomes; each also exists
// with an "ai-ai-" prefix variant.
var baseTemplateNames = []string{"exploratory", "structured", "synthesis", "critical"}

// TemplateRegistry is a read-only map from template name to template
// text, populated once at startup.
type TemplateRegistry struct {
	*registry.BaseRegistry[string]
}

// NewTemplateRegistry returns an empty registry. Tests use this to
// exercise missing-template behavior.
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{BaseRegistry: registry.NewBaseRegistry[string]()}
}

// DefaultTemplateRegistry loads the embedded template bundle.
func DefaultTemplateRegistry() (*TemplateRegistry, error) {
	reg := NewTemplateRegistry()

	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read template bundle: %w", err)
	}
	for _, entry := range entries {
		data, err := templateFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".tmpl")
		if err := reg.Register(name, string(data)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// substitute fills {domain} and {tokens} placeholders. Unresolved
// placeholders left in the output are a format error.
func substitute(template, domain string, tokens int) (string, error) {
	out := strings.NewReplacer(
		"{domain}", domain,
		"{tokens}", fmt.Sprintf("%d", tokens),
	).Replace(template)

	if strings.Contains(out, "{domain}") || strings.Contains(out, "{tokens}") {
		return "", fmt.Errorf("%w: unresolved placeholder", ErrTemplateFormat)
	}
	return strings.TrimSpace(out), nil
}
