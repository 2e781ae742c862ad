// Package prompts resolves named prompt templates from a YAML file. Template
// content is opaque to the engine; rendering substitutes {name} placeholders.
package prompts

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Well-known template names.
const (
	Debater          = "debater"
	Judge            = "judge"
	QA               = "qa"
	Interactive      = "interactive"
	Closing          = "closing"
	Shared           = "shared"
	Leak             = "leak"
	PrivateReasoning = "private_reasoning"
)

// Registry holds named templates.
type Registry struct {
	templates map[string]string
}

// Load reads a template registry from a YAML file mapping names to format
// strings.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prompts: read %s", path)
	}
	return Parse(data)
}

// Parse builds a registry from raw YAML.
func Parse(data []byte) (*Registry, error) {
	templates := make(map[string]string)
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, eris.Wrap(err, "prompts: unmarshal")
	}
	return &Registry{templates: templates}, nil
}

// Get returns the named template.
func (r *Registry) Get(name string) (string, error) {
	t, ok := r.templates[name]
	if !ok {
		return "", eris.Errorf("prompts: unknown template %q", name)
	}
	return t, nil
}

// Render substitutes {name} placeholders in the template. Placeholders with
// no binding are left untouched so a malformed call site stays visible in the
// rendered prompt rather than silently vanishing.
func Render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
