package experiment

import (
	"fmt"
	"os"
	"sort"

	"github.com/san-kum/dynfit/internal/config"
	"github.com/san-kum/dynfit/internal/integrators"
)

// Registry resolves model names to descriptions: built-in presets, anything
// registered later, and finally YAML files on disk.
type Registry struct {
	models map[string]func() *config.Config
}

func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]func() *config.Config)}
	for name, build := range config.Presets {
		r.models[name] = build
	}
	return r
}

func (r *Registry) Register(name string, build func() *config.Config) {
	r.models[name] = build
}

// GetModel returns a fresh description for a registered name or a model
// file path.
func (r *Registry) GetModel(nameOrPath string) (*config.Config, error) {
	if build, ok := r.models[nameOrPath]; ok {
		return build(), nil
	}
	if _, err := os.Stat(nameOrPath); err == nil {
		return config.Load(nameOrPath)
	}
	return nil, fmt.Errorf("unknown model: %s", nameOrPath)
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListIntegrators() []string {
	return integrators.Names()
}
