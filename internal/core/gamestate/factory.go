package gamestate

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/openrts/openrts/internal/core/component"
	"github.com/openrts/openrts/internal/core/observability/log"
	"github.com/openrts/openrts/internal/core/types"
)

// Template describes a spawnable entity archetype in JSON or YAML.
type Template struct {
	Name          string              `json:"name" yaml:"name"`
	AnimationPath string              `json:"animation_path,omitempty" yaml:"animation_path,omitempty"`
	Components    []TemplateComponent `json:"components,omitempty" yaml:"components,omitempty"`
}

// TemplateComponent is one component entry of a template. Kind selects the
// component; the remaining fields apply only to the kinds that use them.
type TemplateComponent struct {
	Kind     string              `json:"kind" yaml:"kind"`
	Path     []types.WorldPos    `json:"path,omitempty" yaml:"path,omitempty"`
	Facing   []float64           `json:"facing,omitempty" yaml:"facing,omitempty"`
	Owner    types.PlayerID      `json:"owner,omitempty" yaml:"owner,omitempty"`
	Commands []component.Command `json:"commands,omitempty" yaml:"commands,omitempty"`
}

type templateFile struct {
	Templates []Template `json:"templates" yaml:"templates"`
}

// Factory mints entity ids and builds entities, either bare, from a
// registered template, or by deep-copying a live entity. It is safe for
// concurrent use.
type Factory struct {
	nextID atomic.Uint64

	mu        sync.RWMutex
	templates map[string]Template

	logger log.Log
}

// NewFactory creates a factory with an empty template library. The first
// allocated id is 1.
func NewFactory(logger log.Log) *Factory {
	if logger == nil {
		logger = log.Provide()
	}
	return &Factory{
		templates: make(map[string]Template),
		logger:    logger.With(log.String("component", "factory")),
	}
}

// NextID allocates a fresh entity id.
func (f *Factory) NextID() types.EntityID {
	return types.EntityID(f.nextID.Add(1))
}

// Create builds a bare entity with a fresh id and no components.
func (f *Factory) Create(animationPath string) *GameEntity {
	return NewGameEntity(f.NextID(), animationPath)
}

// SpawnFrom deep-copies a live entity under a fresh id. The copy shares no
// component state with its source and starts without a render binding.
func (f *Factory) SpawnFrom(src *GameEntity) (*GameEntity, error) {
	if src == nil {
		return nil, ErrNilEntity
	}
	return src.Clone(f.NextID()), nil
}

// Register adds a template to the library, replacing a same-named one.
func (f *Factory) Register(t Template) error {
	if t.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidTemplate)
	}
	for _, tc := range t.Components {
		if _, err := component.ParseKind(tc.Kind); err != nil {
			return fmt.Errorf("%w: template %q: %v", ErrInvalidTemplate, t.Name, err)
		}
	}

	f.mu.Lock()
	f.templates[t.Name] = t
	f.mu.Unlock()

	f.logger.Debug("template registered",
		log.String("template", t.Name),
		log.Int("components", len(t.Components)))
	return nil
}

// Templates returns the names of all registered templates.
func (f *Factory) Templates() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.templates))
	for name := range f.templates {
		names = append(names, name)
	}
	return names
}

// Spawn builds an entity from a registered template under a fresh id.
func (f *Factory) Spawn(templateName string) (*GameEntity, error) {
	f.mu.RLock()
	t, ok := f.templates[templateName]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateName)
	}

	e := NewGameEntity(f.NextID(), t.AnimationPath)
	for _, tc := range t.Components {
		c, err := tc.build()
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", templateName, err)
		}
		if err = e.AddComponent(c); err != nil {
			return nil, fmt.Errorf("template %q: %w", templateName, err)
		}
	}
	return e, nil
}

func (tc TemplateComponent) build() (component.Component, error) {
	kind, err := component.ParseKind(tc.Kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case component.KindPosition:
		return component.NewPosition(tc.Path, tc.Facing), nil
	case component.KindCommandQueue:
		return component.NewCommandQueue(tc.Commands...), nil
	case component.KindOwnership:
		return component.NewOwnership(tc.Owner), nil
	case component.KindSelectable:
		return component.NewSelectable(), nil
	default:
		return nil, fmt.Errorf("%w: no template support for %s", ErrInvalidTemplate, kind)
	}
}

// LoadTemplatesYAML reads a template library from YAML.
func (f *Factory) LoadTemplatesYAML(r io.Reader) error {
	var file templateFile
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&file); err != nil {
		return fmt.Errorf("decode templates: %w", err)
	}
	return f.registerAll(file.Templates)
}

// LoadTemplatesJSON reads a template library from JSON.
func (f *Factory) LoadTemplatesJSON(r io.Reader) error {
	var file templateFile
	dec := json.NewDecoder(r)
	if err := dec.Decode(&file); err != nil {
		return fmt.Errorf("decode templates: %w", err)
	}
	return f.registerAll(file.Templates)
}

// LoadTemplatesFile reads a YAML template library from disk.
func (f *Factory) LoadTemplatesFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open templates: %w", err)
	}
	defer func() { _ = file.Close() }()
	return f.LoadTemplatesYAML(file)
}

func (f *Factory) registerAll(templates []Template) error {
	for _, t := range templates {
		if err := f.Register(t); err != nil {
			return err
		}
	}
	f.logger.Info("templates loaded", log.Int("count", len(templates)))
	return nil
}
