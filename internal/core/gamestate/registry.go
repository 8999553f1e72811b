package gamestate

import (
	"fmt"
	"sort"

	"github.com/openrts/openrts/internal/core/component"
)

// Registry is the kind-keyed component store owned by exactly one entity.
// At most one component is held per kind. The registry itself is not
// goroutine-safe; the owning entity serializes access through its own lock.
type Registry struct {
	components map[component.Kind]component.Component
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		components: make(map[component.Kind]component.Component),
	}
}

// Insert associates c under its reported kind, replacing any previous
// component of that kind. It reports whether a replacement happened so the
// caller can surface the overwrite.
func (r *Registry) Insert(c component.Component) (replaced bool, err error) {
	if c == nil {
		return false, ErrNilComponent
	}
	kind := c.Kind()
	if kind == component.KindUnknown {
		return false, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	_, replaced = r.components[kind]
	r.components[kind] = c
	return replaced, nil
}

// Contains reports whether a component of the given kind is present.
func (r *Registry) Contains(kind component.Kind) bool {
	_, ok := r.components[kind]
	return ok
}

// Get returns the component registered under kind. Absence is an ordinary,
// recoverable condition reported via ErrComponentNotFound.
func (r *Registry) Get(kind component.Kind) (component.Component, error) {
	c, ok := r.components[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrComponentNotFound, kind)
	}
	return c, nil
}

// Kinds returns the registered kinds in ascending order.
func (r *Registry) Kinds() []component.Kind {
	kinds := make([]component.Kind, 0, len(r.components))
	for k := range r.components {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	return len(r.components)
}

// Copy returns a structurally independent deep copy. Every component is
// copied through its own Copy, never shared by reference.
func (r *Registry) Copy() *Registry {
	out := NewRegistry()
	for kind, c := range r.components {
		out.components[kind] = c.Copy()
	}
	return out
}
