package component

var _ Component = (*Selectable)(nil)

// Selectable marks an entity as a valid target for player selection.
type Selectable struct {
	enabled bool
}

func NewSelectable() *Selectable {
	return &Selectable{enabled: true}
}

func (s *Selectable) Kind() Kind { return KindSelectable }

func (s *Selectable) Copy() Component {
	return &Selectable{enabled: s.enabled}
}

func (s *Selectable) Enabled() bool { return s.enabled }

// Disabled returns a copy with selection turned off, for entities that
// temporarily cannot be targeted.
func (s *Selectable) Disabled() *Selectable {
	return &Selectable{enabled: false}
}
