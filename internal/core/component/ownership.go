package component

import "github.com/openrts/openrts/internal/core/types"

var _ Component = (*Ownership)(nil)

// Ownership records which player controls an entity.
type Ownership struct {
	owner types.PlayerID
}

func NewOwnership(owner types.PlayerID) *Ownership {
	return &Ownership{owner: owner}
}

func (o *Ownership) Kind() Kind { return KindOwnership }

func (o *Ownership) Copy() Component {
	return &Ownership{owner: o.owner}
}

func (o *Ownership) Owner() types.PlayerID { return o.owner }
