package component

import "fmt"

// Kind is the closed set of component discriminants. Every component reports
// exactly one kind, and an entity registry holds at most one component per
// kind.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindPosition
	KindCommandQueue
	KindOwnership
	KindActivity
	KindIdle
	KindLive
	KindMove
	KindTurn
	KindSelectable
)

var kindNames = map[Kind]string{
	KindPosition:     "position",
	KindCommandQueue: "command_queue",
	KindOwnership:    "ownership",
	KindActivity:     "activity",
	KindIdle:         "idle",
	KindLive:         "live",
	KindMove:         "move",
	KindTurn:         "turn",
	KindSelectable:   "selectable",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind resolves a kind by its canonical name, as used in entity
// template files.
func ParseKind(name string) (Kind, error) {
	if k, ok := kindsByName[name]; ok {
		return k, nil
	}
	return KindUnknown, fmt.Errorf("unknown component kind %q", name)
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindPosition, KindCommandQueue, KindOwnership, KindActivity,
		KindIdle, KindLive, KindMove, KindTurn, KindSelectable,
	}
}
