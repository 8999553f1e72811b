package render

import (
	"sync"
	"sync/atomic"

	"github.com/openrts/openrts/internal/core/gamestate"
	"github.com/openrts/openrts/internal/core/types"
)

var _ gamestate.RenderEntity = (*WorldEntity)(nil)

// Snapshot is the drawable view of one entity, the unit shipped to feed
// consumers.
type Snapshot struct {
	ID            types.EntityID   `json:"id"`
	Positions     []types.WorldPos `json:"positions"`
	Angles        []float64        `json:"angles"`
	AnimationPath string           `json:"animation_path,omitempty"`
}

func copySnapshot(s Snapshot) Snapshot {
	out := Snapshot{
		ID:            s.ID,
		Positions:     make([]types.WorldPos, len(s.Positions)),
		Angles:        make([]float64, len(s.Angles)),
		AnimationPath: s.AnimationPath,
	}
	copy(out.Positions, s.Positions)
	copy(out.Angles, s.Angles)
	return out
}

// WorldEntity is the render-side proxy the game pushes drawable state into.
// The game thread writes through Update; the render thread polls with Dirty
// and drains with Fetch. Both sides only ever see copies, the two threads
// never share slice memory.
type WorldEntity struct {
	mu     sync.Mutex
	snap   Snapshot
	dirty  bool
	closed atomic.Bool
}

func NewWorldEntity() *WorldEntity {
	return &WorldEntity{}
}

// Update replaces the held state wholesale. Pushes into a closed proxy are
// dropped.
func (w *WorldEntity) Update(id types.EntityID, positions []types.WorldPos, angles []float64, animationPath string) {
	if w.closed.Load() {
		return
	}
	w.mu.Lock()
	w.snap = copySnapshot(Snapshot{
		ID:            id,
		Positions:     positions,
		Angles:        angles,
		AnimationPath: animationPath,
	})
	w.dirty = true
	w.mu.Unlock()
}

// Dirty reports whether state arrived since the last Fetch or MarkClean.
func (w *WorldEntity) Dirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

// Snapshot returns a copy of the current state without touching the dirty
// flag.
func (w *WorldEntity) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return copySnapshot(w.snap)
}

// Fetch returns a copy of the current state and clears the dirty flag. The
// second return reports whether the state had changed since the last drain.
func (w *WorldEntity) Fetch() (Snapshot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := w.dirty
	w.dirty = false
	return copySnapshot(w.snap), changed
}

// MarkClean clears the dirty flag without reading the state.
func (w *WorldEntity) MarkClean() {
	w.mu.Lock()
	w.dirty = false
	w.mu.Unlock()
}

// Close tears the proxy down. Later pushes are dropped and the game side
// skips the proxy entirely once it observes Closed.
func (w *WorldEntity) Close() {
	w.closed.Store(true)
}

func (w *WorldEntity) Closed() bool {
	return w.closed.Load()
}
