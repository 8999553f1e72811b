package render

import (
	"sync"

	"github.com/openrts/openrts/internal/core/gamestate"
	"github.com/openrts/openrts/internal/core/types"
)

var _ gamestate.RenderEntity = (*Recorder)(nil)

// Recorder is a RenderEntity that retains every push it receives, in order.
// It backs tests that assert on push counts and payloads.
type Recorder struct {
	mu      sync.Mutex
	updates []Snapshot
	closed  bool
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Update(id types.EntityID, positions []types.WorldPos, angles []float64, animationPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.updates = append(r.updates, copySnapshot(Snapshot{
		ID:            id,
		Positions:     positions,
		Angles:        angles,
		AnimationPath: animationPath,
	}))
}

func (r *Recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Count returns the number of pushes received.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

// Updates returns a copy of every recorded push in arrival order.
func (r *Recorder) Updates() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, len(r.updates))
	for i, u := range r.updates {
		out[i] = copySnapshot(u)
	}
	return out
}

// Last returns the most recent push.
func (r *Recorder) Last() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return Snapshot{}, false
	}
	return copySnapshot(r.updates[len(r.updates)-1]), true
}
