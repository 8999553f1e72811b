package component

import "github.com/openrts/openrts/internal/core/types"

var _ Component = (*CommandQueue)(nil)

// Command is a single pending order for an entity.
type Command struct {
	Verb   string         `json:"verb" yaml:"verb"`
	Target types.WorldPos `json:"target" yaml:"target"`
}

// Move commands steer an entity toward a target position.
const VerbMove = "move"

// MoveTo builds a move command.
func MoveTo(target types.WorldPos) Command {
	return Command{Verb: VerbMove, Target: target}
}

// CommandQueue is the FIFO of orders an entity has yet to carry out. Like
// every component it is replaced, not mutated: Enqueue and Dequeue return
// new queues.
type CommandQueue struct {
	pending []Command
}

// NewCommandQueue builds a queue holding the given commands in order.
func NewCommandQueue(cmds ...Command) *CommandQueue {
	q := &CommandQueue{pending: make([]Command, len(cmds))}
	copy(q.pending, cmds)
	return q
}

func (q *CommandQueue) Kind() Kind { return KindCommandQueue }

func (q *CommandQueue) Copy() Component {
	return NewCommandQueue(q.pending...)
}

func (q *CommandQueue) Len() int { return len(q.pending) }

// Peek returns the front command without removing it.
func (q *CommandQueue) Peek() (Command, bool) {
	if len(q.pending) == 0 {
		return Command{}, false
	}
	return q.pending[0], true
}

// Commands returns the pending commands in order. The returned slice is the
// caller's to keep.
func (q *CommandQueue) Commands() []Command {
	out := make([]Command, len(q.pending))
	copy(out, q.pending)
	return out
}

// Enqueue returns a new queue with cmd appended.
func (q *CommandQueue) Enqueue(cmd Command) *CommandQueue {
	next := &CommandQueue{pending: make([]Command, 0, len(q.pending)+1)}
	next.pending = append(next.pending, q.pending...)
	next.pending = append(next.pending, cmd)
	return next
}

// Dequeue returns the front command and a new queue without it. The third
// return is false when the queue is empty.
func (q *CommandQueue) Dequeue() (Command, *CommandQueue, bool) {
	if len(q.pending) == 0 {
		return Command{}, q, false
	}
	return q.pending[0], NewCommandQueue(q.pending[1:]...), true
}
