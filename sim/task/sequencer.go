package task

import (
	"github.com/sarchlab/flowsim/sim/hooking"
	"github.com/sarchlab/flowsim/sim/id"
	"github.com/sarchlab/flowsim/sim/simerr"
)

// A Sequencer runs the tasks of one owner one at a time, in the order they
// are enqueued.
//
// The head of the queue starts as soon as no task is active. If the head
// declines to start, it stays at the head until Retry.
type Sequencer struct {
	*hooking.HookableBase

	owner      string
	timeTeller hooking.TimeTeller
	ids        id.IDGenerator

	queue  []*Task
	active *Task
}

// NewSequencer creates a sequencer. The time teller stamps task hooks.
func NewSequencer(owner string, timeTeller hooking.TimeTeller) *Sequencer {
	return &Sequencer{
		HookableBase: hooking.NewHookableBase(),
		owner:        owner,
		timeTeller:   timeTeller,
		ids:          id.NewPrefixedIDGenerator(owner),
	}
}

// Owner returns the name of the owner.
func (s *Sequencer) Owner() string {
	return s.owner
}

// Active returns the running task, or nil.
func (s *Sequencer) Active() *Task {
	return s.active
}

// Pending returns the queued tasks that have not started.
func (s *Sequencer) Pending() []*Task {
	return append([]*Task(nil), s.queue...)
}

// Enqueue adds a task to the queue and starts it if nothing else runs.
func (s *Sequencer) Enqueue(t *Task) error {
	if t.sequencer != nil {
		return simerr.InvalidOperation(
			"task %s already belongs to %s", t.id, t.sequencer.owner)
	}

	if t.started || t.finished {
		return simerr.InvalidOperation("task %s has already started", t.id)
	}

	t.sequencer = s
	t.id = s.ids.Generate()
	s.queue = append(s.queue, t)

	s.advance()

	return nil
}

// Retry tries again to start the head of the queue.
func (s *Sequencer) Retry() {
	s.advance()
}

func (s *Sequencer) advance() {
	if s.active != nil || len(s.queue) == 0 {
		return
	}

	s.queue[0].Start()
}

func (s *Sequencer) mayStart(t *Task) bool {
	return s.active == nil && len(s.queue) > 0 && s.queue[0] == t
}

func (s *Sequencer) now() float64 {
	if s.timeTeller == nil {
		return 0
	}

	return s.timeTeller.Now()
}

func (s *Sequencer) taskStarted(t *Task) {
	if len(s.queue) > 0 && s.queue[0] == t {
		s.queue = s.queue[1:]
	}

	s.active = t

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    hooking.HookPosTaskStart,
		Now:    s.now(),
		Item:   hooking.TaskStart{ID: t.id, Owner: s.owner, What: t.name},
	})
}

func (s *Sequencer) taskFinished(t *Task) {
	if s.active != t {
		s.drop(t)
		return
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    hooking.HookPosTaskEnd,
		Now:    s.now(),
		Item:   hooking.TaskEnd{ID: t.id},
	})

	s.active = nil
	s.advance()
}

func (s *Sequencer) drop(t *Task) {
	for i, candidate := range s.queue {
		if candidate == t {
			s.queue = append(s.queue[:i:i], s.queue[i+1:]...)
			return
		}
	}
}

// Reset clears the queue and the active task.
func (s *Sequencer) Reset() error {
	for _, t := range s.queue {
		t.sequencer = nil
	}

	if s.active != nil {
		s.active.sequencer = nil
	}

	s.queue = nil
	s.active = nil
	s.ids.Reset()

	return nil
}
