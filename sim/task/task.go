// Package task provides tasks with a start and finish lifecycle, and a
// sequencer that runs the tasks of one owner one at a time.
package task

import (
	"github.com/sirupsen/logrus"
)

// A Task is a unit of work that starts once and finishes once.
type Task struct {
	id       string
	name     string
	started  bool
	finished bool

	startFn  func() bool
	finishFn func()
	onStart  []func(t *Task)
	onFinish []func(t *Task)

	sequencer *Sequencer
	logger    *logrus.Logger
}

// An Option configures a Task.
type Option func(*Task)

// WithStartFunc sets the start callback. The task only starts if the
// callback accepts.
func WithStartFunc(fn func() bool) Option {
	return func(t *Task) {
		t.startFn = fn
	}
}

// WithFinishFunc sets the callback that runs when the task finishes.
func WithFinishFunc(fn func()) Option {
	return func(t *Task) {
		t.finishFn = fn
	}
}

// WithLogger sets the logger that receives lifecycle warnings.
func WithLogger(logger *logrus.Logger) Option {
	return func(t *Task) {
		t.logger = logger
	}
}

// New creates a task.
func New(name string, opts ...Option) *Task {
	t := &Task{
		id:     name,
		name:   name,
		logger: logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// ID returns the identifier of the task. Sequencers assign unique IDs.
func (t *Task) ID() string {
	return t.id
}

// Name returns the name of the task.
func (t *Task) Name() string {
	return t.name
}

// Started tells if the task has started.
func (t *Task) Started() bool {
	return t.started
}

// Finished tells if the task has finished.
func (t *Task) Finished() bool {
	return t.finished
}

// OnStart adds a function to run after the task starts.
func (t *Task) OnStart(fn func(t *Task)) {
	t.onStart = append(t.onStart, fn)
}

// OnFinish adds a function to run when the task finishes, before the finish
// callback.
func (t *Task) OnFinish(fn func(t *Task)) {
	t.onFinish = append(t.onFinish, fn)
}

// Start starts the task and tells if it is running. Starting a started task
// only logs a warning.
func (t *Task) Start() bool {
	if t.started {
		t.logger.WithField("task", t.id).Warn("task already started")
		return true
	}

	if t.sequencer != nil && !t.sequencer.mayStart(t) {
		t.logger.WithField("task", t.id).Warn("task started out of turn")
		return false
	}

	t.started = true
	if t.startFn != nil {
		t.started = t.startFn()
	}

	if !t.started {
		return false
	}

	for _, fn := range t.onStart {
		fn(t)
	}

	if t.sequencer != nil {
		t.sequencer.taskStarted(t)
	}

	return true
}

// Finish finishes the task. Finishing a finished task only logs a warning.
func (t *Task) Finish() {
	if t.finished {
		t.logger.WithField("task", t.id).Warn("task already finished")
		return
	}

	if !t.started {
		t.logger.WithField("task", t.id).Warn("task finished before it started")
	}

	t.finished = true

	for _, fn := range t.onFinish {
		fn(t)
	}

	if t.finishFn != nil {
		t.finishFn()
	}

	if t.sequencer != nil {
		t.sequencer.taskFinished(t)
	}
}
