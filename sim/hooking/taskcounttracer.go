package hooking

import "sync"

// TaskCountTracer counts how many tasks of each kind started and ended.
type TaskCountTracer struct {
	filter TaskFilter
	lock   sync.Mutex

	inflight map[string]string
	names    []string
	started  map[string]uint64
	ended    map[string]uint64
}

// NewTaskCountTracer creates a new TaskCountTracer.
func NewTaskCountTracer(filter TaskFilter) *TaskCountTracer {
	return &TaskCountTracer{
		filter:   filter,
		inflight: make(map[string]string),
		started:  make(map[string]uint64),
		ended:    make(map[string]uint64),
	}
}

// Func counts task starts and ends.
func (t *TaskCountTracer) Func(ctx HookCtx) {
	t.lock.Lock()
	defer t.lock.Unlock()

	switch ctx.Pos {
	case HookPosTaskStart:
		start := ctx.Item.(TaskStart)
		if t.filter != nil && !t.filter(start) {
			return
		}

		if _, seen := t.started[start.What]; !seen {
			t.names = append(t.names, start.What)
		}

		t.started[start.What]++
		t.inflight[start.ID] = start.What
	case HookPosTaskEnd:
		end := ctx.Item.(TaskEnd)

		what, ok := t.inflight[end.ID]
		if !ok {
			return
		}

		delete(t.inflight, end.ID)
		t.ended[what]++
	}
}

// Names returns the task kinds seen, in first-seen order.
func (t *TaskCountTracer) Names() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.names...)
}

// Started returns how many tasks of a kind started.
func (t *TaskCountTracer) Started(what string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.started[what]
}

// Ended returns how many tasks of a kind ended.
func (t *TaskCountTracer) Ended(what string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.ended[what]
}
