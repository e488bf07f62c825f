package hooking

// BusyTimeTracer measures how long a domain spends processing tasks. When
// tasks overlap, the overlapped time is only counted once.
type BusyTimeTracer struct {
	timeTeller    TimeTeller
	filter        TaskFilter
	inflightTasks map[string]bool
	busySince     float64
	busyTime      float64
}

// NewBusyTimeTracer creates a new BusyTimeTracer
func NewBusyTimeTracer(
	timeTeller TimeTeller,
	filter TaskFilter,
) *BusyTimeTracer {
	return &BusyTimeTracer{
		timeTeller:    timeTeller,
		filter:        filter,
		inflightTasks: make(map[string]bool),
	}
}

// Func records the start end of a task.
func (t *BusyTimeTracer) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosTaskStart:
		t.StartTask(ctx.Item.(TaskStart))
	case HookPosTaskEnd:
		t.EndTask(ctx.Item.(TaskEnd))
	}
}

// BusyTime returns the total time that has been spent on tasks that have
// completed their busy period.
func (t *BusyTimeTracer) BusyTime() float64 {
	return t.busyTime
}

// Busy tells if any task is in flight.
func (t *BusyTimeTracer) Busy() bool {
	return len(t.inflightTasks) > 0
}

// TerminateAllTasks marks all in-flight tasks as completed now.
func (t *BusyTimeTracer) TerminateAllTasks() {
	if !t.Busy() {
		return
	}

	t.busyTime += t.timeTeller.Now() - t.busySince
	t.inflightTasks = make(map[string]bool)
}

// Reset forgets all recorded time.
func (t *BusyTimeTracer) Reset() {
	t.inflightTasks = make(map[string]bool)
	t.busySince = 0
	t.busyTime = 0
}

// StartTask records the task start time
func (t *BusyTimeTracer) StartTask(taskStart TaskStart) {
	if t.filter != nil && !t.filter(taskStart) {
		return
	}

	if !t.Busy() {
		t.busySince = t.timeTeller.Now()
	}

	t.inflightTasks[taskStart.ID] = true
}

// EndTask records the end of the task
func (t *BusyTimeTracer) EndTask(taskEnd TaskEnd) {
	if !t.inflightTasks[taskEnd.ID] {
		return
	}

	delete(t.inflightTasks, taskEnd.ID)

	if !t.Busy() {
		t.busyTime += t.timeTeller.Now() - t.busySince
	}
}
