package datarecording

import (
	"fmt"

	"github.com/sarchlab/flowsim/sim/hooking"
	"github.com/sarchlab/flowsim/sim/kernel"
	"github.com/sarchlab/flowsim/sim/timing"
)

// Table names used by the tracers.
const (
	EventTableName = "flowsim_event"
	RunTableName   = "flowsim_run"
	PacerTableName = "flowsim_pacer"
)

// EventEntry is one raised event instance.
type EventEntry struct {
	Time     float64
	Event    string
	Tier     int
	Value    float64
	Seq      uint64
	Handlers int
	Error    string
}

// RunEntry marks the start or the end of a run.
type RunEntry struct {
	Time   float64
	Kind   string
	Detail string
}

// EventTracer writes raised event instances and run boundaries into a data
// recorder. Attach it to a kernel with AcceptHook.
type EventTracer struct {
	recorder DataRecorder
	onlyLog  bool
}

// NewEventTracer creates the tables and returns the tracer. If onlyLogged is
// set, only instances created with timing.WithLog are written.
func NewEventTracer(recorder DataRecorder, onlyLogged bool) *EventTracer {
	recorder.CreateTable(EventTableName, EventEntry{})
	recorder.CreateTable(RunTableName, RunEntry{})

	return &EventTracer{recorder: recorder, onlyLog: onlyLogged}
}

// Func records the hook.
func (t *EventTracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case kernel.HookPosAfterEvent:
		t.recordEvent(ctx)
	case kernel.HookPosSimulationStarted:
		t.recorder.InsertData(RunTableName, RunEntry{
			Time:   ctx.Now,
			Kind:   "started",
			Detail: formatDetail(ctx.Detail),
		})
	case kernel.HookPosSimulationFinished:
		t.recorder.InsertData(RunTableName, RunEntry{
			Time:   ctx.Now,
			Kind:   "finished",
			Detail: formatDetail(ctx.Detail),
		})
	}
}

func (t *EventTracer) recordEvent(ctx hooking.HookCtx) {
	inst := ctx.Item.(*timing.EventInstance)
	if t.onlyLog && !inst.Logged() {
		return
	}

	p := inst.Priority()
	entry := EventEntry{
		Time:     inst.Time(),
		Event:    inst.Event().Name(),
		Tier:     int(p.Tier),
		Value:    p.Value,
		Seq:      p.Seq,
		Handlers: inst.HandlerCount(),
	}

	if err, ok := ctx.Detail.(error); ok && err != nil {
		entry.Error = err.Error()
	}

	t.recorder.InsertData(EventTableName, entry)
}

func formatDetail(detail any) string {
	if detail == nil {
		return ""
	}

	return fmt.Sprint(detail)
}
