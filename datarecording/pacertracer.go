package datarecording

import (
	"github.com/sarchlab/flowsim/sim/hooking"
	"github.com/sarchlab/flowsim/sim/realtime"
)

// PacerEntry is one pacer iteration. Durations are in seconds.
type PacerEntry struct {
	Iteration  uint64
	SimTime    float64
	Step       float64
	Callback   float64
	Sleep      float64
	SpeedRatio float64
}

// PacerTracer writes pacer samples into a data recorder. Attach it to a
// pacer with AcceptHook.
type PacerTracer struct {
	recorder DataRecorder
}

// NewPacerTracer creates the table and returns the tracer.
func NewPacerTracer(recorder DataRecorder) *PacerTracer {
	recorder.CreateTable(PacerTableName, PacerEntry{})

	return &PacerTracer{recorder: recorder}
}

// Func records the sample.
func (t *PacerTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != realtime.HookPosPacerSample {
		return
	}

	s := ctx.Item.(realtime.Sample)
	t.recorder.InsertData(PacerTableName, PacerEntry{
		Iteration:  s.Iteration,
		SimTime:    s.SimTime,
		Step:       s.Step.Seconds(),
		Callback:   s.Callback.Seconds(),
		Sleep:      s.Sleep.Seconds(),
		SpeedRatio: s.SpeedRatio,
	})
}
