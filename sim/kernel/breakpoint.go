package kernel

import (
	"sort"

	"github.com/sarchlab/flowsim/sim/simerr"
)

// BreakpointFunc decides if a conditional breakpoint halts the run.
type BreakpointFunc func(k *Kernel) bool

type breakpoint struct {
	time VTimeInSec
	seq  uint64
	pred BreakpointFunc
}

// AddBreakpoint halts the run at the given time, before the events of that
// time are processed. Breakpoints fire once.
func (k *Kernel) AddBreakpoint(t VTimeInSec) error {
	return k.AddConditionalBreakpoint(t, nil)
}

// AddConditionalBreakpoint halts the run at the given time if the predicate
// holds when evaluated. The breakpoint is consumed whatever the outcome.
func (k *Kernel) AddConditionalBreakpoint(
	t VTimeInSec,
	pred BreakpointFunc,
) error {
	if t < k.scheduler.Now() {
		return simerr.Causality(
			"breakpoint at %g, current time is %g", t, k.scheduler.Now())
	}

	k.bpSeq++
	k.breakpoints = append(k.breakpoints, &breakpoint{
		time: t,
		seq:  k.bpSeq,
		pred: pred,
	})

	sort.Slice(k.breakpoints, func(i, j int) bool {
		a, b := k.breakpoints[i], k.breakpoints[j]
		if a.time != b.time {
			return a.time < b.time
		}

		return a.seq < b.seq
	})

	return nil
}

// NumBreakpoints returns the number of breakpoints not evaluated yet.
func (k *Kernel) NumBreakpoints() int {
	return len(k.breakpoints)
}

// evaluateBreakpoints consumes the breakpoints due at or before the horizon,
// earliest first, until one halts the run.
func (k *Kernel) evaluateBreakpoints(horizon VTimeInSec) (bool, error) {
	for len(k.breakpoints) > 0 && k.breakpoints[0].time <= horizon {
		bp := k.breakpoints[0]
		k.breakpoints = k.breakpoints[1:]

		if bp.pred != nil && !bp.pred(k) {
			continue
		}

		if bp.time > k.scheduler.Now() {
			err := k.scheduler.AdvanceTo(bp.time)
			if err != nil {
				return false, err
			}

			k.writeNow(bp.time)
		}

		return true, nil
	}

	return false, nil
}
