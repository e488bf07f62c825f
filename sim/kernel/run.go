package kernel

import (
	"math"
	"sync/atomic"

	"github.com/sarchlab/flowsim/sim/hooking"
	"github.com/sarchlab/flowsim/sim/simerr"
)

// Run processes the events scheduled before the target time. It returns early
// when the events run out, a breakpoint fires, or a pause, interrupt, or stop
// is requested. Events at the target time stay pending, and the clock ends at
// the target.
func (k *Kernel) Run(target VTimeInSec) error {
	return k.runGuarded(target, false)
}

func (k *Kernel) runGuarded(target VTimeInSec, inclusive bool) error {
	if !k.initialized {
		return simerr.Initialization("kernel %s: run before the first reset", k.name)
	}

	if !k.singleRunLock.TryLock() {
		return simerr.InvalidOperation("kernel %s is already running", k.name)
	}
	defer k.singleRunLock.Unlock()

	if math.IsNaN(target) || target < k.scheduler.Now() {
		return simerr.Causality(
			"run target %g, current time is %g", target, k.scheduler.Now())
	}

	return k.run(target, inclusive)
}

// RunToEnd runs until the events run out.
func (k *Kernel) RunToEnd() error {
	return k.Run(math.Inf(1))
}

// Step processes the next time that has events.
func (k *Kernel) Step() error {
	next, ok := k.scheduler.TimeOfNextScheduledEvent()
	if !ok {
		next = k.scheduler.Now()
	}

	return k.runGuarded(next, true)
}

// StepBy runs for the given duration of simulated time. Like Run, it leaves
// the events due exactly at Now()+d pending for the next step.
func (k *Kernel) StepBy(d VTimeInSec) error {
	if d < 0 {
		return simerr.Causality("step by negative duration %g", d)
	}

	return k.Run(k.scheduler.Now() + d)
}

// Continue resumes a paused, interrupted, or halted run toward its last
// target.
func (k *Kernel) Continue() error {
	state := k.State()
	if !state.Resumable() {
		return simerr.InvalidOperation(
			"kernel %s cannot continue from state %s", k.name, state)
	}

	return k.runGuarded(k.target, k.inclusive)
}

// Pause requests the run to pause before the next time point. A request made
// while no run is in progress pauses the next run before its first event.
func (k *Kernel) Pause() {
	k.pauseRequested.Store(true)
}

// Interrupt requests the run to stop between two events, possibly in the
// middle of a time point. The partially processed time point resumes on
// Continue.
func (k *Kernel) Interrupt() {
	k.interruptRequested.Store(true)
}

// Stop requests the run to stop before the next time point. Stopping a kernel
// that is paused, interrupted, halted, or elapsed moves it to Stopped at once.
func (k *Kernel) Stop() {
	k.stop(&k.stopRequested)
}

// ForceStop stops the run between two events, like Interrupt, but ends in
// the Stopped state.
func (k *Kernel) ForceStop() {
	k.stop(&k.forceRequested)
}

func (k *Kernel) stop(request *atomic.Bool) {
	if !k.singleRunLock.TryLock() {
		request.Store(true)
		return
	}
	defer k.singleRunLock.Unlock()

	if k.State() == Stopped {
		return
	}

	k.finish(Stopped)
}

func (k *Kernel) clearRequests() {
	k.pauseRequested.Store(false)
	k.interruptRequested.Store(false)
	k.stopRequested.Store(false)
	k.forceRequested.Store(false)
}

func (k *Kernel) boundaryRequested() bool {
	return k.pauseRequested.Load() ||
		k.interruptRequested.Load() ||
		k.stopRequested.Load() ||
		k.forceRequested.Load()
}

func (k *Kernel) abortRequested() bool {
	return k.interruptRequested.Load() || k.forceRequested.Load()
}

func (k *Kernel) run(target VTimeInSec, inclusive bool) error {
	prev := k.State()

	k.target = target
	k.inclusive = inclusive
	k.setState(Running)

	if prev == Stopped || prev == TimeElapsed {
		k.InvokeHook(hooking.HookCtx{
			Domain: k,
			Pos:    HookPosSimulationStarted,
			Now:    k.scheduler.Now(),
			Detail: target,
		})
	}

	halted, err := k.loop(target, inclusive)
	if err != nil {
		k.setState(Stopped)
		k.clearRequests()

		return err
	}

	switch {
	case k.pauseRequested.Load():
		k.setState(Paused)
	case k.interruptRequested.Load():
		k.setState(Interrupted)
	case k.stopRequested.Load() || k.forceRequested.Load() ||
		k.scheduler.EventfulMomentsCount() == 0:
		k.finish(Stopped)
	case halted:
		k.setState(InBreakPoint)
	default:
		err = k.elapse(target)
	}

	k.clearRequests()

	return err
}

func (k *Kernel) loop(
	target VTimeInSec,
	inclusive bool,
) (halted bool, err error) {
	for !k.boundaryRequested() {
		next, ok := k.scheduler.TimeOfNextScheduledEvent()
		if !ok {
			return false, nil
		}

		halted, err = k.evaluateBreakpoints(math.Min(next, target))
		if err != nil || halted {
			return halted, err
		}

		if next > target || (next == target && !inclusive) {
			return false, nil
		}

		err = k.scheduler.ProcessNextPointInTime(k.abortRequested)
		if err != nil {
			return false, err
		}
	}

	return false, nil
}

func (k *Kernel) elapse(target VTimeInSec) error {
	if !math.IsInf(target, 1) && target > k.scheduler.Now() {
		err := k.scheduler.AdvanceTo(target)
		if err != nil {
			k.setState(Stopped)
			return err
		}

		k.writeNow(target)
	}

	k.finish(TimeElapsed)

	return nil
}

func (k *Kernel) finish(state ExecutionState) {
	k.setState(state)

	k.InvokeHook(hooking.HookCtx{
		Domain: k,
		Pos:    HookPosSimulationFinished,
		Now:    k.scheduler.Now(),
		Detail: state,
	})
}
