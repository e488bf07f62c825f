package kernel

import (
	"github.com/sarchlab/flowsim/sim/simerr"
	"github.com/sarchlab/flowsim/sim/timing"
)

// AddEvent schedules an occurrence of the event after the delay.
func (k *Kernel) AddEvent(
	delay VTimeInSec,
	evt *timing.Event,
	opts ...timing.InstanceOption,
) (*timing.EventInstance, error) {
	if delay < 0 {
		return nil, simerr.Causality(
			"event %q scheduled with negative delay %g", evt.Name(), delay)
	}

	return k.AddEventAt(k.scheduler.Now()+delay, evt, opts...)
}

// AddEventAt schedules an occurrence of the event at the given time. Times
// before the current time are rejected and nothing is scheduled.
func (k *Kernel) AddEventAt(
	t VTimeInSec,
	evt *timing.Event,
	opts ...timing.InstanceOption,
) (*timing.EventInstance, error) {
	if !k.initialized {
		return nil, simerr.Initialization(
			"kernel %s: event %q scheduled before the first reset",
			k.name, evt.Name())
	}

	inst := evt.NewInstance(opts...)

	err := k.scheduler.Add(t, inst)
	if err != nil {
		return nil, err
	}

	return inst, nil
}

// AddImmediateAction schedules a function at the current time.
func (k *Kernel) AddImmediateAction(
	fn func() error,
	opts ...timing.InstanceOption,
) (*timing.EventInstance, error) {
	evt := timing.NewEvent("ImmediateAction")
	evt.Subscribe(func(*timing.EventInstance) error {
		return fn()
	})

	return k.AddEventAt(k.scheduler.Now(), evt, opts...)
}

// RemoveEvent cancels a pending event instance. It returns false if the
// instance is not pending.
func (k *Kernel) RemoveEvent(inst *timing.EventInstance) bool {
	return k.scheduler.Remove(inst)
}
