package timing

type instanceState int

const (
	instanceIdle instanceState = iota
	instancePending
	instanceConsumed
)

// InstanceOption configures an event instance.
type InstanceOption func(*EventInstance)

// WithPriority sets the value part of the instance priority. Higher values
// fire first among instances scheduled at the same time and tier.
func WithPriority(value float64) InstanceOption {
	return func(i *EventInstance) {
		i.priority.Value = value
	}
}

// WithTier sets the tier of the instance priority.
func WithTier(tier Tier) InstanceOption {
	return func(i *EventInstance) {
		i.priority.Tier = tier
	}
}

// WithArgs attaches a payload to the instance.
func WithArgs(args any) InstanceOption {
	return func(i *EventInstance) {
		i.Args = args
	}
}

// WithLog marks the instance to be reported by event loggers.
func WithLog() InstanceOption {
	return func(i *EventInstance) {
		i.log = true
	}
}

// An EventInstance is one time-bound occurrence of an Event. An instance is
// consumed exactly once. While it is pending, it belongs to the scheduler;
// removing it hands it back to the caller, who may schedule it again.
type EventInstance struct {
	event    *Event
	priority Priority
	time     VTimeInSec
	handled  int
	log      bool
	state    instanceState

	// Args is an optional payload for the handlers.
	Args any
}

// Event returns the template the instance was created from.
func (i *EventInstance) Event() *Event {
	return i.event
}

// Priority returns the priority of the instance. The sequence number is
// assigned when the instance is scheduled.
func (i *EventInstance) Priority() Priority {
	return i.priority
}

// Time returns the time the instance is or was scheduled at.
func (i *EventInstance) Time() VTimeInSec {
	return i.time
}

// HandlerCount returns how many handlers have been invoked for the instance.
func (i *EventInstance) HandlerCount() int {
	return i.handled
}

// Logged tells if the instance is marked to be logged.
func (i *EventInstance) Logged() bool {
	return i.log
}

// IsPending tells if the instance is waiting in a scheduler.
func (i *EventInstance) IsPending() bool {
	return i.state == instancePending
}

// IsConsumed tells if the instance has been raised.
func (i *EventInstance) IsConsumed() bool {
	return i.state == instanceConsumed
}
