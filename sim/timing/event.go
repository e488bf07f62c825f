package timing

import (
	"sort"

	"github.com/sarchlab/flowsim/sim/simerr"
)

// HandlerFunc reacts to one occurrence of an event. Returning an error aborts
// the remaining handlers of the occurrence.
type HandlerFunc func(inst *EventInstance) error

// Token identifies a subscription so that it can be cancelled later.
type Token struct {
	id uint64
}

// Valid tells if the token was produced by a subscription.
func (t Token) Valid() bool {
	return t.id != 0
}

type handlerEntry struct {
	token    Token
	priority Priority
	fn       HandlerFunc
}

// HandlerOption configures a subscription.
type HandlerOption func(*handlerEntry)

// WithHandlerPriority sets the value part of the handler priority.
func WithHandlerPriority(value float64) HandlerOption {
	return func(h *handlerEntry) {
		h.priority.Value = value
	}
}

// WithHandlerTier sets the tier of the handler priority.
func WithHandlerTier(tier Tier) HandlerOption {
	return func(h *handlerEntry) {
		h.priority.Tier = tier
	}
}

// An Event is a reusable template of something that can happen. Each
// occurrence is an EventInstance; raising an instance invokes all handlers of
// the event in priority order, ties broken by registration order.
type Event struct {
	name      string
	handlers  []handlerEntry
	nextToken uint64
}

// NewEvent creates an event without handlers.
func NewEvent(name string) *Event {
	return &Event{name: name}
}

// Name returns the name of the event.
func (e *Event) Name() string {
	return e.name
}

// NumHandlers returns the number of subscribed handlers.
func (e *Event) NumHandlers() int {
	return len(e.handlers)
}

// Subscribe registers a handler and returns the token that cancels it.
func (e *Event) Subscribe(fn HandlerFunc, opts ...HandlerOption) Token {
	e.nextToken++

	entry := handlerEntry{
		token: Token{id: e.nextToken},
		fn:    fn,
	}
	entry.priority.Seq = e.nextToken

	for _, opt := range opts {
		opt(&entry)
	}

	e.handlers = append(e.handlers, entry)
	sort.SliceStable(e.handlers, func(i, j int) bool {
		return e.handlers[i].priority.Before(e.handlers[j].priority)
	})

	return entry.token
}

// Unsubscribe removes the handler registered with the token. It returns false
// if the token is unknown.
func (e *Event) Unsubscribe(token Token) bool {
	for i, h := range e.handlers {
		if h.token == token {
			e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
			return true
		}
	}

	return false
}

// NewInstance creates a new occurrence of the event. The instance is not
// scheduled.
func (e *Event) NewInstance(opts ...InstanceOption) *EventInstance {
	inst := &EventInstance{event: e}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// Raise synchronously invokes the handlers for an instance that is neither
// pending nor consumed. Raising ignores simulated time.
func (e *Event) Raise(inst *EventInstance) error {
	if inst.event != e {
		return simerr.Argument(
			"instance of event %q raised through event %q",
			inst.event.name, e.name)
	}

	switch inst.state {
	case instancePending:
		return simerr.InvalidOperation(
			"instance of event %q is scheduled, remove it first", e.name)
	case instanceConsumed:
		return simerr.InvalidOperation(
			"instance of event %q has already been raised", e.name)
	}

	inst.state = instanceConsumed

	return e.invoke(inst)
}

// RaiseNew creates an instance and raises it immediately.
func (e *Event) RaiseNew(opts ...InstanceOption) (*EventInstance, error) {
	inst := e.NewInstance(opts...)
	return inst, e.Raise(inst)
}

func (e *Event) invoke(inst *EventInstance) error {
	handlers := make([]handlerEntry, len(e.handlers))
	copy(handlers, e.handlers)

	for _, h := range handlers {
		inst.handled++

		err := h.fn(inst)
		if err != nil {
			return err
		}
	}

	return nil
}
