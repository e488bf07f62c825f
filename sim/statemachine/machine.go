// Package statemachine provides a finite automaton that an entity drives
// through whitelisted transitions.
package statemachine

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/flowsim/sim/kernel"
	"github.com/sarchlab/flowsim/sim/simerr"
	"github.com/sarchlab/flowsim/sim/timing"
)

// A Transition records one change of state.
type Transition struct {
	From string
	To   string
	Time timing.VTimeInSec
}

// A Machine is a finite automaton with a whitelist of transitions.
type Machine struct {
	owner   string
	states  map[string]bool
	order   []string
	allowed map[string]map[string]bool

	initial  string
	current  string
	previous string
	history  []Transition

	transition *timing.Event
	switchEvt  *timing.Event
	k          *kernel.Kernel
}

// New creates a machine in its initial state. The owner names the machine in
// events and errors.
func New(owner string, states []string, initial string) (*Machine, error) {
	m := &Machine{
		owner:      owner,
		states:     make(map[string]bool, len(states)),
		allowed:    make(map[string]map[string]bool),
		transition: timing.NewEvent(owner + ".Transition"),
		switchEvt:  timing.NewEvent(owner + ".ScheduledTransition"),
	}

	for _, s := range states {
		if m.states[s] {
			return nil, simerr.Argument("%s: duplicated state %q", owner, s)
		}

		m.states[s] = true
		m.order = append(m.order, s)
	}

	if !m.states[initial] {
		return nil, simerr.Argument("%s: unknown initial state %q", owner, initial)
	}

	m.initial = initial
	m.current = initial

	m.switchEvt.Subscribe(m.handleScheduledSwitch)

	return m, nil
}

// Attach binds the machine to a kernel. The kernel stamps transitions with
// the simulated time and resets the machine.
func (m *Machine) Attach(k *kernel.Kernel) {
	m.k = k
	k.AddResettable(m)
}

// Owner returns the name of the owner.
func (m *Machine) Owner() string {
	return m.owner
}

// States returns the states in declaration order.
func (m *Machine) States() []string {
	return append([]string(nil), m.order...)
}

// Allow whitelists transitions from one state to others.
func (m *Machine) Allow(from string, to ...string) error {
	for _, s := range append([]string{from}, to...) {
		if !m.states[s] {
			return simerr.Argument("%s: unknown state %q", m.owner, s)
		}
	}

	if m.allowed[from] == nil {
		m.allowed[from] = make(map[string]bool)
	}

	for _, s := range to {
		m.allowed[from][s] = true
	}

	return nil
}

// Allowed tells if the transition is whitelisted.
func (m *Machine) Allowed(from, to string) bool {
	return m.allowed[from][to]
}

// Current returns the current state.
func (m *Machine) Current() string {
	return m.current
}

// Previous returns the state before the last transition, or an empty string.
func (m *Machine) Previous() string {
	return m.previous
}

// History returns the transitions since the last reset.
func (m *Machine) History() []Transition {
	return append([]Transition(nil), m.history...)
}

// TransitionEvent returns the event raised on every notified transition.
// The instance payload is the Transition.
func (m *Machine) TransitionEvent() *timing.Event {
	return m.transition
}

// OnTransition subscribes a function to notified transitions.
func (m *Machine) OnTransition(
	fn func(t Transition) error,
	opts ...timing.HandlerOption,
) timing.Token {
	return m.transition.Subscribe(func(inst *timing.EventInstance) error {
		return fn(inst.Args.(Transition))
	}, opts...)
}

// SwitchState moves to the target state at once and notifies the transition
// handlers synchronously. It returns false, leaving the state unchanged, if
// the transition is not whitelisted. The error is the first handler error.
func (m *Machine) SwitchState(target string) (bool, error) {
	t, ok := m.apply(target)
	if !ok {
		return false, nil
	}

	_, err := m.transition.RaiseNew(timing.WithArgs(t))

	return true, err
}

// SwitchStateSilently moves to the target state without notifying anyone.
func (m *Machine) SwitchStateSilently(target string) bool {
	_, ok := m.apply(target)
	return ok
}

// ScheduleSwitch schedules a transition after the delay. The whitelist is
// checked when the transition is due; a transition that is not allowed by
// then is dropped.
func (m *Machine) ScheduleSwitch(
	delay timing.VTimeInSec,
	target string,
	opts ...timing.InstanceOption,
) (*timing.EventInstance, error) {
	if m.k == nil {
		return nil, simerr.Initialization(
			"%s: transition scheduled before attaching to a kernel", m.owner)
	}

	if !m.states[target] {
		return nil, simerr.Argument("%s: unknown state %q", m.owner, target)
	}

	opts = append(opts, timing.WithArgs(target))

	return m.k.AddEvent(delay, m.switchEvt, opts...)
}

func (m *Machine) handleScheduledSwitch(inst *timing.EventInstance) error {
	target := inst.Args.(string)

	ok, err := m.SwitchState(target)
	if !ok {
		m.k.Logger().WithFields(logrus.Fields{
			"machine": m.owner,
			"from":    m.current,
			"to":      target,
		}).Debug("scheduled transition not allowed")
	}

	return err
}

func (m *Machine) apply(target string) (Transition, bool) {
	if !m.Allowed(m.current, target) {
		return Transition{}, false
	}

	t := Transition{From: m.current, To: target}
	if m.k != nil {
		t.Time = m.k.Now()
	}

	m.previous = m.current
	m.current = target
	m.history = append(m.history, t)

	return t, true
}

// Reset returns to the initial state and clears the history.
func (m *Machine) Reset() error {
	m.current = m.initial
	m.previous = ""
	m.history = nil

	return nil
}
