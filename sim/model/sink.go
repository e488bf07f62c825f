package model

import (
	"github.com/sarchlab/flowsim/sim/kernel"
	"github.com/sarchlab/flowsim/sim/simerr"
	"github.com/sarchlab/flowsim/sim/timing"
)

// A Sink collects finished items.
type Sink struct {
	id string
	k  *kernel.Kernel

	count       int
	lastArrival timing.VTimeInSec
	totalFlow   timing.VTimeInSec
	arrival     *timing.Event
}

// NewSink creates and registers a sink.
func NewSink(k *kernel.Kernel, name string) (*Sink, error) {
	s := &Sink{
		id:      name,
		k:       k,
		arrival: timing.NewEvent(name + ".Arrival"),
	}

	err := k.AddEntity(s)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// ID returns the name of the sink.
func (s *Sink) ID() string {
	return s.id
}

// Arrival returns the event raised for every received item. The instance
// payload is the *Item.
func (s *Sink) Arrival() *timing.Event {
	return s.arrival
}

// Count returns the number of received items.
func (s *Sink) Count() int {
	return s.count
}

// LastArrival returns the time of the last received item.
func (s *Sink) LastArrival() timing.VTimeInSec {
	return s.lastArrival
}

// MeanFlowTime returns the mean time between creation and arrival.
func (s *Sink) MeanFlowTime() timing.VTimeInSec {
	if s.count == 0 {
		return 0
	}

	return s.totalFlow / timing.VTimeInSec(s.count)
}

// Receive takes an item.
func (s *Sink) Receive(item *Item) error {
	s.count++
	s.lastArrival = s.k.Now()
	s.totalFlow += s.lastArrival - item.CreatedAt

	_, err := s.arrival.RaiseNew(timing.WithArgs(item))

	return err
}

// Reset forgets the received items.
func (s *Sink) Reset() error {
	s.count = 0
	s.lastArrival = 0
	s.totalFlow = 0

	return nil
}

// SinkState is the saved content of a Sink.
type SinkState struct {
	Count       int
	LastArrival timing.VTimeInSec
	TotalFlow   timing.VTimeInSec
}

// SaveState returns the counters of the sink.
func (s *Sink) SaveState() (any, error) {
	return SinkState{
		Count:       s.count,
		LastArrival: s.lastArrival,
		TotalFlow:   s.totalFlow,
	}, nil
}

// LoadState restores the counters of the sink.
func (s *Sink) LoadState(state any) error {
	st, ok := state.(SinkState)
	if !ok {
		return simerr.Argument("sink %s: unexpected state %T", s.id, state)
	}

	s.count = st.Count
	s.lastArrival = st.LastArrival
	s.totalFlow = st.TotalFlow

	return nil
}
