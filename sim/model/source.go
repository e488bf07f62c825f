package model

import (
	"github.com/sarchlab/flowsim/sim/id"
	"github.com/sarchlab/flowsim/sim/kernel"
	"github.com/sarchlab/flowsim/sim/queueing"
	"github.com/sarchlab/flowsim/sim/simerr"
	"github.com/sarchlab/flowsim/sim/timing"
)

// A Source creates items periodically.
//
// In non-stochastic mode, creations are exactly one interval apart.
// Otherwise the gaps are exponentially distributed with the interval as
// mean, drawn from the source's own stream.
type Source struct {
	id  string
	k   *kernel.Kernel
	ids id.IDGenerator

	interval   timing.VTimeInSec
	startDelay timing.VTimeInSec
	maxCount   int
	output     queueing.Buffer

	created  int
	creation *timing.Event
}

// A SourceOption configures a Source.
type SourceOption func(*Source)

// WithInterval sets the mean time between creations.
func WithInterval(d timing.VTimeInSec) SourceOption {
	return func(s *Source) {
		s.interval = d
	}
}

// WithStartDelay sets the time of the first creation.
func WithStartDelay(d timing.VTimeInSec) SourceOption {
	return func(s *Source) {
		s.startDelay = d
	}
}

// WithMaxCount limits the number of creations. Zero means unlimited.
func WithMaxCount(n int) SourceOption {
	return func(s *Source) {
		s.maxCount = n
	}
}

// WithOutput sets the buffer that receives created items.
func WithOutput(b queueing.Buffer) SourceOption {
	return func(s *Source) {
		s.output = b
	}
}

// NewSource creates a source, registers it, and schedules its first
// creation.
func NewSource(k *kernel.Kernel, name string, opts ...SourceOption) (*Source, error) {
	if !k.Initialized() {
		return nil, simerr.Initialization(
			"source %s configured before the kernel is initialized", name)
	}

	s := &Source{
		id:       name,
		k:        k,
		ids:      id.NewPrefixedIDGenerator(name),
		interval: 1,
		creation: timing.NewEvent(name + ".Creation"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.interval <= 0 || s.startDelay < 0 || s.maxCount < 0 {
		return nil, simerr.Argument(
			"source %s: interval %g, start delay %g, max count %d",
			name, s.interval, s.startDelay, s.maxCount)
	}

	s.creation.Subscribe(s.create, timing.WithHandlerTier(timing.TierBefore))

	err := k.AddEntity(s)
	if err != nil {
		return nil, err
	}

	return s, s.Reset()
}

// ID returns the name of the source.
func (s *Source) ID() string {
	return s.id
}

// Creation returns the event raised for every creation. The instance
// payload is the created *Item.
func (s *Source) Creation() *timing.Event {
	return s.creation
}

// Created returns the number of items created since the last reset.
func (s *Source) Created() int {
	return s.created
}

// Reset forgets the created items and schedules the first creation.
func (s *Source) Reset() error {
	s.created = 0
	s.ids.Reset()

	return s.scheduleNext(s.startDelay)
}

func (s *Source) scheduleNext(delay timing.VTimeInSec) error {
	_, err := s.k.AddEvent(delay, s.creation)
	return err
}

// create runs before any other handler of the creation event, so that they
// see the item.
func (s *Source) create(inst *timing.EventInstance) error {
	s.created++

	item := &Item{ID: s.ids.Generate(), CreatedAt: s.k.Now()}
	inst.Args = item

	if s.output != nil {
		if err := s.output.Push(item); err != nil {
			return err
		}
	}

	if s.maxCount > 0 && s.created >= s.maxCount {
		return nil
	}

	return s.scheduleNext(s.k.Stream(s.id).Exponential(s.interval))
}

// SaveState returns the number of created items.
func (s *Source) SaveState() (any, error) {
	return s.created, nil
}

// LoadState restores the number of created items.
func (s *Source) LoadState(state any) error {
	n, ok := state.(int)
	if !ok {
		return simerr.Argument("source %s: unexpected state %T", s.id, state)
	}

	s.created = n

	return nil
}
