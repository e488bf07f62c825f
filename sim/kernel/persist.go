package kernel

import (
	"fmt"

	"github.com/sarchlab/flowsim/sim/simerr"
	"github.com/sarchlab/flowsim/sim/timing"
)

// State is the saved content of a kernel. It has no defined encoding.
type State struct {
	Time              VTimeInSec
	Seed              int64
	Antithetic        bool
	NonStochastic     bool
	ExecutionState    ExecutionState
	ProcessedEvents   uint64
	ProcessedHandlers uint64

	// Entities maps entity IDs to the state of every entity that is a
	// StateHolder.
	Entities map[string]any
}

// Save captures the kernel content. Pending events are not part of it; use
// Suspend to keep them.
func (k *Kernel) Save() (*State, error) {
	if !k.initialized {
		return nil, simerr.Initialization("kernel %s: save before the first reset", k.name)
	}

	s := &State{
		Time:              k.scheduler.Now(),
		Seed:              k.seed,
		Antithetic:        k.antithetic,
		NonStochastic:     k.nonStochastic,
		ExecutionState:    k.State(),
		ProcessedEvents:   k.scheduler.ProcessedEvents(),
		ProcessedHandlers: k.scheduler.ProcessedHandlers(),
		Entities:          make(map[string]any),
	}

	for _, e := range k.entities {
		holder, ok := e.(StateHolder)
		if !ok {
			continue
		}

		es, err := holder.SaveState()
		if err != nil {
			return nil, fmt.Errorf("saving entity %s: %w", e.ID(), err)
		}

		s.Entities[e.ID()] = es
	}

	return s, nil
}

// Load restores content captured by Save. Pending events are dropped and the
// streams are reseeded from the saved seed.
func (k *Kernel) Load(s *State) error {
	if !k.initialized {
		return simerr.Initialization("kernel %s: load before the first reset", k.name)
	}

	if !k.singleRunLock.TryLock() {
		return simerr.InvalidOperation("kernel %s: load while running", k.name)
	}
	defer k.singleRunLock.Unlock()

	for id := range s.Entities {
		e, found := k.Entity(id)
		if !found {
			return simerr.Argument("saved entity %q is not registered", id)
		}

		if _, ok := e.(StateHolder); !ok {
			return simerr.Argument("entity %q cannot load state", id)
		}
	}

	k.seed = s.Seed
	k.antithetic = s.Antithetic
	k.nonStochastic = s.NonStochastic
	k.streams.Reset(k.seed, k.antithetic, k.nonStochastic)

	k.scheduler.Restore(&timing.Snapshot{
		Now:               s.Time,
		ProcessedEvents:   s.ProcessedEvents,
		ProcessedHandlers: s.ProcessedHandlers,
	})
	k.writeNow(s.Time)
	k.processedEvents.Store(s.ProcessedEvents)
	k.breakpoints = nil
	k.clearRequests()
	k.setState(loadedState(s.ExecutionState))

	for _, e := range k.entities {
		es, found := s.Entities[e.ID()]
		if !found {
			continue
		}

		err := e.(StateHolder).LoadState(es)
		if err != nil {
			return fmt.Errorf("loading entity %s: %w", e.ID(), err)
		}
	}

	return nil
}

// loadedState returns the state a loaded kernel is left in. A state saved in
// the middle of a run is resumable as Paused.
func loadedState(saved ExecutionState) ExecutionState {
	if saved == Running {
		return Paused
	}

	return saved
}

// A Suspension holds the pending events and run position of a kernel.
type Suspension struct {
	schedule *timing.Snapshot
	state    ExecutionState
	target   VTimeInSec
}

// Now returns the time the kernel was suspended at.
func (s *Suspension) Now() VTimeInSec {
	return s.schedule.Now
}

// Suspend captures the pending events so that Resume can bring them back.
func (k *Kernel) Suspend() (*Suspension, error) {
	if !k.singleRunLock.TryLock() {
		return nil, simerr.InvalidOperation("kernel %s: suspend while running", k.name)
	}
	defer k.singleRunLock.Unlock()

	return &Suspension{
		schedule: k.scheduler.Snapshot(),
		state:    k.State(),
		target:   k.target,
	}, nil
}

// Resume restores the pending events and run position of a suspension.
func (k *Kernel) Resume(s *Suspension) error {
	if !k.singleRunLock.TryLock() {
		return simerr.InvalidOperation("kernel %s: resume while running", k.name)
	}
	defer k.singleRunLock.Unlock()

	k.scheduler.Restore(s.schedule)
	k.writeNow(s.schedule.Now)
	k.processedEvents.Store(s.schedule.ProcessedEvents)
	k.target = s.target
	k.clearRequests()
	k.setState(loadedState(s.state))

	return nil
}
