package timing

import (
	"container/heap"
	"math"
	"sort"

	"github.com/sarchlab/flowsim/sim/hooking"
	"github.com/sarchlab/flowsim/sim/simerr"
)

// HookPosBeforeEvent is a hook position that triggers before raising an event
// instance.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after raising an event
// instance.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}

type bucket struct {
	time      VTimeInSec
	instances []*EventInstance
}

type timeHeap []VTimeInSec

func (h timeHeap) Len() int           { return len(h) }
func (h timeHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h timeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *timeHeap) Push(x any) {
	*h = append(*h, x.(VTimeInSec))
}

func (h *timeHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]

	return t
}

// A Scheduler keeps pending event instances grouped by the time they are due.
//
// All instances due at the same time form an eventful moment. Processing a
// moment raises its instances in priority order. Instances added for the
// current time while a moment is processed form a new moment, which is
// processed next without advancing the clock.
type Scheduler struct {
	*hooking.HookableBase

	now     VTimeInSec
	buckets map[VTimeInSec]*bucket
	times   timeHeap
	nextSeq uint64
	current *bucket

	processedEvents   uint64
	processedHandlers uint64
}

// NewScheduler creates an empty scheduler at time 0.
func NewScheduler() *Scheduler {
	return &Scheduler{
		HookableBase: hooking.NewHookableBase(),
		buckets:      make(map[VTimeInSec]*bucket),
	}
}

// Now returns the current time.
func (s *Scheduler) Now() VTimeInSec {
	return s.now
}

// AdvanceTo moves the clock forward without processing anything. The clock
// cannot move past a pending instance or backward.
func (s *Scheduler) AdvanceTo(t VTimeInSec) error {
	if t < s.now {
		return simerr.Causality("cannot move clock from %g back to %g", s.now, t)
	}

	next, ok := s.TimeOfNextScheduledEvent()
	if ok && t > next {
		return simerr.InvalidOperation(
			"cannot move clock to %g, an event is pending at %g", t, next)
	}

	s.now = t

	return nil
}

// Add schedules an instance at the given time. Times in the past are rejected.
func (s *Scheduler) Add(t VTimeInSec, inst *EventInstance) error {
	if inst == nil {
		return simerr.Argument("nil event instance")
	}

	if math.IsNaN(t) {
		return simerr.Argument("event %q scheduled at NaN", inst.event.name)
	}

	if t < s.now {
		return simerr.Causality(
			"event %q scheduled at %g, current time is %g",
			inst.event.name, t, s.now)
	}

	switch inst.state {
	case instancePending:
		return simerr.InvalidOperation(
			"event %q is already scheduled at %g", inst.event.name, inst.time)
	case instanceConsumed:
		return simerr.InvalidOperation(
			"event %q has already been raised", inst.event.name)
	}

	s.nextSeq++
	inst.priority.Seq = s.nextSeq
	inst.time = t
	inst.state = instancePending

	s.insert(inst)

	return nil
}

func (s *Scheduler) insert(inst *EventInstance) {
	b, found := s.buckets[inst.time]
	if !found {
		b = &bucket{time: inst.time}
		s.buckets[inst.time] = b
		heap.Push(&s.times, inst.time)
	}

	b.instances = append(b.instances, inst)
}

// Remove cancels a pending instance. It returns false if the instance is not
// pending.
func (s *Scheduler) Remove(inst *EventInstance) bool {
	if inst == nil || inst.state != instancePending {
		return false
	}

	if s.current != nil && s.current.time == inst.time {
		for i, candidate := range s.current.instances {
			if candidate == inst {
				s.current.instances[i] = nil
				inst.state = instanceIdle

				return true
			}
		}
	}

	b, found := s.buckets[inst.time]
	if !found {
		return false
	}

	for i, candidate := range b.instances {
		if candidate != inst {
			continue
		}

		b.instances = append(b.instances[:i:i], b.instances[i+1:]...)
		if len(b.instances) == 0 {
			delete(s.buckets, inst.time)
		}

		inst.state = instanceIdle

		return true
	}

	return false
}

// TimeOfNextScheduledEvent returns the earliest time that has a pending
// instance.
func (s *Scheduler) TimeOfNextScheduledEvent() (VTimeInSec, bool) {
	for len(s.times) > 0 {
		t := s.times[0]
		if _, found := s.buckets[t]; found {
			return t, true
		}

		heap.Pop(&s.times)
	}

	return 0, false
}

// EventfulMomentsCount returns the number of distinct times with pending
// instances.
func (s *Scheduler) EventfulMomentsCount() int {
	return len(s.buckets)
}

// PendingCount returns the number of pending instances.
func (s *Scheduler) PendingCount() int {
	n := 0
	for _, b := range s.buckets {
		n += len(b.instances)
	}

	return n
}

// ProcessedEvents returns the number of instances raised so far.
func (s *Scheduler) ProcessedEvents() uint64 {
	return s.processedEvents
}

// ProcessedHandlers returns the number of handler invocations so far.
func (s *Scheduler) ProcessedHandlers() uint64 {
	return s.processedHandlers
}

// ProcessNextPointInTime advances the clock to the earliest eventful moment
// and raises its instances in priority order.
//
// The abort function is consulted between instances. Once it returns true,
// or once a handler fails, the remaining instances stay pending at the same
// time. Processing an empty scheduler does nothing.
func (s *Scheduler) ProcessNextPointInTime(abort func() bool) error {
	t, ok := s.TimeOfNextScheduledEvent()
	if !ok {
		return nil
	}

	heap.Pop(&s.times)
	b := s.buckets[t]
	delete(s.buckets, t)

	s.now = t

	sort.Slice(b.instances, func(i, j int) bool {
		return b.instances[i].priority.Before(b.instances[j].priority)
	})

	s.current = b
	defer func() { s.current = nil }()

	raised := 0
	for i, inst := range b.instances {
		if s.current != b {
			// The scheduler was reset by a handler.
			return nil
		}

		if inst == nil || inst.state != instancePending {
			continue
		}

		if raised > 0 && abort != nil && abort() {
			s.requeue(b.instances[i:])
			return nil
		}

		raised++

		err := s.raise(inst)
		if err != nil {
			s.requeue(b.instances[i+1:])
			return err
		}
	}

	return nil
}

func (s *Scheduler) requeue(instances []*EventInstance) {
	for _, inst := range instances {
		if inst != nil && inst.state == instancePending {
			s.insert(inst)
		}
	}
}

func (s *Scheduler) raise(inst *EventInstance) error {
	inst.state = instanceConsumed

	ctx := hooking.HookCtx{
		Domain: s,
		Pos:    HookPosBeforeEvent,
		Now:    s.now,
		Item:   inst,
	}
	s.InvokeHook(ctx)

	err := inst.event.invoke(inst)

	s.processedEvents++
	s.processedHandlers += uint64(inst.handled)

	ctx.Pos = HookPosAfterEvent
	ctx.Detail = err
	s.InvokeHook(ctx)

	return err
}

// Reset drops all pending instances and moves the clock back to 0. Sequence
// numbers and counters restart.
func (s *Scheduler) Reset() {
	for _, b := range s.buckets {
		for _, inst := range b.instances {
			inst.state = instanceIdle
		}
	}

	if s.current != nil {
		for _, inst := range s.current.instances {
			if inst != nil && inst.state == instancePending {
				inst.state = instanceIdle
			}
		}

		s.current = nil
	}

	s.buckets = make(map[VTimeInSec]*bucket)
	s.times = nil
	s.now = 0
	s.nextSeq = 0
	s.processedEvents = 0
	s.processedHandlers = 0
}

// A Snapshot captures the pending instances and counters of a scheduler.
type Snapshot struct {
	Now               VTimeInSec
	NextSeq           uint64
	ProcessedEvents   uint64
	ProcessedHandlers uint64

	pending []snapshotEntry
}

type snapshotEntry struct {
	inst     *EventInstance
	time     VTimeInSec
	priority Priority
	handled  int
}

// PendingCount returns the number of pending instances in the snapshot.
func (ss *Snapshot) PendingCount() int {
	return len(ss.pending)
}

// Snapshot captures the current schedule.
func (s *Scheduler) Snapshot() *Snapshot {
	ss := &Snapshot{
		Now:               s.now,
		NextSeq:           s.nextSeq,
		ProcessedEvents:   s.processedEvents,
		ProcessedHandlers: s.processedHandlers,
	}

	bs := make([]*bucket, 0, len(s.buckets)+1)
	for _, b := range s.buckets {
		bs = append(bs, b)
	}

	if s.current != nil {
		bs = append(bs, s.current)
	}

	for _, b := range bs {
		for _, inst := range b.instances {
			if inst == nil || inst.state != instancePending {
				continue
			}

			ss.pending = append(ss.pending, snapshotEntry{
				inst:     inst,
				time:     inst.time,
				priority: inst.priority,
				handled:  inst.handled,
			})
		}
	}

	sort.Slice(ss.pending, func(i, j int) bool {
		a, b := ss.pending[i], ss.pending[j]
		if a.time != b.time {
			return a.time < b.time
		}

		return a.priority.Before(b.priority)
	})

	return ss
}

// Restore replaces the current schedule with a snapshot. Instances in the
// snapshot become pending again, even if they have been raised since.
func (s *Scheduler) Restore(ss *Snapshot) {
	s.Reset()

	s.now = ss.Now
	s.nextSeq = ss.NextSeq
	s.processedEvents = ss.ProcessedEvents
	s.processedHandlers = ss.ProcessedHandlers

	for _, e := range ss.pending {
		e.inst.time = e.time
		e.inst.priority = e.priority
		e.inst.handled = e.handled
		e.inst.state = instancePending
		s.insert(e.inst)
	}
}
