package model

import (
	"github.com/sarchlab/flowsim/sim/hooking"
	"github.com/sarchlab/flowsim/sim/kernel"
	"github.com/sarchlab/flowsim/sim/queueing"
	"github.com/sarchlab/flowsim/sim/resource"
	"github.com/sarchlab/flowsim/sim/simerr"
	"github.com/sarchlab/flowsim/sim/statemachine"
	"github.com/sarchlab/flowsim/sim/task"
	"github.com/sarchlab/flowsim/sim/timing"
)

// Server states.
const (
	StateIdle = "Idle"
	StateBusy = "Busy"
)

// A Server takes items from its input buffer one at a time. For each item it
// seizes a resource, if it has a pool, serves the item for the service time,
// releases the resource, and hands the item to its sink.
type Server struct {
	id string
	k  *kernel.Kernel

	input        queueing.Buffer
	output       *Sink
	pool         *resource.Manager
	resourceType string
	serviceTime  timing.VTimeInSec

	machine   *statemachine.Machine
	sequencer *task.Sequencer
	busy      *hooking.BusyTimeTracer
	done      *timing.Event

	waiting *resource.Reservation
	served  int
}

// ServerBuilder builds servers.
type ServerBuilder struct {
	kernel       *kernel.Kernel
	input        queueing.Buffer
	output       *Sink
	pool         *resource.Manager
	resourceType string
	serviceTime  timing.VTimeInSec
}

// MakeServerBuilder returns a builder with a service time of 1.
func MakeServerBuilder() ServerBuilder {
	return ServerBuilder{serviceTime: 1}
}

// WithKernel sets the kernel.
func (b ServerBuilder) WithKernel(k *kernel.Kernel) ServerBuilder {
	b.kernel = k
	return b
}

// WithInput sets the buffer the server takes items from.
func (b ServerBuilder) WithInput(in queueing.Buffer) ServerBuilder {
	b.input = in
	return b
}

// WithOutput sets the sink that receives served items.
func (b ServerBuilder) WithOutput(out *Sink) ServerBuilder {
	b.output = out
	return b
}

// WithResource makes the server seize one resource of the type from the
// pool for each item.
func (b ServerBuilder) WithResource(
	pool *resource.Manager,
	typ string,
) ServerBuilder {
	b.pool = pool
	b.resourceType = typ

	return b
}

// WithServiceTime sets the mean service time. Service times are
// exponentially distributed unless the kernel is in non-stochastic mode.
func (b ServerBuilder) WithServiceTime(d timing.VTimeInSec) ServerBuilder {
	b.serviceTime = d
	return b
}

// Build creates and registers the server.
func (b ServerBuilder) Build(name string) (*Server, error) {
	if b.kernel == nil || b.input == nil || b.output == nil {
		return nil, simerr.Argument(
			"server %s needs a kernel, an input, and an output", name)
	}

	if b.serviceTime < 0 {
		return nil, simerr.Argument(
			"server %s: negative service time %g", name, b.serviceTime)
	}

	machine, err := statemachine.New(name, []string{StateIdle, StateBusy}, StateIdle)
	if err != nil {
		return nil, err
	}

	if err = machine.Allow(StateIdle, StateBusy); err != nil {
		return nil, err
	}

	if err = machine.Allow(StateBusy, StateIdle); err != nil {
		return nil, err
	}

	s := &Server{
		id:           name,
		k:            b.kernel,
		input:        b.input,
		output:       b.output,
		pool:         b.pool,
		resourceType: b.resourceType,
		serviceTime:  b.serviceTime,
		machine:      machine,
		sequencer:    task.NewSequencer(name, b.kernel),
		done:         timing.NewEvent(name + ".Done"),
	}

	s.busy = hooking.NewBusyTimeTracer(b.kernel, nil)
	s.sequencer.AcceptHook(s.busy)
	s.done.Subscribe(s.finish)
	s.input.Pushed().Subscribe(func(*timing.EventInstance) error {
		return s.pull()
	})

	if err = b.kernel.AddEntity(s); err != nil {
		return nil, err
	}

	machine.Attach(b.kernel)
	b.kernel.AddResettable(s.sequencer)

	return s, nil
}

// ID returns the name of the server.
func (s *Server) ID() string {
	return s.id
}

// Machine returns the Idle/Busy state machine of the server.
func (s *Server) Machine() *statemachine.Machine {
	return s.machine
}

// Sequencer returns the task sequencer of the server.
func (s *Server) Sequencer() *task.Sequencer {
	return s.sequencer
}

// Served returns the number of items served since the last reset.
func (s *Server) Served() int {
	return s.served
}

// BusyTime returns the simulated time spent serving completed busy periods.
func (s *Server) BusyTime() timing.VTimeInSec {
	return s.busy.BusyTime()
}

// Reset forgets the served items.
func (s *Server) Reset() error {
	s.served = 0
	s.waiting = nil
	s.busy.Reset()

	return nil
}

func (s *Server) pull() error {
	if s.waiting != nil || s.sequencer.Active() != nil {
		return nil
	}

	item, ok := s.input.Pop().(*Item)
	if !ok {
		return nil
	}

	if s.pool == nil {
		return s.begin(item, nil)
	}

	var beginErr error

	res, err := s.pool.SeizeN(s, s.resourceType, 1,
		resource.WithPickup(func(r *resource.Reservation) bool {
			s.waiting = nil
			beginErr = s.begin(item, r)

			return beginErr == nil
		}))
	if err != nil {
		return err
	}

	if !res.Finished() {
		s.waiting = res
	}

	return beginErr
}

func (s *Server) begin(item *Item, res *resource.Reservation) error {
	t := task.New("serve", task.WithFinishFunc(func() {
		if res == nil {
			return
		}

		for _, r := range res.All() {
			r.Release()
		}
	}))

	if err := s.sequencer.Enqueue(t); err != nil {
		return err
	}

	if _, err := s.machine.SwitchState(StateBusy); err != nil {
		return err
	}

	delay := s.k.Stream(s.id).Exponential(s.serviceTime)
	_, err := s.k.AddEvent(delay, s.done, timing.WithArgs(servedItem{item, t}))

	return err
}

type servedItem struct {
	item *Item
	task *task.Task
}

func (s *Server) finish(inst *timing.EventInstance) error {
	si := inst.Args.(servedItem)

	si.task.Finish()
	s.served++

	if _, err := s.machine.SwitchState(StateIdle); err != nil {
		return err
	}

	if err := s.output.Receive(si.item); err != nil {
		return err
	}

	return s.pull()
}
