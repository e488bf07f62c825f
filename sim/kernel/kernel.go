// Package kernel provides the simulation kernel. A kernel owns the event
// scheduler, the random streams, the entity registry and the breakpoints, and
// drives them through the run control state machine.
//
// A kernel executes handlers on a single goroutine. Pause, Interrupt, Stop,
// and the read-only accessors Now, State, and ProcessedEvents may be called
// from other goroutines; everything else must be called from the goroutine
// that drives the kernel.
package kernel

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/flowsim/sim/hooking"
	"github.com/sarchlab/flowsim/sim/rng"
	"github.com/sarchlab/flowsim/sim/timing"
)

// VTimeInSec is the simulated time.
type VTimeInSec = timing.VTimeInSec

// HookPosSimulationStarted triggers when a run begins from the Stopped or
// TimeElapsed state. The hook detail is the target time.
var HookPosSimulationStarted = &hooking.HookPos{Name: "SimulationStarted"}

// HookPosSimulationFinished triggers when a run ends in the Stopped or
// TimeElapsed state. The hook detail is the final ExecutionState.
var HookPosSimulationFinished = &hooking.HookPos{Name: "SimulationFinished"}

// HookPosBeforeEvent triggers before each event instance is raised.
var HookPosBeforeEvent = timing.HookPosBeforeEvent

// HookPosAfterEvent triggers after each event instance is raised.
var HookPosAfterEvent = timing.HookPosAfterEvent

// A Kernel is a discrete-event simulation kernel.
type Kernel struct {
	*hooking.HookableBase

	name   string
	logger *logrus.Logger

	seed          int64
	antithetic    bool
	nonStochastic bool
	initialized   bool

	scheduler *timing.Scheduler
	streams   *rng.Partition

	entities    []Entity
	entityIndex map[string]int
	resettables []Resettable

	breakpoints []*breakpoint
	bpSeq       uint64

	target    VTimeInSec
	inclusive bool

	timeLock sync.RWMutex
	time     VTimeInSec

	stateLock sync.RWMutex
	state     ExecutionState

	processedEvents atomic.Uint64

	pauseRequested     atomic.Bool
	interruptRequested atomic.Bool
	stopRequested      atomic.Bool
	forceRequested     atomic.Bool

	singleRunLock sync.Mutex
}

// An Option configures a kernel at construction or reset.
type Option func(*Kernel)

// WithSeed sets the master seed.
func WithSeed(seed int64) Option {
	return func(k *Kernel) {
		k.seed = seed
	}
}

// WithAntithetic turns antithetic draws on or off for every stream.
func WithAntithetic(antithetic bool) Option {
	return func(k *Kernel) {
		k.antithetic = antithetic
	}
}

// WithNonStochasticMode turns the non-stochastic mode on or off for every
// stream.
func WithNonStochasticMode(nonStochastic bool) Option {
	return func(k *Kernel) {
		k.nonStochastic = nonStochastic
	}
}

// WithName sets the name of the kernel.
func WithName(name string) Option {
	return func(k *Kernel) {
		k.name = name
	}
}

// WithLogger sets the logger for warnings. The standard logger is used by
// default.
func WithLogger(logger *logrus.Logger) Option {
	return func(k *Kernel) {
		k.logger = logger
	}
}

// New creates a kernel. The kernel must be Reset before use.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		HookableBase: hooking.NewHookableBase(),
		name:         "Kernel",
		logger:       logrus.StandardLogger(),
		scheduler:    timing.NewScheduler(),
		entityIndex:  make(map[string]int),
		state:        Stopped,
	}

	for _, opt := range opts {
		opt(k)
	}

	k.streams = rng.NewPartition(k.seed, k.antithetic, k.nonStochastic)
	k.scheduler.AcceptHook(eventForwarder{k: k})

	return k
}

// eventForwarder republishes scheduler hooks as kernel hooks and keeps the
// mirrored clock current.
type eventForwarder struct {
	k *Kernel
}

func (f eventForwarder) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case timing.HookPosBeforeEvent:
		f.k.writeNow(ctx.Now)
	case timing.HookPosAfterEvent:
		f.k.processedEvents.Add(1)
	}

	ctx.Domain = f.k
	f.k.InvokeHook(ctx)
}

// Name returns the name of the kernel.
func (k *Kernel) Name() string {
	return k.name
}

// ID returns the name of the kernel.
func (k *Kernel) ID() string {
	return k.name
}

// Initialized tells if the kernel has been reset at least once.
func (k *Kernel) Initialized() bool {
	return k.initialized
}

// Seed returns the master seed.
func (k *Kernel) Seed() int64 {
	return k.seed
}

// Antithetic tells if streams produce antithetic draws.
func (k *Kernel) Antithetic() bool {
	return k.antithetic
}

// NonStochasticMode tells if streams are in non-stochastic mode.
func (k *Kernel) NonStochasticMode() bool {
	return k.nonStochastic
}

// Logger returns the logger of the kernel.
func (k *Kernel) Logger() *logrus.Logger {
	return k.logger
}

// Now returns the current simulated time.
func (k *Kernel) Now() VTimeInSec {
	return k.readNow()
}

func (k *Kernel) readNow() VTimeInSec {
	k.timeLock.RLock()
	t := k.time
	k.timeLock.RUnlock()

	return t
}

func (k *Kernel) writeNow(t VTimeInSec) {
	k.timeLock.Lock()
	k.time = t
	k.timeLock.Unlock()
}

// Target returns the target time of the last run.
func (k *Kernel) Target() VTimeInSec {
	return k.target
}

// ProcessedEvents returns the number of event instances raised since the last
// reset.
func (k *Kernel) ProcessedEvents() uint64 {
	return k.processedEvents.Load()
}

// ProcessedHandlers returns the number of handler invocations since the last
// reset.
func (k *Kernel) ProcessedHandlers() uint64 {
	return k.scheduler.ProcessedHandlers()
}

// EventfulMomentsCount returns the number of distinct future times with
// pending events.
func (k *Kernel) EventfulMomentsCount() int {
	return k.scheduler.EventfulMomentsCount()
}

// TimeOfNextEvent returns the time of the earliest pending event.
func (k *Kernel) TimeOfNextEvent() (VTimeInSec, bool) {
	return k.scheduler.TimeOfNextScheduledEvent()
}

// Stream returns the random stream with the given identifier. Its seed
// depends only on the identifier and the master seed.
func (k *Kernel) Stream(id string) *rng.Stream {
	return k.streams.Stream(id)
}

// Random returns the master random stream.
func (k *Kernel) Random() *rng.Stream {
	return k.streams.Master()
}
