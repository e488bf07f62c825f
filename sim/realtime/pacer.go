// Package realtime paces a simulation against the wall clock.
package realtime

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/flowsim/sim/hooking"
	"github.com/sarchlab/flowsim/sim/kernel"
	"github.com/sarchlab/flowsim/sim/simerr"
	"github.com/sarchlab/flowsim/sim/timing"
)

// HookPosPacerSample triggers after every pacer iteration. The hook item is a
// Sample.
var HookPosPacerSample = &hooking.HookPos{Name: "PacerSample"}

// A Stepper is a simulation that can be advanced by a duration.
type Stepper interface {
	Now() timing.VTimeInSec
	StepBy(d timing.VTimeInSec) error
	State() kernel.ExecutionState
}

// A Sleeper waits for a duration or until the context ends.
type Sleeper func(ctx context.Context, d time.Duration) error

// A Clock tells the wall-clock time.
type Clock func() time.Time

// A Sample describes one pacer iteration.
type Sample struct {
	Iteration  uint64
	SimTime    timing.VTimeInSec
	Step       time.Duration
	Callback   time.Duration
	Sleep      time.Duration
	SpeedRatio float64
}

// A Pacer advances a simulation by a fixed amount of simulated time per
// wall-clock interval, on its own goroutine.
//
// Each iteration steps the simulation by interval times speed, calls the
// sync callback, and sleeps for what is left of the interval. An iteration
// that overruns the interval does not sleep, so the simulation falls behind
// the wall clock. Samples report the wall time measured after the sleep.
type Pacer struct {
	*hooking.HookableBase

	sim      Stepper
	interval time.Duration
	speed    float64
	callback func() error
	stopWhen func() bool
	sleep    Sleeper
	clock    Clock

	lock    sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group

	stats *collector
}

// An Option configures a Pacer.
type Option func(*Pacer)

// WithSyncInterval sets the wall-clock length of an iteration.
func WithSyncInterval(d time.Duration) Option {
	return func(p *Pacer) {
		p.interval = d
	}
}

// WithSpeed sets how many simulated seconds pass per wall-clock second.
func WithSpeed(speed float64) Option {
	return func(p *Pacer) {
		p.speed = speed
	}
}

// WithSyncCallback sets the function called after every step.
func WithSyncCallback(fn func() error) Option {
	return func(p *Pacer) {
		p.callback = fn
	}
}

// WithStopCondition sets a predicate that ends the pacing when true.
func WithStopCondition(fn func() bool) Option {
	return func(p *Pacer) {
		p.stopWhen = fn
	}
}

// WithWindow sets the number of iterations in the rolling statistics.
func WithWindow(n int) Option {
	return func(p *Pacer) {
		p.stats = newCollector(n)
	}
}

// WithSleeper replaces the function used to wait.
func WithSleeper(s Sleeper) Option {
	return func(p *Pacer) {
		p.sleep = s
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(p *Pacer) {
		p.clock = c
	}
}

// NewPacer creates a pacer. By default it syncs every 100ms at speed 1.
func NewPacer(sim Stepper, opts ...Option) *Pacer {
	p := &Pacer{
		HookableBase: hooking.NewHookableBase(),
		sim:          sim,
		interval:     100 * time.Millisecond,
		speed:        1,
		sleep:        sleepContext,
		clock:        time.Now,
		stats:        newCollector(10),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Interval returns the wall-clock length of an iteration.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Speed returns the simulated seconds per wall-clock second.
func (p *Pacer) Speed() float64 {
	return p.speed
}

// Running tells if the pacing goroutine is active.
func (p *Pacer) Running() bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.running
}

// Start launches the pacing goroutine.
func (p *Pacer) Start(ctx context.Context) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.running {
		return simerr.InvalidOperation("pacer is already running")
	}

	if p.interval <= 0 || p.speed <= 0 {
		return simerr.Argument(
			"pacer interval %s and speed %g must be positive", p.interval, p.speed)
	}

	ctx, p.cancel = context.WithCancel(ctx)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer p.markStopped()
		return p.loop(gCtx)
	})

	p.group = g
	p.running = true

	return nil
}

func (p *Pacer) markStopped() {
	p.lock.Lock()
	p.running = false
	p.lock.Unlock()
}

// Wait blocks until the pacing goroutine ends and returns its error.
func (p *Pacer) Wait() error {
	p.lock.Lock()
	g := p.group
	p.lock.Unlock()

	if g == nil {
		return nil
	}

	return g.Wait()
}

// Stop asks the pacing goroutine to end after the current iteration.
func (p *Pacer) Stop() {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Pacer) loop(ctx context.Context) error {
	advance := p.interval.Seconds() * p.speed

	for {
		if ctx.Err() != nil {
			return nil
		}

		if p.stopWhen != nil && p.stopWhen() {
			return nil
		}

		start := p.clock()

		err := p.sim.StepBy(advance)
		if err != nil {
			return err
		}

		stepped := p.clock()

		if p.callback != nil {
			err = p.callback()
			if err != nil {
				return err
			}
		}

		done := p.clock()
		elapsed := p.sim.State() == kernel.TimeElapsed

		end := done
		var sleepErr error

		busy := done.Sub(start)
		if elapsed && busy < p.interval {
			sleepErr = p.sleep(ctx, p.interval-busy)
			end = p.clock()
		}

		p.publish(Sample{
			SimTime:  p.sim.Now(),
			Step:     stepped.Sub(start),
			Callback: done.Sub(stepped),
			Sleep:    end.Sub(done),
		}, end.Sub(start), advance)

		if !elapsed || sleepErr != nil {
			return nil
		}
	}
}

// publish records a sample whose iteration took wall of wall-clock time to
// advance the simulation by advance.
func (p *Pacer) publish(
	sample Sample,
	wall time.Duration,
	advance timing.VTimeInSec,
) {
	if wall > 0 {
		sample.SpeedRatio = advance / wall.Seconds()
	}

	sample.Iteration = p.stats.add(sample)

	p.InvokeHook(hooking.HookCtx{
		Domain: p,
		Pos:    HookPosPacerSample,
		Now:    sample.SimTime,
		Item:   sample,
	})
}

// Stats returns the timing statistics collected so far.
func (p *Pacer) Stats() Stats {
	return p.stats.snapshot()
}
