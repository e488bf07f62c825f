// Package simulation assembles a kernel with the services around it: the
// trace recorder, the monitoring server, and the real-time pacer.
package simulation

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/flowsim/datarecording"
	"github.com/sarchlab/flowsim/monitoring"
	"github.com/sarchlab/flowsim/sim/kernel"
	"github.com/sarchlab/flowsim/sim/queueing"
	"github.com/sarchlab/flowsim/sim/realtime"
	"github.com/sarchlab/flowsim/sim/resource"
	"github.com/sarchlab/flowsim/sim/timing"
)

// A Simulation owns a kernel and the services attached to it.
type Simulation struct {
	id     string
	logger *logrus.Logger

	kernel       *kernel.Kernel
	dataRecorder datarecording.DataRecorder
	monitor      *monitoring.Monitor
	pacer        *realtime.Pacer

	until timing.VTimeInSec
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Kernel returns the kernel of the simulation.
func (s *Simulation) Kernel() *kernel.Kernel {
	return s.kernel
}

// DataRecorder returns the trace recorder, or nil without recording.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// Monitor returns the monitor, or nil without monitoring.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// Pacer returns the real-time pacer, or nil if the simulation runs as fast
// as it can.
func (s *Simulation) Pacer() *realtime.Pacer {
	return s.pacer
}

// RegisterBuffer makes a buffer visible to the monitor.
func (s *Simulation) RegisterBuffer(b queueing.Buffer) {
	if s.monitor != nil {
		s.monitor.RegisterBuffer(b)
	}
}

// RegisterResourceManager initializes a resource pool with the kernel and
// makes it visible to the monitor.
func (s *Simulation) RegisterResourceManager(pool *resource.Manager) {
	pool.Initialize(s.kernel)

	if s.monitor != nil {
		s.monitor.RegisterResourceManager(pool)
	}
}

// Run runs the simulation until the given time, or until the events run out
// if until is infinite. Cancelling the context stops the run. A paced run
// advances in whole sync steps, so it may end past until.
func (s *Simulation) Run(ctx context.Context, until timing.VTimeInSec) error {
	s.until = until

	if s.pacer != nil {
		return s.runPaced(ctx)
	}

	stopOnCancel := context.AfterFunc(ctx, s.kernel.Stop)
	defer stopOnCancel()

	if math.IsInf(until, 1) {
		return s.kernel.RunToEnd()
	}

	return s.kernel.Run(until)
}

func (s *Simulation) runPaced(ctx context.Context) error {
	err := s.pacer.Start(ctx)
	if err != nil {
		return err
	}

	return s.pacer.Wait()
}

func (s *Simulation) reachedUntil() bool {
	return s.kernel.Now() >= s.until
}

// Terminate stops the services and flushes the trace.
func (s *Simulation) Terminate() {
	if s.pacer != nil {
		s.pacer.Stop()
	}

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := s.monitor.StopServer(ctx); err != nil {
			s.logger.WithError(err).Warn("failed to stop monitor")
		}
	}

	if s.dataRecorder != nil {
		if err := s.dataRecorder.Close(); err != nil {
			s.logger.WithError(err).Warn("failed to close trace")
		}
	}
}
