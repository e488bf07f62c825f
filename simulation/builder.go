package simulation

import (
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/flowsim/datarecording"
	"github.com/sarchlab/flowsim/monitoring"
	"github.com/sarchlab/flowsim/sim/kernel"
	"github.com/sarchlab/flowsim/sim/realtime"
	"github.com/sarchlab/flowsim/sim/simerr"
	"github.com/sarchlab/flowsim/sim/timing"
)

// Builder can be used to build a simulation.
type Builder struct {
	name           string
	seed           int64
	antithetic     bool
	nonStochastic  bool
	logger         *logrus.Logger
	monitorOn      bool
	monitorPort    int
	recordingOn    bool
	traceAllEvents bool
	outputFileName string
	realTime       bool
	syncInterval   time.Duration
	speed          float64
}

// MakeBuilder creates a new builder. Monitoring and recording are on by
// default.
func MakeBuilder() Builder {
	return Builder{
		name:         "flowsim",
		logger:       logrus.StandardLogger(),
		monitorOn:    true,
		recordingOn:  true,
		syncInterval: 100 * time.Millisecond,
		speed:        1,
	}
}

// WithName sets the name of the kernel.
func (b Builder) WithName(name string) Builder {
	b.name = name
	return b
}

// WithSeed sets the master seed.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithAntithetic makes every random stream antithetic.
func (b Builder) WithAntithetic() Builder {
	b.antithetic = true
	return b
}

// WithNonStochasticMode makes random durations return their means.
func (b Builder) WithNonStochasticMode() Builder {
	b.nonStochastic = true
	return b
}

// WithLogger sets the logger shared by the kernel and the services.
func (b Builder) WithLogger(logger *logrus.Logger) Builder {
	b.logger = logger
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithoutRecording sets the simulation to not write a trace database.
func (b Builder) WithoutRecording() Builder {
	b.recordingOn = false
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithFullEventTrace records every event instance rather than only those
// created with timing.WithLog.
func (b Builder) WithFullEventTrace() Builder {
	b.traceAllEvents = true
	return b
}

// WithRealTime paces the simulation against the wall clock.
func (b Builder) WithRealTime(syncInterval time.Duration, speed float64) Builder {
	b.realTime = true
	b.syncInterval = syncInterval
	b.speed = speed

	return b
}

func (b Builder) parametersMustBeValid() error {
	if !b.monitorOn && b.monitorPort != 0 {
		return simerr.Argument(
			"monitor port cannot be set when monitoring is disabled")
	}

	if !b.recordingOn && b.outputFileName != "" {
		return simerr.Argument(
			"output file cannot be set when recording is disabled")
	}

	if b.realTime && (b.syncInterval <= 0 || b.speed <= 0) {
		return simerr.Argument(
			"real-time interval %s and speed %g must be positive",
			b.syncInterval, b.speed)
	}

	return nil
}

// Build builds the simulation. The kernel is reset and ready for entities.
func (b Builder) Build() (*Simulation, error) {
	if err := b.parametersMustBeValid(); err != nil {
		return nil, err
	}

	s := &Simulation{
		id:     xid.New().String(),
		logger: b.logger,
		until:  timing.Infinity,
	}

	s.kernel = kernel.New(
		kernel.WithName(b.name),
		kernel.WithLogger(b.logger),
	)

	err := s.kernel.Reset(
		kernel.WithSeed(b.seed),
		kernel.WithAntithetic(b.antithetic),
		kernel.WithNonStochasticMode(b.nonStochastic),
	)
	if err != nil {
		return nil, err
	}

	if b.realTime {
		s.pacer = realtime.NewPacer(s.kernel,
			realtime.WithSyncInterval(b.syncInterval),
			realtime.WithSpeed(b.speed),
			realtime.WithStopCondition(s.reachedUntil),
		)
	}

	if b.recordingOn {
		b.buildRecorder(s)
	}

	if b.monitorOn {
		if err := b.buildMonitor(s); err != nil {
			s.Terminate()
			return nil, err
		}
	}

	return s, nil
}

func (b Builder) buildRecorder(s *Simulation) {
	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "flowsim_" + s.id
	}

	s.dataRecorder = datarecording.NewDataRecorder(outputPath)
	s.kernel.AcceptHook(
		datarecording.NewEventTracer(s.dataRecorder, !b.traceAllEvents))

	if s.pacer != nil {
		s.pacer.AcceptHook(datarecording.NewPacerTracer(s.dataRecorder))
	}
}

func (b Builder) buildMonitor(s *Simulation) error {
	s.monitor = monitoring.NewMonitor().
		WithLogger(b.logger).
		WithPortNumber(b.monitorPort)
	s.monitor.RegisterKernel(s.kernel)

	if s.pacer != nil {
		s.monitor.RegisterPacer(s.pacer)
	}

	_, err := s.monitor.StartServer()

	return err
}
