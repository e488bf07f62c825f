package cmd

import (
	"context"
	"math"
	"os"
	"os/signal"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/flowsim/config"
	"github.com/sarchlab/flowsim/monitoring"
	"github.com/sarchlab/flowsim/sim/simerr"
	"github.com/sarchlab/flowsim/sim/timing"
	"github.com/sarchlab/flowsim/simulation"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario.",
		Long: "`run --scenario bank.yaml --until 1000` builds the queueing " +
			"network of the scenario, runs it, and prints a summary.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadRunConfig(cmd)
			if err != nil {
				return err
			}

			return runScenario(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.String("config", "", "configuration file (YAML, TOML, or JSON)")
	f.String("scenario", "", "scenario file")
	f.Int64("seed", 0, "master seed")
	f.Float64("until", math.Inf(1), "simulated time to stop at")
	f.Bool("non-stochastic", false, "replace random durations by their means")
	f.Bool("realtime", false, "pace the run against the wall clock")
	f.Float64("speed", 1, "simulated seconds per wall-clock second")
	f.Duration("interval", 0, "wall-clock sync interval")
	f.String("log", "", "log level")
	f.Bool("monitor", false, "serve the HTTP monitor")
	f.Int("monitor-port", 0, "port of the HTTP monitor")
	f.Bool("open-browser", false, "open the monitor in a browser")
	f.String("output", "", "record a trace to this file (without extension)")
	f.Bool("all-events", false, "trace every event, not only logged ones")

	return cmd
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}

// loadRunConfig loads the configuration and lets explicit flags override it.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	f := cmd.Flags()

	path, _ := f.GetString("config")

	cfg, err := config.Load(config.DefaultPaths(path))
	if err != nil {
		return nil, err
	}

	if f.Changed("scenario") {
		cfg.Simulation.Scenario, _ = f.GetString("scenario")
	}

	if f.Changed("seed") {
		cfg.Simulation.Seed, _ = f.GetInt64("seed")
	}

	if f.Changed("until") {
		cfg.Simulation.Until, _ = f.GetFloat64("until")
	}

	if f.Changed("non-stochastic") {
		cfg.Simulation.NonStochastic, _ = f.GetBool("non-stochastic")
	}

	if f.Changed("realtime") {
		cfg.RealTime.Enabled, _ = f.GetBool("realtime")
	}

	if f.Changed("speed") {
		cfg.RealTime.Speed, _ = f.GetFloat64("speed")
	}

	if f.Changed("interval") {
		cfg.RealTime.Interval, _ = f.GetDuration("interval")
	}

	if f.Changed("log") {
		cfg.Log.Level, _ = f.GetString("log")
	}

	if f.Changed("monitor") {
		cfg.Monitor.Enabled, _ = f.GetBool("monitor")
	}

	if f.Changed("monitor-port") {
		cfg.Monitor.Port, _ = f.GetInt("monitor-port")
	}

	if f.Changed("open-browser") {
		cfg.Monitor.OpenBrowser, _ = f.GetBool("open-browser")
	}

	if f.Changed("output") {
		cfg.Recording.Enabled = true
		cfg.Recording.Output, _ = f.GetString("output")
	}

	if f.Changed("all-events") {
		cfg.Recording.AllEvents, _ = f.GetBool("all-events")
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	if cfg.Simulation.Scenario == "" {
		return nil, simerr.Argument("no scenario given")
	}

	return cfg, nil
}

func builderFromConfig(cfg *config.Config, logger *logrus.Logger) simulation.Builder {
	b := simulation.MakeBuilder().
		WithName(cfg.Simulation.Name).
		WithSeed(cfg.Simulation.Seed).
		WithLogger(logger)

	if cfg.Simulation.Antithetic {
		b = b.WithAntithetic()
	}

	if cfg.Simulation.NonStochastic {
		b = b.WithNonStochasticMode()
	}

	if cfg.RealTime.Enabled {
		b = b.WithRealTime(cfg.RealTime.Interval, cfg.RealTime.Speed)
	}

	if cfg.Monitor.Enabled {
		b = b.WithMonitorPort(cfg.Monitor.Port)
	} else {
		b = b.WithoutMonitoring()
	}

	if !cfg.Recording.Enabled {
		return b.WithoutRecording()
	}

	b = b.WithOutputFileName(cfg.Recording.Output)
	if cfg.Recording.AllEvents {
		b = b.WithFullEventTrace()
	}

	return b
}

func runScenario(cmd *cobra.Command, cfg *config.Config) error {
	logger := logrus.StandardLogger()
	cfg.ConfigureLogger(logger)

	scenario, err := config.LoadScenario(cfg.Simulation.Scenario)
	if err != nil {
		return err
	}

	s, err := builderFromConfig(cfg, logger).Build()
	if err != nil {
		return err
	}
	defer s.Terminate()

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		s.Kernel().AcceptHook(timing.NewEventLogger(logger).LogAll())
	}

	net, err := buildNetwork(s, scenario)
	if err != nil {
		return err
	}

	until := cfg.Simulation.Until
	if m := s.Monitor(); m != nil {
		if !math.IsInf(until, 1) {
			s.Kernel().AcceptHook(monitoring.NewSimTimeProgress(m, "simulated time", until))
		}

		if cfg.Monitor.OpenBrowser {
			if err := browser.OpenURL(m.URL()); err != nil {
				logger.WithError(err).Warn("failed to open browser")
			}
		}
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt)
	defer stop()

	if err := s.Run(ctx, timing.VTimeInSec(until)); err != nil {
		return err
	}

	net.printSummary(cmd.OutOrStdout(), s)

	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}

	return ctx
}
