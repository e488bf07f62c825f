package config

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/flowsim/sim/simerr"
)

// Validate checks that the settings can be used together.
func Validate(c *Config) error {
	if c.Simulation.Name == "" {
		return simerr.Argument("simulation name must not be empty")
	}

	if math.IsNaN(c.Simulation.Until) || c.Simulation.Until < 0 {
		return simerr.Argument("simulation until %g must not be negative",
			c.Simulation.Until)
	}

	if c.RealTime.Enabled {
		if c.RealTime.Interval <= 0 {
			return simerr.Argument("real-time interval %s must be positive",
				c.RealTime.Interval)
		}

		if c.RealTime.Speed <= 0 {
			return simerr.Argument("real-time speed %g must be positive",
				c.RealTime.Speed)
		}
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		return simerr.Argument("monitor port %d out of range", c.Monitor.Port)
	}

	if !c.Monitor.Enabled && c.Monitor.Port != 0 {
		return simerr.Argument("monitor port set while the monitor is disabled")
	}

	if !c.Recording.Enabled && c.Recording.Output != "" {
		return simerr.Argument("recording output set while recording is disabled")
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return simerr.Argument("log level: %v", err)
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return simerr.Argument("log format %q, want text or json", c.Log.Format)
	}

	return nil
}

// ConfigureLogger applies the log settings to a logger.
func (c *Config) ConfigureLogger(logger *logrus.Logger) {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err == nil {
		logger.SetLevel(level)
	}

	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
