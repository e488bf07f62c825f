// Package config loads the settings of a flowsim run from defaults, an
// optional file, a .env file, and FLOWSIM_ environment variables.
package config

import "time"

// Config holds the settings of a run.
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	RealTime   RealTimeConfig   `mapstructure:"realtime"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Recording  RecordingConfig  `mapstructure:"recording"`
	Log        LogConfig        `mapstructure:"log"`
}

// SimulationConfig configures the kernel.
type SimulationConfig struct {
	Name          string  `mapstructure:"name"`
	Seed          int64   `mapstructure:"seed"`
	Antithetic    bool    `mapstructure:"antithetic"`
	NonStochastic bool    `mapstructure:"non_stochastic"`
	Until         float64 `mapstructure:"until"`
	Scenario      string  `mapstructure:"scenario"`
}

// RealTimeConfig configures the pacer.
type RealTimeConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Speed    float64       `mapstructure:"speed"`
}

// MonitorConfig configures the monitoring server.
type MonitorConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Port        int  `mapstructure:"port"`
	OpenBrowser bool `mapstructure:"open_browser"`
}

// RecordingConfig configures the trace database.
type RecordingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Output    string `mapstructure:"output"`
	AllEvents bool   `mapstructure:"all_events"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
