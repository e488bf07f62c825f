package config

import (
	"math"
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("simulation.name", "flowsim")
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.antithetic", false)
	v.SetDefault("simulation.non_stochastic", false)
	v.SetDefault("simulation.until", math.Inf(1))
	v.SetDefault("simulation.scenario", "")

	v.SetDefault("realtime.enabled", false)
	v.SetDefault("realtime.interval", 100*time.Millisecond)
	v.SetDefault("realtime.speed", 1.0)

	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.port", 0)
	v.SetDefault("monitor.open_browser", false)

	v.SetDefault("recording.enabled", false)
	v.SetDefault("recording.output", "")
	v.SetDefault("recording.all_events", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
