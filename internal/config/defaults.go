package config

import (
	"time"

	"github.com/spf13/viper"
)

// defaults maps every key to its default. Registering keys with viper lets
// AutomaticEnv override values that appear in no config file.
var defaults = map[string]any{
	"orchard.cols":            10,
	"orchard.rows":            8,
	"orchard.initial_yield":   50.0,
	"orchard.distribution":    "uniform",
	"orchard.seed":            int64(42),
	"orchard.noise_frequency": 0.15,
	"orchard.variance":        0.5,

	"harvest.bin_capacity":   10.0,
	"harvest.pick_rate":      1.0,
	"harvest.workers":        10,
	"harvest.layout":         "fixed",
	"harvest.max_group_size": 5,

	"agents.count":      2,
	"agents.speed_high": 2,
	"agents.speed_low":  1,
	"agents.start_col":  0,
	"agents.start_row":  0,
	"agents.plan_depth": 3,

	"run.mode":         "base",
	"run.ticks":        uint64(500),
	"run.interval":     time.Duration(0),
	"run.report_every": uint64(100),

	"logging.level":  "info",
	"logging.format": "text",

	"output.db_path":   "",
	"output.trace_dir": "",

	"api.enabled":         false,
	"api.port":            8080,
	"api.rate_per_second": 20.0,
	"api.burst":           40,
	"api.origins":         []string{},

	"entropy.random_org_key": "",
}

// BindDefaults registers every default with v.
func BindDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// SetDefaults fills zero values that have no meaningful zero setting.
func SetDefaults(cfg *Config) {
	// Orchard defaults
	if cfg.Orchard.Cols == 0 {
		cfg.Orchard.Cols = 10
	}
	if cfg.Orchard.Rows == 0 {
		cfg.Orchard.Rows = 8
	}
	if cfg.Orchard.InitialYield == 0 {
		cfg.Orchard.InitialYield = 50
	}
	if cfg.Orchard.Distribution == "" {
		cfg.Orchard.Distribution = "uniform"
	}
	if cfg.Orchard.NoiseFrequency == 0 {
		cfg.Orchard.NoiseFrequency = 0.15
	}

	// Harvest defaults
	if cfg.Harvest.BinCapacity == 0 {
		cfg.Harvest.BinCapacity = 10
	}
	if cfg.Harvest.PickRate == 0 {
		cfg.Harvest.PickRate = 1
	}
	if cfg.Harvest.Layout == "" {
		cfg.Harvest.Layout = "fixed"
	}
	if cfg.Harvest.MaxGroupSize == 0 {
		cfg.Harvest.MaxGroupSize = 5
	}

	// Agent defaults
	if cfg.Agents.Count == 0 {
		cfg.Agents.Count = 2
	}
	if cfg.Agents.SpeedHigh == 0 {
		cfg.Agents.SpeedHigh = 2
	}
	if cfg.Agents.SpeedLow == 0 {
		cfg.Agents.SpeedLow = 1
	}
	if cfg.Agents.PlanDepth == 0 {
		cfg.Agents.PlanDepth = 3
	}

	// Run defaults
	if cfg.Run.Mode == "" {
		cfg.Run.Mode = "base"
	}
	if cfg.Run.Ticks == 0 {
		cfg.Run.Ticks = 500
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	// API defaults
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.API.Burst == 0 {
		cfg.API.Burst = 40
	}
}
