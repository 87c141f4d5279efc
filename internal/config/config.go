// Package config loads run configuration from an optional YAML file, the
// environment (ORCHARD_ prefix, .env supported) and defaults, and validates it.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the main configuration struct combining all sub-configs
type Config struct {
	Orchard OrchardConfig `mapstructure:"orchard"`
	Harvest HarvestConfig `mapstructure:"harvest"`
	Agents  AgentsConfig  `mapstructure:"agents"`
	Run     RunConfig     `mapstructure:"run"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
	API     APIConfig     `mapstructure:"api"`
	Entropy EntropyConfig `mapstructure:"entropy"`
}

// OrchardConfig describes the grid and its initial yield.
type OrchardConfig struct {
	Cols           int     `mapstructure:"cols" validate:"min=4"`
	Rows           int     `mapstructure:"rows" validate:"min=1"`
	InitialYield   float64 `mapstructure:"initial_yield" validate:"gt=0"`
	Distribution   string  `mapstructure:"distribution" validate:"oneof=uniform simplex"`
	Seed           int64   `mapstructure:"seed"` // 0 = draw a fresh seed
	NoiseFrequency float64 `mapstructure:"noise_frequency" validate:"gt=0"`
	Variance       float64 `mapstructure:"variance" validate:"gte=0,lte=1"`
}

// HarvestConfig holds bin and worker settings.
type HarvestConfig struct {
	BinCapacity  float64 `mapstructure:"bin_capacity" validate:"gt=0"`
	PickRate     float64 `mapstructure:"pick_rate" validate:"gt=0"`
	Workers      int     `mapstructure:"workers" validate:"min=0"`
	Layout       string  `mapstructure:"layout" validate:"oneof=fixed random"`
	MaxGroupSize int     `mapstructure:"max_group_size" validate:"min=1"`
}

// AgentsConfig holds transport agent settings.
type AgentsConfig struct {
	Count     int `mapstructure:"count" validate:"min=1"`
	SpeedHigh int `mapstructure:"speed_high" validate:"min=1"`
	SpeedLow  int `mapstructure:"speed_low" validate:"min=1,ltefield=SpeedHigh"`
	StartCol  int `mapstructure:"start_col" validate:"min=0"`
	StartRow  int `mapstructure:"start_row" validate:"min=0"`
	PlanDepth int `mapstructure:"plan_depth" validate:"min=1"`
}

// RunConfig holds the driver loop settings.
type RunConfig struct {
	Mode        string        `mapstructure:"mode" validate:"oneof=base auto"`
	Ticks       uint64        `mapstructure:"ticks" validate:"min=1"`
	Interval    time.Duration `mapstructure:"interval" validate:"min=0"`
	ReportEvery uint64        `mapstructure:"report_every"`
}

// OutputConfig holds the recorder destinations. Empty paths disable them.
type OutputConfig struct {
	DBPath   string `mapstructure:"db_path"`
	TraceDir string `mapstructure:"trace_dir"`
}

// APIConfig holds the observation API settings.
type APIConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Port          int      `mapstructure:"port" validate:"min=1,max=65535"`
	RatePerSecond float64  `mapstructure:"rate_per_second" validate:"gte=0"`
	Burst         int      `mapstructure:"burst" validate:"min=1"`
	Origins       []string `mapstructure:"origins"`
}

// EntropyConfig selects where fresh seeds come from.
type EntropyConfig struct {
	RandomOrgKey string `mapstructure:"random_org_key"`
}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Config file (orchard.yaml)
// 3. Defaults (lowest priority)
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("orchard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("ORCHARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	SetDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the default configuration.
func Default() *Config {
	cfg := &Config{}
	SetDefaults(cfg)
	return cfg
}
