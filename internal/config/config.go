/*
Copyright 2025 The replend Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads and validates service configuration from config
// files, environment variables, and command-line flags, in that priority
// order (flags highest).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/replenlab/replend/pkg/core"
)

const (
	// EnvPrefix namespaces environment variables, e.g. REPLEND_SERVER_ADDR.
	EnvPrefix = "REPLEND"

	// DefaultConfigName is the config file basename searched for on startup.
	DefaultConfigName = "replend"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `mapstructure:"addr"`

	// ReadTimeout bounds request reads.
	ReadTimeout time.Duration `mapstructure:"readTimeout"`

	// WriteTimeout bounds response writes.
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`

	// ShutdownGrace bounds graceful shutdown.
	ShutdownGrace time.Duration `mapstructure:"shutdownGrace"`
}

// DataConfig holds data-source settings.
type DataConfig struct {
	// CSVPath is the unified-frame snapshot file.
	CSVPath string `mapstructure:"csvPath"`

	// RulesPath is the business-rules YAML file. Optional.
	RulesPath string `mapstructure:"rulesPath"`

	// DropDir, when set, is polled for turn files (one request per file).
	DropDir string `mapstructure:"dropDir"`

	// ChartDir receives rendered chart specs.
	ChartDir string `mapstructure:"chartDir"`
}

// SolverConfig holds optimization settings.
type SolverConfig struct {
	// Timeout bounds a single solve.
	Timeout time.Duration `mapstructure:"timeout"`

	// ServiceLevel is the default cycle service level (0,1).
	ServiceLevel float64 `mapstructure:"serviceLevel"`

	// HoldingCost is the default per-unit holding cost for rows that do
	// not carry their own.
	HoldingCost float64 `mapstructure:"holdingCost"`

	// StockoutPenalty is the per-unit safety shortfall cost.
	StockoutPenalty float64 `mapstructure:"stockoutPenalty"`

	// OrderingCost is the fixed cost per placed order. Zero disables the
	// order indicator variables unless all-or-nothing bounds require them.
	OrderingCost float64 `mapstructure:"orderingCost"`

	// IntegerOrders requests whole-unit order quantities.
	IntegerOrders bool `mapstructure:"integerOrders"`
}

// ScenarioConfig holds scenario-cache settings.
type ScenarioConfig struct {
	// CacheSize bounds the in-memory result cache.
	CacheSize int `mapstructure:"cacheSize"`

	// CacheTTL expires cached results. Zero keeps them until evicted.
	CacheTTL time.Duration `mapstructure:"cacheTTL"`

	// StorePath, when set, persists results to a SQLite file.
	StorePath string `mapstructure:"storePath"`
}

// SessionConfig holds dialogue session settings.
type SessionConfig struct {
	// HistoryWindow bounds per-session turn history.
	HistoryWindow int `mapstructure:"historyWindow"`

	// IdleTimeout expires inactive sessions.
	IdleTimeout time.Duration `mapstructure:"idleTimeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the verbosity (0=info, higher=more).
	Level int `mapstructure:"level"`

	// Development selects human-readable console output.
	Development bool `mapstructure:"development"`
}

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Data     DataConfig     `mapstructure:"data"`
	Solver   SolverConfig   `mapstructure:"solver"`
	Scenario ScenarioConfig `mapstructure:"scenario"`
	Session  SessionConfig  `mapstructure:"session"`
	Log      LogConfig      `mapstructure:"log"`
}

// setDefaults registers every key's default so env/flag binding sees them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.readTimeout", 10*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.shutdownGrace", 15*time.Second)

	v.SetDefault("data.csvPath", "data/inventory.csv")
	v.SetDefault("data.rulesPath", "")
	v.SetDefault("data.dropDir", "")
	v.SetDefault("data.chartDir", "charts")

	v.SetDefault("solver.timeout", 30*time.Second)
	v.SetDefault("solver.serviceLevel", 0.95)
	v.SetDefault("solver.holdingCost", 1.0)
	v.SetDefault("solver.stockoutPenalty", 50.0)
	v.SetDefault("solver.orderingCost", 0.0)
	v.SetDefault("solver.integerOrders", false)

	v.SetDefault("scenario.cacheSize", 256)
	v.SetDefault("scenario.cacheTTL", time.Duration(0))
	v.SetDefault("scenario.storePath", "")

	v.SetDefault("session.historyWindow", 50)
	v.SetDefault("session.idleTimeout", 30*time.Minute)

	v.SetDefault("log.level", 0)
	v.SetDefault("log.development", false)
}

// NewViper builds a viper instance with defaults, env binding, and the
// standard config search paths.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/replend")
	}
	return v
}

// flagBindings maps the persistent command-line flag names onto config keys.
// serve's --addr is local to that command and applied there directly.
var flagBindings = map[string]string{
	"data":      "data.csvPath",
	"rules":     "data.rulesPath",
	"verbosity": "log.level",
	"dev":       "log.development",
}

// BindFlags wires changed command-line flags into the viper hierarchy so
// flags take priority over the config file and environment.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagBindings {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// IsNotFound reports whether err is viper's missing-config-file error.
func IsNotFound(err error) bool {
	_, ok := err.(viper.ConfigFileNotFoundError)
	return ok
}

// Load reads configuration from the given file (or the search paths when
// empty) and validates it. A missing config file is not an error; defaults
// and environment variables apply.
func Load(configFile string) (*Config, error) {
	v := NewViper(configFile)
	if err := v.ReadInConfig(); err != nil {
		if configFile != "" || !IsNotFound(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper unmarshals and validates a populated viper instance. Exposed so
// the CLI can bind flags before unmarshaling.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks for invalid configuration values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Solver.ServiceLevel <= 0 || c.Solver.ServiceLevel >= 1 {
		return fmt.Errorf("solver.serviceLevel must be in (0,1), got %.3f", c.Solver.ServiceLevel)
	}
	if c.Solver.HoldingCost < 0 {
		return fmt.Errorf("solver.holdingCost must be >= 0, got %.2f", c.Solver.HoldingCost)
	}
	if c.Solver.StockoutPenalty < 0 {
		return fmt.Errorf("solver.stockoutPenalty must be >= 0, got %.2f", c.Solver.StockoutPenalty)
	}
	if c.Solver.OrderingCost < 0 {
		return fmt.Errorf("solver.orderingCost must be >= 0, got %.2f", c.Solver.OrderingCost)
	}
	if c.Solver.Timeout <= 0 {
		return fmt.Errorf("solver.timeout must be positive, got %s", c.Solver.Timeout)
	}
	if c.Scenario.CacheSize <= 0 {
		return fmt.Errorf("scenario.cacheSize must be positive, got %d", c.Scenario.CacheSize)
	}
	if c.Scenario.CacheTTL < 0 {
		return fmt.Errorf("scenario.cacheTTL must be >= 0, got %s", c.Scenario.CacheTTL)
	}
	if c.Session.HistoryWindow <= 0 {
		return fmt.Errorf("session.historyWindow must be positive, got %d", c.Session.HistoryWindow)
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session.idleTimeout must be positive, got %s", c.Session.IdleTimeout)
	}
	if c.Data.CSVPath == "" {
		return fmt.Errorf("data.csvPath must not be empty")
	}
	return nil
}

// CompileParams converts solver settings to engine compile parameters.
func (c *Config) CompileParams() core.CompileParams {
	return core.CompileParams{
		ServiceLevel:    c.Solver.ServiceLevel,
		HoldingCost:     c.Solver.HoldingCost,
		StockoutPenalty: c.Solver.StockoutPenalty,
		OrderingCost:    c.Solver.OrderingCost,
		IntegerOrders:   c.Solver.IntegerOrders,
	}
}
