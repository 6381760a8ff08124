package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all glyphwheel configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
	// Mutation routes share one token bucket.
	RateLimit float64 `yaml:"rate_limit"` // requests per second, 0 disables
	RateBurst int     `yaml:"rate_burst"`
}

type DatabaseConfig struct {
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
}

// CoreNode describes a node added by Engine.SeedCore.
type CoreNode struct {
	Name      string  `yaml:"name"`
	Stability float64 `yaml:"stability"`
	Kind      string  `yaml:"kind"`
	Archetype string  `yaml:"archetype"`
}

// EngineConfig carries every tuning knob of the graph engine. None of these
// values are derived; they are the constants the glyph variants shipped with.
type EngineConfig struct {
	Seed     int64 `yaml:"seed"` // 0 seeds from the clock
	MaxNodes int   `yaml:"max_nodes"`

	InitialMin float64 `yaml:"initial_min"`
	InitialMax float64 `yaml:"initial_max"`

	AdaptationRate   float64       `yaml:"adaptation_rate"`
	StressPivot      float64       `yaml:"stress_pivot"`
	StressSampleSize int           `yaml:"stress_sample_size"`
	EntropyCeiling   float64       `yaml:"entropy_ceiling"`
	Cooldown         time.Duration `yaml:"cooldown"`

	LinkSweepPeriod   int     `yaml:"link_sweep_period"`
	LinkSweepAttempts int     `yaml:"link_sweep_attempts"`
	LinkThreshold     float64 `yaml:"link_threshold"`
	MaxLinksPerNode   int     `yaml:"max_links_per_node"`

	RecoveryMin float64 `yaml:"recovery_min"`
	RecoveryMax float64 `yaml:"recovery_max"`

	CoherenceStabilityWeight float64 `yaml:"coherence_stability_weight"`
	CoherenceLinkWeight      float64 `yaml:"coherence_link_weight"`
	LinkDensityDivisor       float64 `yaml:"link_density_divisor"`

	VitalityDecay  float64 `yaml:"vitality_decay"`
	VitalityFloor  float64 `yaml:"vitality_floor"`
	StabilityFloor float64 `yaml:"stability_floor"`

	MaxGhosts int           `yaml:"max_ghosts"`
	GhostTTL  time.Duration `yaml:"ghost_ttl"`

	DecayHalfLife time.Duration `yaml:"decay_half_life"`
	DecayFloor    float64       `yaml:"decay_floor"`

	SpawnChance    float64 `yaml:"spawn_chance"`
	SignalMomentum float64 `yaml:"signal_momentum"`

	DepthStep     int     `yaml:"depth_step"`
	MaxDepth      int     `yaml:"max_depth"`
	RecursionPull float64 `yaml:"recursion_pull"` // reported only

	StatusLogSize int `yaml:"status_log_size"`
	OplogSize     int `yaml:"oplog_size"`

	CoreNodes []CoreNode `yaml:"core_nodes"`
}

type MonitorConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	Autonomous bool          `yaml:"autonomous"`
	Snapshots  bool          `yaml:"snapshots"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:      "127.0.0.1",
			Port:      37780,
			RateLimit: 5,
			RateBurst: 10,
		},
		Database: DatabaseConfig{
			Path:    "", // resolved at runtime via store.DefaultDBPath()
			Enabled: true,
		},
		Engine: DefaultEngine(),
		Monitor: MonitorConfig{
			Enabled:    true,
			Interval:   30 * time.Second,
			Autonomous: false,
			Snapshots:  true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultEngine returns the engine tuning used when nothing is configured.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		MaxNodes:                 100,
		InitialMin:               0.3,
		InitialMax:               0.7,
		AdaptationRate:           0.12,
		StressPivot:              0.3,
		StressSampleSize:         3,
		EntropyCeiling:           0.5,
		Cooldown:                 8 * time.Second,
		LinkSweepPeriod:          20,
		LinkSweepAttempts:        5,
		LinkThreshold:            0.6,
		MaxLinksPerNode:          20,
		RecoveryMin:              0.01,
		RecoveryMax:              0.03,
		CoherenceStabilityWeight: 0.7,
		CoherenceLinkWeight:      0.3,
		LinkDensityDivisor:       2,
		VitalityDecay:            0.001,
		VitalityFloor:            0.1,
		StabilityFloor:           0.05,
		MaxGhosts:                200,
		GhostTTL:                 24 * time.Hour,
		DecayHalfLife:            6 * time.Hour,
		DecayFloor:               0.1,
		SpawnChance:              0.1,
		SignalMomentum:           0.7,
		DepthStep:                25,
		MaxDepth:                 5000,
		RecursionPull:            8.5,
		StatusLogSize:            20,
		OplogSize:                1000,
		CoreNodes: []CoreNode{
			{Name: "RootVerse", Stability: 0.87, Kind: "anchor", Archetype: "stabilizer"},
			{Name: "Aegis-Σ", Stability: 0.85, Kind: "anchor", Archetype: "stabilizer"},
			{Name: "CoreStability", Stability: 0.82, Kind: "anchor", Archetype: "stabilizer"},
			{Name: "ConsentGlyph", Stability: 0.95, Kind: "consent", Archetype: "oracle"},
		},
	}
}

// DefaultConfigPath returns $GLYPHWHEEL_CONFIG, or ~/.glyphwheel/config.yaml.
func DefaultConfigPath() (string, error) {
	if p := os.Getenv("GLYPHWHEEL_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".glyphwheel", "config.yaml"), nil
}

// Load reads a YAML file over the defaults. A missing file is not an error.
// Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// defaults only
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if p := os.Getenv("GLYPHWHEEL_DB"); p != "" {
		c.Database.Path = p
	}
	if lvl := os.Getenv("GLYPHWHEEL_LOG_LEVEL"); lvl != "" {
		c.Log.Level = lvl
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	e := c.Engine
	if e.MaxNodes <= 0 {
		return fmt.Errorf("engine.max_nodes must be positive, got %d", e.MaxNodes)
	}
	if !finite(e.InitialMin, e.InitialMax, e.RecoveryMin, e.RecoveryMax, e.EntropyCeiling, e.LinkThreshold) {
		return fmt.Errorf("engine: initial, recovery, entropy_ceiling and link_threshold values must be finite")
	}
	if e.InitialMin < 0 || e.InitialMax > 1 || e.InitialMin > e.InitialMax {
		return fmt.Errorf("engine.initial_min/initial_max must satisfy 0 <= min <= max <= 1")
	}
	if e.RecoveryMin < 0 || e.RecoveryMin > e.RecoveryMax {
		return fmt.Errorf("engine.recovery_min/recovery_max must satisfy 0 <= min <= max")
	}
	if e.StressSampleSize <= 0 {
		return fmt.Errorf("engine.stress_sample_size must be positive")
	}
	if e.Cooldown < 0 {
		return fmt.Errorf("engine.cooldown must not be negative")
	}
	if e.LinkDensityDivisor <= 0 {
		return fmt.Errorf("engine.link_density_divisor must be positive")
	}
	for _, n := range e.CoreNodes {
		if !finite(n.Stability) {
			return fmt.Errorf("engine.core_nodes: %q has non-finite stability", n.Name)
		}
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive when the monitor is enabled")
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
