// Package config loads the theory server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/variant"
)

// Config is the root of theory.yaml.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Runtime RuntimeConfig `yaml:"runtime"`
}

// EngineConfig selects the variant and optional overrides of its constants.
// Zero values keep the variant's own constants.
type EngineConfig struct {
	Variant            string  `yaml:"variant"`
	ResetTimeOnPublish bool    `yaml:"reset_time_on_publish"`
	BaseDecay          float64 `yaml:"base_decay,omitempty"`
	DecayGrowth        float64 `yaml:"decay_growth,omitempty"`
	MilestoneStep      float64 `yaml:"milestone_step,omitempty"`
	MilestoneFactor    float64 `yaml:"milestone_factor,omitempty"`
}

// ServerConfig configures the HTTP/WebSocket server and its loops.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	SpeedMultiplier float64       `yaml:"speed_multiplier"`
	BackupInterval  time.Duration `yaml:"backup_interval"`
}

// StorageConfig locates the save database and the event journal.
type StorageConfig struct {
	DBPath     string `yaml:"db_path"`
	JournalDir string `yaml:"journal_dir"`
	SaveSlot   string `yaml:"save_slot"`
}

// RuntimeConfig holds channel buffers and pool sizes.
type RuntimeConfig struct {
	Preset                 string `yaml:"preset,omitempty"`
	BroadcastChannelBuffer int    `yaml:"broadcast_channel_buffer"`
	ClientSendBuffer       int    `yaml:"client_send_buffer"`
	DBMaxOpenConns         int    `yaml:"db_max_open_conns"`
	MaxMessagesPerSecond   int    `yaml:"max_messages_per_second"`
	MaxClients             int    `yaml:"max_clients"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			Variant: variant.Calculus,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			TickInterval:    100 * time.Millisecond,
			SpeedMultiplier: 1,
			BackupInterval:  time.Minute,
		},
		Storage: StorageConfig{
			DBPath:     "theory.db",
			JournalDir: "journal",
			SaveSlot:   "main",
		},
		Runtime: Preset("default"),
	}
}

// Preset returns a named runtime preset: "default", "stress" or "low".
// Unknown names fall back to "default".
func Preset(name string) RuntimeConfig {
	numCPU := runtime.NumCPU()
	switch name {
	case "stress":
		return RuntimeConfig{
			Preset:                 "stress",
			BroadcastChannelBuffer: 512,
			ClientSendBuffer:       128,
			DBMaxOpenConns:         numCPU * 8,
			MaxMessagesPerSecond:   500,
			MaxClients:             500,
		}
	case "low":
		return RuntimeConfig{
			Preset:                 "low",
			BroadcastChannelBuffer: 16,
			ClientSendBuffer:       8,
			DBMaxOpenConns:         2,
			MaxMessagesPerSecond:   10,
			MaxClients:             20,
		}
	default:
		return RuntimeConfig{
			Preset:                 "default",
			BroadcastChannelBuffer: 256,
			ClientSendBuffer:       64,
			DBMaxOpenConns:         numCPU * 4,
			MaxMessagesPerSecond:   100,
			MaxClients:             200,
		}
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c Config) Save(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// normalize fills an empty runtime section from its preset name.
func (c *Config) normalize() {
	if c.Runtime.BroadcastChannelBuffer == 0 && c.Runtime.ClientSendBuffer == 0 {
		c.Runtime = Preset(c.Runtime.Preset)
	}
	if c.Server.SpeedMultiplier == 0 {
		c.Server.SpeedMultiplier = 1
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if _, err := variant.Lookup(c.Engine.Variant); err != nil {
		return err
	}
	if c.Engine.BaseDecay < 0 || c.Engine.DecayGrowth < 0 || c.Engine.MilestoneStep < 0 {
		return errors.New("engine: overrides must be non-negative")
	}
	if f := c.Engine.MilestoneFactor; f != 0 && (f <= 0 || f >= 1) {
		return fmt.Errorf("engine: milestone_factor %g outside (0,1)", f)
	}
	if c.Server.TickInterval <= 0 {
		return errors.New("server: tick_interval must be positive")
	}
	if c.Server.SpeedMultiplier <= 0 {
		return errors.New("server: speed_multiplier must be positive")
	}
	if c.Server.BackupInterval < 0 {
		return errors.New("server: backup_interval must be non-negative")
	}
	if c.Runtime.BroadcastChannelBuffer <= 0 || c.Runtime.ClientSendBuffer <= 0 {
		return errors.New("runtime: buffers must be positive")
	}
	return nil
}

// Variant resolves the configured variant with overrides applied.
func (c Config) Variant() (variant.Variant, error) {
	v, err := variant.Lookup(c.Engine.Variant)
	if err != nil {
		return v, err
	}
	if c.Engine.BaseDecay > 0 {
		v.BaseDecay = c.Engine.BaseDecay
	}
	if c.Engine.DecayGrowth > 0 {
		v.DecayGrowth = c.Engine.DecayGrowth
	}
	if c.Engine.MilestoneStep > 0 {
		v.Milestones.Step = c.Engine.MilestoneStep
	}
	if c.Engine.MilestoneFactor > 0 {
		v.Milestones.Factor = c.Engine.MilestoneFactor
	}
	return v, v.Validate()
}
