package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Turns     TurnConfig      `yaml:"turns"`
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RedisConfig configures the room store backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LifecycleConfig configures room retention and actor eviction.
type LifecycleConfig struct {
	GracePeriod   int `yaml:"grace_period"`   // seconds a Finished or empty room survives untouched
	MaxRoomAge    int `yaml:"max_room_age"`   // seconds before a room is reaped regardless of status
	SweepInterval int `yaml:"sweep_interval"` // seconds between reaper sweeps
	IdleEviction  int `yaml:"idle_eviction"`  // seconds before an idle actor is unloaded
}

// TurnConfig holds per-variant turn durations in seconds.
// Zero means the variant's turns carry no deadline.
type TurnConfig struct {
	Alias          int `yaml:"alias"`
	CodenamesClue  int `yaml:"codenames_clue"`
	CodenamesGuess int `yaml:"codenames_guess"`
	Draw           int `yaml:"draw"`
}

func (c *LifecycleConfig) GracePeriodDuration() time.Duration {
	return time.Duration(c.GracePeriod) * time.Second
}

func (c *LifecycleConfig) MaxRoomAgeDuration() time.Duration {
	return time.Duration(c.MaxRoomAge) * time.Second
}

func (c *LifecycleConfig) SweepIntervalDuration() time.Duration {
	return time.Duration(c.SweepInterval) * time.Second
}

func (c *LifecycleConfig) IdleEvictionDuration() time.Duration {
	return time.Duration(c.IdleEviction) * time.Second
}

func (c *TurnConfig) AliasDuration() time.Duration {
	return time.Duration(c.Alias) * time.Second
}

func (c *TurnConfig) CodenamesClueDuration() time.Duration {
	return time.Duration(c.CodenamesClue) * time.Second
}

func (c *TurnConfig) CodenamesGuessDuration() time.Duration {
	return time.Duration(c.CodenamesGuess) * time.Second
}

func (c *TurnConfig) DrawDuration() time.Duration {
	return time.Duration(c.Draw) * time.Second
}

// Load reads a YAML config file and fills in defaults for missing values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 1790
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Lifecycle.GracePeriod == 0 {
		cfg.Lifecycle.GracePeriod = 300
	}
	if cfg.Lifecycle.MaxRoomAge == 0 {
		cfg.Lifecycle.MaxRoomAge = 3600
	}
	if cfg.Lifecycle.SweepInterval == 0 {
		cfg.Lifecycle.SweepInterval = 30
	}
	if cfg.Lifecycle.IdleEviction == 0 {
		cfg.Lifecycle.IdleEviction = 600
	}
	if cfg.Turns.Alias == 0 {
		cfg.Turns.Alias = 45
	}
	if cfg.Turns.CodenamesClue == 0 {
		cfg.Turns.CodenamesClue = 90
	}
	if cfg.Turns.CodenamesGuess == 0 {
		cfg.Turns.CodenamesGuess = 120
	}
	if cfg.Turns.Draw == 0 {
		cfg.Turns.Draw = 60
	}
}
