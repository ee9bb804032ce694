// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration, loaded from a yaml file with
// environment variable overrides on top.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Redis  RedisConfig  `yaml:"redis"`
	Game   GameConfig   `yaml:"game"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StoreConfig struct {
	// DatabaseURL is a pgx connection string. Empty selects the
	// in-memory store.
	DatabaseURL string `yaml:"database_url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Queue is the list the action historian pushes to.
	Queue string `yaml:"queue"`
}

type GameConfig struct {
	TurnTimeoutSec   int `yaml:"turn_timeout_sec"`
	SubmitTimeoutSec int `yaml:"submit_timeout_sec"`
	MinPlayers       int `yaml:"min_players"`
	MaxPlayers       int `yaml:"max_players"`
}

// TurnTimeout is how long a player may sit in any in-turn phase before
// the session auto-resolves on their behalf.
func (g GameConfig) TurnTimeout() time.Duration {
	return time.Duration(g.TurnTimeoutSec) * time.Second
}

// SubmitTimeout bounds how long an action submission waits for the
// room's writer before failing with an action timeout.
func (g GameConfig) SubmitTimeout() time.Duration {
	return time.Duration(g.SubmitTimeoutSec) * time.Second
}

// Load reads the yaml file at path, fills defaults, then applies env
// overrides. A missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// Default returns the baseline configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.Queue == "" {
		c.Redis.Queue = "cabo_actions"
	}
	if c.Game.TurnTimeoutSec == 0 {
		c.Game.TurnTimeoutSec = 30
	}
	if c.Game.SubmitTimeoutSec == 0 {
		c.Game.SubmitTimeoutSec = 5
	}
	if c.Game.MinPlayers == 0 {
		c.Game.MinPlayers = 2
	}
	if c.Game.MaxPlayers == 0 {
		c.Game.MaxPlayers = 8
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("HISTORIAN_QUEUE_NAME"); v != "" {
		c.Redis.Queue = v
	}
}
