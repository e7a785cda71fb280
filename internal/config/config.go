package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "250ms" or "30s" parse
// directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(dur)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Worker    WorkerConfig    `yaml:"worker"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Server    ServerConfig    `yaml:"server"`
	Simulate  SimulateConfig  `yaml:"simulate"`
}

// WorkerConfig points the client at the worker endpoint.
type WorkerConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// ReconnectConfig shapes the client's redial schedule. Multiplier 1 gives a
// flat interval.
type ReconnectConfig struct {
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
	Multiplier   float64  `yaml:"multiplier"`
}

type TimeoutConfig struct {
	Write        Duration `yaml:"write"`
	Pong         Duration `yaml:"pong"`
	PingInterval Duration `yaml:"ping_interval"`
}

// ServerConfig configures the worker daemon's listener.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SimulateConfig shapes the daemon's fabricated fetch runs. Seed 0 means
// time-based.
type SimulateConfig struct {
	Tick        Duration `yaml:"tick"`
	MinPapers   int      `yaml:"min_papers"`
	MaxPapers   int      `yaml:"max_papers"`
	FailureRate float64  `yaml:"failure_rate"`
	Seed        int64    `yaml:"seed"`
}

func defaultConfig() *Config {
	return &Config{
		Worker: WorkerConfig{
			URL: "ws://127.0.0.1:8091/ws",
		},
		Reconnect: ReconnectConfig{
			InitialDelay: Duration(time.Second),
			MaxDelay:     Duration(30 * time.Second),
			Multiplier:   2.0,
		},
		Timeouts: TimeoutConfig{
			Write:        Duration(10 * time.Second),
			Pong:         Duration(60 * time.Second),
			PingInterval: Duration(30 * time.Second),
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8091,
		},
		Simulate: SimulateConfig{
			Tick:        Duration(250 * time.Millisecond),
			MinPapers:   8,
			MaxPapers:   40,
			FailureRate: 0.1,
		},
	}
}

// Default returns the built-in configuration, used when no file is given.
func Default() *Config {
	return defaultConfig()
}

// LoadOrDefault reads path if it exists and falls back to the built-in
// defaults when it does not.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// Load reads a YAML file over the built-in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Worker.URL == "" {
		return fmt.Errorf("worker.url must be set")
	}
	if c.Reconnect.InitialDelay <= 0 || c.Reconnect.MaxDelay <= 0 {
		return fmt.Errorf("reconnect delays must be positive")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		return fmt.Errorf("reconnect.max_delay must be >= initial_delay")
	}
	if c.Reconnect.Multiplier < 1 {
		return fmt.Errorf("reconnect.multiplier must be >= 1")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Simulate.Tick <= 0 {
		return fmt.Errorf("simulate.tick must be positive")
	}
	if c.Simulate.MinPapers < 1 || c.Simulate.MaxPapers < c.Simulate.MinPapers {
		return fmt.Errorf("simulate paper bounds %d..%d invalid", c.Simulate.MinPapers, c.Simulate.MaxPapers)
	}
	if c.Simulate.FailureRate < 0 || c.Simulate.FailureRate > 1 {
		return fmt.Errorf("simulate.failure_rate %v outside [0,1]", c.Simulate.FailureRate)
	}
	return nil
}

// GenerateToken returns a random hex token suitable for server.auth_token.
func GenerateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
