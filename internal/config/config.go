// Package config loads sppchat settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Strategy names accepted in Config.Strategies.
const (
	StrategyProfile = "profile"
	StrategyRFCOMM  = "rfcomm"
)

// Config is the on-disk configuration. Zero values are filled by Default.
type Config struct {
	// Peer is the Bluetooth address connected to when none is given on the command line.
	Peer    string `yaml:"peer"`
	Adapter string `yaml:"adapter"`
	// Strategies lists socket strategies in the order they are tried.
	Strategies         []string      `yaml:"strategies"`
	RFCOMMChannel      uint8         `yaml:"rfcomm_channel"`
	ReadBufferSize     int           `yaml:"read_buffer_size"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	ReconnectOnRadioOn bool          `yaml:"reconnect_on_radio_on"`
	// PowerOn switches the adapter on at startup when it is off.
	PowerOn bool `yaml:"power_on"`
	// Listen is the address of the WebSocket bridge; empty disables it.
	Listen string `yaml:"listen"`
	Log    Log    `yaml:"log"`
}

// Log configures the zap logger.
type Log struct {
	Level string `yaml:"level"`
	// File receives log output; empty means stderr.
	File string `yaml:"file"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Adapter:        "hci0",
		Strategies:     []string{StrategyProfile, StrategyRFCOMM},
		RFCOMMChannel:  1,
		ReadBufferSize: 1024,
		Log:            Log{Level: "info"},
	}
}

// DefaultPath returns ~/.config/sppchat/config.yaml, or "" if the user
// config directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "sppchat", "config.yaml")
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if len(c.Strategies) == 0 {
		return errors.New("at least one strategy is required")
	}
	seen := make(map[string]bool, len(c.Strategies))
	for _, s := range c.Strategies {
		switch s {
		case StrategyProfile, StrategyRFCOMM:
		default:
			return fmt.Errorf("unknown strategy %q", s)
		}
		if seen[s] {
			return fmt.Errorf("strategy %q listed twice", s)
		}
		seen[s] = true
	}
	if c.RFCOMMChannel < 1 || c.RFCOMMChannel > 30 {
		return fmt.Errorf("rfcomm_channel %d out of range 1-30", c.RFCOMMChannel)
	}
	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("read_buffer_size must be positive, got %d", c.ReadBufferSize)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("connect_timeout must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}
