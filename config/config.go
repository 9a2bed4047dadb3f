package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the validated configuration handed to the engines.
// The engines consume it, they never parse or mutate it.
type Config struct {
	// BPM is the default tempo, used when the transport carries none.
	// Combined with ForceBPM it overrides the transport tempo.
	BPM      float64 `json:"bpm,omitempty"`
	ForceBPM bool    `json:"forceBPM,omitempty"`

	// Message filter switches, each independent
	NoTransport       bool `json:"noTransport,omitempty"`
	NoClock           bool `json:"noClock,omitempty"`
	NoPosition        bool `json:"noPosition,omitempty"`
	ClockWhileStopped bool `json:"clockWhileStopped,omitempty"`

	// Cycle geometry for the local transport
	SampleRate uint32 `json:"sampleRate,omitempty"`
	CycleSize  uint32 `json:"cycleSize,omitempty"`

	// Meter used for song position and the local transport
	BeatsPerBar  float64 `json:"beatsPerBar,omitempty"`
	TicksPerBeat float64 `json:"ticksPerBeat,omitempty"`

	// Port is a substring matched against MIDI port names
	Port string `json:"port,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		BPM:          120,
		SampleRate:   48000,
		CycleSize:    512,
		BeatsPerBar:  4,
		TicksPerBeat: 1920,
	}
}

// Validate reports the first nonsensical setting
func (c *Config) Validate() error {
	if c.BPM < 0 {
		return fmt.Errorf("bpm must not be negative, got %g", c.BPM)
	}
	if c.SampleRate == 0 {
		return fmt.Errorf("sample rate must be positive")
	}
	if c.CycleSize == 0 {
		return fmt.Errorf("cycle size must be positive")
	}
	if c.BeatsPerBar <= 0 || c.TicksPerBeat <= 0 {
		return fmt.Errorf("meter must be positive, got %g beats/bar %g ticks/beat",
			c.BeatsPerBar, c.TicksPerBeat)
	}
	return nil
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "midiclock"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
