package config

// Configuration loading and validation for fieldsim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration. One file carries both
// simulator instances; each runs against its own memory store.
type Config struct {
	FINS    FINSConfig    `yaml:"fins"`
	Melsec  MelsecConfig  `yaml:"melsec"`
	Logging LoggingConfig `yaml:"logging"`
}

// FINSConfig configures the OMRON FINS (UDP) simulator.
type FINSConfig struct {
	ListenIP string    `yaml:"listen_ip"`
	Port     int       `yaml:"port"`
	Areas    FINSAreas `yaml:"areas"`
	Sim      SimConfig `yaml:"sim"`
}

// FINSAreas sets the word size of each FINS memory area.
type FINSAreas struct {
	CIO     int `yaml:"cio"`
	Work    int `yaml:"work"`
	Holding int `yaml:"holding"`
	Data    int `yaml:"data"`
}

// MelsecConfig configures the Mitsubishi MC 3E (TCP) simulator.
type MelsecConfig struct {
	ListenIP      string                 `yaml:"listen_ip"`
	Port          int                    `yaml:"port"`
	ReadTimeoutMs int                    `yaml:"read_timeout_ms"`
	Devices       map[string]DeviceRange `yaml:"devices"`
	Sim           SimConfig              `yaml:"sim"`
}

// DeviceRange declares the point range of one MC device letter. The wire
// device code and word/bit classification are fixed protocol knowledge,
// not configuration; the device letter is validated against that closed
// table at startup.
type DeviceRange struct {
	Range [2]int `yaml:"range"` // [first point, last point], inclusive
}

// Points returns the number of addressable points in the range.
func (d DeviceRange) Points() int {
	return d.Range[1] - d.Range[0] + 1
}

// SimConfig controls one background process simulator.
type SimConfig struct {
	Enable bool `yaml:"enable"`
	TickMs int  `yaml:"tick_ms"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"` // silent|error|info|verbose|debug
	File  string `yaml:"file"`
}

// CreateDefault returns the built-in default configuration.
func CreateDefault() *Config {
	return &Config{
		FINS: FINSConfig{
			ListenIP: "0.0.0.0",
			Port:     9600,
			Areas: FINSAreas{
				CIO:     2048,
				Work:    512,
				Holding: 512,
				Data:    4096,
			},
			Sim: SimConfig{Enable: true, TickMs: 500},
		},
		Melsec: MelsecConfig{
			ListenIP:      "0.0.0.0",
			Port:          5007,
			ReadTimeoutMs: 10000,
			Devices: map[string]DeviceRange{
				"D": {Range: [2]int{0, 4095}},
				"W": {Range: [2]int{0, 2047}},
				"M": {Range: [2]int{0, 2047}},
				"X": {Range: [2]int{0, 1023}},
				"Y": {Range: [2]int{0, 1023}},
				"B": {Range: [2]int{0, 2047}},
			},
			Sim: SimConfig{Enable: true, TickMs: 1000},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads and validates a config file. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := CreateDefault()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks structural constraints. Device letters are validated
// against the protocol's closed classification table by the MC server at
// startup, since that table is protocol knowledge, not configuration.
func (c *Config) Validate() error {
	if err := validatePort("fins.port", c.FINS.Port); err != nil {
		return err
	}
	if err := validatePort("melsec.port", c.Melsec.Port); err != nil {
		return err
	}
	for name, words := range map[string]int{
		"fins.areas.cio":     c.FINS.Areas.CIO,
		"fins.areas.work":    c.FINS.Areas.Work,
		"fins.areas.holding": c.FINS.Areas.Holding,
		"fins.areas.data":    c.FINS.Areas.Data,
	} {
		if words <= 0 {
			return fmt.Errorf("%s: area size must be positive, got %d", name, words)
		}
	}
	if len(c.Melsec.Devices) == 0 {
		return fmt.Errorf("melsec.devices: at least one device required")
	}
	for letter, dev := range c.Melsec.Devices {
		if dev.Range[0] < 0 || dev.Range[1] < dev.Range[0] {
			return fmt.Errorf("melsec.devices.%s: invalid range [%d, %d]", letter, dev.Range[0], dev.Range[1])
		}
	}
	if c.Melsec.ReadTimeoutMs < 0 {
		return fmt.Errorf("melsec.read_timeout_ms: must not be negative")
	}
	if c.FINS.Sim.Enable && c.FINS.Sim.TickMs <= 0 {
		return fmt.Errorf("fins.sim.tick_ms: must be positive when sim is enabled")
	}
	if c.Melsec.Sim.Enable && c.Melsec.Sim.TickMs <= 0 {
		return fmt.Errorf("melsec.sim.tick_ms: must be positive when sim is enabled")
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s: invalid port %d", name, port)
	}
	return nil
}
