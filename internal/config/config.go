// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config loads and saves the settings of all commands from YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mlnoga/spotlight/internal/pipeline"
	"github.com/mlnoga/spotlight/internal/synth"
)

// Settings of all commands. Command line flags override values loaded from file
type Config struct {
	Pipeline pipeline.Config `yaml:"pipeline"`

	// Pass executor
	Exec struct {
		// Threads is the number of concurrent row bands per pass, 0 for all cores
		Threads int `yaml:"threads"`

		// MemoryMB limits live grid memory, 0 for 70% of physical memory
		MemoryMB int64 `yaml:"memoryMB"`
	} `yaml:"exec"`

	// REST server
	Serve struct {
		Addr   string `yaml:"addr"`
		Chroot string `yaml:"chroot"` // restrict file access to this directory
		Setuid int    `yaml:"setuid"` // drop privileges to this user ID after chroot, if non-zero
	} `yaml:"serve"`

	Synth synth.Config `yaml:"synth"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{
		Pipeline: pipeline.DefaultConfig(),
		Synth:    synth.DefaultConfig(),
	}
	cfg.Serve.Addr = "localhost:8080"
	return cfg
}

// Checks all engine parameters
func (c *Config) Validate() error {
	if err := c.Pipeline.Label.Validate(); err != nil {
		return fmt.Errorf("label: %w", err)
	}
	if err := c.Pipeline.Stats.Validate(); err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	if c.Exec.Threads < 0 || c.Exec.MemoryMB < 0 {
		return fmt.Errorf("exec: negative threads %d or memory %d", c.Exec.Threads, c.Exec.MemoryMB)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
