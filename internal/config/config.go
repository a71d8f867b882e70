// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

// Package config loads the optional cellscope YAML configuration file.
// Command-line flags override anything set here.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/voltaic/cellscope/pkg/bmsproto"
)

// Config is the on-disk configuration.
type Config struct {
	Port           string `yaml:"port"`
	Baud           int    `yaml:"baud"`
	NumSlaves      int    `yaml:"num_slaves"`
	NumCells       int    `yaml:"num_cells"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	Record         string `yaml:"record"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Baud:           115200,
		NumSlaves:      0,
		NumCells:       bmsproto.MaxCellsTopBMS,
		PollIntervalMs: 1000,
	}
}

// Load reads path and merges it over the defaults. A missing file is not an
// error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges against what the bus accepts.
func (c Config) Validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("baud %d out of range", c.Baud)
	}
	if c.NumSlaves < 0 || c.NumSlaves > bmsproto.MaxConfigSlaves {
		return fmt.Errorf("num_slaves %d out of range 0-%d", c.NumSlaves, bmsproto.MaxConfigSlaves)
	}
	if c.NumCells < 0 || c.NumCells > bmsproto.MaxCellsTopBMS {
		return fmt.Errorf("num_cells %d out of range 0-%d", c.NumCells, bmsproto.MaxCellsTopBMS)
	}
	if c.PollIntervalMs != 1000 && c.PollIntervalMs != 2000 {
		return fmt.Errorf("poll_interval_ms %d unsupported, use 1000 or 2000", c.PollIntervalMs)
	}
	return nil
}
