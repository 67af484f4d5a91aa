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

// Package config loads flatqc settings from an optional YAML file, with
// FLATQC_* environment overrides on top of built-in defaults.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Stack   StackConfig   `mapstructure:"stack" yaml:"stack"`
	Detect  DetectConfig  `mapstructure:"detect" yaml:"detect"`
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`
	Serve   ServeConfig   `mapstructure:"serve" yaml:"serve"`
	Anneal  AnnealConfig  `mapstructure:"anneal" yaml:"anneal"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

type StackConfig struct {
	Regions           []int  `mapstructure:"regions" yaml:"regions"`
	Method            string `mapstructure:"method" yaml:"method"`
	MaskByDefect      bool   `mapstructure:"maskByDefect" yaml:"maskByDefect"`
	CombineDefects    bool   `mapstructure:"combineDefects" yaml:"combineDefects"`
	Tiling            string `mapstructure:"tiling" yaml:"tiling"`                       // auto, always or never
	TileFileThreshold int    `mapstructure:"tileFileThreshold" yaml:"tileFileThreshold"` // tile from this many files on, 0 disables
	MemoryMiB         int    `mapstructure:"memoryMiB" yaml:"memoryMiB"`                 // 0 = 70% of physical memory
	Parallelism       int    `mapstructure:"parallelism" yaml:"parallelism"`             // tiles combined concurrently, 0 = 1
	TempDir           string `mapstructure:"tempDir" yaml:"tempDir"`
	EpochPattern      string `mapstructure:"epochPattern" yaml:"epochPattern"`         // filter, epoch, visit date
	ReferencePattern  string `mapstructure:"referencePattern" yaml:"referencePattern"` // filter
}

type DetectConfig struct {
	Regions      []int     `mapstructure:"regions" yaml:"regions"`
	Thresholds   []float64 `mapstructure:"thresholds" yaml:"thresholds"`
	LowerBounds  []float64 `mapstructure:"lowerBounds" yaml:"lowerBounds"`
	MaskByDefect bool      `mapstructure:"maskByDefect" yaml:"maskByDefect"`
	MaskBorder   bool      `mapstructure:"maskBorder" yaml:"maskBorder"`
	BorderRows   int       `mapstructure:"borderRows" yaml:"borderRows"`
	PreviewRange float64   `mapstructure:"previewRange" yaml:"previewRange"` // percent deviation mapped to full color
}

type CatalogConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // sqlite3 or postgres
	DSN    string `mapstructure:"dsn" yaml:"dsn"`       // empty disables the catalog
}

type ServeConfig struct {
	Port       int    `mapstructure:"port" yaml:"port"`
	ResultsDir string `mapstructure:"resultsDir" yaml:"resultsDir"`
}

type AnnealConfig struct {
	Table   string  `mapstructure:"table" yaml:"table"`     // published anneal dates table
	MJDList string  `mapstructure:"mjdList" yaml:"mjdList"` // one anneal MJD per line
	MinMJD  float64 `mapstructure:"minMJD" yaml:"minMJD"`
}

// Configuration with default values
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Stack: StackConfig{
			Regions:           []int{1, 2},
			Method:            "mean",
			CombineDefects:    true,
			Tiling:            "auto",
			TileFileThreshold: 150,
			EpochPattern:      "combined_mean_flat_%s_%s_%s.fits",
			ReferencePattern:  "%s_median_flat.fits",
		},
		Detect: DetectConfig{
			Regions:      []int{1, 2},
			Thresholds:   []float64{-1, -2, -3, -4, -5},
			LowerBounds:  []float64{-10, -7, -6},
			MaskBorder:   true,
			BorderRows:   10,
			PreviewRange: 10,
		},
		Catalog: CatalogConfig{Driver: "sqlite3"},
		Serve:   ServeConfig{Port: 8080, ResultsDir: "results"},
		Anneal:  AnnealConfig{MJDList: "anneal_mjds.txt", MinMJD: 56000},
	}
}

// Loads configuration. An empty path yields defaults plus environment
// overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("FLATQC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Checks values the commands rely on
func (c *Config) Validate() error {
	switch c.Stack.Method {
	case "mean", "median":
	default:
		return fmt.Errorf("stack.method %q: must be mean or median", c.Stack.Method)
	}
	switch c.Stack.Tiling {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("stack.tiling %q: must be auto, always or never", c.Stack.Tiling)
	}
	if c.Stack.MemoryMiB < 0 || c.Stack.Parallelism < 0 || c.Stack.TileFileThreshold < 0 {
		return fmt.Errorf("stack.memoryMiB, stack.parallelism and stack.tileFileThreshold must not be negative")
	}
	if len(c.Stack.Regions) == 0 || len(c.Detect.Regions) == 0 {
		return fmt.Errorf("stack.regions and detect.regions must not be empty")
	}
	if c.Detect.BorderRows < 0 {
		return fmt.Errorf("detect.borderRows must not be negative")
	}
	if c.Detect.PreviewRange <= 0 {
		return fmt.Errorf("detect.previewRange must be positive")
	}
	switch c.Catalog.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("catalog.driver %q: must be sqlite3 or postgres", c.Catalog.Driver)
	}
	return nil
}

// Writes the configuration as YAML, creating the directory if needed
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
