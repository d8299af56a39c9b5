// Package config loads and validates the optional .rat YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/reznakt/rat/internal/compare"
)

// Default values for harness configuration.
const (
	DefaultTimeout   = time.Second
	DefaultMaxOutput = 1 << 20 // 1 MB
	DefaultMaxStdin  = 4096
)

// Config holds the parsed .rat configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int             `yaml:"version"`
	RawTimeout   string          `yaml:"timeout"`    // e.g. "1s", "500ms"
	RawMaxOutput int             `yaml:"max_output"` // bytes per captured stream
	Trials       int             `yaml:"trials"`     // 0 = run until failure
	Exhaustive   bool            `yaml:"exhaustive"` // collect every failure
	Compare      CompareConfig   `yaml:"compare"`
	Generator    GeneratorConfig `yaml:"generator"`
}

// CompareConfig selects the compared result fields. Unset fields
// default to enabled, so an empty config compares everything.
type CompareConfig struct {
	ExitCode *bool `yaml:"exit_code"`
	Stdout   *bool `yaml:"stdout"`
	Stderr   *bool `yaml:"stderr"`
}

// GeneratorConfig configures the test-case source. With an empty Argv
// the built-in random generator is used.
type GeneratorConfig struct {
	Argv     []string `yaml:"argv"`      // external generator program
	Seed     uint64   `yaml:"seed"`      // random generator seed
	MaxStdin int      `yaml:"max_stdin"` // random payload length cap
}

// Timeout returns the configured per-execution timeout or the default.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// MaxOutputBytes returns the configured output cap or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// MaxStdin returns the random payload length cap or the default.
func (c *Config) MaxStdin() int {
	if c.Generator.MaxStdin > 0 {
		return c.Generator.MaxStdin
	}
	return DefaultMaxStdin
}

// Policy builds the comparison policy from the compare section.
// Disabling all three fields is a configuration error.
func (c *Config) Policy() (compare.Policy, error) {
	enabled := func(p *bool) bool { return p == nil || *p }
	return compare.NewPolicy(
		enabled(c.Compare.ExitCode),
		enabled(c.Compare.Stdout),
		enabled(c.Compare.Stderr),
	)
}

// Load reads the .rat file from dir. If no .rat file exists, a
// default Config is returned.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ".rat")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading .rat: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing .rat: %w", err)
	}
	return cfg, nil
}
