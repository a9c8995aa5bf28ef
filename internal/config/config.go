// Package config loads run configuration from defaults, an optional YAML
// file, and VARIMECH_* environment overrides, in that order.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/varimech/internal/scenario"
	"github.com/san-kum/varimech/internal/varint"
)

type Config struct {
	Scenario   string             `yaml:"scenario" env:"VARIMECH_SCENARIO"`
	Params     map[string]float64 `yaml:"params"`
	Integrator IntegratorConfig   `yaml:"integrator"`
	Run        RunConfig          `yaml:"run"`
	Controller ControllerConfig   `yaml:"controller"`
	Output     OutputConfig       `yaml:"output"`
}

type IntegratorConfig struct {
	Scheme        string  `yaml:"scheme" env:"VARIMECH_SCHEME"`
	Tolerance     float64 `yaml:"tolerance" env:"VARIMECH_TOLERANCE"`
	MaxIterations int     `yaml:"max_iterations" env:"VARIMECH_MAX_ITERATIONS"`
	CondLimit     float64 `yaml:"cond_limit" env:"VARIMECH_COND_LIMIT"`
	ExactJacobian bool    `yaml:"exact_jacobian" env:"VARIMECH_EXACT_JACOBIAN"`
}

type RunConfig struct {
	Dt       float64 `yaml:"dt" env:"VARIMECH_DT"`
	Duration float64 `yaml:"duration" env:"VARIMECH_DURATION"`
}

type ControllerConfig struct {
	Kind   string  `yaml:"kind"` // none, pid, shuttle
	Input  string  `yaml:"input"`
	Var    string  `yaml:"var"`
	Kp     float64 `yaml:"kp"`
	Ki     float64 `yaml:"ki"`
	Kd     float64 `yaml:"kd"`
	Target float64 `yaml:"target"`
	Speed  float64 `yaml:"speed"` // shuttle traverse rate
	Span   float64 `yaml:"span"`  // shuttle travel distance
}

type OutputConfig struct {
	Dir  string `yaml:"dir" env:"VARIMECH_OUTPUT_DIR"`
	Save bool   `yaml:"save" env:"VARIMECH_SAVE"`
}

func DefaultConfig() *Config {
	opt := varint.DefaultOptions()
	return &Config{
		Scenario: "pendulum",
		Integrator: IntegratorConfig{
			Scheme:        opt.Scheme.String(),
			Tolerance:     opt.Tolerance,
			MaxIterations: opt.MaxIterations,
			CondLimit:     opt.CondLimit,
		},
		Run: RunConfig{
			Dt:       0.01,
			Duration: 10,
		},
		Controller: ControllerConfig{Kind: "none"},
		Output:     OutputConfig{Dir: "runs"},
	}
}

// Load starts from defaults, overlays the YAML file when path is nonempty,
// then the environment, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) Validate() error {
	if _, err := scenario.Get(c.Scenario); err != nil {
		return err
	}
	if _, err := c.Scheme(); err != nil {
		return err
	}
	if c.Run.Dt <= 0 {
		return fmt.Errorf("config: dt must be positive, got %g", c.Run.Dt)
	}
	if c.Run.Duration <= 0 {
		return fmt.Errorf("config: duration must be positive, got %g", c.Run.Duration)
	}
	if c.Integrator.Tolerance <= 0 {
		return fmt.Errorf("config: tolerance must be positive, got %g", c.Integrator.Tolerance)
	}
	if c.Integrator.MaxIterations < 1 {
		return fmt.Errorf("config: max_iterations must be at least 1, got %d", c.Integrator.MaxIterations)
	}
	switch c.Controller.Kind {
	case "", "none", "pid", "shuttle":
	default:
		return fmt.Errorf("config: unknown controller kind %q", c.Controller.Kind)
	}
	return nil
}

// Scheme decodes the integrator scheme name.
func (c *Config) Scheme() (varint.Scheme, error) {
	switch c.Integrator.Scheme {
	case "", "midpoint":
		return varint.Midpoint, nil
	case "trapezoid":
		return varint.Trapezoid, nil
	default:
		return 0, fmt.Errorf("config: unknown scheme %q", c.Integrator.Scheme)
	}
}

// Options assembles the stepper options. Call after Validate.
func (c *Config) Options() varint.Options {
	scheme, _ := c.Scheme()
	return varint.Options{
		Scheme:        scheme,
		Tolerance:     c.Integrator.Tolerance,
		MaxIterations: c.Integrator.MaxIterations,
		CondLimit:     c.Integrator.CondLimit,
		ExactJacobian: c.Integrator.ExactJacobian,
	}
}
