package config

import (
	"fmt"
	"sort"
)

// Presets are named ready-to-run configurations, keyed preset → config.
var presets = map[string]*Config{
	"pendulum-small": {
		Scenario: "pendulum",
		Params:   map[string]float64{"theta0": 0.1},
		Run:      RunConfig{Dt: 0.01, Duration: 10},
	},
	"pendulum-large": {
		Scenario: "pendulum",
		Params:   map[string]float64{"theta0": 2.5},
		Run:      RunConfig{Dt: 0.005, Duration: 20},
	},
	"double-chaos": {
		Scenario: "double-pendulum",
		Params:   map[string]float64{"theta1": 3.0, "theta2": 3.0},
		Run:      RunConfig{Dt: 0.002, Duration: 30},
	},
	"linked-spin": {
		Scenario: "linked-masses",
		Params:   map[string]float64{"spin": 2},
		Run:      RunConfig{Dt: 0.01, Duration: 10},
	},
	"fourbar-swing": {
		Scenario: "fourbar",
		Params:   map[string]float64{"theta0": 0.6},
		Run:      RunConfig{Dt: 0.005, Duration: 15},
	},
	"crane-traverse": {
		Scenario:   "crane",
		Run:        RunConfig{Dt: 0.01, Duration: 12},
		Controller: ControllerConfig{Kind: "shuttle", Speed: 0.5, Span: 2},
	},
	"cartpole-swing": {
		Scenario: "cartpole",
		Params:   map[string]float64{"theta0": 2.5},
		Run:      RunConfig{Dt: 0.005, Duration: 10},
	},
}

// GetPreset returns a copy of the named preset completed with defaults for
// every field it leaves zero.
func GetPreset(name string) (*Config, error) {
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("config: unknown preset %q", name)
	}
	cfg := DefaultConfig()
	cfg.Scenario = p.Scenario
	if p.Params != nil {
		cfg.Params = make(map[string]float64, len(p.Params))
		for k, v := range p.Params {
			cfg.Params[k] = v
		}
	}
	if p.Run.Dt > 0 {
		cfg.Run.Dt = p.Run.Dt
	}
	if p.Run.Duration > 0 {
		cfg.Run.Duration = p.Run.Duration
	}
	if p.Controller.Kind != "" {
		cfg.Controller = p.Controller
	}
	if p.Integrator.Scheme != "" {
		cfg.Integrator.Scheme = p.Integrator.Scheme
	}
	return cfg, nil
}

// ListPresets returns the preset names sorted.
func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
