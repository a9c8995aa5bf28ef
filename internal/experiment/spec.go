package experiment

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// sweepSpec is the YAML shape of a sweep description.
type sweepSpec struct {
	Scenario string             `yaml:"scenario"`
	Param    string             `yaml:"param"`
	Values   []float64          `yaml:"values"`
	Params   map[string]float64 `yaml:"params"`
	Dt       float64            `yaml:"dt"`
	Duration float64            `yaml:"duration"`
	Workers  int                `yaml:"workers"`
}

// LoadSweep reads a sweep description from a YAML file. Zero dt and duration
// fall back to 0.01 and 10 seconds.
func LoadSweep(path string) (*Sweep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("experiment: read sweep spec: %w", err)
	}
	var spec sweepSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("experiment: parse sweep spec: %w", err)
	}
	sw := &Sweep{
		Scenario: spec.Scenario,
		Param:    spec.Param,
		Values:   spec.Values,
		Params:   spec.Params,
		Dt:       spec.Dt,
		Duration: spec.Duration,
		Workers:  spec.Workers,
	}
	if sw.Dt == 0 {
		sw.Dt = 0.01
	}
	if sw.Duration == 0 {
		sw.Duration = 10
	}
	return sw, nil
}
