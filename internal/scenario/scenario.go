package scenario

import (
	"fmt"
	"sort"

	"github.com/san-kum/varimech/internal/mech"
)

// Scenario is a named system builder. Build receives the merged parameter
// map (defaults overlaid by the caller's values) and returns the system with
// its initial configuration and velocity.
type Scenario struct {
	Name        string
	Description string
	Defaults    map[string]float64
	Build       func(params map[string]float64) (sys *mech.System, q0, v0 []float64, err error)
}

var registry = map[string]Scenario{}

func register(s Scenario) {
	if _, dup := registry[s.Name]; dup {
		panic(fmt.Sprintf("scenario: duplicate registration %q", s.Name))
	}
	registry[s.Name] = s
}

// Get returns the named scenario.
func Get(name string) (Scenario, error) {
	s, ok := registry[name]
	if !ok {
		return Scenario{}, fmt.Errorf("scenario: unknown scenario %q", name)
	}
	return s, nil
}

// Names lists the registered scenarios sorted by name.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildNamed merges params over the scenario defaults and builds. Unknown
// parameter names are rejected so typos do not silently fall back to a
// default.
func BuildNamed(name string, params map[string]float64) (*mech.System, []float64, []float64, error) {
	s, err := Get(name)
	if err != nil {
		return nil, nil, nil, err
	}
	merged := make(map[string]float64, len(s.Defaults))
	for k, v := range s.Defaults {
		merged[k] = v
	}
	for k, v := range params {
		if _, ok := merged[k]; !ok {
			return nil, nil, nil, fmt.Errorf("scenario: %s has no parameter %q", name, k)
		}
		merged[k] = v
	}
	return s.Build(merged)
}
