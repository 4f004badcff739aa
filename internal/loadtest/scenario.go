// Package loadtest drives chat completion traffic against a running
// simulator and aggregates the observed latencies.
package loadtest

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Scenario is the request script a driver replays.
type Scenario struct {
	Requests []*Request `yaml:"requests"`
}

// Request is one scripted chat completion.
// Timestamp spaces serial traffic; TimeElapsed is filled by the driver.
type Request struct {
	Deployment  string         `yaml:"deployment"`
	Prompt      string         `yaml:"prompt"`
	MaxTokens   int            `yaml:"max_tokens,omitempty"`
	Timestamp   time.Time      `yaml:"timestamp,omitempty"`
	TimeElapsed *time.Duration `yaml:"time_elapsed,omitempty"`
}

// LoadScenario reads a scenario file and fills defaults for missed fields.
func LoadScenario(path string, defaultDeployment string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load scenario")
	}

	scenario := new(Scenario)
	err = yaml.Unmarshal(raw, scenario)
	if err != nil {
		return nil, errors.Wrap(err, "scenario parsing failed")
	}

	for _, r := range scenario.Requests {
		if r.Deployment == "" {
			r.Deployment = defaultDeployment
		}
	}

	return scenario, nil
}

// Export writes the scenario, including measured durations, to a file.
func (s *Scenario) Export(path string) error {
	marshaled, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "failed to marshal scenario")
	}

	err = os.WriteFile(path, marshaled, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to write scenario file")
	}

	return nil
}
