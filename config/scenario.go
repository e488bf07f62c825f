package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/flowsim/sim/simerr"
)

// A Scenario describes a queueing network built from sources, servers,
// resource pools, and sinks.
type Scenario struct {
	Sources []SourceSpec `yaml:"sources"`
	Queues  []QueueSpec  `yaml:"queues"`
	Pools   []PoolSpec   `yaml:"pools"`
	Servers []ServerSpec `yaml:"servers"`
	Sinks   []string     `yaml:"sinks"`
}

// SourceSpec describes a source.
type SourceSpec struct {
	Name       string  `yaml:"name"`
	Interval   float64 `yaml:"interval"`
	StartDelay float64 `yaml:"start_delay"`
	MaxCount   int     `yaml:"max_count"`
	Output     string  `yaml:"output"`
}

// QueueSpec describes a buffer. A zero capacity means unbounded.
type QueueSpec struct {
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"`
}

// PoolSpec describes a resource manager and the resources it owns.
type PoolSpec struct {
	Name      string         `yaml:"name"`
	Stealing  bool           `yaml:"stealing"`
	Resources map[string]int `yaml:"resources"`
}

// ServerSpec describes a server.
type ServerSpec struct {
	Name        string  `yaml:"name"`
	Input       string  `yaml:"input"`
	Output      string  `yaml:"output"`
	ServiceTime float64 `yaml:"service_time"`
	Pool        string  `yaml:"pool"`
	Resource    string  `yaml:"resource"`
}

// LoadScenario reads a scenario file. Unknown keys are errors.
func LoadScenario(path string) (*Scenario, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}

	return ParseScenario(content)
}

// ParseScenario decodes and checks a scenario.
func ParseScenario(content []byte) (*Scenario, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)

	var s Scenario
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: failed to decode scenario: %v",
			simerr.ErrArgument, err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate checks that names are unique and that every reference resolves.
func (s *Scenario) Validate() error {
	names := make(map[string]string)

	claim := func(kind, name string) error {
		if name == "" {
			return simerr.Argument("%s without a name", kind)
		}

		if other, ok := names[name]; ok {
			return simerr.Argument("%s %s clashes with %s %s",
				kind, name, other, name)
		}

		names[name] = kind

		return nil
	}

	for _, q := range s.Queues {
		if err := claim("queue", q.Name); err != nil {
			return err
		}
	}

	for _, p := range s.Pools {
		if err := claim("pool", p.Name); err != nil {
			return err
		}
	}

	for _, sink := range s.Sinks {
		if err := claim("sink", sink); err != nil {
			return err
		}
	}

	for _, src := range s.Sources {
		if err := claim("source", src.Name); err != nil {
			return err
		}

		if src.Output != "" && names[src.Output] != "queue" {
			return simerr.Argument("source %s: unknown queue %s",
				src.Name, src.Output)
		}
	}

	for _, srv := range s.Servers {
		if err := s.validateServer(srv, names); err != nil {
			return err
		}

		if err := claim("server", srv.Name); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scenario) validateServer(srv ServerSpec, names map[string]string) error {
	if names[srv.Input] != "queue" {
		return simerr.Argument("server %s: unknown queue %s", srv.Name, srv.Input)
	}

	if names[srv.Output] != "sink" {
		return simerr.Argument("server %s: unknown sink %s", srv.Name, srv.Output)
	}

	if srv.Pool == "" {
		return nil
	}

	for _, p := range s.Pools {
		if p.Name == srv.Pool {
			if p.Resources[srv.Resource] == 0 {
				return simerr.Argument("server %s: pool %s has no %s",
					srv.Name, srv.Pool, srv.Resource)
			}

			return nil
		}
	}

	return simerr.Argument("server %s: unknown pool %s", srv.Name, srv.Pool)
}
