// Package config loads a simulation scenario (servers, requesters, user
// groups, horizon, seed) from YAML with strict field checking, exactly as
// the teacher's cmd/default_config.go does for defaults.yaml, plus a
// JSON-schema validation pass that surfaces malformed scenarios as a
// sim.ConstructionError before any object is built.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/deploysim/serversim/sim"
)

// ServerSpec describes one Server in a scenario. Service groups multiple
// servers behind the same logical name for load-balancing; it defaults to
// Name when empty, so the common one-server-per-service case needs no
// extra field.
type ServerSpec struct {
	Name           string  `yaml:"name"`
	Service        string  `yaml:"service"`
	MaxConcurrency int     `yaml:"max_concurrency"`
	NumThreads     int     `yaml:"num_threads"`
	Speed          float64 `yaml:"speed"`
}

// CompUnitsSpec describes how a Core requester samples its comp_units.
// When Fixed is set it takes precedence and Min/Max are ignored;
// otherwise comp_units is drawn uniformly from [Min, Max). A Core
// requester without comp_units uses a constant 1.0.
type CompUnitsSpec struct {
	Fixed *float64 `yaml:"fixed"`
	Min   float64  `yaml:"min"`
	Max   float64  `yaml:"max"`
}

// RequesterSpec describes one node of the service-request algebra. Type
// is one of "core", "async", "blocking", "seq", "par". Reqs names other
// RequesterSpecs by Name: exactly one for async/blocking (the inner
// request), one or more for seq/par.
type RequesterSpec struct {
	Name      string         `yaml:"name"`
	Type      string         `yaml:"type"`
	Server    string         `yaml:"server"`
	CompUnits *CompUnitsSpec `yaml:"comp_units"`
	Reqs      []string       `yaml:"reqs"`
	Cont      bool           `yaml:"cont"`
}

// UserStepSpec is one entry of a UserGroupSpec's num_users step function.
type UserStepSpec struct {
	Start float64 `yaml:"start"`
	Count int     `yaml:"count"`
}

// GroupRequesterRef names a RequesterSpec and its selection weight within
// a UserGroupSpec.
type GroupRequesterRef struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// UserGroupSpec describes one UserGroup. Exactly one of NumUsers (a flat
// population) or NumUsersSteps (a step function) should be set; NumUsers
// is used when NumUsersSteps is empty.
type UserGroupSpec struct {
	Name          string              `yaml:"name"`
	NumUsers      int                 `yaml:"num_users"`
	NumUsersSteps []UserStepSpec      `yaml:"num_users_steps"`
	Requesters    []GroupRequesterRef `yaml:"requesters"`
	MinThink      float64             `yaml:"min_think"`
	MaxThink      float64             `yaml:"max_think"`
	Quantiles     []float64           `yaml:"quantiles"`
}

// Scenario is the top-level scenario-file structure. All sections must be
// listed here to satisfy strict (KnownFields) YAML decoding.
type Scenario struct {
	Version            string          `yaml:"version"`
	RunID              string          `yaml:"run_id"`
	Seed               int64           `yaml:"seed"`
	Horizon            float64         `yaml:"horizon"`
	LoadBalancerPolicy string          `yaml:"load_balancer_policy"`
	Servers            []ServerSpec    `yaml:"servers"`
	Requesters         []RequesterSpec `yaml:"requesters"`
	UserGroups         []UserGroupSpec `yaml:"user_groups"`
}

// LoadFile reads, strictly decodes, and schema-validates a scenario file
// at path. The returned Scenario has not yet been built into live sim
// objects — call Build for that.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Load(data)
}

// Load decodes and validates scenario YAML already held in memory.
func Load(data []byte) (*Scenario, error) {
	if err := validateAgainstSchema(data); err != nil {
		return nil, err
	}

	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("YAML decode: %v", err)}
	}

	if sc.RunID == "" {
		sc.RunID = uuid.NewString()
	}

	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// validate runs semantic checks a JSON schema can't express: no duplicate
// names and every reference resolves. User-group weights and populations,
// and construction-time checks such as positive speed, are left to Build,
// which surfaces the sim package's own ConstructionError.
func (sc *Scenario) validate() error {
	if sc.Horizon < 0 {
		return &sim.ConstructionError{Component: "Scenario", Reason: "horizon must be >= 0"}
	}
	if len(sc.Servers) == 0 {
		return &sim.ConstructionError{Component: "Scenario", Reason: "servers must be non-empty"}
	}

	seen := make(map[string]bool, len(sc.Servers))
	for _, s := range sc.Servers {
		if s.Name == "" {
			return &sim.ConstructionError{Component: "Scenario", Reason: "server name must be non-empty"}
		}
		if seen[s.Name] {
			return &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("duplicate server name %q", s.Name)}
		}
		seen[s.Name] = true
	}

	reqNames := make(map[string]*RequesterSpec, len(sc.Requesters))
	for i := range sc.Requesters {
		r := &sc.Requesters[i]
		if r.Name == "" {
			return &sim.ConstructionError{Component: "Scenario", Reason: "requester name must be non-empty"}
		}
		if _, dup := reqNames[r.Name]; dup {
			return &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("duplicate requester name %q", r.Name)}
		}
		reqNames[r.Name] = r
	}
	for _, r := range sc.Requesters {
		switch r.Type {
		case "core":
			if r.Server == "" {
				return &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("requester %q: core requires server", r.Name)}
			}
		case "async", "blocking":
			if len(r.Reqs) != 1 {
				return &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("requester %q: %s requires exactly one entry in reqs", r.Name, r.Type)}
			}
		case "seq", "par":
			if len(r.Reqs) < 1 {
				return &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("requester %q: %s requires at least one entry in reqs", r.Name, r.Type)}
			}
		default:
			return &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("requester %q: unknown type %q", r.Name, r.Type)}
		}
		for _, ref := range r.Reqs {
			if _, ok := reqNames[ref]; !ok {
				return &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("requester %q: reqs references unknown requester %q", r.Name, ref)}
			}
		}
	}

	if len(sc.UserGroups) == 0 {
		return &sim.ConstructionError{Component: "Scenario", Reason: "user_groups must be non-empty"}
	}
	for _, g := range sc.UserGroups {
		if g.Name == "" {
			return &sim.ConstructionError{Component: "Scenario", Reason: "user group name must be non-empty"}
		}
		if len(g.Requesters) == 0 {
			return &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("user group %q: requesters must be non-empty", g.Name)}
		}
		for _, ref := range g.Requesters {
			if _, ok := reqNames[ref.Name]; !ok {
				return &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("user group %q: requesters references unknown requester %q", g.Name, ref.Name)}
			}
		}
	}
	return nil
}
