package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/deploysim/serversim/sim"
)

// scenarioSchema is the structural contract a scenario file must satisfy,
// checked before the stricter, strongly-typed YAML decode in Load.
// Grounded on abdul-hamid-achik-hitspec's packages/assertions/evaluator.go
// "schema" assertion operator, which validates a JSON document against a
// gojsonschema.NewBytesLoader schema the same way.
const scenarioSchema = `{
  "type": "object",
  "required": ["servers", "requesters", "user_groups", "horizon", "seed"],
  "properties": {
    "version": {"type": "string"},
    "run_id": {"type": "string"},
    "seed": {"type": "integer"},
    "horizon": {"type": "number", "minimum": 0},
    "load_balancer_policy": {"type": "string", "enum": ["byname", "round_robin", "random", "rendezvous"]},
    "servers": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "max_concurrency", "num_threads", "speed"],
        "properties": {
          "name": {"type": "string"},
          "service": {"type": "string"},
          "max_concurrency": {"type": "integer"},
          "num_threads": {"type": "integer"},
          "speed": {"type": "number"}
        }
      }
    },
    "requesters": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "type"],
        "properties": {
          "name": {"type": "string"},
          "type": {"type": "string", "enum": ["core", "async", "blocking", "seq", "par"]},
          "server": {"type": "string"},
          "comp_units": {
            "type": "object",
            "properties": {
              "fixed": {"type": "number"},
              "min": {"type": "number"},
              "max": {"type": "number"}
            }
          },
          "reqs": {"type": "array", "items": {"type": "string"}},
          "cont": {"type": "boolean"}
        }
      }
    },
    "user_groups": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "requesters"],
        "properties": {
          "name": {"type": "string"},
          "num_users": {"type": "integer"},
          "num_users_steps": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["start", "count"],
              "properties": {
                "start": {"type": "number"},
                "count": {"type": "integer"}
              }
            }
          },
          "requesters": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["name", "weight"],
              "properties": {
                "name": {"type": "string"},
                "weight": {"type": "number"}
              }
            }
          },
          "min_think": {"type": "number"},
          "max_think": {"type": "number"},
          "quantiles": {"type": "array", "items": {"type": "number"}}
        }
      }
    }
  }
}`

// validateAgainstSchema re-parses raw YAML as generic data, re-encodes it
// as JSON (gojsonschema speaks JSON, not YAML), and validates it against
// scenarioSchema, surfacing every violation as a single ConstructionError.
func validateAgainstSchema(data []byte) error {
	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("YAML parse: %v", err)}
	}
	generic = normalizeYAMLKeys(generic)

	asJSON, err := json.Marshal(generic)
	if err != nil {
		return &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("re-encoding as JSON: %v", err)}
	}

	schemaLoader := gojsonschema.NewStringLoader(scenarioSchema)
	docLoader := gojsonschema.NewBytesLoader(asJSON)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("schema validation error: %v", err)}
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return &sim.ConstructionError{Component: "Scenario", Reason: "schema violations: " + strings.Join(msgs, "; ")}
}

// normalizeYAMLKeys recursively converts the map[string]interface{} (and
// nested map[interface{}]interface{} that some yaml.v3 paths still
// produce for deeply generic decodes) into the map[string]interface{}
// tree encoding/json requires.
func normalizeYAMLKeys(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, val := range vv {
			out[k] = normalizeYAMLKeys(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, val := range vv {
			out[fmt.Sprintf("%v", k)] = normalizeYAMLKeys(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, val := range vv {
			out[i] = normalizeYAMLKeys(val)
		}
		return out
	default:
		return v
	}
}
