// Package hint applies named power hints to sysfs tuning nodes.
//
// A JSON config declares the writable nodes and the actions each hint
// performs on them. Requests are tracked per node: the most aggressive
// live request wins, and when the last request expires or ends the node
// falls back to its default value.
package hint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchema is the shape every engine config must satisfy before it is
// decoded. Cross-references (action -> node, value membership) are checked
// separately after decoding.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["Nodes", "Actions"],
  "additionalProperties": false,
  "properties": {
    "Nodes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["Name", "Path", "Values"],
        "additionalProperties": false,
        "properties": {
          "Name": {"type": "string", "minLength": 1},
          "Path": {"type": "string", "minLength": 1},
          "Values": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string", "minLength": 1}
          },
          "DefaultIndex": {"type": "integer", "minimum": 0},
          "ResetOnInit": {"type": "boolean"}
        }
      }
    },
    "Actions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["PowerHint", "Node", "Duration", "Value"],
        "additionalProperties": false,
        "properties": {
          "PowerHint": {"type": "string", "minLength": 1},
          "Node": {"type": "string", "minLength": 1},
          "Duration": {"type": "integer", "minimum": 0},
          "Value": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var engineSchema = jsonschema.MustCompileString("engine-config.schema.json", configSchema)

// NodeConfig declares one writable tuning node. Values are ordered from
// most to least aggressive, so the winning request is the lowest live
// index.
type NodeConfig struct {
	Name         string   `json:"Name"`
	Path         string   `json:"Path"`
	Values       []string `json:"Values"`
	DefaultIndex *int     `json:"DefaultIndex,omitempty"`
	ResetOnInit  bool     `json:"ResetOnInit,omitempty"`
}

// defaultIndex resolves the configured default, falling back to the least
// aggressive value.
func (n *NodeConfig) defaultIndex() int {
	if n.DefaultIndex != nil {
		return *n.DefaultIndex
	}
	return len(n.Values) - 1
}

// ActionConfig binds a power hint to one value on one node. Duration is in
// milliseconds; zero keeps the request up until the hint ends.
type ActionConfig struct {
	PowerHint string `json:"PowerHint"`
	Node      string `json:"Node"`
	Duration  int64  `json:"Duration"`
	Value     string `json:"Value"`
}

// Config is a decoded engine configuration.
type Config struct {
	Nodes   []NodeConfig   `json:"Nodes"`
	Actions []ActionConfig `json:"Actions"`
}

// LoadConfig reads and parses an engine config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("engine config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig validates raw JSON against the embedded schema, decodes it
// strictly and checks cross-references.
func ParseConfig(data []byte) (*Config, error) {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := engineSchema.Validate(instance); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	nodes := make(map[string]*NodeConfig, len(c.Nodes))
	paths := make(map[string]string, len(c.Nodes))
	for i := range c.Nodes {
		n := &c.Nodes[i]
		if _, dup := nodes[n.Name]; dup {
			return fmt.Errorf("duplicate node %q", n.Name)
		}
		if prev, dup := paths[n.Path]; dup {
			return fmt.Errorf("node %q reuses the path of node %q", n.Name, prev)
		}
		if n.DefaultIndex != nil && *n.DefaultIndex >= len(n.Values) {
			return fmt.Errorf("node %q: default index %d out of range (%d values)",
				n.Name, *n.DefaultIndex, len(n.Values))
		}
		nodes[n.Name] = n
		paths[n.Path] = n.Name
	}

	type binding struct{ hint, node string }
	seen := make(map[binding]struct{}, len(c.Actions))
	for i := range c.Actions {
		a := &c.Actions[i]
		n, ok := nodes[a.Node]
		if !ok {
			return fmt.Errorf("action %q references unknown node %q", a.PowerHint, a.Node)
		}
		if valueIndex(n, a.Value) < 0 {
			return fmt.Errorf("action %q: value %q not declared on node %q",
				a.PowerHint, a.Value, a.Node)
		}
		key := binding{a.PowerHint, a.Node}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("hint %q has multiple actions on node %q", a.PowerHint, a.Node)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// valueIndex returns the index of value in the node's list, or -1.
func valueIndex(n *NodeConfig, value string) int {
	for i, v := range n.Values {
		if v == value {
			return i
		}
	}
	return -1
}
