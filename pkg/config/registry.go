package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Registry is the declarative oracle fleet: which backends exist, how
// to run them, and what may be trusted. Declaration order is the
// dispatcher's tie-break priority unless overridden by configuration.
type Registry struct {
	Oracles []OracleSpec `yaml:"oracles" json:"oracles"`
}

// OracleSpec declares one oracle backend.
type OracleSpec struct {
	ID   string `yaml:"id" json:"id"`
	Kind string `yaml:"kind" json:"kind"` // smt | fol | eqsat | bv | wasm | algebra

	// Command and Args run an external process oracle.
	Command string   `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Module is the wasm binary path for sandboxed oracles.
	Module           string `yaml:"module,omitempty" json:"module,omitempty"`
	MemoryLimitBytes int64  `yaml:"memory_limit_bytes,omitempty" json:"memory_limit_bytes,omitempty"`

	TimeoutMs int  `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
	Trusted   bool `yaml:"trusted,omitempty" json:"trusted,omitempty"`

	// RatePerSec throttles invocations of this oracle; zero means
	// unlimited.
	RatePerSec float64 `yaml:"rate_per_sec,omitempty" json:"rate_per_sec,omitempty"`

	// Engine and EngineVersion pin the underlying solver: the version
	// constraint is semver (e.g. ">= 4.12").
	Engine        string `yaml:"engine,omitempty" json:"engine,omitempty"`
	EngineVersion string `yaml:"engine_version,omitempty" json:"engine_version,omitempty"`
}

// Timeout returns the per-invocation timeout, falling back to def.
func (s *OracleSpec) Timeout(def time.Duration) time.Duration {
	if s.TimeoutMs > 0 {
		return time.Duration(s.TimeoutMs) * time.Millisecond
	}
	return def
}

const registrySchemaURL = "https://knuckledragger.schemas.local/oracles.schema.json"

// registrySchema is the JSON Schema every registry file must satisfy
// before any oracle is constructed. Fail-closed: an invalid registry
// loads nothing.
const registrySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["oracles"],
  "additionalProperties": false,
  "properties": {
    "oracles": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "kind"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "kind": {"enum": ["smt", "fol", "eqsat", "bv", "wasm", "algebra"]},
          "command": {"type": "string"},
          "args": {"type": "array", "items": {"type": "string"}},
          "module": {"type": "string"},
          "memory_limit_bytes": {"type": "integer", "minimum": 65536},
          "timeout_ms": {"type": "integer", "minimum": 1},
          "trusted": {"type": "boolean"},
          "rate_per_sec": {"type": "number", "exclusiveMinimum": 0},
          "engine": {"type": "string"},
          "engine_version": {"type": "string"}
        }
      }
    }
  }
}`

var compiledRegistrySchema = mustCompileRegistrySchema()

func mustCompileRegistrySchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(registrySchemaURL, strings.NewReader(registrySchema)); err != nil {
		panic(err)
	}
	return c.MustCompile(registrySchemaURL)
}

// LoadRegistry reads, schema-validates, and decodes an oracle registry
// YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry validates and decodes registry YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	// the schema validator wants encoding/json value shapes
	jsonBytes, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	var inst any
	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.UseNumber()
	if err := dec.Decode(&inst); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if err := compiledRegistrySchema.Validate(inst); err != nil {
		return nil, fmt.Errorf("registry schema validation failed: %w", err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	seen := map[string]bool{}
	for _, o := range reg.Oracles {
		if seen[o.ID] {
			return nil, fmt.Errorf("registry: duplicate oracle id %q", o.ID)
		}
		seen[o.ID] = true
		if err := o.check(); err != nil {
			return nil, err
		}
	}
	return &reg, nil
}

// check enforces the per-kind requirements the schema cannot express.
func (s *OracleSpec) check() error {
	switch s.Kind {
	case "wasm":
		if s.Module == "" {
			return fmt.Errorf("registry: oracle %q needs a module path", s.ID)
		}
	case "algebra":
		// in-process, nothing to run
	default:
		if s.Command == "" {
			return fmt.Errorf("registry: oracle %q needs a command", s.ID)
		}
	}
	if s.EngineVersion != "" {
		if _, err := semver.NewConstraint(s.EngineVersion); err != nil {
			return fmt.Errorf("registry: oracle %q engine_version: %w", s.ID, err)
		}
	}
	return nil
}

// TrustedIDs lists the oracles the registry marks trusted.
func (r *Registry) TrustedIDs() []string {
	var out []string
	for _, o := range r.Oracles {
		if o.Trusted {
			out = append(out, o.ID)
		}
	}
	return out
}

// PriorityOrder is the declaration order of oracle ids.
func (r *Registry) PriorityOrder() []string {
	out := make([]string, len(r.Oracles))
	for i, o := range r.Oracles {
		out[i] = o.ID
	}
	return out
}

// CheckEngines verifies installed solver versions against the
// registry's semver constraints. installed maps engine name to its
// reported version.
func (r *Registry) CheckEngines(installed map[string]string) error {
	for _, o := range r.Oracles {
		if o.Engine == "" || o.EngineVersion == "" {
			continue
		}
		have, ok := installed[o.Engine]
		if !ok {
			return fmt.Errorf("registry: oracle %q needs engine %s, not installed", o.ID, o.Engine)
		}
		v, err := semver.NewVersion(have)
		if err != nil {
			return fmt.Errorf("registry: engine %s reports unparsable version %q: %w", o.Engine, have, err)
		}
		c, err := semver.NewConstraint(o.EngineVersion)
		if err != nil {
			return fmt.Errorf("registry: oracle %q engine_version: %w", o.ID, err)
		}
		if !c.Check(v) {
			return fmt.Errorf("registry: oracle %q needs %s %s, have %s", o.ID, o.Engine, o.EngineVersion, have)
		}
	}
	return nil
}
