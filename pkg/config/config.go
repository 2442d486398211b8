// Package config carries runtime configuration: process environment
// for the ambient knobs and a schema-validated YAML registry for the
// oracle fleet.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds prover configuration.
type Config struct {
	LogLevel string
	// RegistryPath locates the oracle registry YAML.
	RegistryPath string
	// TrustedOracles may accept bare Refuted verdicts without a
	// certificate. Empty by default: trust is always opt-in.
	TrustedOracles []string
	// OracleTimeout bounds a single oracle invocation.
	OracleTimeout time.Duration
	// SearchSteps caps tactic applications per proof search.
	SearchSteps int
	// SearchDeadline bounds wall time per proof search.
	SearchDeadline time.Duration
	// Priority breaks ties between simultaneous conclusive verdicts;
	// earlier wins. Oracles not listed rank after all listed ones.
	Priority []string
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("KDG_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	registry := os.Getenv("KDG_REGISTRY")
	if registry == "" {
		registry = "oracles.yaml"
	}

	return &Config{
		LogLevel:       logLevel,
		RegistryPath:   registry,
		TrustedOracles: splitList(os.Getenv("KDG_TRUSTED_ORACLES")),
		OracleTimeout:  durationEnv("KDG_ORACLE_TIMEOUT", 10*time.Second),
		SearchSteps:    intEnv("KDG_SEARCH_STEPS", 10000),
		SearchDeadline: durationEnv("KDG_SEARCH_DEADLINE", time.Minute),
		Priority:       splitList(os.Getenv("KDG_ORACLE_PRIORITY")),
	}
}

// Trusted reports whether an oracle may be believed without a
// certificate. Satisfies the kernel's trust policy interface.
func (c *Config) Trusted(oracleID string) bool {
	for _, id := range c.TrustedOracles {
		if id == oracleID {
			return true
		}
	}
	return false
}

// Rank returns the priority rank of an oracle, lower winning; unlisted
// oracles share the rank after the last listed one.
func (c *Config) Rank(oracleID string) int {
	for i, id := range c.Priority {
		if id == oracleID {
			return i
		}
	}
	return len(c.Priority)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func intEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
