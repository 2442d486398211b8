package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aanthord/knuckledragger/pkg/config"
)

const sampleRegistry = `
oracles:
  - id: z3
    kind: smt
    command: z3
    args: ["-in"]
    timeout_ms: 5000
    trusted: true
    engine: z3
    engine_version: ">= 4.12"
  - id: egg
    kind: eqsat
    command: egg-cli
    rate_per_sec: 2.5
  - id: algebra
    kind: algebra
  - id: sandbox
    kind: wasm
    module: /opt/oracles/prop.wasm
    memory_limit_bytes: 1048576
`

func TestParseRegistry(t *testing.T) {
	reg, err := config.ParseRegistry([]byte(sampleRegistry))
	require.NoError(t, err)
	require.Len(t, reg.Oracles, 4)

	z3 := reg.Oracles[0]
	assert.Equal(t, "smt", z3.Kind)
	assert.Equal(t, []string{"-in"}, z3.Args)
	assert.Equal(t, 5*time.Second, z3.Timeout(10*time.Second))
	assert.True(t, z3.Trusted)

	egg := reg.Oracles[1]
	assert.Equal(t, 10*time.Second, egg.Timeout(10*time.Second), "no timeout_ms falls back")
	assert.InDelta(t, 2.5, egg.RatePerSec, 1e-9)

	assert.Equal(t, []string{"z3"}, reg.TrustedIDs())
	assert.Equal(t, []string{"z3", "egg", "algebra", "sandbox"}, reg.PriorityOrder())
}

func TestParseRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown kind",
			yaml:    "oracles:\n  - id: x\n    kind: prolog\n    command: swipl\n",
			wantErr: "schema validation",
		},
		{
			name:    "unknown field",
			yaml:    "oracles:\n  - id: x\n    kind: smt\n    command: z3\n    shell: true\n",
			wantErr: "schema validation",
		},
		{
			name:    "missing id",
			yaml:    "oracles:\n  - kind: smt\n    command: z3\n",
			wantErr: "schema validation",
		},
		{
			name:    "zero rate",
			yaml:    "oracles:\n  - id: x\n    kind: smt\n    command: z3\n    rate_per_sec: 0\n",
			wantErr: "schema validation",
		},
		{
			name:    "duplicate id",
			yaml:    "oracles:\n  - id: x\n    kind: smt\n    command: z3\n  - id: x\n    kind: algebra\n",
			wantErr: "duplicate oracle id",
		},
		{
			name:    "process oracle without command",
			yaml:    "oracles:\n  - id: x\n    kind: smt\n",
			wantErr: "needs a command",
		},
		{
			name:    "wasm oracle without module",
			yaml:    "oracles:\n  - id: x\n    kind: wasm\n",
			wantErr: "needs a module",
		},
		{
			name:    "bad semver constraint",
			yaml:    "oracles:\n  - id: x\n    kind: smt\n    command: z3\n    engine: z3\n    engine_version: latest-and-greatest\n",
			wantErr: "engine_version",
		},
		{
			name:    "not yaml",
			yaml:    "{{{",
			wantErr: "parse registry",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.ParseRegistry([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oracles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRegistry), 0o644))

	reg, err := config.LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, reg.Oracles, 4)

	_, err = config.LoadRegistry(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestCheckEngines(t *testing.T) {
	reg, err := config.ParseRegistry([]byte(sampleRegistry))
	require.NoError(t, err)

	t.Run("satisfied", func(t *testing.T) {
		assert.NoError(t, reg.CheckEngines(map[string]string{"z3": "4.13.0"}))
	})
	t.Run("too old", func(t *testing.T) {
		err := reg.CheckEngines(map[string]string{"z3": "4.8.17"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "needs z3")
	})
	t.Run("not installed", func(t *testing.T) {
		err := reg.CheckEngines(map[string]string{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not installed")
	})
	t.Run("unparsable version", func(t *testing.T) {
		err := reg.CheckEngines(map[string]string{"z3": "trunk"})
		assert.Error(t, err)
	})
}
