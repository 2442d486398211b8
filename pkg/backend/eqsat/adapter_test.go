package eqsat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/backend/cert"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

func TestTranslate_RuleAndCheckLines(t *testing.T) {
	tm := term.NewInterner()
	a := NewAdapter("egg", "egg-cli", nil, 0)

	x, err := tm.FreeVar("x", term.Int())
	require.NoError(t, err)
	y, err := tm.FreeVar("y", term.Int())
	require.NoError(t, err)
	xy, err := tm.Add(x, y)
	require.NoError(t, err)
	yx, err := tm.Add(y, x)
	require.NoError(t, err)
	comm, err := tm.Eq(xy, yx)
	require.NoError(t, err)
	goal, err := tm.Eq(yx, xy)
	require.NoError(t, err)

	job, err := a.Translate([]*term.Term{comm}, goal)
	require.NoError(t, err)

	input := string(job.Input)
	assert.Contains(t, input, "(rule (+ x y) (+ y x))\n")
	assert.Contains(t, input, "(check (+ y x) (+ x y))\n")
	assert.Len(t, job.FreeVars, 2)
}

// A forall hypothesis becomes a schematic rule: its bound variables
// render as binder references, distinct from every free variable, so
// the engine cannot confuse a named constant with a rule slot.
func TestTranslate_QuantifiedRule(t *testing.T) {
	tm := term.NewInterner()
	adapter := NewAdapter("egg", "egg-cli", nil, 0)

	a, err := tm.FreeVar("a", term.Int())
	require.NoError(t, err)
	b, err := tm.FreeVar("b", term.Int())
	require.NoError(t, err)
	ab, err := tm.Add(a, b)
	require.NoError(t, err)
	ba, err := tm.Add(b, a)
	require.NoError(t, err)
	body, err := tm.Eq(ab, ba)
	require.NoError(t, err)
	comm, err := tm.Binder(term.Forall, []*term.Term{a, b}, body)
	require.NoError(t, err)

	x, err := tm.FreeVar("x", term.Int())
	require.NoError(t, err)
	y, err := tm.FreeVar("y", term.Int())
	require.NoError(t, err)
	xy, err := tm.Add(x, y)
	require.NoError(t, err)
	yx, err := tm.Add(y, x)
	require.NoError(t, err)
	goal, err := tm.Eq(xy, yx)
	require.NoError(t, err)

	job, err := adapter.Translate([]*term.Term{comm}, goal)
	require.NoError(t, err)

	input := string(job.Input)
	assert.Contains(t, input, "(rule (+ #0.0 #0.1) (+ #0.1 #0.0))\n")
	assert.Contains(t, input, "(check (+ x y) (+ y x))\n")
	assert.Len(t, job.FreeVars, 2)
}

func TestTranslate_Untranslatable(t *testing.T) {
	tm := term.NewInterner()
	a := NewAdapter("egg", "egg-cli", nil, 0)

	x, err := tm.FreeVar("x", term.Int())
	require.NoError(t, err)
	eqXX, err := tm.Eq(x, x)
	require.NoError(t, err)

	t.Run("non-equational goal", func(t *testing.T) {
		lt, err := tm.Lt(x, x)
		require.NoError(t, err)
		_, err = a.Translate(nil, lt)
		require.Error(t, err)
		assert.True(t, backend.IsUntranslatable(err))
	})

	t.Run("non-equational hypothesis", func(t *testing.T) {
		lt, err := tm.Lt(x, x)
		require.NoError(t, err)
		_, err = a.Translate([]*term.Term{lt}, eqXX)
		require.Error(t, err)
		assert.True(t, backend.IsUntranslatable(err))
	})

	t.Run("quantified goal", func(t *testing.T) {
		all, err := tm.Binder(term.Forall, []*term.Term{x}, eqXX)
		require.NoError(t, err)
		_, err = a.Translate(nil, all)
		require.Error(t, err)
		assert.True(t, backend.IsUntranslatable(err))
	})

	t.Run("binder nested in an equation", func(t *testing.T) {
		all, err := tm.Binder(term.Forall, []*term.Term{x}, eqXX)
		require.NoError(t, err)
		eqB, err := tm.Eq(tm.True(), all)
		require.NoError(t, err)
		_, err = a.Translate(nil, eqB)
		require.Error(t, err)
		assert.True(t, backend.IsUntranslatable(err))
	})
}

func TestParseOutput(t *testing.T) {
	t.Run("proved with trace", func(t *testing.T) {
		out := "proved\n(step 0 lr 0)\n(step 1 rl 0 1)\n(step 0 lr)\n"
		status, steps, err := parseOutput([]byte(out))
		require.NoError(t, err)
		assert.Equal(t, "proved", status)
		require.Len(t, steps, 3)
		assert.Equal(t, cert.RewriteStep{Rule: 0, Dir: "lr", Path: []int{0}}, steps[0])
		assert.Equal(t, cert.RewriteStep{Rule: 1, Dir: "rl", Path: []int{0, 1}}, steps[1])
		assert.Equal(t, cert.RewriteStep{Rule: 0, Dir: "lr"}, steps[2])
	})

	t.Run("unknown", func(t *testing.T) {
		status, steps, err := parseOutput([]byte("unknown\n"))
		require.NoError(t, err)
		assert.Equal(t, "unknown", status)
		assert.Empty(t, steps)
	})

	t.Run("timeout", func(t *testing.T) {
		status, _, err := parseOutput([]byte("timeout\n"))
		require.NoError(t, err)
		assert.Equal(t, "timeout", status)
	})

	t.Run("proved with no trace", func(t *testing.T) {
		_, _, err := parseOutput([]byte("proved\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no trace")
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := parseOutput([]byte("panicked at src/main.rs"))
		assert.Error(t, err)
	})
}

func TestParseStep_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "bad direction", line: "(step 0 up 1)"},
		{name: "non-numeric rule", line: "(step a lr 1)"},
		{name: "non-numeric path", line: "(step 0 lr one)"},
		{name: "missing fields", line: "(step 0)"},
		{name: "not a step", line: "step 0 lr 1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseStep(tc.line)
			assert.Error(t, err)
		})
	}
}
