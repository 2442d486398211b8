package bv

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

func TestTranslate_Netlist(t *testing.T) {
	tm := term.NewInterner()
	bv8, err := term.BitVec(8)
	require.NoError(t, err)
	a, err := tm.FreeVar("a", bv8)
	require.NoError(t, err)
	b, err := tm.FreeVar("b", bv8)
	require.NoError(t, err)

	ab, err := tm.BVAdd(a, b)
	require.NoError(t, err)
	ba, err := tm.BVAdd(b, a)
	require.NoError(t, err)
	goal, err := tm.Eq(ab, ba)
	require.NoError(t, err)

	job, err := Translate("btormc", nil, goal)
	require.NoError(t, err)

	text := string(job.Input)
	assert.Contains(t, text, "sort bitvec 1\n")
	assert.Contains(t, text, "sort bitvec 8\n")
	assert.Contains(t, text, "input")
	assert.Contains(t, text, "add")
	assert.Contains(t, text, "eq")
	assert.Contains(t, text, "bad")
	assert.Len(t, job.FreeVars, 2)

	// the bad node is the last line and references the negated goal
	lines := nonEmptyLines(text)
	last := lines[len(lines)-1]
	assert.Contains(t, last, " bad ")
}

func TestTranslate_SharedSubtermsReuseNodes(t *testing.T) {
	tm := term.NewInterner()
	bv4, err := term.BitVec(4)
	require.NoError(t, err)
	x, err := tm.FreeVar("x", bv4)
	require.NoError(t, err)
	xx, err := tm.BVXor(x, x)
	require.NoError(t, err)
	zero, err := tm.BVLit(big.NewInt(0), 4)
	require.NoError(t, err)
	goal, err := tm.Eq(xx, zero)
	require.NoError(t, err)

	job, err := Translate("btormc", nil, goal)
	require.NoError(t, err)

	inputs := 0
	for _, line := range nonEmptyLines(string(job.Input)) {
		if strings.Contains(line, " input ") {
			inputs++
		}
	}
	assert.Equal(t, 1, inputs, "x occurs twice but is declared once")
	assert.Contains(t, string(job.Input), "const")
}

func TestTranslate_Hypotheses(t *testing.T) {
	tm := term.NewInterner()
	p, err := tm.FreeVar("p", term.Bool())
	require.NoError(t, err)
	q, err := tm.FreeVar("q", term.Bool())
	require.NoError(t, err)
	pq, err := tm.And(p, q)
	require.NoError(t, err)

	job, err := Translate("btormc", []*term.Term{pq}, p)
	require.NoError(t, err)
	text := string(job.Input)
	assert.Contains(t, text, "not")
	assert.Contains(t, text, "and")
}

func TestTranslate_Untranslatable(t *testing.T) {
	tm := term.NewInterner()

	t.Run("integer sort", func(t *testing.T) {
		x, err := tm.FreeVar("x", term.Int())
		require.NoError(t, err)
		eq, err := tm.Eq(x, x)
		require.NoError(t, err)
		_, err = Translate("btormc", nil, eq)
		require.Error(t, err)
		assert.True(t, backend.IsUntranslatable(err))
	})

	t.Run("quantifier", func(t *testing.T) {
		p, err := tm.FreeVar("p", term.Bool())
		require.NoError(t, err)
		all, err := tm.Binder(term.Forall, []*term.Term{p}, p)
		require.NoError(t, err)
		_, err = Translate("btormc", nil, all)
		require.Error(t, err)
		assert.True(t, backend.IsUntranslatable(err))
	})
}

func TestParseOutput_Witness(t *testing.T) {
	out := `sat
b0
#0
@0
1 00001010 a@0
2 00000001 b@0
.
`
	got, err := parseOutput([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "sat", got.status)
	require.Len(t, got.witness, 2)
	assert.Equal(t, witnessEntry{name: "a", value: "00001010"}, got.witness[0])
	assert.Equal(t, witnessEntry{name: "b", value: "00000001"}, got.witness[1])
}

func TestParseOutput_Statuses(t *testing.T) {
	t.Run("unsat", func(t *testing.T) {
		got, err := parseOutput([]byte("unsat\n"))
		require.NoError(t, err)
		assert.Equal(t, "unsat", got.status)
		assert.Empty(t, got.witness)
	})
	t.Run("comments ignored", func(t *testing.T) {
		got, err := parseOutput([]byte("; btormc 3.2\nunsat\n"))
		require.NoError(t, err)
		assert.Equal(t, "unsat", got.status)
	})
	t.Run("no answer", func(t *testing.T) {
		_, err := parseOutput([]byte("segmentation fault\n"))
		assert.Error(t, err)
	})
}

func TestBuildModel(t *testing.T) {
	tm := term.NewInterner()
	bv8, err := term.BitVec(8)
	require.NoError(t, err)
	a, err := tm.FreeVar("a", bv8)
	require.NoError(t, err)
	p, err := tm.FreeVar("p", term.Bool())
	require.NoError(t, err)
	job := &backend.Job{FreeVars: []*term.Term{a, p}}

	m := buildModel([]witnessEntry{
		{name: "a", value: "00001010"},
		{name: "p", value: "1"},
		{name: "ghost", value: "0"},
	}, job)

	require.Len(t, m.Assignments, 3)
	assert.Equal(t, "#b00001010", m.Assignments[0].Value)
	assert.Equal(t, "true", m.Assignments[1].Value)
	assert.Equal(t, "#b0", m.Assignments[2].Value, "unresolved names keep raw bits")
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
