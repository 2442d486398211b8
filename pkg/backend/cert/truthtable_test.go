package cert_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aanthord/knuckledragger/pkg/backend/cert"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

func bvar(t *testing.T, tm *term.Interner, name string) *term.Term {
	t.Helper()
	v, err := tm.FreeVar(name, term.Bool())
	require.NoError(t, err)
	return v
}

func TestTruthTable_Check(t *testing.T) {
	tm := term.NewInterner()
	p := bvar(t, tm, "p")
	q := bvar(t, tm, "q")

	notP, err := tm.Not(p)
	require.NoError(t, err)
	lem, err := tm.Or(p, notP)
	require.NoError(t, err)
	pq, err := tm.And(p, q)
	require.NoError(t, err)
	imp, err := tm.Implies(pq, p)
	require.NoError(t, err)

	enc := func(vars ...string) []byte {
		c, err := cert.EncodeTruthTable(vars)
		require.NoError(t, err)
		return c
	}

	checker := cert.TruthTable{}
	assert.Equal(t, cert.SchemeTruthTable, checker.Scheme())

	tests := []struct {
		name    string
		hyps    []*term.Term
		concl   *term.Term
		cert    []byte
		wantErr string
	}{
		{name: "excluded middle", concl: lem, cert: enc("p")},
		{name: "conjunction elimination", concl: imp, cert: enc("p", "q")},
		{name: "hypotheses restrict rows", hyps: []*term.Term{pq}, concl: q, cert: enc("p", "q")},
		{name: "invalid claim rejected", concl: p, cert: enc("p"), wantErr: "fails under assignment"},
		{name: "uncovered variable rejected", concl: lem, cert: enc(), wantErr: "does not cover"},
		{name: "garbage certificate rejected", concl: lem, cert: []byte("{"), wantErr: "malformed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := checker.Check(tm, tc.hyps, tc.concl, tc.cert)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}

	t.Run("non-boolean variable rejected", func(t *testing.T) {
		x, err := tm.FreeVar("x", term.Int())
		require.NoError(t, err)
		eq, err := tm.Eq(x, x)
		require.NoError(t, err)
		err = checker.Check(tm, nil, eq, enc("x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "want Bool")
	})
}

func TestEvalBool(t *testing.T) {
	tm := term.NewInterner()
	p := bvar(t, tm, "p")
	q := bvar(t, tm, "q")

	ite, err := tm.Ite(p, q, tm.False())
	require.NoError(t, err)

	env := map[*term.Term]bool{p: true, q: false}
	got, err := cert.EvalBool(ite, env)
	require.NoError(t, err)
	assert.False(t, got)

	env[q] = true
	got, err = cert.EvalBool(ite, env)
	require.NoError(t, err)
	assert.True(t, got)

	t.Run("non-propositional term rejected", func(t *testing.T) {
		sum := tm.IntLit(1)
		lt, err := tm.Lt(sum, sum)
		require.NoError(t, err)
		_, err = cert.EvalBool(lt, env)
		assert.Error(t, err)
	})

	t.Run("unassigned variable rejected", func(t *testing.T) {
		r := bvar(t, tm, "r")
		_, err := cert.EvalBool(r, env)
		assert.Error(t, err)
	})
}
