package tactic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/kernel"
	"github.com/Aanthord/knuckledragger/pkg/tactic"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

type fixture struct {
	tm   *term.Interner
	kern *kernel.Kernel
	p    *tactic.Prover
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tm := term.NewInterner()
	kern := kernel.New(tm)
	return &fixture{tm: tm, kern: kern, p: tactic.NewProver(kern, tactic.Budget{})}
}

func (f *fixture) bool(t *testing.T, name string) *term.Term {
	t.Helper()
	v, err := f.tm.FreeVar(name, term.Bool())
	require.NoError(t, err)
	return v
}

func (f *fixture) goal(t *testing.T, hyps []*term.Term, concl *term.Term) *tactic.Goal {
	t.Helper()
	g, err := tactic.NewGoal(hyps, concl)
	require.NoError(t, err)
	return g
}

func TestIntroThenAssumption(t *testing.T) {
	f := newFixture(t)
	p := f.bool(t, "p")
	q := f.bool(t, "q")
	pq, err := f.tm.And(p, q)
	require.NoError(t, err)
	imp, err := f.tm.Implies(pq, q)
	require.NoError(t, err)

	g := f.goal(t, nil, imp)
	th, err := tactic.Prove(context.Background(), f.p, g, tactic.Then(tactic.Intro(), tactic.Assumption()))
	require.NoError(t, err)
	assert.Same(t, imp, th.Concl())
	assert.Empty(t, th.Hyps())
	assert.NoError(t, f.kern.Recheck(th))
}

func TestSplit(t *testing.T) {
	f := newFixture(t)
	p := f.bool(t, "p")
	q := f.bool(t, "q")
	pq, err := f.tm.And(p, q)
	require.NoError(t, err)

	g := f.goal(t, []*term.Term{p, q}, pq)
	th, err := tactic.Prove(context.Background(), f.p, g,
		tactic.Then(tactic.Split(), tactic.Assumption()))
	require.NoError(t, err)
	assert.Same(t, pq, th.Concl())
	assert.Len(t, th.Hyps(), 2)
}

func TestThenSplit_PerSubgoalTactics(t *testing.T) {
	f := newFixture(t)
	p := f.bool(t, "p")
	x, err := f.tm.FreeVar("x", term.Int())
	require.NoError(t, err)
	eq, err := f.tm.Eq(x, x)
	require.NoError(t, err)
	conj, err := f.tm.And(p, eq)
	require.NoError(t, err)

	g := f.goal(t, []*term.Term{p}, conj)
	th, err := tactic.Prove(context.Background(), f.p, g,
		tactic.ThenSplit(tactic.Split(), tactic.Assumption(), tactic.Reflexivity()))
	require.NoError(t, err)
	assert.Same(t, conj, th.Concl())
}

func TestThenSplit_CountMismatch(t *testing.T) {
	f := newFixture(t)
	p := f.bool(t, "p")
	q := f.bool(t, "q")
	pq, err := f.tm.And(p, q)
	require.NoError(t, err)

	g := f.goal(t, []*term.Term{p, q}, pq)
	_, err = tactic.Prove(context.Background(), f.p, g,
		tactic.ThenSplit(tactic.Split(), tactic.Assumption()))
	var fl *tactic.Failure
	require.ErrorAs(t, err, &fl)
	assert.Equal(t, tactic.PreconditionUnmet, fl.Reason)
}

func TestAllGoals(t *testing.T) {
	f := newFixture(t)
	p := f.bool(t, "p")
	x, err := f.tm.FreeVar("x", term.Int())
	require.NoError(t, err)
	eq, err := f.tm.Eq(x, x)
	require.NoError(t, err)
	conj, err := f.tm.And(p, eq)
	require.NoError(t, err)

	g := f.goal(t, []*term.Term{p}, conj)
	all := tactic.AllGoals(tactic.Split(), tactic.Assumption())

	t.Run("unreduced subgoals stay open", func(t *testing.T) {
		res, err := all(context.Background(), f.p, g)
		require.NoError(t, err)
		require.Len(t, res.Subgoals, 1)
		assert.Same(t, eq, res.Subgoals[0].Concl())
	})

	t.Run("composes to a full proof", func(t *testing.T) {
		th, err := tactic.Prove(context.Background(), f.p, g,
			tactic.Then(all, tactic.Reflexivity()))
		require.NoError(t, err)
		assert.Same(t, conj, th.Concl())
	})
}

func TestAnyGoal(t *testing.T) {
	f := newFixture(t)
	p := f.bool(t, "p")
	q := f.bool(t, "q")
	pq, err := f.tm.And(p, q)
	require.NoError(t, err)

	t.Run("closes what it can", func(t *testing.T) {
		g := f.goal(t, []*term.Term{p}, pq)
		res, err := tactic.AnyGoal(tactic.Split(), tactic.Assumption())(
			context.Background(), f.p, g)
		require.NoError(t, err)
		require.Len(t, res.Subgoals, 1)
		assert.Same(t, q, res.Subgoals[0].Concl())
	})

	t.Run("fails when no subgoal moves", func(t *testing.T) {
		g := f.goal(t, nil, pq)
		_, err := tactic.AnyGoal(tactic.Split(), tactic.Assumption())(
			context.Background(), f.p, g)
		var fl *tactic.Failure
		require.ErrorAs(t, err, &fl)
	})
}

func TestReflexivity(t *testing.T) {
	f := newFixture(t)
	x, err := f.tm.FreeVar("x", term.Int())
	require.NoError(t, err)
	y, err := f.tm.FreeVar("y", term.Int())
	require.NoError(t, err)

	t.Run("closes t = t", func(t *testing.T) {
		eq, err := f.tm.Eq(x, x)
		require.NoError(t, err)
		th, err := tactic.Prove(context.Background(), f.p, f.goal(t, nil, eq), tactic.Reflexivity())
		require.NoError(t, err)
		assert.Same(t, eq, th.Concl())
	})

	t.Run("refuses distinct sides", func(t *testing.T) {
		eq, err := f.tm.Eq(x, y)
		require.NoError(t, err)
		_, err = tactic.Prove(context.Background(), f.p, f.goal(t, nil, eq), tactic.Reflexivity())
		var fl *tactic.Failure
		require.ErrorAs(t, err, &fl)
		assert.Equal(t, tactic.PreconditionUnmet, fl.Reason)
	})
}

func TestPropDischarge(t *testing.T) {
	f := newFixture(t)
	p := f.bool(t, "p")
	q := f.bool(t, "q")

	t.Run("proves a tautology with a checked certificate", func(t *testing.T) {
		notP, err := f.tm.Not(p)
		require.NoError(t, err)
		lem, err := f.tm.Or(p, notP)
		require.NoError(t, err)
		th, err := tactic.Prove(context.Background(), f.p, f.goal(t, nil, lem), tactic.PropDischarge())
		require.NoError(t, err)
		prov := th.Provenance()
		assert.Equal(t, "tactic/prop", prov.OracleID)
		assert.Equal(t, "truth-table", prov.Cert)
	})

	t.Run("reports a counterexample with a witness", func(t *testing.T) {
		imp, err := f.tm.Implies(p, q)
		require.NoError(t, err)
		_, err = tactic.Prove(context.Background(), f.p, f.goal(t, nil, imp), tactic.PropDischarge())
		var fl *tactic.Failure
		require.ErrorAs(t, err, &fl)
		assert.Equal(t, tactic.Counterexample, fl.Reason)
		require.NotNil(t, fl.Witness)
		assert.NotEmpty(t, fl.Witness.Assignments)
	})

	t.Run("refuses non-propositional goals", func(t *testing.T) {
		x, err := f.tm.FreeVar("x", term.Int())
		require.NoError(t, err)
		eq, err := f.tm.Eq(x, x)
		require.NoError(t, err)
		_, err = tactic.Prove(context.Background(), f.p, f.goal(t, nil, eq), tactic.PropDischarge())
		var fl *tactic.Failure
		require.ErrorAs(t, err, &fl)
		assert.Equal(t, tactic.PreconditionUnmet, fl.Reason)
	})
}

func TestFirst_CounterexampleShortCircuits(t *testing.T) {
	f := newFixture(t)
	p := f.bool(t, "p")
	q := f.bool(t, "q")
	imp, err := f.tm.Implies(p, q)
	require.NoError(t, err)

	// assumption would fail inconclusively after the counterexample;
	// First must not reach it
	g := f.goal(t, nil, imp)
	_, err = tactic.Prove(context.Background(), f.p, g,
		tactic.First(tactic.PropDischarge(), tactic.Assumption()))
	var fl *tactic.Failure
	require.ErrorAs(t, err, &fl)
	assert.Equal(t, tactic.Counterexample, fl.Reason)
}

func TestRepeatAndAuto(t *testing.T) {
	f := newFixture(t)
	p := f.bool(t, "p")
	q := f.bool(t, "q")
	r := f.bool(t, "r")

	// p => q => r => (p /\ (q /\ r))
	qr, err := f.tm.And(q, r)
	require.NoError(t, err)
	body, err := f.tm.And(p, qr)
	require.NoError(t, err)
	i3, err := f.tm.Implies(r, body)
	require.NoError(t, err)
	i2, err := f.tm.Implies(q, i3)
	require.NoError(t, err)
	i1, err := f.tm.Implies(p, i2)
	require.NoError(t, err)

	g := f.goal(t, nil, i1)
	th, err := tactic.Prove(context.Background(), f.p, g, tactic.Auto(nil))
	require.NoError(t, err)
	assert.Same(t, i1, th.Concl())
	assert.Empty(t, th.Hyps())
	assert.NoError(t, f.kern.Recheck(th))
}

func TestBudgetExhaustion(t *testing.T) {
	f := newFixture(t)
	p := tactic.NewProver(f.kern, tactic.Budget{MaxSteps: 2})
	pp := f.bool(t, "p")
	imp, err := f.tm.Implies(pp, pp)
	require.NoError(t, err)
	i2, err := f.tm.Implies(pp, imp)
	require.NoError(t, err)
	i3, err := f.tm.Implies(pp, i2)
	require.NoError(t, err)

	g := f.goal(t, nil, i3)
	_, err = tactic.Prove(context.Background(), p, g,
		tactic.Then(tactic.Intro(), tactic.Intro(), tactic.Intro(), tactic.Assumption()))
	var fl *tactic.Failure
	require.ErrorAs(t, err, &fl)
	assert.Equal(t, tactic.Timeout, fl.Reason)
	assert.GreaterOrEqual(t, p.Steps(), 2)
}

func TestProve_LeftoverSubgoals(t *testing.T) {
	f := newFixture(t)
	p := f.bool(t, "p")
	g := f.goal(t, nil, p)
	_, err := tactic.Prove(context.Background(), f.p, g, tactic.ID())
	var fl *tactic.Failure
	require.ErrorAs(t, err, &fl)
	assert.Equal(t, tactic.PreconditionUnmet, fl.Reason)
	assert.Contains(t, fl.Error(), "unsolved")
}

func TestProve_RejectsExtraHypotheses(t *testing.T) {
	f := newFixture(t)
	p := f.bool(t, "p")
	g := f.goal(t, nil, p)

	// a tactic that "solves" the goal by assuming it leans on a
	// hypothesis the goal does not grant
	cheat := func(ctx context.Context, pr *tactic.Prover, g *tactic.Goal) (*tactic.Result, error) {
		th, err := f.kern.Assume(g.Concl())
		if err != nil {
			return nil, err
		}
		return &tactic.Result{Justify: func([]*kernel.Theorem) (*kernel.Theorem, error) {
			return th, nil
		}}, nil
	}
	_, err := tactic.Prove(context.Background(), f.p, g, cheat)
	var fl *tactic.Failure
	require.ErrorAs(t, err, &fl)
	assert.Contains(t, fl.Error(), "outside the goal")
}

func TestRun_StatusTaxonomy(t *testing.T) {
	f := newFixture(t)
	p := f.bool(t, "p")
	q := f.bool(t, "q")

	t.Run("proved", func(t *testing.T) {
		imp, err := f.tm.Implies(p, p)
		require.NoError(t, err)
		rep := tactic.Run(context.Background(), f.p, f.goal(t, nil, imp), tactic.Auto(nil))
		assert.Equal(t, tactic.StatusProved, rep.Status)
		require.NotNil(t, rep.Theorem)
	})

	t.Run("disproved", func(t *testing.T) {
		imp, err := f.tm.Implies(p, q)
		require.NoError(t, err)
		rep := tactic.Run(context.Background(), f.p, f.goal(t, nil, imp), tactic.Auto(nil))
		assert.Equal(t, tactic.StatusDisproved, rep.Status)
		require.NotNil(t, rep.Failure)
		assert.NotNil(t, rep.Failure.Witness)
	})

	t.Run("inconclusive", func(t *testing.T) {
		x, err := f.tm.FreeVar("x", term.Int())
		require.NoError(t, err)
		lt, err := f.tm.Lt(x, x)
		require.NoError(t, err)
		rep := tactic.Run(context.Background(), f.p, f.goal(t, nil, lt), tactic.Auto(nil))
		assert.Equal(t, tactic.StatusInconclusive, rep.Status)
	})
}

type fakeOracle struct {
	th *kernel.Theorem
	v  *backend.Verdict
}

func (o *fakeOracle) Prove(context.Context, []*term.Term, *term.Term) (*kernel.Theorem, *backend.Verdict, error) {
	return o.th, o.v, nil
}

func TestOracle(t *testing.T) {
	f := newFixture(t)
	x, err := f.tm.FreeVar("x", term.Int())
	require.NoError(t, err)
	lt, err := f.tm.Lt(x, x)
	require.NoError(t, err)
	g := f.goal(t, nil, lt)

	t.Run("theorem from the client closes the goal", func(t *testing.T) {
		le, err := f.tm.Le(x, x)
		require.NoError(t, err)
		gle := f.goal(t, nil, le)
		th, err := f.kern.AdmitTrusted(listPolicy{"z3"}, "z3", nil, le)
		require.NoError(t, err)
		got, err := tactic.Prove(context.Background(), f.p, gle, tactic.Oracle(&fakeOracle{th: th}))
		require.NoError(t, err)
		assert.Same(t, th, got)
	})

	t.Run("model becomes a counterexample", func(t *testing.T) {
		o := &fakeOracle{v: &backend.Verdict{Kind: backend.ModelFound, Model: &backend.Model{}}}
		_, err := tactic.Prove(context.Background(), f.p, g, tactic.Oracle(o))
		var fl *tactic.Failure
		require.ErrorAs(t, err, &fl)
		assert.Equal(t, tactic.Counterexample, fl.Reason)
	})

	t.Run("timeout verdict", func(t *testing.T) {
		o := &fakeOracle{v: &backend.Verdict{Kind: backend.TimedOut}}
		_, err := tactic.Prove(context.Background(), f.p, g, tactic.Oracle(o))
		var fl *tactic.Failure
		require.ErrorAs(t, err, &fl)
		assert.Equal(t, tactic.Timeout, fl.Reason)
	})

	t.Run("unknown verdict", func(t *testing.T) {
		o := &fakeOracle{v: &backend.Verdict{Kind: backend.Unknown}}
		_, err := tactic.Prove(context.Background(), f.p, g, tactic.Oracle(o))
		var fl *tactic.Failure
		require.ErrorAs(t, err, &fl)
		assert.Equal(t, tactic.NoOracleSucceeded, fl.Reason)
	})
}

type listPolicy []string

func (p listPolicy) Trusted(id string) bool {
	for _, x := range p {
		if x == id {
			return true
		}
	}
	return false
}
