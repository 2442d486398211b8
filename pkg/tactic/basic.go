package tactic

import (
	"context"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/backend/cert"
	"github.com/Aanthord/knuckledragger/pkg/kernel"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// begin charges the budget and honors cancellation before a primitive
// tactic looks at its goal.
func begin(ctx context.Context, p *Prover, tac string, g *Goal) *Failure {
	if ctx.Err() != nil {
		return fail(tac, Timeout, g)
	}
	return p.charge(tac, g)
}

// Intro moves the antecedent of an implication into the hypotheses:
// G ?- a => b becomes G, a ?- b.
func Intro() Tactic {
	return func(ctx context.Context, p *Prover, g *Goal) (*Result, error) {
		if f := begin(ctx, p, "intro", g); f != nil {
			return nil, f
		}
		ant, cons, ok := kernel.DestImplies(g.Concl())
		if !ok {
			return nil, fail("intro", PreconditionUnmet, g)
		}
		return &Result{
			Subgoals: []*Goal{g.with(ant).sub(cons)},
			Justify: func(sub []*kernel.Theorem) (*kernel.Theorem, error) {
				return p.kern.Discharge(ant, sub[0])
			},
		}, nil
	}
}

// Split reduces G ?- a /\ b to G ?- a and G ?- b.
func Split() Tactic {
	return func(ctx context.Context, p *Prover, g *Goal) (*Result, error) {
		if f := begin(ctx, p, "split", g); f != nil {
			return nil, f
		}
		a, b, ok := kernel.DestConj(g.Concl())
		if !ok {
			return nil, fail("split", PreconditionUnmet, g)
		}
		return &Result{
			Subgoals: []*Goal{g.sub(a), g.sub(b)},
			Justify: func(sub []*kernel.Theorem) (*kernel.Theorem, error) {
				return p.kern.ConjIntro(sub[0], sub[1])
			},
		}, nil
	}
}

// Assumption closes a goal whose conclusion is a hypothesis, or a
// conjunct nested anywhere inside one; the nested case is discharged
// by a chain of conjunction eliminations.
func Assumption() Tactic {
	return func(ctx context.Context, p *Prover, g *Goal) (*Result, error) {
		if f := begin(ctx, p, "assumption", g); f != nil {
			return nil, f
		}
		for _, h := range g.Hyps() {
			path, ok := conjPath(h, g.Concl())
			if !ok {
				continue
			}
			th, err := p.kern.Assume(h)
			if err != nil {
				return nil, err
			}
			for _, dir := range path {
				if dir == 'L' {
					th, err = p.kern.ConjElimL(th)
				} else {
					th, err = p.kern.ConjElimR(th)
				}
				if err != nil {
					return nil, err
				}
			}
			return solved(th), nil
		}
		return nil, fail("assumption", PreconditionUnmet, g)
	}
}

// conjPath finds the elimination path from t down to target through
// conjunctions. Terms are interned, so the match is pointer equality.
func conjPath(t, target *term.Term) ([]byte, bool) {
	if t == target {
		return nil, true
	}
	a, b, ok := kernel.DestConj(t)
	if !ok {
		return nil, false
	}
	if path, ok := conjPath(a, target); ok {
		return append([]byte{'L'}, path...), true
	}
	if path, ok := conjPath(b, target); ok {
		return append([]byte{'R'}, path...), true
	}
	return nil, false
}

// Reflexivity closes G ?- t = t.
func Reflexivity() Tactic {
	return func(ctx context.Context, p *Prover, g *Goal) (*Result, error) {
		if f := begin(ctx, p, "reflexivity", g); f != nil {
			return nil, f
		}
		lhs, rhs, ok := kernel.DestEq(g.Concl())
		if !ok || lhs != rhs {
			return nil, fail("reflexivity", PreconditionUnmet, g)
		}
		th, err := p.kern.Refl(lhs)
		if err != nil {
			return nil, err
		}
		return solved(th), nil
	}
}

// propMaxVars bounds the truth-table enumeration; beyond it the goal
// belongs to an oracle.
const propMaxVars = 16

// PropDischarge decides purely propositional goals by exhaustive
// evaluation. Valid goals are admitted through the truth-table
// certificate checker; falsifiable goals fail with the witness.
func PropDischarge() Tactic {
	return func(ctx context.Context, p *Prover, g *Goal) (*Result, error) {
		if f := begin(ctx, p, "prop_discharge", g); f != nil {
			return nil, f
		}
		vars, ok := propVars(g)
		if !ok {
			return nil, fail("prop_discharge", PreconditionUnmet, g)
		}
		if model, err := falsify(g, vars); err != nil {
			return nil, &Failure{Reason: PreconditionUnmet, Tactic: "prop_discharge", Goal: g, Err: err}
		} else if model != nil {
			return nil, &Failure{
				Reason:  Counterexample,
				Tactic:  "prop_discharge",
				Goal:    g,
				Witness: model,
			}
		}
		names := make([]string, len(vars))
		for i, v := range vars {
			names[i] = v.Name()
		}
		enc, err := cert.EncodeTruthTable(names)
		if err != nil {
			return nil, err
		}
		th, err := p.kern.AdmitCertified(cert.TruthTable{}, "tactic/prop", g.Hyps(), g.Concl(), enc)
		if err != nil {
			return nil, err
		}
		return solved(th), nil
	}
}

// propVars collects the free variables of a goal and reports whether
// it lies in the supported propositional fragment.
func propVars(g *Goal) ([]*term.Term, bool) {
	seen := map[*term.Term]bool{}
	var vars []*term.Term
	add := func(t *term.Term) bool {
		for _, v := range term.FreeVars(t) {
			if v.Sort() != term.Bool() {
				return false
			}
			if !seen[v] {
				seen[v] = true
				vars = append(vars, v)
			}
		}
		return true
	}
	if !add(g.Concl()) {
		return nil, false
	}
	for _, h := range g.Hyps() {
		if !add(h) {
			return nil, false
		}
	}
	if len(vars) > propMaxVars {
		return nil, false
	}
	return vars, true
}

// falsify searches the full assignment space for a row where every
// hypothesis holds and the conclusion does not.
func falsify(g *Goal, vars []*term.Term) (*backend.Model, error) {
	env := make(map[*term.Term]bool, len(vars))
	for mask := 0; mask < 1<<len(vars); mask++ {
		for i, v := range vars {
			env[v] = mask&(1<<i) != 0
		}
		vacuous := false
		for _, h := range g.Hyps() {
			hv, err := cert.EvalBool(h, env)
			if err != nil {
				return nil, err
			}
			if !hv {
				vacuous = true
				break
			}
		}
		if vacuous {
			continue
		}
		cv, err := cert.EvalBool(g.Concl(), env)
		if err != nil {
			return nil, err
		}
		if !cv {
			m := &backend.Model{}
			for _, v := range vars {
				val := "false"
				if env[v] {
					val = "true"
				}
				m.Assignments = append(m.Assignments, backend.Assignment{
					Name:  v.Name(),
					Sort:  v.Sort().String(),
					Value: val,
				})
			}
			return m, nil
		}
	}
	return nil, nil
}
