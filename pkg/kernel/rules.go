package kernel

import (
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// Rule names as recorded in provenance and the proof log.
const (
	RuleAxiom       = "axiom"
	RuleAssume      = "assume"
	RuleRefl        = "refl"
	RuleSym         = "sym"
	RuleTrans       = "trans"
	RuleCong        = "cong"
	RuleModusPonens = "mp"
	RuleDischarge   = "discharge"
	RuleSubstEq     = "subst_eq"
	RuleSubstEqHyp  = "subst_eq_hyp"
	RuleBeta        = "beta"
	RuleInstantiate = "instantiate"
	RuleGeneralize  = "generalize"
	RuleConjIntro   = "conj_intro"
	RuleConjElimL   = "conj_elim_l"
	RuleConjElimR   = "conj_elim_r"
	RuleAdmit       = "admit_oracle"
)

// Axiom asserts p without proof. The provenance is explicitly flagged
// so audits can enumerate every trusted assertion in a session.
func (k *Kernel) Axiom(p *term.Term) (*Theorem, error) {
	if err := wantBool(RuleAxiom, p); err != nil {
		return nil, err
	}
	return k.mk(RuleAxiom, nil, p, Provenance{TermArgs: []*term.Term{p}}), nil
}

// Assume derives {p} |- p.
func (k *Kernel) Assume(p *term.Term) (*Theorem, error) {
	if err := wantBool(RuleAssume, p); err != nil {
		return nil, err
	}
	return k.mk(RuleAssume, []*term.Term{p}, p, Provenance{TermArgs: []*term.Term{p}}), nil
}

// Refl derives |- t = t.
func (k *Kernel) Refl(t *term.Term) (*Theorem, error) {
	if t == nil {
		return nil, kerr(RuleRefl, "nil term")
	}
	eq, err := k.tm.Eq(t, t)
	if err != nil {
		return nil, err
	}
	return k.mk(RuleRefl, nil, eq, Provenance{TermArgs: []*term.Term{t}}), nil
}

// Sym derives G |- b = a from G |- a = b.
func (k *Kernel) Sym(th *Theorem) (*Theorem, error) {
	a, b, err := destEq(RuleSym, th)
	if err != nil {
		return nil, err
	}
	eq, err := k.tm.Eq(b, a)
	if err != nil {
		return nil, err
	}
	return k.mk(RuleSym, th.hyps, eq, Provenance{Premises: []*Theorem{th}}), nil
}

// Trans derives G1,G2 |- a = c from G1 |- a = b and G2 |- b = c. The
// middle terms must be the identical node.
func (k *Kernel) Trans(th1, th2 *Theorem) (*Theorem, error) {
	a, b1, err := destEq(RuleTrans, th1)
	if err != nil {
		return nil, err
	}
	b2, c, err := destEq(RuleTrans, th2)
	if err != nil {
		return nil, err
	}
	if b1 != b2 {
		return nil, kerr(RuleTrans, "middle terms differ: %s vs %s", b1, b2)
	}
	eq, err := k.tm.Eq(a, c)
	if err != nil {
		return nil, err
	}
	return k.mk(RuleTrans, unionHyps(th1.hyps, th2.hyps), eq, Provenance{Premises: []*Theorem{th1, th2}}), nil
}

// Cong derives G* |- f(a1..an) = f(b1..bn) from per-argument equations
// Gi |- ai = bi. Both applications are sort-checked against f's
// signature.
func (k *Kernel) Cong(f *term.Symbol, ths ...*Theorem) (*Theorem, error) {
	if f == nil {
		return nil, kerr(RuleCong, "nil symbol")
	}
	if len(ths) != f.Arity() {
		return nil, kerr(RuleCong, "symbol %s has arity %d, got %d premises", f.Name(), f.Arity(), len(ths))
	}
	lhs := make([]*term.Term, len(ths))
	rhs := make([]*term.Term, len(ths))
	var hyps []*term.Term
	prem := make([]*Theorem, len(ths))
	for i, th := range ths {
		a, b, err := destEq(RuleCong, th)
		if err != nil {
			return nil, err
		}
		lhs[i], rhs[i] = a, b
		hyps = unionHyps(hyps, th.hyps)
		prem[i] = th
	}
	la, err := k.tm.App(f, lhs...)
	if err != nil {
		return nil, err
	}
	ra, err := k.tm.App(f, rhs...)
	if err != nil {
		return nil, err
	}
	eq, err := k.tm.Eq(la, ra)
	if err != nil {
		return nil, err
	}
	return k.mk(RuleCong, hyps, eq, Provenance{Premises: prem}), nil
}

// ModusPonens derives G1,G2 |- b from G1 |- a => b and G2 |- a. The
// antecedent must match the second premise's proposition exactly.
func (k *Kernel) ModusPonens(imp, ant *Theorem) (*Theorem, error) {
	if imp == nil || ant == nil {
		return nil, kerr(RuleModusPonens, "nil premise")
	}
	a, b, ok := DestImplies(imp.concl)
	if !ok {
		return nil, kerr(RuleModusPonens, "conclusion %s is not an implication", imp.concl)
	}
	if ant.concl != a {
		return nil, kerr(RuleModusPonens, "antecedent %s does not match premise %s", a, ant.concl)
	}
	return k.mk(RuleModusPonens, unionHyps(imp.hyps, ant.hyps), b, Provenance{Premises: []*Theorem{imp, ant}}), nil
}

// Discharge derives G \ {p} |- p => c from G |- c, moving hypothesis p
// into the conclusion. p need not occur in G.
func (k *Kernel) Discharge(p *term.Term, th *Theorem) (*Theorem, error) {
	if th == nil {
		return nil, kerr(RuleDischarge, "nil premise")
	}
	if err := wantBool(RuleDischarge, p); err != nil {
		return nil, err
	}
	imp, err := k.tm.Implies(p, th.concl)
	if err != nil {
		return nil, err
	}
	return k.mk(RuleDischarge, removeHyp(th.hyps, p), imp, Provenance{Premises: []*Theorem{th}, TermArgs: []*term.Term{p}}), nil
}

// SubstEq rewrites every occurrence of the equation's left side with
// its right side in th's conclusion: from G1 |- a = b and G2 |- c
// derive G1,G2 |- c[b/a].
func (k *Kernel) SubstEq(eq, th *Theorem) (*Theorem, error) {
	a, b, err := destEq(RuleSubstEq, eq)
	if err != nil {
		return nil, err
	}
	if th == nil {
		return nil, kerr(RuleSubstEq, "nil premise")
	}
	concl, err := k.tm.Replace(th.concl, a, b)
	if err != nil {
		return nil, err
	}
	return k.mk(RuleSubstEq, unionHyps(eq.hyps, th.hyps), concl, Provenance{Premises: []*Theorem{eq, th}}), nil
}

// SubstEqHyp rewrites a = b inside one hypothesis of th: from
// G1 |- a = b and G2,h |- c derive G1,G2,h[b/a] |- c.
func (k *Kernel) SubstEqHyp(eq, th *Theorem, hyp *term.Term) (*Theorem, error) {
	a, b, err := destEq(RuleSubstEqHyp, eq)
	if err != nil {
		return nil, err
	}
	if th == nil {
		return nil, kerr(RuleSubstEqHyp, "nil premise")
	}
	found := false
	for _, h := range th.hyps {
		if h == hyp {
			found = true
			break
		}
	}
	if !found {
		return nil, kerr(RuleSubstEqHyp, "%s is not a hypothesis of the premise", hyp)
	}
	rewritten, err := k.tm.Replace(hyp, a, b)
	if err != nil {
		return nil, err
	}
	hyps := append(removeHyp(th.hyps, hyp), rewritten)
	return k.mk(RuleSubstEqHyp, unionHyps(eq.hyps, hyps), th.concl, Provenance{Premises: []*Theorem{eq, th}, TermArgs: []*term.Term{hyp}}), nil
}

// Beta derives |- (lambda xs. b) as = b[as/xs] for an application of a
// lambda binder.
func (k *Kernel) Beta(app *term.Term) (*Theorem, error) {
	if app == nil || app.Kind() != term.KindApplyFn {
		return nil, kerr(RuleBeta, "not a function application")
	}
	fn := app.Fn()
	if fn.Kind() != term.KindBinder || fn.Binder() != term.Lambda {
		return nil, kerr(RuleBeta, "applied term is not a lambda")
	}
	reduced, err := k.tm.BetaReduce(app)
	if err != nil {
		return nil, err
	}
	eq, err := k.tm.Eq(app, reduced)
	if err != nil {
		return nil, err
	}
	return k.mk(RuleBeta, nil, eq, Provenance{TermArgs: []*term.Term{app}}), nil
}

// Instantiate derives G |- P[ts/xs] from G |- forall xs. P at
// well-sorted terms ts.
func (k *Kernel) Instantiate(th *Theorem, ts ...*term.Term) (*Theorem, error) {
	if th == nil {
		return nil, kerr(RuleInstantiate, "nil premise")
	}
	q := th.concl
	if q.Kind() != term.KindBinder || q.Binder() != term.Forall {
		return nil, kerr(RuleInstantiate, "conclusion %s is not universally quantified", q)
	}
	body, err := k.tm.InstantiateBinder(q, ts...)
	if err != nil {
		return nil, err
	}
	return k.mk(RuleInstantiate, th.hyps, body, Provenance{Premises: []*Theorem{th}, TermArgs: ts}), nil
}

// Generalize derives G |- forall xs. P from G |- P when no x occurs
// free in any hypothesis.
func (k *Kernel) Generalize(th *Theorem, vars ...*term.Term) (*Theorem, error) {
	if th == nil {
		return nil, kerr(RuleGeneralize, "nil premise")
	}
	if len(vars) == 0 {
		return nil, kerr(RuleGeneralize, "no variables to generalize")
	}
	for _, v := range vars {
		if v == nil || v.Kind() != term.KindFreeVar {
			return nil, kerr(RuleGeneralize, "argument is not a free variable")
		}
		for _, h := range th.hyps {
			if term.OccursFree(v, h) {
				return nil, kerr(RuleGeneralize, "variable %s occurs free in hypothesis %s", v, h)
			}
		}
	}
	q, err := k.tm.Binder(term.Forall, vars, th.concl)
	if err != nil {
		return nil, err
	}
	return k.mk(RuleGeneralize, th.hyps, q, Provenance{Premises: []*Theorem{th}, TermArgs: vars}), nil
}

// ConjIntro derives G1,G2 |- a and b from G1 |- a and G2 |- b.
func (k *Kernel) ConjIntro(th1, th2 *Theorem) (*Theorem, error) {
	if th1 == nil || th2 == nil {
		return nil, kerr(RuleConjIntro, "nil premise")
	}
	c, err := k.tm.And(th1.concl, th2.concl)
	if err != nil {
		return nil, err
	}
	return k.mk(RuleConjIntro, unionHyps(th1.hyps, th2.hyps), c, Provenance{Premises: []*Theorem{th1, th2}}), nil
}

// ConjElimL derives G |- a from G |- a and b.
func (k *Kernel) ConjElimL(th *Theorem) (*Theorem, error) {
	a, _, err := destConj(RuleConjElimL, th)
	if err != nil {
		return nil, err
	}
	return k.mk(RuleConjElimL, th.hyps, a, Provenance{Premises: []*Theorem{th}}), nil
}

// ConjElimR derives G |- b from G |- a and b.
func (k *Kernel) ConjElimR(th *Theorem) (*Theorem, error) {
	_, b, err := destConj(RuleConjElimR, th)
	if err != nil {
		return nil, err
	}
	return k.mk(RuleConjElimR, th.hyps, b, Provenance{Premises: []*Theorem{th}}), nil
}

// Destructors shared with the tactic engine and adapters.

// DestImplies splits a => b, reporting whether t is an implication.
func DestImplies(t *term.Term) (*term.Term, *term.Term, bool) {
	return destBinary(t, term.SymImplies)
}

// DestConj splits a and b, reporting whether t is a conjunction.
func DestConj(t *term.Term) (*term.Term, *term.Term, bool) {
	return destBinary(t, term.SymAnd)
}

// DestEq splits a = b, reporting whether t is an equation.
func DestEq(t *term.Term) (*term.Term, *term.Term, bool) {
	return destBinary(t, term.SymEq)
}

func destBinary(t *term.Term, sym string) (*term.Term, *term.Term, bool) {
	if t == nil || t.Kind() != term.KindApp || len(t.Args()) != 2 {
		return nil, nil, false
	}
	// Only the interned connective counts. Matching on the name alone
	// would accept a user symbol that happens to share it.
	if s := t.Symbol(); s.Name() != sym || !s.Interpreted() {
		return nil, nil, false
	}
	args := t.Args()
	return args[0], args[1], true
}

func destEq(rule string, th *Theorem) (*term.Term, *term.Term, error) {
	if th == nil {
		return nil, nil, kerr(rule, "nil premise")
	}
	a, b, ok := DestEq(th.concl)
	if !ok {
		return nil, nil, kerr(rule, "conclusion %s is not an equation", th.concl)
	}
	return a, b, nil
}

func destConj(rule string, th *Theorem) (*term.Term, *term.Term, error) {
	if th == nil {
		return nil, nil, kerr(rule, "nil premise")
	}
	a, b, ok := DestConj(th.concl)
	if !ok {
		return nil, nil, kerr(rule, "conclusion %s is not a conjunction", th.concl)
	}
	return a, b, nil
}

func wantBool(rule string, p *term.Term) error {
	if p == nil {
		return kerr(rule, "nil proposition")
	}
	if p.Sort() != term.Bool() {
		return kerr(rule, "proposition %s has sort %s, want Bool", p, p.Sort())
	}
	return nil
}
