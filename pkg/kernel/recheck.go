package kernel

import (
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// Recheck re-derives th's final step from its recorded premises and
// rule arguments and verifies the result matches th exactly. Axiom and
// oracle-admission steps are the trust-boundary leaves: Recheck
// validates their shape and leaves them for the auditor, which is the
// point of flagging them in provenance. Premise theorems are not
// recursively rechecked; walk the provenance DAG for a full replay.
func (k *Kernel) Recheck(th *Theorem) error {
	if th == nil {
		return kerr("recheck", "nil theorem")
	}
	p := th.prov
	var (
		got *Theorem
		err error
	)
	switch p.Rule {
	case RuleAxiom:
		if len(p.TermArgs) != 1 || p.TermArgs[0] != th.concl {
			return kerr(p.Rule, "axiom statement does not match conclusion")
		}
		return wantBool(p.Rule, th.concl)
	case RuleAdmit:
		if p.OracleID == "" {
			return kerr(p.Rule, "admitted step has no oracle id")
		}
		return wantBool(p.Rule, th.concl)
	case RuleAssume:
		got, err = k.Assume(arg(p, 0))
	case RuleRefl:
		got, err = k.Refl(arg(p, 0))
	case RuleSym:
		got, err = k.Sym(prem(p, 0))
	case RuleTrans:
		got, err = k.Trans(prem(p, 0), prem(p, 1))
	case RuleCong:
		got, err = k.recheckCong(th)
	case RuleModusPonens:
		got, err = k.ModusPonens(prem(p, 0), prem(p, 1))
	case RuleDischarge:
		got, err = k.Discharge(arg(p, 0), prem(p, 0))
	case RuleSubstEq:
		got, err = k.SubstEq(prem(p, 0), prem(p, 1))
	case RuleSubstEqHyp:
		got, err = k.SubstEqHyp(prem(p, 0), prem(p, 1), arg(p, 0))
	case RuleBeta:
		got, err = k.Beta(arg(p, 0))
	case RuleInstantiate:
		got, err = k.Instantiate(prem(p, 0), p.TermArgs...)
	case RuleGeneralize:
		got, err = k.Generalize(prem(p, 0), p.TermArgs...)
	case RuleConjIntro:
		got, err = k.ConjIntro(prem(p, 0), prem(p, 1))
	case RuleConjElimL:
		got, err = k.ConjElimL(prem(p, 0))
	case RuleConjElimR:
		got, err = k.ConjElimR(prem(p, 0))
	default:
		return kerr("recheck", "unknown rule %q", p.Rule)
	}
	if err != nil {
		return err
	}
	if got.concl != th.concl {
		return kerr(p.Rule, "re-derived conclusion %s differs from recorded %s", got.concl, th.concl)
	}
	if len(got.hyps) != len(th.hyps) {
		return kerr(p.Rule, "re-derived hypothesis set differs from recorded")
	}
	for i := range got.hyps {
		if got.hyps[i] != th.hyps[i] {
			return kerr(p.Rule, "re-derived hypothesis set differs from recorded")
		}
	}
	return nil
}

func (k *Kernel) recheckCong(th *Theorem) (*Theorem, error) {
	lhs, _, ok := DestEq(th.concl)
	if !ok || lhs.Kind() != term.KindApp {
		return nil, kerr(RuleCong, "conclusion is not an equation of applications")
	}
	return k.Cong(lhs.Symbol(), th.prov.Premises...)
}

func arg(p Provenance, i int) *term.Term {
	if i >= len(p.TermArgs) {
		return nil
	}
	return p.TermArgs[i]
}

func prem(p Provenance, i int) *Theorem {
	if i >= len(p.Premises) {
		return nil
	}
	return p.Premises[i]
}
