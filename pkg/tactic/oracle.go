package tactic

import (
	"context"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/kernel"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// OracleClient asks external oracles about a sequent. The dispatcher
// implements this; a returned theorem was minted through the kernel's
// admission paths, so accepting it here adds nothing to the trust
// boundary.
//
// Exactly one of the results is meaningful: a non-nil theorem proves
// the sequent, a conclusive verdict without a theorem explains why no
// proof was minted, and err reports infrastructure trouble.
type OracleClient interface {
	Prove(ctx context.Context, hyps []*term.Term, concl *term.Term) (*kernel.Theorem, *backend.Verdict, error)
}

// Oracle hands the whole goal to external oracles. A ModelFound
// verdict becomes a Counterexample failure carrying the witness;
// anything short of a proof is NoOracleSucceeded.
func Oracle(client OracleClient) Tactic {
	return func(ctx context.Context, p *Prover, g *Goal) (*Result, error) {
		if f := begin(ctx, p, "oracle", g); f != nil {
			return nil, f
		}
		th, v, err := client.Prove(ctx, g.Hyps(), g.Concl())
		if err != nil {
			return nil, &Failure{Reason: NoOracleSucceeded, Tactic: "oracle", Goal: g, Err: err}
		}
		if th != nil {
			return solved(th), nil
		}
		if v != nil && v.Kind == backend.ModelFound {
			return nil, &Failure{
				Reason:  Counterexample,
				Tactic:  "oracle",
				Goal:    g,
				Witness: v.Model,
			}
		}
		if v != nil && v.Kind == backend.TimedOut {
			return nil, fail("oracle", Timeout, g)
		}
		return nil, fail("oracle", NoOracleSucceeded, g)
	}
}

// Auto is the default search: structural decomposition as far as it
// goes, then propositional decision, assumptions, reflexivity, and
// finally the oracles on whatever is left.
func Auto(client OracleClient) Tactic {
	leaf := First(Assumption(), Reflexivity(), PropDischarge())
	if client != nil {
		leaf = First(Assumption(), Reflexivity(), PropDischarge(), Oracle(client))
	}
	return Then(Repeat(First(Intro(), Split())), leaf)
}
