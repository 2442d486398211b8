// Package tactic implements backward proof search over kernel
// theorems. A tactic reduces one goal to subgoals together with a
// justification that rebuilds the goal's theorem from the subgoals'
// theorems, so every successful search bottoms out in primitive kernel
// steps (or checked oracle admissions) and nothing in this package can
// widen the trust boundary.
package tactic

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/kernel"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// Goal is a sequent to prove: hyps |- concl. Goals are immutable.
type Goal struct {
	hyps  []*term.Term
	concl *term.Term
}

// NewGoal builds a goal. All formulas must be of sort Bool.
func NewGoal(hyps []*term.Term, concl *term.Term) (*Goal, error) {
	if concl == nil || concl.Sort() != term.Bool() {
		return nil, fmt.Errorf("goal conclusion must be Bool")
	}
	for i, h := range hyps {
		if h == nil || h.Sort() != term.Bool() {
			return nil, fmt.Errorf("goal hypothesis %d must be Bool", i)
		}
	}
	return &Goal{hyps: append([]*term.Term(nil), hyps...), concl: concl}, nil
}

// Concl returns the goal's conclusion.
func (g *Goal) Concl() *term.Term { return g.concl }

// Hyps returns the goal's hypotheses.
func (g *Goal) Hyps() []*term.Term {
	return append([]*term.Term(nil), g.hyps...)
}

func (g *Goal) String() string {
	var b strings.Builder
	for i, h := range g.hyps {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(h.String())
	}
	if len(g.hyps) > 0 {
		b.WriteString(" ")
	}
	b.WriteString("?- " + g.concl.String())
	return b.String()
}

// with returns the goal extended by one hypothesis.
func (g *Goal) with(h *term.Term) *Goal {
	return &Goal{hyps: append(g.Hyps(), h), concl: g.concl}
}

// sub returns the goal with the same hypotheses and a new conclusion.
func (g *Goal) sub(concl *term.Term) *Goal {
	return &Goal{hyps: g.hyps, concl: concl}
}

// Reason classifies why a tactic failed on a goal.
type Reason string

const (
	// NoOracleSucceeded: every consulted oracle answered inconclusively.
	NoOracleSucceeded Reason = "no_oracle_succeeded"
	// Timeout: the search deadline passed or the step budget ran out.
	Timeout Reason = "timeout"
	// PreconditionUnmet: the goal does not have the shape the tactic
	// handles.
	PreconditionUnmet Reason = "precondition_unmet"
	// Counterexample: the goal is actually false; Witness carries the
	// falsifying assignment when one is known.
	Counterexample Reason = "counterexample"
)

// Failure is the error type every tactic returns. A Counterexample
// failure is a definitive negative answer and is never retried by the
// combinators.
type Failure struct {
	Reason  Reason
	Tactic  string
	Goal    *Goal
	Witness *backend.Model
	Err     error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("tactic %s: %s on %s", f.Tactic, f.Reason, f.Goal)
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(tac string, reason Reason, g *Goal) *Failure {
	return &Failure{Reason: reason, Tactic: tac, Goal: g}
}

// Budget bounds one proof search.
type Budget struct {
	// MaxSteps caps tactic applications; zero means unlimited.
	MaxSteps int
	// Deadline caps wall time; zero means unlimited.
	Deadline time.Duration
}

// Prover holds the kernel and the budget accounting shared by one
// search. Safe for concurrent use by combinators that fan out.
type Prover struct {
	kern   *kernel.Kernel
	budget Budget

	mu    sync.Mutex
	steps int
}

// NewProver creates a prover over the given kernel.
func NewProver(kern *kernel.Kernel, budget Budget) *Prover {
	return &Prover{kern: kern, budget: budget}
}

// Kernel returns the kernel theorems are minted with.
func (p *Prover) Kernel() *kernel.Kernel { return p.kern }

// Steps reports how many tactic applications have been charged.
func (p *Prover) Steps() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.steps
}

// charge consumes one step of the budget.
func (p *Prover) charge(tac string, g *Goal) *Failure {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps++
	if p.budget.MaxSteps > 0 && p.steps > p.budget.MaxSteps {
		return fail(tac, Timeout, g)
	}
	return nil
}
