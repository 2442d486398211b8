package tactic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Aanthord/knuckledragger/pkg/kernel"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// Status summarizes a finished search.
type Status string

const (
	// StatusProved: a theorem was minted for the goal.
	StatusProved Status = "proved"
	// StatusDisproved: a counterexample was found; the goal is false.
	StatusDisproved Status = "disproved"
	// StatusInconclusive: the search gave up without an answer either
	// way.
	StatusInconclusive Status = "inconclusive"
)

// Report is the outcome of one proof search. Disproved and
// inconclusive are deliberately distinct: only the former is a
// statement about the goal.
type Report struct {
	Status  Status
	Theorem *kernel.Theorem
	Failure *Failure
	Steps   int
	Elapsed time.Duration
}

// Prove runs the tactic against the goal and replays the resulting
// justification. The tactic must close the goal completely; leftover
// subgoals are a PreconditionUnmet failure.
func Prove(ctx context.Context, p *Prover, g *Goal, t Tactic) (*kernel.Theorem, error) {
	if p.budget.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.budget.Deadline)
		defer cancel()
	}
	res, err := t(ctx, p, g)
	if err != nil {
		return nil, err
	}
	if len(res.Subgoals) > 0 {
		return nil, &Failure{
			Reason: PreconditionUnmet,
			Tactic: "prove",
			Goal:   res.Subgoals[0],
			Err:    fmt.Errorf("%d unsolved subgoals", len(res.Subgoals)),
		}
	}
	th, err := res.Justify(nil)
	if err != nil {
		return nil, err
	}
	if th.Concl() != g.Concl() {
		return nil, &Failure{
			Reason: PreconditionUnmet,
			Tactic: "prove",
			Goal:   g,
			Err:    fmt.Errorf("justification proved %s", th.Concl()),
		}
	}
	if !hypsWithin(th, g) {
		return nil, &Failure{
			Reason: PreconditionUnmet,
			Tactic: "prove",
			Goal:   g,
			Err:    errExtraHyps,
		}
	}
	return th, nil
}

// Run is Prove with the outcome folded into a report instead of an
// error, keeping "false" and "don't know" apart for callers that need
// the distinction.
func Run(ctx context.Context, p *Prover, g *Goal, t Tactic) *Report {
	start := time.Now()
	th, err := Prove(ctx, p, g, t)
	rep := &Report{Steps: p.Steps(), Elapsed: time.Since(start)}
	if err == nil {
		rep.Status = StatusProved
		rep.Theorem = th
		return rep
	}
	rep.Status = StatusInconclusive
	var f *Failure
	if errors.As(err, &f) {
		rep.Failure = f
		if f.Reason == Counterexample {
			rep.Status = StatusDisproved
		}
	} else {
		rep.Failure = &Failure{Reason: PreconditionUnmet, Tactic: "run", Goal: g, Err: err}
	}
	return rep
}

// hypsWithin checks the theorem leans on nothing beyond the goal's
// hypotheses. Terms are interned, so membership is pointer equality.
func hypsWithin(th *kernel.Theorem, g *Goal) bool {
	allowed := map[*term.Term]bool{}
	for _, h := range g.Hyps() {
		allowed[h] = true
	}
	for _, h := range th.Hyps() {
		if !allowed[h] {
			return false
		}
	}
	return true
}

var errExtraHyps = errors.New("proof depends on hypotheses outside the goal")
