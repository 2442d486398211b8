package tactic

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aanthord/knuckledragger/pkg/kernel"
)

// Justification rebuilds the goal's theorem from theorems for the
// subgoals, in order. Replaying a justification re-enters the kernel,
// so a buggy tactic can fail here but can never mint a wrong theorem.
type Justification func(sub []*kernel.Theorem) (*kernel.Theorem, error)

// Result is a successful tactic application: the remaining subgoals
// and the justification closing over them. No subgoals means the goal
// is solved outright.
type Result struct {
	Subgoals []*Goal
	Justify  Justification
}

// Tactic reduces one goal. It returns a *Failure error when the goal
// is out of shape, unprovable, or over budget.
type Tactic func(ctx context.Context, p *Prover, g *Goal) (*Result, error)

// solved wraps a zero-subgoal result around an already-proved theorem.
func solved(th *kernel.Theorem) *Result {
	return &Result{Justify: func([]*kernel.Theorem) (*kernel.Theorem, error) {
		return th, nil
	}}
}

// ID succeeds without progress: the goal itself is the one subgoal.
func ID() Tactic {
	return func(ctx context.Context, p *Prover, g *Goal) (*Result, error) {
		return &Result{
			Subgoals: []*Goal{g},
			Justify: func(sub []*kernel.Theorem) (*kernel.Theorem, error) {
				return sub[0], nil
			},
		}, nil
	}
}

// Fail always fails with the given reason.
func Fail(reason Reason) Tactic {
	return func(ctx context.Context, p *Prover, g *Goal) (*Result, error) {
		return nil, fail("fail", reason, g)
	}
}

// Then applies first, then next to every subgoal first leaves. The
// justifications compose: subproofs for next's subgoals rebuild
// first's subgoals, which rebuild the original goal.
func Then(first, next Tactic, rest ...Tactic) Tactic {
	t := then2(first, next)
	for _, r := range rest {
		t = then2(t, r)
	}
	return t
}

func then2(first, next Tactic) Tactic {
	return func(ctx context.Context, p *Prover, g *Goal) (*Result, error) {
		res, err := first(ctx, p, g)
		if err != nil {
			return nil, err
		}
		results := make([]*Result, len(res.Subgoals))
		var subgoals []*Goal
		for i, sg := range res.Subgoals {
			r, err := next(ctx, p, sg)
			if err != nil {
				return nil, err
			}
			results[i] = r
			subgoals = append(subgoals, r.Subgoals...)
		}
		return &Result{Subgoals: subgoals, Justify: foldJustify(res, results)}, nil
	}
}

// ThenSplit applies first, then the i-th tactic of rest to the i-th
// subgoal. The subgoal count must match.
func ThenSplit(first Tactic, rest ...Tactic) Tactic {
	return func(ctx context.Context, p *Prover, g *Goal) (*Result, error) {
		res, err := first(ctx, p, g)
		if err != nil {
			return nil, err
		}
		if len(res.Subgoals) != len(rest) {
			return nil, &Failure{
				Reason: PreconditionUnmet,
				Tactic: "then_split",
				Goal:   g,
				Err:    errSubgoalCount(len(rest), len(res.Subgoals)),
			}
		}
		results := make([]*Result, len(res.Subgoals))
		var subgoals []*Goal
		for i, sg := range res.Subgoals {
			r, err := rest[i](ctx, p, sg)
			if err != nil {
				return nil, err
			}
			results[i] = r
			subgoals = append(subgoals, r.Subgoals...)
		}
		return &Result{Subgoals: subgoals, Justify: foldJustify(res, results)}, nil
	}
}

// AllGoals applies t to every subgoal split leaves, keeping subgoals t
// cannot reduce open instead of failing on them.
func AllGoals(split, t Tactic) Tactic {
	return Then(split, Try(t))
}

// AnyGoal applies t to every subgoal split leaves and succeeds when t
// reduces at least one of them; the rest stay open. A counterexample
// on any subgoal still short-circuits.
func AnyGoal(split, t Tactic) Tactic {
	return func(ctx context.Context, p *Prover, g *Goal) (*Result, error) {
		res, err := split(ctx, p, g)
		if err != nil {
			return nil, err
		}
		results := make([]*Result, len(res.Subgoals))
		var subgoals []*Goal
		var progressed bool
		var last error
		for i, sg := range res.Subgoals {
			r, err := t(ctx, p, sg)
			switch {
			case err == nil:
				progressed = true
			default:
				var f *Failure
				if errors.As(err, &f) && f.Reason == Counterexample {
					return nil, err
				}
				last = err
				r = &Result{
					Subgoals: []*Goal{sg},
					Justify: func(sub []*kernel.Theorem) (*kernel.Theorem, error) {
						return sub[0], nil
					},
				}
			}
			results[i] = r
			subgoals = append(subgoals, r.Subgoals...)
		}
		if !progressed && len(res.Subgoals) > 0 {
			if last != nil {
				return nil, last
			}
			return nil, fail("any_goal", PreconditionUnmet, g)
		}
		return &Result{Subgoals: subgoals, Justify: foldJustify(res, results)}, nil
	}
}

// foldJustify threads subproofs through per-subgoal results and hands
// the intermediate theorems to the outer justification.
func foldJustify(outer *Result, results []*Result) Justification {
	return func(sub []*kernel.Theorem) (*kernel.Theorem, error) {
		mids := make([]*kernel.Theorem, len(results))
		for i, r := range results {
			n := len(r.Subgoals)
			th, err := r.Justify(sub[:n])
			if err != nil {
				return nil, err
			}
			sub = sub[n:]
			mids[i] = th
		}
		return outer.Justify(mids)
	}
}

// First tries the tactics in order and returns the first success. A
// Counterexample failure short-circuits: the goal is false and no
// alternative can save it.
func First(ts ...Tactic) Tactic {
	return func(ctx context.Context, p *Prover, g *Goal) (*Result, error) {
		var last error
		for _, t := range ts {
			res, err := t(ctx, p, g)
			if err == nil {
				return res, nil
			}
			var f *Failure
			if errors.As(err, &f) && f.Reason == Counterexample {
				return nil, err
			}
			last = err
		}
		if last == nil {
			last = fail("first", PreconditionUnmet, g)
		}
		return nil, last
	}
}

// Try applies t and falls back to ID if it fails inconclusively.
func Try(t Tactic) Tactic {
	return First(t, ID())
}

// Repeat applies t until it stops making progress, succeeding with
// whatever subgoals remain. The budget bounds runaway repetition.
func Repeat(t Tactic) Tactic {
	var rec Tactic
	rec = func(ctx context.Context, p *Prover, g *Goal) (*Result, error) {
		step := Try(Then(t, func(ctx context.Context, p *Prover, g *Goal) (*Result, error) {
			return rec(ctx, p, g)
		}))
		return step(ctx, p, g)
	}
	return rec
}

func errSubgoalCount(want, got int) error {
	return fmt.Errorf("want %d subgoals, got %d", want, got)
}
