package tactic

import (
	"fmt"

	"github.com/Aanthord/knuckledragger/pkg/kernel"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// Calc builds an equational chain in calculation style: start at a
// term, extend one proved equality at a time, and close with the
// theorem equating the endpoints. Each step's justification may prove
// the equation in either orientation; the chain flips it as needed.
//
//	c := tactic.NewCalc(kern, a)
//	th, err := c.Eq(b, abEq).Eq(d, dbEq).QED()
//
// mints |- a = d given |- a = b and |- d = b.
type Calc struct {
	kern *kernel.Kernel
	head *term.Term
	cur  *term.Term
	acc  *kernel.Theorem // nil until the first step
	err  error
}

// NewCalc starts a chain at the given term.
func NewCalc(k *kernel.Kernel, start *term.Term) *Calc {
	c := &Calc{kern: k, head: start, cur: start}
	if start == nil {
		c.err = fmt.Errorf("calc: nil start term")
	}
	return c
}

// Eq extends the chain to next, justified by a theorem whose
// conclusion equates the chain's current endpoint with next in either
// orientation. After the first error the chain is inert and QED
// reports it.
func (c *Calc) Eq(next *term.Term, by *kernel.Theorem) *Calc {
	if c.err != nil {
		return c
	}
	if by == nil {
		c.err = fmt.Errorf("calc: step to %s has no justification", next)
		return c
	}
	lhs, rhs, ok := kernel.DestEq(by.Concl())
	if !ok {
		c.err = fmt.Errorf("calc: justification %s is not an equation", by.Concl())
		return c
	}
	step := by
	switch {
	case lhs == c.cur && rhs == next:
	case lhs == next && rhs == c.cur:
		step, c.err = c.kern.Sym(by)
		if c.err != nil {
			return c
		}
	default:
		c.err = fmt.Errorf("calc: justification %s does not link %s to %s", by.Concl(), c.cur, next)
		return c
	}
	if c.acc == nil {
		c.acc = step
	} else {
		c.acc, c.err = c.kern.Trans(c.acc, step)
		if c.err != nil {
			return c
		}
	}
	c.cur = next
	return c
}

// QED returns the accumulated theorem equating the chain's first and
// last terms. An empty chain closes by reflexivity.
func (c *Calc) QED() (*kernel.Theorem, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.acc == nil {
		return c.kern.Refl(c.head)
	}
	return c.acc, nil
}
