// Package bv adapts purely bit-vector goals to BTOR2 model checkers
// (btormc and compatible). The negated goal becomes a bad property of
// a combinational circuit: an unreachable bad state refutes the
// negation, a witness is a counterexample assignment.
package bv

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

type netlist struct {
	oracle string
	buf    strings.Builder
	next   int
	sorts  map[int]int        // width -> sort line id (width 1 doubles as Bool)
	nodes  map[*term.Term]int // term -> node line id
	vars   []*term.Term
}

// Translate renders hyps |- concl as a BTOR2 netlist whose single bad
// property is and(hyps) /\ not(concl). Only Bool and BitVec sorts
// survive; everything else reports UntranslatableError.
func Translate(oracle string, hyps []*term.Term, concl *term.Term) (*backend.Job, error) {
	n := &netlist{
		oracle: oracle,
		next:   1,
		sorts:  map[int]int{},
		nodes:  map[*term.Term]int{},
	}
	bad, err := n.node(negatedGoal(n, hyps, concl))
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(&n.buf, "%d bad %d\n", n.next, bad)
	return &backend.Job{
		OracleID: oracle,
		Input:    []byte(n.buf.String()),
		FreeVars: n.vars,
	}, nil
}

// negatedGoal builds the property term list evaluated conjunctively:
// the hypotheses plus the negated conclusion.
func negatedGoal(n *netlist, hyps []*term.Term, concl *term.Term) []*term.Term {
	parts := make([]*term.Term, 0, len(hyps)+1)
	parts = append(parts, hyps...)
	parts = append(parts, concl)
	return parts
}

func (n *netlist) untranslatable(what string) error {
	return &backend.UntranslatableError{Oracle: n.oracle, Construct: what}
}

func (n *netlist) emit(format string, args ...any) int {
	id := n.next
	n.next++
	fmt.Fprintf(&n.buf, "%d ", id)
	fmt.Fprintf(&n.buf, format, args...)
	n.buf.WriteByte('\n')
	return id
}

// sortID declares (once) and returns the BTOR2 sort line for a width.
func (n *netlist) sortID(width int) int {
	if id, ok := n.sorts[width]; ok {
		return id
	}
	id := n.emit("sort bitvec %d", width)
	n.sorts[width] = id
	return id
}

func (n *netlist) width(s *term.Sort) (int, error) {
	switch s.Kind() {
	case term.SortBool:
		return 1, nil
	case term.SortBitVec:
		return s.Width(), nil
	default:
		return 0, n.untranslatable("sort " + s.String())
	}
}

// node evaluates the conjunction of parts to a single width-1 node
// where the conclusion (last element) enters negated.
func (n *netlist) node(parts []*term.Term) (int, error) {
	last := len(parts) - 1
	concl, err := n.term(parts[last])
	if err != nil {
		return 0, err
	}
	acc := n.emit("not %d %d", n.sortID(1), concl)
	for _, h := range parts[:last] {
		hid, err := n.term(h)
		if err != nil {
			return 0, err
		}
		acc = n.emit("and %d %d %d", n.sortID(1), hid, acc)
	}
	return acc, nil
}

func (n *netlist) term(t *term.Term) (int, error) {
	if id, ok := n.nodes[t]; ok {
		return id, nil
	}
	id, err := n.build(t)
	if err != nil {
		return 0, err
	}
	n.nodes[t] = id
	return id, nil
}

func (n *netlist) build(t *term.Term) (int, error) {
	w, err := n.width(t.Sort())
	if err != nil {
		return 0, err
	}
	sid := n.sortID(w)
	switch t.Kind() {
	case term.KindFreeVar:
		n.vars = append(n.vars, t)
		return n.emit("input %d %s", sid, t.Name()), nil
	case term.KindConst:
		return n.constant(t, sid, w)
	case term.KindApp:
		return n.app(t, sid)
	case term.KindBinder:
		return 0, n.untranslatable("binder")
	case term.KindApplyFn:
		return 0, n.untranslatable("first-class function application")
	default:
		return 0, n.untranslatable("dangling bound variable")
	}
}

func (n *netlist) constant(t *term.Term, sid, w int) (int, error) {
	sym := t.Symbol()
	switch sym.Name() {
	case term.SymTrue:
		return n.emit("one %d", sid), nil
	case term.SymFalse:
		return n.emit("zero %d", sid), nil
	}
	if v, ok := sym.BitVecValue(); ok {
		return n.emit("const %d %s", sid, bits(v, w)), nil
	}
	if !sym.Interpreted() && sym.Arity() == 0 {
		// uninterpreted constants behave like inputs
		n.vars = append(n.vars, t)
		return n.emit("input %d %s", sid, sym.Name()), nil
	}
	return 0, n.untranslatable("constant " + sym.Name())
}

// binary BTOR2 operators shared by Bool and BitVec operands.
var opNames = map[string]string{
	term.SymAnd:     "and",
	term.SymOr:      "or",
	term.SymImplies: "implies",
	term.SymEq:      "eq",
	term.SymBVAdd:   "add",
	term.SymBVAnd:   "and",
	term.SymBVOr:    "or",
	term.SymBVXor:   "xor",
	term.SymBVUlt:   "ult",
}

func (n *netlist) app(t *term.Term, sid int) (int, error) {
	sym := t.Symbol()
	if !sym.Interpreted() {
		return 0, n.untranslatable("uninterpreted function " + sym.Name())
	}
	args := t.Args()
	ids := make([]int, len(args))
	for i, arg := range args {
		id, err := n.term(arg)
		if err != nil {
			return 0, err
		}
		ids[i] = id
	}
	switch sym.Name() {
	case term.SymNot, term.SymBVNot:
		return n.emit("not %d %d", sid, ids[0]), nil
	case term.SymIte:
		return n.emit("ite %d %d %d %d", sid, ids[0], ids[1], ids[2]), nil
	}
	if op, ok := opNames[sym.Name()]; ok && len(ids) == 2 {
		// chained operators of the same width fold left
		return n.emit("%s %d %d %d", op, sid, ids[0], ids[1]), nil
	}
	if op, ok := opNames[sym.Name()]; ok {
		acc := ids[0]
		for _, id := range ids[1:] {
			acc = n.emit("%s %d %d %d", op, sid, acc, id)
		}
		return acc, nil
	}
	return 0, n.untranslatable("operator " + sym.Name())
}

// bits renders a non-negative value as a fixed-width binary string.
func bits(v *big.Int, w int) string {
	s := v.Text(2)
	if len(s) < w {
		s = strings.Repeat("0", w-len(s)) + s
	}
	return s
}
