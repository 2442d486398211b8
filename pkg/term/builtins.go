package term

import "fmt"

// Connective and operator constructors. Each validates argument sorts
// and returns the canonical node; polymorphic operators (equality,
// arithmetic, ite) intern one symbol instance per concrete signature.

// Not negates a boolean term.
func (in *Interner) Not(a *Term) (*Term, error) {
	if err := wantSort("Not", a, boolSort); err != nil {
		return nil, err
	}
	return in.App(interpretedSymbol(SymNot, []*Sort{boolSort}, boolSort), a)
}

// And conjoins two boolean terms.
func (in *Interner) And(a, b *Term) (*Term, error) {
	return in.boolOp(SymAnd, a, b)
}

// Or disjoins two boolean terms.
func (in *Interner) Or(a, b *Term) (*Term, error) {
	return in.boolOp(SymOr, a, b)
}

// Implies builds the implication a => b.
func (in *Interner) Implies(a, b *Term) (*Term, error) {
	return in.boolOp(SymImplies, a, b)
}

func (in *Interner) boolOp(name string, a, b *Term) (*Term, error) {
	if err := wantSort(name, a, boolSort); err != nil {
		return nil, err
	}
	if err := wantSort(name, b, boolSort); err != nil {
		return nil, err
	}
	return in.App(interpretedSymbol(name, []*Sort{boolSort, boolSort}, boolSort), a, b)
}

// Eq builds the equation a = b over any shared sort.
func (in *Interner) Eq(a, b *Term) (*Term, error) {
	if a == nil || b == nil {
		return nil, &SortError{Op: "Eq", Msg: "nil operand"}
	}
	if a.sort != b.sort {
		return nil, &SortError{Op: "Eq", Msg: fmt.Sprintf("operand sorts differ: %s vs %s", a.sort, b.sort)}
	}
	return in.App(interpretedSymbol(SymEq, []*Sort{a.sort, a.sort}, boolSort), a, b)
}

// Ite builds if-then-else with a boolean condition and same-sorted
// branches.
func (in *Interner) Ite(c, a, b *Term) (*Term, error) {
	if err := wantSort("Ite", c, boolSort); err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, &SortError{Op: "Ite", Msg: "nil branch"}
	}
	if a.sort != b.sort {
		return nil, &SortError{Op: "Ite", Msg: fmt.Sprintf("branch sorts differ: %s vs %s", a.sort, b.sort)}
	}
	return in.App(interpretedSymbol(SymIte, []*Sort{boolSort, a.sort, a.sort}, a.sort), c, a, b)
}

// Add builds numeric addition over Int or Real.
func (in *Interner) Add(a, b *Term) (*Term, error) { return in.numOp(SymAdd, a, b) }

// Sub builds numeric subtraction over Int or Real.
func (in *Interner) Sub(a, b *Term) (*Term, error) { return in.numOp(SymSub, a, b) }

// Mul builds numeric multiplication over Int or Real.
func (in *Interner) Mul(a, b *Term) (*Term, error) { return in.numOp(SymMul, a, b) }

// Neg builds numeric negation over Int or Real.
func (in *Interner) Neg(a *Term) (*Term, error) {
	if err := wantNumeric("Neg", a); err != nil {
		return nil, err
	}
	return in.App(interpretedSymbol(SymNeg, []*Sort{a.sort}, a.sort), a)
}

func (in *Interner) numOp(name string, a, b *Term) (*Term, error) {
	if err := wantNumeric(name, a); err != nil {
		return nil, err
	}
	if err := wantNumeric(name, b); err != nil {
		return nil, err
	}
	if a.sort != b.sort {
		return nil, &SortError{Op: name, Msg: fmt.Sprintf("operand sorts differ: %s vs %s", a.sort, b.sort)}
	}
	return in.App(interpretedSymbol(name, []*Sort{a.sort, a.sort}, a.sort), a, b)
}

// Lt builds a numeric strict-less-than comparison.
func (in *Interner) Lt(a, b *Term) (*Term, error) { return in.cmpOp(SymLt, a, b) }

// Le builds a numeric less-or-equal comparison.
func (in *Interner) Le(a, b *Term) (*Term, error) { return in.cmpOp(SymLe, a, b) }

// Gt builds a numeric strict-greater-than comparison.
func (in *Interner) Gt(a, b *Term) (*Term, error) { return in.cmpOp(SymGt, a, b) }

// Ge builds a numeric greater-or-equal comparison.
func (in *Interner) Ge(a, b *Term) (*Term, error) { return in.cmpOp(SymGe, a, b) }

func (in *Interner) cmpOp(name string, a, b *Term) (*Term, error) {
	if err := wantNumeric(name, a); err != nil {
		return nil, err
	}
	if err := wantNumeric(name, b); err != nil {
		return nil, err
	}
	if a.sort != b.sort {
		return nil, &SortError{Op: name, Msg: fmt.Sprintf("operand sorts differ: %s vs %s", a.sort, b.sort)}
	}
	return in.App(interpretedSymbol(name, []*Sort{a.sort, a.sort}, boolSort), a, b)
}

// BVAdd builds bit-vector addition.
func (in *Interner) BVAdd(a, b *Term) (*Term, error) { return in.bvOp(SymBVAdd, a, b) }

// BVAnd builds bit-vector bitwise and.
func (in *Interner) BVAnd(a, b *Term) (*Term, error) { return in.bvOp(SymBVAnd, a, b) }

// BVOr builds bit-vector bitwise or.
func (in *Interner) BVOr(a, b *Term) (*Term, error) { return in.bvOp(SymBVOr, a, b) }

// BVXor builds bit-vector bitwise xor.
func (in *Interner) BVXor(a, b *Term) (*Term, error) { return in.bvOp(SymBVXor, a, b) }

// BVNot builds bit-vector bitwise complement.
func (in *Interner) BVNot(a *Term) (*Term, error) {
	if err := wantBV("BVNot", a); err != nil {
		return nil, err
	}
	return in.App(interpretedSymbol(SymBVNot, []*Sort{a.sort}, a.sort), a)
}

// BVUlt builds an unsigned bit-vector less-than comparison.
func (in *Interner) BVUlt(a, b *Term) (*Term, error) {
	if err := wantBV(SymBVUlt, a); err != nil {
		return nil, err
	}
	if err := wantBV(SymBVUlt, b); err != nil {
		return nil, err
	}
	if a.sort != b.sort {
		return nil, &SortError{Op: SymBVUlt, Msg: fmt.Sprintf("operand widths differ: %s vs %s", a.sort, b.sort)}
	}
	return in.App(interpretedSymbol(SymBVUlt, []*Sort{a.sort, a.sort}, boolSort), a, b)
}

func (in *Interner) bvOp(name string, a, b *Term) (*Term, error) {
	if err := wantBV(name, a); err != nil {
		return nil, err
	}
	if err := wantBV(name, b); err != nil {
		return nil, err
	}
	if a.sort != b.sort {
		return nil, &SortError{Op: name, Msg: fmt.Sprintf("operand widths differ: %s vs %s", a.sort, b.sort)}
	}
	return in.App(interpretedSymbol(name, []*Sort{a.sort, a.sort}, a.sort), a, b)
}

func wantSort(op string, t *Term, s *Sort) error {
	if t == nil {
		return &SortError{Op: op, Msg: "nil operand"}
	}
	if t.sort != s {
		return &SortError{Op: op, Msg: fmt.Sprintf("operand has sort %s, want %s", t.sort, s)}
	}
	return nil
}

func wantNumeric(op string, t *Term) error {
	if t == nil {
		return &SortError{Op: op, Msg: "nil operand"}
	}
	if t.sort != intSort && t.sort != realSort {
		return &SortError{Op: op, Msg: fmt.Sprintf("operand has sort %s, want Int or Real", t.sort)}
	}
	return nil
}

func wantBV(op string, t *Term) error {
	if t == nil {
		return &SortError{Op: op, Msg: "nil operand"}
	}
	if t.sort.kind != SortBitVec {
		return &SortError{Op: op, Msg: fmt.Sprintf("operand has sort %s, want a bit-vector sort", t.sort)}
	}
	return nil
}
