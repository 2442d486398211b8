// Package smt adapts goals to SMT-LIB 2 solvers (z3, cvc5 and
// compatible). The goal's negation is asserted and the solver is asked
// for satisfiability: unsat refutes the negation, a model is a
// counterexample to the goal.
package smt

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

type printer struct {
	oracle string
	buf    strings.Builder
	sorts  map[*term.Sort]bool
	funcs  map[*term.Symbol]bool
	vars   []*term.Term
	seen   map[*term.Term]bool

	// Quoting is not injective: |a@b| and |a.b| both survive, but a
	// name containing "|" has the bar stripped and can collide with
	// the stripped form, and a free variable can share its name with
	// a declared function. names fixes one rendered identifier per
	// sort, symbol and variable; used holds the bar-stripped spelling
	// so |foo| and foo count as the same identifier.
	names map[any]string
	used  map[string]bool
}

// Translate renders hyps |- concl as an SMT-LIB 2 script asserting the
// hypotheses and the negated conclusion. Lambdas and first-class
// function application are outside SMT-LIB's first-order fragment and
// report UntranslatableError.
func Translate(oracle string, hyps []*term.Term, concl *term.Term) (*backend.Job, error) {
	p := &printer{
		oracle: oracle,
		sorts:  map[*term.Sort]bool{},
		funcs:  map[*term.Symbol]bool{},
		seen:   map[*term.Term]bool{},
		names:  map[any]string{},
		used:   map[string]bool{},
	}
	all := append(append([]*term.Term(nil), hyps...), concl)
	for _, t := range all {
		if err := p.collect(t); err != nil {
			return nil, err
		}
	}

	p.buf.WriteString("(set-option :produce-models true)\n")
	p.buf.WriteString("(set-logic ALL)\n")
	p.declare()
	for _, h := range hyps {
		p.buf.WriteString("(assert ")
		if err := p.term(h, nil); err != nil {
			return nil, err
		}
		p.buf.WriteString(")\n")
	}
	p.buf.WriteString("(assert (not ")
	if err := p.term(concl, nil); err != nil {
		return nil, err
	}
	p.buf.WriteString("))\n(check-sat)\n(get-model)\n")

	return &backend.Job{
		OracleID: oracle,
		Input:    []byte(p.buf.String()),
		FreeVars: p.vars,
	}, nil
}

func (p *printer) untranslatable(what string) error {
	return &backend.UntranslatableError{Oracle: p.oracle, Construct: what}
}

// ident returns the script identifier for key, assigning one on first
// use. Declarations run in sorted order before any assertion is
// printed, so every later lookup hits the table.
func (p *printer) ident(key any, name string) string {
	if s, ok := p.names[key]; ok {
		return s
	}
	base := strings.ReplaceAll(name, "|", "")
	if base == "" {
		base = "u"
	}
	cand := base
	for n := 2; p.used[cand]; n++ {
		cand = fmt.Sprintf("%s!%d", base, n)
	}
	p.used[cand] = true
	s := cand
	if !isSimpleName(cand) {
		s = "|" + cand + "|"
	}
	p.names[key] = s
	return s
}

// collect gathers sort and symbol declarations and rejects higher-order
// constructs up front so translation failures surface before any
// output is built.
func (p *printer) collect(t *term.Term) error {
	switch t.Kind() {
	case term.KindApplyFn:
		return p.untranslatable("first-class function application")
	case term.KindBinder:
		if t.Binder() == term.Lambda {
			return p.untranslatable("lambda abstraction")
		}
		for _, s := range t.BoundSorts() {
			if err := p.collectSort(s); err != nil {
				return err
			}
		}
		return p.collect(t.Body())
	case term.KindFreeVar:
		if err := p.collectSort(t.Sort()); err != nil {
			return err
		}
		if !p.seen[t] {
			p.seen[t] = true
			p.vars = append(p.vars, t)
		}
	case term.KindConst, term.KindApp:
		sym := t.Symbol()
		if err := p.collectSort(sym.Result()); err != nil {
			return err
		}
		if !sym.Interpreted() {
			for _, a := range sym.Args() {
				if err := p.collectSort(a); err != nil {
					return err
				}
			}
			p.funcs[sym] = true
		}
		for _, a := range t.Args() {
			if err := p.collect(a); err != nil {
				return err
			}
		}
	case term.KindBoundVar:
		// declared at its binder
	}
	return nil
}

func (p *printer) collectSort(s *term.Sort) error {
	switch s.Kind() {
	case term.SortFunc:
		return p.untranslatable("function-sorted value")
	case term.SortUninterpreted, term.SortDatatype:
		p.sorts[s] = true
	}
	return nil
}

func (p *printer) declare() {
	var sorts []*term.Sort
	for s := range p.sorts {
		sorts = append(sorts, s)
	}
	sort.Slice(sorts, func(i, j int) bool { return sorts[i].Name() < sorts[j].Name() })
	for _, s := range sorts {
		switch s.Kind() {
		case term.SortUninterpreted:
			fmt.Fprintf(&p.buf, "(declare-sort %s 0)\n", p.ident(s, s.Name()))
		case term.SortDatatype:
			p.declareDatatype(s)
		}
	}

	var fns []*term.Symbol
	for f := range p.funcs {
		fns = append(fns, f)
	}
	sort.Slice(fns, func(i, j int) bool {
		if fns[i].Name() != fns[j].Name() {
			return fns[i].Name() < fns[j].Name()
		}
		return len(fns[i].Args()) < len(fns[j].Args())
	})
	for _, f := range fns {
		fmt.Fprintf(&p.buf, "(declare-fun %s (", p.ident(f, f.Name()))
		for i, a := range f.Args() {
			if i > 0 {
				p.buf.WriteString(" ")
			}
			p.buf.WriteString(p.sortName(a))
		}
		fmt.Fprintf(&p.buf, ") %s)\n", p.sortName(f.Result()))
	}

	sort.Slice(p.vars, func(i, j int) bool { return p.vars[i].Name() < p.vars[j].Name() })
	for _, v := range p.vars {
		fmt.Fprintf(&p.buf, "(declare-const %s %s)\n", p.ident(v, v.Name()), p.sortName(v.Sort()))
	}
}

func (p *printer) declareDatatype(s *term.Sort) {
	fmt.Fprintf(&p.buf, "(declare-datatype %s (", p.ident(s, s.Name()))
	for i, c := range s.Constructors() {
		if i > 0 {
			p.buf.WriteString(" ")
		}
		fmt.Fprintf(&p.buf, "(%s", p.ident([2]any{s, c.Name}, c.Name))
		for _, f := range c.Fields {
			fmt.Fprintf(&p.buf, " (%s %s)", p.ident([3]any{s, c.Name, f.Name}, f.Name), p.sortName(f.Sort))
		}
		p.buf.WriteString(")")
	}
	p.buf.WriteString("))\n")
}

type boundFrame struct {
	names []string
	prev  *boundFrame
}

func (p *printer) term(t *term.Term, env *boundFrame) error {
	switch t.Kind() {
	case term.KindConst:
		p.buf.WriteString(p.constText(t.Symbol()))
	case term.KindFreeVar:
		p.buf.WriteString(p.ident(t, t.Name()))
	case term.KindBoundVar:
		bIdx, vIdx := t.BoundIndex()
		f := env
		for i := 0; i < bIdx && f != nil; i++ {
			f = f.prev
		}
		if f == nil || vIdx >= len(f.names) {
			return fmt.Errorf("smt: dangling bound variable")
		}
		p.buf.WriteString(f.names[vIdx])
	case term.KindApp:
		args := t.Args()
		name := t.Symbol().Name()
		if t.Symbol().Interpreted() {
			name = opName(name)
		} else {
			name = p.ident(t.Symbol(), name)
		}
		p.buf.WriteString("(" + name)
		for _, a := range args {
			p.buf.WriteString(" ")
			if err := p.term(a, env); err != nil {
				return err
			}
		}
		p.buf.WriteString(")")
	case term.KindApplyFn:
		return p.untranslatable("first-class function application")
	case term.KindBinder:
		if t.Binder() == term.Lambda {
			return p.untranslatable("lambda abstraction")
		}
		names := make([]string, len(t.BoundSorts()))
		fmt.Fprintf(&p.buf, "(%s (", t.Binder())
		for i, s := range t.BoundSorts() {
			names[i] = fmt.Sprintf("%s!%d", bareName(t.BoundNames(), i), depth(env))
			if i > 0 {
				p.buf.WriteString(" ")
			}
			fmt.Fprintf(&p.buf, "(%s %s)", names[i], p.sortName(s))
		}
		p.buf.WriteString(") ")
		if err := p.term(t.Body(), &boundFrame{names: names, prev: env}); err != nil {
			return err
		}
		p.buf.WriteString(")")
	}
	return nil
}

func depth(env *boundFrame) int {
	d := 0
	for f := env; f != nil; f = f.prev {
		d++
	}
	return d
}

func bareName(names []string, i int) string {
	if i < len(names) && isSimpleName(names[i]) {
		return names[i]
	}
	return fmt.Sprintf("v%d", i)
}

// opName maps interpreted symbols onto SMT-LIB operators. Most names
// coincide already; negation is the exception.
func opName(name string) string {
	if name == term.SymNeg {
		return "-"
	}
	return name
}

func (p *printer) constText(sym *term.Symbol) string {
	if v, ok := sym.IntValue(); ok {
		if v.Sign() < 0 {
			return fmt.Sprintf("(- %s)", v.Neg(v).String())
		}
		return v.String()
	}
	if v, ok := sym.RatValue(); ok {
		// SMT-LIB numerals are unsigned; a negative numerator needs
		// the unary minus form.
		num := v.Num()
		if num.Sign() < 0 {
			return fmt.Sprintf("(/ (- %s) %s)", new(big.Int).Neg(num).String(), v.Denom().String())
		}
		return fmt.Sprintf("(/ %s %s)", num.String(), v.Denom().String())
	}
	if _, ok := sym.BitVecValue(); ok {
		return sym.Name() // printed as #b literal at construction
	}
	if sym.Interpreted() {
		return sym.Name()
	}
	return p.ident(sym, sym.Name())
}

func (p *printer) sortName(s *term.Sort) string {
	switch s.Kind() {
	case term.SortBool:
		return "Bool"
	case term.SortInt:
		return "Int"
	case term.SortReal:
		return "Real"
	case term.SortBitVec:
		return fmt.Sprintf("(_ BitVec %d)", s.Width())
	default:
		return p.ident(s, s.Name())
	}
}

func isSimpleName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.' || r == '!':
		default:
			return false
		}
	}
	return true
}
