package term

import (
	"fmt"
	"strings"
)

// Kind discriminates term node variants.
type Kind int

const (
	// KindConst is an application of a zero-arity symbol, including
	// literals.
	KindConst Kind = iota
	// KindFreeVar is a named free variable.
	KindFreeVar
	// KindBoundVar is a de Bruijn reference to an enclosing binder.
	// Terms returned by the public constructors are always locally
	// closed; bound variables appear only inside binder bodies.
	KindBoundVar
	// KindApp applies a function symbol to argument terms.
	KindApp
	// KindApplyFn applies a function-sorted term (typically a lambda)
	// to argument terms.
	KindApplyFn
	// KindBinder is a quantifier or lambda over a vector of sorted
	// bound variables.
	KindBinder
)

// BinderKind discriminates binder variants.
type BinderKind int

const (
	Forall BinderKind = iota
	Exists
	Lambda
)

func (b BinderKind) String() string {
	switch b {
	case Forall:
		return "forall"
	case Exists:
		return "exists"
	case Lambda:
		return "lambda"
	}
	return fmt.Sprintf("binder(%d)", int(b))
}

// Term is one hash-consed expression node. Two terms constructed
// through the same Interner are alpha-equivalent iff they are the same
// pointer. A Term's sort is fixed at construction.
type Term struct {
	kind   Kind
	sort   *Sort
	sym    *Symbol // KindConst, KindApp
	name   string  // KindFreeVar
	bIdx   int     // KindBoundVar: binder distance
	vIdx   int     // KindBoundVar: position in the binder vector
	args   []*Term // KindApp args; KindApplyFn fn+args; KindBinder [body]
	binder BinderKind
	bSorts []*Sort
	bNames []string // display hints only, excluded from identity
	id     uint64
	hash   uint64
}

func (t *Term) Kind() Kind   { return t.kind }
func (t *Term) Sort() *Sort  { return t.sort }
func (t *Term) ID() uint64   { return t.id }
func (t *Term) Hash() uint64 { return t.hash }

// Symbol returns the symbol of a constant or application node.
func (t *Term) Symbol() *Symbol { return t.sym }

// Name returns the name of a free variable.
func (t *Term) Name() string { return t.name }

// BoundIndex returns the binder distance and vector position of a
// bound-variable node.
func (t *Term) BoundIndex() (int, int) { return t.bIdx, t.vIdx }

// Args returns the argument terms of an application node. For
// KindApplyFn the applied function is returned by Fn, not here.
func (t *Term) Args() []*Term {
	if t.kind == KindApplyFn {
		out := make([]*Term, len(t.args)-1)
		copy(out, t.args[1:])
		return out
	}
	out := make([]*Term, len(t.args))
	copy(out, t.args)
	return out
}

// Fn returns the applied function term of a KindApplyFn node.
func (t *Term) Fn() *Term {
	if t.kind != KindApplyFn {
		return nil
	}
	return t.args[0]
}

// Binder returns the binder kind of a KindBinder node.
func (t *Term) Binder() BinderKind { return t.binder }

// BoundSorts returns the sorts of the binder's variable vector.
func (t *Term) BoundSorts() []*Sort {
	out := make([]*Sort, len(t.bSorts))
	copy(out, t.bSorts)
	return out
}

// BoundNames returns the display names of the binder's variables.
// Names are presentation only; they do not participate in identity.
func (t *Term) BoundNames() []string {
	out := make([]string, len(t.bNames))
	copy(out, t.bNames)
	return out
}

// Body returns the body of a KindBinder node. The body is not locally
// closed; use Interner.Open to get a closed body over fresh variables.
func (t *Term) Body() *Term {
	if t.kind != KindBinder {
		return nil
	}
	return t.args[0]
}

// String renders the term as an s-expression. Bound variables print
// with their display names where available.
func (t *Term) String() string {
	var b strings.Builder
	t.write(&b, nil)
	return b.String()
}

type nameFrame struct {
	names []string
	prev  *nameFrame
}

func (t *Term) write(b *strings.Builder, env *nameFrame) {
	switch t.kind {
	case KindConst:
		b.WriteString(t.sym.name)
	case KindFreeVar:
		b.WriteString(t.name)
	case KindBoundVar:
		f := env
		for i := 0; i < t.bIdx && f != nil; i++ {
			f = f.prev
		}
		if f != nil && t.vIdx < len(f.names) {
			b.WriteString(f.names[t.vIdx])
		} else {
			fmt.Fprintf(b, "#%d.%d", t.bIdx, t.vIdx)
		}
	case KindApp:
		b.WriteString("(" + t.sym.name)
		for _, a := range t.args {
			b.WriteString(" ")
			a.write(b, env)
		}
		b.WriteString(")")
	case KindApplyFn:
		b.WriteString("(@")
		for _, a := range t.args {
			b.WriteString(" ")
			a.write(b, env)
		}
		b.WriteString(")")
	case KindBinder:
		fmt.Fprintf(b, "(%s (", t.binder)
		for i, s := range t.bSorts {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(b, "(%s %s)", t.displayName(i), s)
		}
		b.WriteString(") ")
		names := make([]string, len(t.bSorts))
		for i := range names {
			names[i] = t.displayName(i)
		}
		t.args[0].write(b, &nameFrame{names: names, prev: env})
		b.WriteString(")")
	}
}

func (t *Term) displayName(i int) string {
	if i < len(t.bNames) && t.bNames[i] != "" {
		return t.bNames[i]
	}
	return fmt.Sprintf("x%d", i)
}
