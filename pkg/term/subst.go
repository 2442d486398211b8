package term

import (
	"fmt"
	"sort"
)

// abstract replaces occurrences of vars with bound-variable references
// at binder distance depth. Children stay canonical, so unchanged
// subtrees are returned as-is.
func (in *Interner) abstract(t *Term, vars []*Term, depth int) *Term {
	switch t.kind {
	case KindFreeVar:
		for i, v := range vars {
			if t == v {
				return in.intern(&Term{kind: KindBoundVar, bIdx: depth, vIdx: i, sort: t.sort})
			}
		}
		return t
	case KindConst, KindBoundVar:
		return t
	case KindApp, KindApplyFn:
		args, changed := in.mapArgs(t.args, func(a *Term) *Term { return in.abstract(a, vars, depth) })
		if !changed {
			return t
		}
		n := *t
		n.args = args
		return in.intern(&n)
	case KindBinder:
		body := in.abstract(t.args[0], vars, depth+1)
		if body == t.args[0] {
			return t
		}
		n := *t
		n.args = []*Term{body}
		return in.intern(&n)
	}
	return t
}

// instantiate replaces bound-variable references at binder distance
// depth with the given locally closed terms.
func (in *Interner) instantiate(t *Term, vals []*Term, depth int) *Term {
	switch t.kind {
	case KindBoundVar:
		if t.bIdx == depth && t.vIdx < len(vals) {
			return vals[t.vIdx]
		}
		return t
	case KindConst, KindFreeVar:
		return t
	case KindApp, KindApplyFn:
		args, changed := in.mapArgs(t.args, func(a *Term) *Term { return in.instantiate(a, vals, depth) })
		if !changed {
			return t
		}
		n := *t
		n.args = args
		return in.intern(&n)
	case KindBinder:
		body := in.instantiate(t.args[0], vals, depth+1)
		if body == t.args[0] {
			return t
		}
		n := *t
		n.args = []*Term{body}
		return in.intern(&n)
	}
	return t
}

func (in *Interner) mapArgs(args []*Term, f func(*Term) *Term) ([]*Term, bool) {
	changed := false
	out := make([]*Term, len(args))
	for i, a := range args {
		out[i] = f(a)
		if out[i] != a {
			changed = true
		}
	}
	if !changed {
		return args, false
	}
	return out, true
}

// Subst substitutes replacement terms for free variables throughout t.
// The representation is locally nameless, so the substitution is
// capture-avoiding by construction: bound variables are indices and can
// never collide with the free variables of the replacements. Each
// replacement must match its variable's sort.
func (in *Interner) Subst(t *Term, binding map[*Term]*Term) (*Term, error) {
	for v, r := range binding {
		if v == nil || v.kind != KindFreeVar {
			return nil, &SortError{Op: "Subst", Msg: "binding key is not a free variable"}
		}
		if r == nil {
			return nil, &SortError{Op: "Subst", Msg: "nil replacement for " + v.name}
		}
		if v.sort != r.sort {
			return nil, &SortError{Op: "Subst", Msg: "replacement for " + v.name + " has sort " + r.sort.String() + ", want " + v.sort.String()}
		}
	}
	return in.subst(t, binding), nil
}

func (in *Interner) subst(t *Term, binding map[*Term]*Term) *Term {
	switch t.kind {
	case KindFreeVar:
		if r, ok := binding[t]; ok {
			return r
		}
		return t
	case KindConst, KindBoundVar:
		return t
	case KindApp, KindApplyFn:
		args, changed := in.mapArgs(t.args, func(a *Term) *Term { return in.subst(a, binding) })
		if !changed {
			return t
		}
		n := *t
		n.args = args
		return in.intern(&n)
	case KindBinder:
		body := in.subst(t.args[0], binding)
		if body == t.args[0] {
			return t
		}
		n := *t
		n.args = []*Term{body}
		return in.intern(&n)
	}
	return t
}

// Replace rewrites every occurrence of the locally closed subterm old
// with new throughout t. Occurrences under binders are found by node
// identity; a subterm mentioning a bound variable of an enclosing
// binder is not locally closed and therefore can never equal old.
func (in *Interner) Replace(t, old, neu *Term) (*Term, error) {
	if old == nil || neu == nil {
		return nil, &SortError{Op: "Replace", Msg: "nil term"}
	}
	if old.sort != neu.sort {
		return nil, &SortError{Op: "Replace", Msg: "replacement has sort " + neu.sort.String() + ", want " + old.sort.String()}
	}
	return in.replace(t, old, neu), nil
}

func (in *Interner) replace(t, old, neu *Term) *Term {
	if t == old {
		return neu
	}
	switch t.kind {
	case KindConst, KindFreeVar, KindBoundVar:
		return t
	case KindApp, KindApplyFn:
		args, changed := in.mapArgs(t.args, func(a *Term) *Term { return in.replace(a, old, neu) })
		if !changed {
			return t
		}
		n := *t
		n.args = args
		return in.intern(&n)
	case KindBinder:
		body := in.replace(t.args[0], old, neu)
		if body == t.args[0] {
			return t
		}
		n := *t
		n.args = []*Term{body}
		return in.intern(&n)
	}
	return t
}

// InstantiateBinder instantiates a binder at the given terms. Each
// term must match the sort of the corresponding bound variable.
func (in *Interner) InstantiateBinder(b *Term, ts ...*Term) (*Term, error) {
	if b == nil || b.kind != KindBinder {
		return nil, &SortError{Op: "InstantiateBinder", Msg: "not a binder"}
	}
	if len(ts) != len(b.bSorts) {
		return nil, &SortError{Op: "InstantiateBinder", Msg: fmt.Sprintf("binder over %d variables instantiated at %d terms", len(b.bSorts), len(ts))}
	}
	for i, t := range ts {
		if t == nil {
			return nil, &SortError{Op: "InstantiateBinder", Msg: fmt.Sprintf("nil instantiation term %d", i)}
		}
		if t.sort != b.bSorts[i] {
			return nil, &SortError{Op: "InstantiateBinder", Msg: fmt.Sprintf("instantiation term %d has sort %s, want %s", i, t.sort, b.bSorts[i])}
		}
	}
	return in.instantiate(b.args[0], ts, 0), nil
}

// BetaReduce reduces an application of a lambda to its arguments.
func (in *Interner) BetaReduce(app *Term) (*Term, error) {
	if app == nil || app.kind != KindApplyFn {
		return nil, &SortError{Op: "BetaReduce", Msg: "not a function application"}
	}
	fn := app.args[0]
	if fn.kind != KindBinder || fn.binder != Lambda {
		return nil, &SortError{Op: "BetaReduce", Msg: "applied term is not a lambda"}
	}
	return in.InstantiateBinder(fn, app.args[1:]...)
}

// FreeVars returns the free variables of t, ordered by name for
// deterministic iteration.
func FreeVars(t *Term) []*Term {
	seen := map[*Term]bool{}
	var out []*Term
	var walk func(*Term)
	walk = func(t *Term) {
		switch t.kind {
		case KindFreeVar:
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		case KindApp, KindApplyFn, KindBinder:
			for _, a := range t.args {
				walk(a)
			}
		}
	}
	walk(t)
	sort.Slice(out, func(i, j int) bool {
		if out[i].name != out[j].name {
			return out[i].name < out[j].name
		}
		return out[i].id < out[j].id
	})
	return out
}

// OccursFree reports whether v occurs free in t.
func OccursFree(v, t *Term) bool {
	if t == v {
		return true
	}
	switch t.kind {
	case KindApp, KindApplyFn, KindBinder:
		for _, a := range t.args {
			if OccursFree(v, a) {
				return true
			}
		}
	}
	return false
}
