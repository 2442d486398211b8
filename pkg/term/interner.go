package term

import (
	"fmt"
	"hash/fnv"
	"math/big"
	"strings"
	"sync"
)

// Interner owns the canonical node table for one proof session. All
// construction goes through a single mutex-guarded insertion point, so
// concurrent canonicalization can never produce two distinct nodes for
// the same structural term.
type Interner struct {
	mu     sync.Mutex
	table  map[uint64][]*Term
	nextID uint64
	fresh  uint64
}

// NewInterner creates an empty interning table.
func NewInterner() *Interner {
	return &Interner{table: make(map[uint64][]*Term)}
}

// Size returns the number of canonical nodes allocated so far.
func (in *Interner) Size() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := 0
	for _, bucket := range in.table {
		n += len(bucket)
	}
	return n
}

// intern canonicalizes a candidate node. Children must already be
// canonical, so structural comparison is shallow.
func (in *Interner) intern(c *Term) *Term {
	c.hash = structuralHash(c)
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, t := range in.table[c.hash] {
		if shallowEqual(t, c) {
			return t
		}
	}
	in.nextID++
	c.id = in.nextID
	in.table[c.hash] = append(in.table[c.hash], c)
	return c
}

func shallowEqual(a, b *Term) bool {
	if a.kind != b.kind || a.sort != b.sort || a.sym != b.sym ||
		a.name != b.name || a.bIdx != b.bIdx || a.vIdx != b.vIdx ||
		a.binder != b.binder || len(a.args) != len(b.args) || len(a.bSorts) != len(b.bSorts) {
		return false
	}
	for i := range a.args {
		if a.args[i] != b.args[i] {
			return false
		}
	}
	for i := range a.bSorts {
		if a.bSorts[i] != b.bSorts[i] {
			return false
		}
	}
	return true
}

func structuralHash(t *Term) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	put := func(v uint64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		_, _ = h.Write(buf[:])
	}
	put(uint64(t.kind))
	_, _ = h.Write([]byte(t.sort.key))
	if t.sym != nil {
		_, _ = h.Write([]byte(t.sym.sigKey()))
	}
	_, _ = h.Write([]byte(t.name))
	put(uint64(t.bIdx))
	put(uint64(t.vIdx))
	put(uint64(t.binder))
	for _, a := range t.args {
		put(a.hash)
		put(a.id)
	}
	for _, s := range t.bSorts {
		_, _ = h.Write([]byte(s.key))
	}
	return h.Sum64()
}

// Const builds a constant term from a zero-arity symbol.
func (in *Interner) Const(sym *Symbol) (*Term, error) {
	if sym == nil {
		return nil, &SortError{Op: "Const", Msg: "nil symbol"}
	}
	if len(sym.args) != 0 {
		return nil, &SortError{Op: "Const", Msg: fmt.Sprintf("symbol %s has arity %d, want 0", sym.name, len(sym.args))}
	}
	return in.intern(&Term{kind: KindConst, sym: sym, sort: sym.result}), nil
}

// FreeVar builds a named free variable of the given sort. Names
// beginning with '$' are reserved for interner-generated variables.
func (in *Interner) FreeVar(name string, sort *Sort) (*Term, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, &SortError{Op: "FreeVar", Msg: "empty variable name"}
	}
	if strings.HasPrefix(name, "$") {
		return nil, &SortError{Op: "FreeVar", Msg: fmt.Sprintf("variable name %s uses the reserved '$' prefix", name)}
	}
	if sort == nil {
		return nil, &SortError{Op: "FreeVar", Msg: fmt.Sprintf("variable %s has nil sort", name)}
	}
	return in.intern(&Term{kind: KindFreeVar, name: name, sort: sort}), nil
}

func (in *Interner) freshVar(sort *Sort, hint string) *Term {
	in.mu.Lock()
	n := in.fresh
	in.fresh++
	in.mu.Unlock()
	name := fmt.Sprintf("$%s%d", hint, n)
	return in.intern(&Term{kind: KindFreeVar, name: name, sort: sort})
}

// App applies a function symbol to arguments, checking each argument
// sort against the symbol's signature.
func (in *Interner) App(sym *Symbol, args ...*Term) (*Term, error) {
	if sym == nil {
		return nil, &SortError{Op: "App", Msg: "nil symbol"}
	}
	if len(args) != len(sym.args) {
		return nil, &SortError{Op: "App", Msg: fmt.Sprintf("symbol %s applied to %d arguments, want %d", sym.name, len(args), len(sym.args))}
	}
	if len(args) == 0 {
		return in.Const(sym)
	}
	for i, a := range args {
		if a == nil {
			return nil, &SortError{Op: "App", Msg: fmt.Sprintf("nil argument %d to %s", i, sym.name)}
		}
		if a.sort != sym.args[i] {
			return nil, &SortError{Op: "App", Msg: fmt.Sprintf("argument %d to %s has sort %s, want %s", i, sym.name, a.sort, sym.args[i])}
		}
	}
	as := make([]*Term, len(args))
	copy(as, args)
	return in.intern(&Term{kind: KindApp, sym: sym, args: as, sort: sym.result}), nil
}

// ApplyFn applies a function-sorted term to arguments.
func (in *Interner) ApplyFn(fn *Term, args ...*Term) (*Term, error) {
	if fn == nil {
		return nil, &SortError{Op: "ApplyFn", Msg: "nil function term"}
	}
	if fn.sort.kind != SortFunc {
		return nil, &SortError{Op: "ApplyFn", Msg: fmt.Sprintf("applied term has sort %s, not a function sort", fn.sort)}
	}
	dom := fn.sort.dom
	if len(args) != len(dom) {
		return nil, &SortError{Op: "ApplyFn", Msg: fmt.Sprintf("function of arity %d applied to %d arguments", len(dom), len(args))}
	}
	for i, a := range args {
		if a == nil {
			return nil, &SortError{Op: "ApplyFn", Msg: fmt.Sprintf("nil argument %d", i)}
		}
		if a.sort != dom[i] {
			return nil, &SortError{Op: "ApplyFn", Msg: fmt.Sprintf("argument %d has sort %s, want %s", i, a.sort, dom[i])}
		}
	}
	all := make([]*Term, 0, len(args)+1)
	all = append(all, fn)
	all = append(all, args...)
	return in.intern(&Term{kind: KindApplyFn, args: all, sort: fn.sort.rng}), nil
}

// Binder abstracts the given free variables out of body. Forall and
// Exists require a Bool body; Lambda yields a function sort. Display
// names are kept as presentation hints only, so alpha-equivalent
// binders intern to the same node.
func (in *Interner) Binder(kind BinderKind, vars []*Term, body *Term) (*Term, error) {
	if len(vars) == 0 {
		return nil, &SortError{Op: "Binder", Msg: "binder with no bound variables"}
	}
	if body == nil {
		return nil, &SortError{Op: "Binder", Msg: "nil binder body"}
	}
	seen := map[*Term]bool{}
	sorts := make([]*Sort, len(vars))
	names := make([]string, len(vars))
	for i, v := range vars {
		if v == nil || v.kind != KindFreeVar {
			return nil, &SortError{Op: "Binder", Msg: fmt.Sprintf("bound variable %d is not a free variable", i)}
		}
		if seen[v] {
			return nil, &SortError{Op: "Binder", Msg: fmt.Sprintf("duplicate bound variable %s", v.name)}
		}
		seen[v] = true
		sorts[i] = v.sort
		names[i] = strings.TrimPrefix(v.name, "$")
	}
	var sort *Sort
	switch kind {
	case Forall, Exists:
		if body.sort != boolSort {
			return nil, &SortError{Op: "Binder", Msg: fmt.Sprintf("%s body has sort %s, want Bool", kind, body.sort)}
		}
		sort = boolSort
	case Lambda:
		fs, err := FuncSort(sorts, body.sort)
		if err != nil {
			return nil, err
		}
		sort = fs
	default:
		return nil, &SortError{Op: "Binder", Msg: fmt.Sprintf("unknown binder kind %d", int(kind))}
	}
	abs := in.abstract(body, vars, 0)
	return in.intern(&Term{
		kind:   KindBinder,
		binder: kind,
		bSorts: sorts,
		bNames: names,
		args:   []*Term{abs},
		sort:   sort,
	}), nil
}

// Open instantiates a binder body with fresh free variables, returning
// the variables and the locally closed body.
func (in *Interner) Open(t *Term) ([]*Term, *Term, error) {
	if t == nil || t.kind != KindBinder {
		return nil, nil, &SortError{Op: "Open", Msg: "not a binder"}
	}
	vars := make([]*Term, len(t.bSorts))
	for i, s := range t.bSorts {
		vars[i] = in.freshVar(s, t.displayName(i))
	}
	body := in.instantiate(t.args[0], vars, 0)
	return vars, body, nil
}

// Literal constructors.

// True returns the boolean constant true.
func (in *Interner) True() *Term {
	t, _ := in.Const(interpretedSymbol(SymTrue, nil, boolSort))
	return t
}

// False returns the boolean constant false.
func (in *Interner) False() *Term {
	t, _ := in.Const(interpretedSymbol(SymFalse, nil, boolSort))
	return t
}

// IntLit returns the integer numeral v.
func (in *Interner) IntLit(v int64) *Term {
	return in.BigIntLit(big.NewInt(v))
}

// BigIntLit returns the integer numeral v.
func (in *Interner) BigIntLit(v *big.Int) *Term {
	sym := internSymbol(&Symbol{
		name:        v.String(),
		result:      intSort,
		interpreted: true,
		intVal:      new(big.Int).Set(v),
	})
	t, _ := in.Const(sym)
	return t
}

// RatLit returns the rational numeral v at sort Real.
func (in *Interner) RatLit(v *big.Rat) *Term {
	sym := internSymbol(&Symbol{
		name:        v.RatString(),
		result:      realSort,
		interpreted: true,
		ratVal:      new(big.Rat).Set(v),
	})
	t, _ := in.Const(sym)
	return t
}

// BVLit returns the bit-vector numeral v at the given width. The value
// is reduced modulo 2^width.
func (in *Interner) BVLit(v *big.Int, width int) (*Term, error) {
	if v == nil {
		return nil, &SortError{Op: "BVLit", Msg: "nil value"}
	}
	s, err := BitVec(width)
	if err != nil {
		return nil, err
	}
	mod := new(big.Int).Lsh(big.NewInt(1), uint(width))
	val := new(big.Int).Mod(v, mod)
	sym := internSymbol(&Symbol{
		name:        fmt.Sprintf("#b%0*s", width, val.Text(2)),
		result:      s,
		interpreted: true,
		bvVal:       val,
	})
	return in.Const(sym)
}
