// Package term implements the hash-consed expression and type
// representation at the base of the prover.
//
// Every value in this package is immutable once constructed. Terms and
// sorts are interned: structurally (and alpha-) equal constructions
// return the same pointer, so equality anywhere above this package is a
// pointer comparison, and caches may be keyed by node identity.
package term

import (
	"fmt"
	"strings"
	"sync"
)

// SortKind discriminates the sort variants.
type SortKind int

const (
	SortBool SortKind = iota
	SortInt
	SortReal
	SortBitVec
	SortUninterpreted
	SortDatatype
	SortFunc
)

// Sort is a type tag. Sorts are interned process-wide; two sorts are
// equal iff their pointers are equal.
type Sort struct {
	kind  SortKind
	width int    // SortBitVec
	name  string // SortUninterpreted, SortDatatype
	ctors []Constructor
	dom   []*Sort // SortFunc
	rng   *Sort   // SortFunc
	key   string
}

// Constructor describes one constructor of an algebraic datatype.
type Constructor struct {
	Name   string
	Fields []Field
}

// Field is a named, sorted constructor argument.
type Field struct {
	Name string
	Sort *Sort
}

func (s *Sort) Kind() SortKind { return s.kind }

// Width returns the bit width of a bit-vector sort, zero otherwise.
func (s *Sort) Width() int { return s.width }

// Name returns the declared name of an uninterpreted or datatype sort.
func (s *Sort) Name() string { return s.name }

// Constructors returns the constructors of a datatype sort.
func (s *Sort) Constructors() []Constructor {
	out := make([]Constructor, len(s.ctors))
	copy(out, s.ctors)
	return out
}

// Domain returns the argument sorts of a function sort.
func (s *Sort) Domain() []*Sort {
	out := make([]*Sort, len(s.dom))
	copy(out, s.dom)
	return out
}

// Range returns the result sort of a function sort.
func (s *Sort) Range() *Sort { return s.rng }

// Equal reports structural equality. Because sorts are interned this is
// a pointer comparison.
func (s *Sort) Equal(o *Sort) bool { return s == o }

func (s *Sort) String() string { return s.key }

var (
	sortMu    sync.Mutex
	sortTable = map[string]*Sort{}
)

func internSort(s *Sort) *Sort {
	sortMu.Lock()
	defer sortMu.Unlock()
	if got, ok := sortTable[s.key]; ok {
		return got
	}
	sortTable[s.key] = s
	return s
}

var (
	boolSort = internSort(&Sort{kind: SortBool, key: "Bool"})
	intSort  = internSort(&Sort{kind: SortInt, key: "Int"})
	realSort = internSort(&Sort{kind: SortReal, key: "Real"})
)

// Bool returns the boolean sort.
func Bool() *Sort { return boolSort }

// Int returns the unbounded integer sort.
func Int() *Sort { return intSort }

// Real returns the real/rational sort.
func Real() *Sort { return realSort }

// BitVec returns the fixed-width bit-vector sort of the given width.
func BitVec(width int) (*Sort, error) {
	if width <= 0 || width > 1<<16 {
		return nil, &SortError{Op: "BitVec", Msg: fmt.Sprintf("invalid bit-vector width %d", width)}
	}
	return internSort(&Sort{kind: SortBitVec, width: width, key: fmt.Sprintf("(BitVec %d)", width)}), nil
}

// Uninterpreted returns the named uninterpreted sort.
func Uninterpreted(name string) (*Sort, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, &SortError{Op: "Uninterpreted", Msg: "empty sort name"}
	}
	return internSort(&Sort{kind: SortUninterpreted, name: name, key: name}), nil
}

// Datatype declares an algebraic datatype sort with named constructors.
// Constructor fields must use already-declared sorts.
func Datatype(name string, ctors []Constructor) (*Sort, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, &SortError{Op: "Datatype", Msg: "empty datatype name"}
	}
	if len(ctors) == 0 {
		return nil, &SortError{Op: "Datatype", Msg: fmt.Sprintf("datatype %s has no constructors", name)}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "(Datatype %s", name)
	for _, c := range ctors {
		if c.Name == "" {
			return nil, &SortError{Op: "Datatype", Msg: fmt.Sprintf("datatype %s has an unnamed constructor", name)}
		}
		fmt.Fprintf(&b, " (%s", normalizeName(c.Name))
		for _, f := range c.Fields {
			if f.Sort == nil {
				return nil, &SortError{Op: "Datatype", Msg: fmt.Sprintf("constructor %s has a field with no sort", c.Name)}
			}
			fmt.Fprintf(&b, " (%s %s)", normalizeName(f.Name), f.Sort.key)
		}
		b.WriteString(")")
	}
	b.WriteString(")")
	return internSort(&Sort{kind: SortDatatype, name: name, ctors: ctors, key: b.String()}), nil
}

// FuncSort returns the function sort domain -> rng.
func FuncSort(dom []*Sort, rng *Sort) (*Sort, error) {
	if len(dom) == 0 {
		return nil, &SortError{Op: "FuncSort", Msg: "function sort with empty domain"}
	}
	if rng == nil {
		return nil, &SortError{Op: "FuncSort", Msg: "function sort with nil range"}
	}
	var b strings.Builder
	b.WriteString("(->")
	for _, d := range dom {
		if d == nil {
			return nil, &SortError{Op: "FuncSort", Msg: "function sort with nil domain entry"}
		}
		b.WriteString(" " + d.key)
	}
	b.WriteString(" " + rng.key + ")")
	d := make([]*Sort, len(dom))
	copy(d, dom)
	return internSort(&Sort{kind: SortFunc, dom: d, rng: rng, key: b.String()}), nil
}

// SortError reports an ill-sorted construction. It is always fatal to
// the construction that raised it; callers must not coerce around it.
type SortError struct {
	Op  string // the constructor that failed
	Msg string
}

func (e *SortError) Error() string {
	return fmt.Sprintf("sort error in %s: %s", e.Op, e.Msg)
}
