package term

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Symbol is a declared or interpreted function symbol with a fixed
// signature. Symbols are interned by name and signature.
type Symbol struct {
	name        string
	args        []*Sort
	result      *Sort
	interpreted bool
	intVal      *big.Int // literal payload, nil unless a numeral
	ratVal      *big.Rat
	bvVal       *big.Int
}

func (s *Symbol) Name() string  { return s.name }
func (s *Symbol) Result() *Sort { return s.result }

// Arity returns the number of declared arguments.
func (s *Symbol) Arity() int { return len(s.args) }

// Args returns the declared argument sorts.
func (s *Symbol) Args() []*Sort {
	out := make([]*Sort, len(s.args))
	copy(out, s.args)
	return out
}

// Interpreted reports whether the symbol has fixed logical meaning
// (connectives, arithmetic, equality) as opposed to a user declaration.
func (s *Symbol) Interpreted() bool { return s.interpreted }

// IntValue returns the numeral payload of an integer literal symbol.
func (s *Symbol) IntValue() (*big.Int, bool) {
	if s.intVal == nil {
		return nil, false
	}
	return new(big.Int).Set(s.intVal), true
}

// RatValue returns the numeral payload of a rational literal symbol.
func (s *Symbol) RatValue() (*big.Rat, bool) {
	if s.ratVal == nil {
		return nil, false
	}
	return new(big.Rat).Set(s.ratVal), true
}

// BitVecValue returns the payload of a bit-vector literal symbol.
func (s *Symbol) BitVecValue() (*big.Int, bool) {
	if s.bvVal == nil {
		return nil, false
	}
	return new(big.Int).Set(s.bvVal), true
}

func (s *Symbol) sigKey() string {
	var b strings.Builder
	b.WriteString(s.name)
	b.WriteString("/(")
	for _, a := range s.args {
		b.WriteString(a.key + " ")
	}
	b.WriteString(")->" + s.result.key)
	return b.String()
}

var (
	symMu    sync.Mutex
	symTable = map[string]*Symbol{}
)

func internSymbol(s *Symbol) *Symbol {
	key := s.sigKey()
	symMu.Lock()
	defer symMu.Unlock()
	if got, ok := symTable[key]; ok {
		return got
	}
	symTable[key] = s
	return s
}

// normalizeName applies NFC so visually identical declarations intern
// to the same symbol.
func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// NewSymbol declares an uninterpreted function symbol. A zero-arity
// symbol declares a constant. Interpreted names are off limits: a
// declaration shadowing a connective at another signature would let
// name-based destructuring take the shadow for the real thing.
func NewSymbol(name string, args []*Sort, result *Sort) (*Symbol, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, &SortError{Op: "NewSymbol", Msg: "empty symbol name"}
	}
	if reservedNames[name] {
		return nil, &SortError{Op: "NewSymbol", Msg: fmt.Sprintf("name %s is reserved for an interpreted symbol", name)}
	}
	if result == nil {
		return nil, &SortError{Op: "NewSymbol", Msg: fmt.Sprintf("symbol %s has nil result sort", name)}
	}
	for i, a := range args {
		if a == nil {
			return nil, &SortError{Op: "NewSymbol", Msg: fmt.Sprintf("symbol %s has nil sort for argument %d", name, i)}
		}
	}
	as := make([]*Sort, len(args))
	copy(as, args)
	return internSymbol(&Symbol{name: name, args: as, result: result}), nil
}

func interpretedSymbol(name string, args []*Sort, result *Sort) *Symbol {
	return internSymbol(&Symbol{name: name, args: args, result: result, interpreted: true})
}

// Interpreted symbol names. Adapters and the evaluator switch on these.
const (
	SymTrue    = "true"
	SymFalse   = "false"
	SymNot     = "not"
	SymAnd     = "and"
	SymOr      = "or"
	SymImplies = "=>"
	SymEq      = "="
	SymIte     = "ite"
	SymAdd     = "+"
	SymSub     = "-"
	SymMul     = "*"
	SymNeg     = "neg"
	SymLt      = "<"
	SymLe      = "<="
	SymGt      = ">"
	SymGe      = ">="
	SymBVAdd   = "bvadd"
	SymBVAnd   = "bvand"
	SymBVOr    = "bvor"
	SymBVXor   = "bvxor"
	SymBVNot   = "bvnot"
	SymBVUlt   = "bvult"
)

var reservedNames = map[string]bool{
	SymTrue: true, SymFalse: true, SymNot: true, SymAnd: true,
	SymOr: true, SymImplies: true, SymEq: true, SymIte: true,
	SymAdd: true, SymSub: true, SymMul: true, SymNeg: true,
	SymLt: true, SymLe: true, SymGt: true, SymGe: true,
	SymBVAdd: true, SymBVAnd: true, SymBVOr: true, SymBVXor: true,
	SymBVNot: true, SymBVUlt: true,
}
