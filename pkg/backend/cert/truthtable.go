// Package cert implements certificate validators. A validator
// re-establishes an oracle's Refuted verdict by independent means,
// keeping the oracle itself outside the trust boundary: the kernel
// mints a theorem only after the validator accepts.
package cert

import (
	"encoding/json"
	"fmt"

	"github.com/Aanthord/knuckledragger/pkg/term"
)

// SchemeTruthTable names the exhaustive boolean enumeration scheme.
const SchemeTruthTable = "truth-table"

// maxTruthTableVars bounds re-checking cost.
const maxTruthTableVars = 20

// truthTableCert is the wire form of a truth-table certificate. The
// validator does not trust the claimed rows; it recomputes the whole
// table, so the certificate only needs to nominate the variables.
type truthTableCert struct {
	Vars []string `json:"vars"`
}

// EncodeTruthTable builds a truth-table certificate over the named
// variables.
func EncodeTruthTable(vars []string) ([]byte, error) {
	return json.Marshal(truthTableCert{Vars: vars})
}

// TruthTable validates truth-table certificates by exhaustively
// re-evaluating the claim over every boolean assignment.
type TruthTable struct{}

func (TruthTable) Scheme() string { return SchemeTruthTable }

// Check re-evaluates (hyps => concl) under all assignments to its free
// variables. All free variables must be boolean and the certificate
// must nominate every one of them.
func (TruthTable) Check(tm *term.Interner, hyps []*term.Term, concl *term.Term, cert []byte) error {
	var c truthTableCert
	if err := json.Unmarshal(cert, &c); err != nil {
		return fmt.Errorf("truth-table: malformed certificate: %w", err)
	}
	named := map[string]bool{}
	for _, n := range c.Vars {
		named[n] = true
	}

	seen := map[*term.Term]bool{}
	var vars []*term.Term
	collect := func(t *term.Term) error {
		for _, v := range term.FreeVars(t) {
			if v.Sort() != term.Bool() {
				return fmt.Errorf("truth-table: free variable %s has sort %s, want Bool", v.Name(), v.Sort())
			}
			if !named[v.Name()] {
				return fmt.Errorf("truth-table: certificate does not cover variable %s", v.Name())
			}
			if !seen[v] {
				seen[v] = true
				vars = append(vars, v)
			}
		}
		return nil
	}
	for _, h := range hyps {
		if err := collect(h); err != nil {
			return err
		}
	}
	if err := collect(concl); err != nil {
		return err
	}
	if len(vars) > maxTruthTableVars {
		return fmt.Errorf("truth-table: %d variables exceeds the checkable bound %d", len(vars), maxTruthTableVars)
	}

	n := len(vars)
	for bits := 0; bits < 1<<n; bits++ {
		env := make(map[*term.Term]bool, n)
		for i, v := range vars {
			env[v] = bits&(1<<i) != 0
		}
		holds := true
		for _, h := range hyps {
			hv, err := EvalBool(h, env)
			if err != nil {
				return err
			}
			if !hv {
				holds = false
				break
			}
		}
		if !holds {
			continue // hypotheses falsified, row vacuously fine
		}
		cv, err := EvalBool(concl, env)
		if err != nil {
			return err
		}
		if !cv {
			return fmt.Errorf("truth-table: claim fails under assignment %d", bits)
		}
	}
	return nil
}

// EvalBool evaluates a purely propositional term under a boolean
// assignment. Anything outside the propositional fragment is an error:
// the validator must refuse rather than guess.
func EvalBool(t *term.Term, env map[*term.Term]bool) (bool, error) {
	switch t.Kind() {
	case term.KindFreeVar:
		v, ok := env[t]
		if !ok {
			return false, fmt.Errorf("truth-table: unassigned variable %s", t.Name())
		}
		return v, nil
	case term.KindConst:
		switch t.Symbol().Name() {
		case term.SymTrue:
			return true, nil
		case term.SymFalse:
			return false, nil
		}
		return false, fmt.Errorf("truth-table: non-propositional constant %s", t.Symbol().Name())
	case term.KindApp:
		args := t.Args()
		switch t.Symbol().Name() {
		case term.SymNot:
			v, err := EvalBool(args[0], env)
			return !v, err
		case term.SymAnd, term.SymOr, term.SymImplies:
			a, err := EvalBool(args[0], env)
			if err != nil {
				return false, err
			}
			b, err := EvalBool(args[1], env)
			if err != nil {
				return false, err
			}
			switch t.Symbol().Name() {
			case term.SymAnd:
				return a && b, nil
			case term.SymOr:
				return a || b, nil
			default:
				return !a || b, nil
			}
		case term.SymEq:
			if args[0].Sort() != term.Bool() {
				return false, fmt.Errorf("truth-table: non-propositional equation")
			}
			a, err := EvalBool(args[0], env)
			if err != nil {
				return false, err
			}
			b, err := EvalBool(args[1], env)
			if err != nil {
				return false, err
			}
			return a == b, nil
		case term.SymIte:
			c, err := EvalBool(args[0], env)
			if err != nil {
				return false, err
			}
			if c {
				return EvalBool(args[1], env)
			}
			return EvalBool(args[2], env)
		}
		return false, fmt.Errorf("truth-table: non-propositional symbol %s", t.Symbol().Name())
	default:
		return false, fmt.Errorf("truth-table: non-propositional construct")
	}
}
