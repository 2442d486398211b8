// Package fol adapts goals to first-order resolution and superposition
// provers speaking TPTP FOF syntax (E, Vampire and compatible).
// Arithmetic, bit-vectors and higher-order constructs are outside FOF
// and demote the adapter via UntranslatableError.
package fol

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

type Adapter struct {
	id      string
	command string
	args    []string
	timeout time.Duration
}

// NewAdapter configures a TPTP adapter around a prover binary that
// reads a FOF problem on stdin.
func NewAdapter(id, command string, args []string, timeout time.Duration) *Adapter {
	return &Adapter{id: id, command: command, args: args, timeout: timeout}
}

func (a *Adapter) ID() string { return a.id }

// Translate renders the sequent as a TPTP FOF problem: one axiom per
// hypothesis and the conclusion as the conjecture.
func (a *Adapter) Translate(hyps []*term.Term, concl *term.Term) (*backend.Job, error) {
	p := &folPrinter{oracle: a.id, names: map[any]string{}, used: map[string]bool{}}
	var buf strings.Builder
	for i, h := range hyps {
		s, err := p.formula(h, nil)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "fof(h%d, axiom, %s).\n", i, s)
	}
	s, err := p.formula(concl, nil)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(&buf, "fof(goal, conjecture, %s).\n", s)
	return &backend.Job{OracleID: a.id, Input: []byte(buf.String())}, nil
}

// Invoke runs the prover and maps its SZS status to a verdict.
func (a *Adapter) Invoke(ctx context.Context, job *backend.Job) (*backend.Verdict, error) {
	res, err := backend.RunProcess(ctx, a.timeout, a.command, a.args, job.Input)
	if err != nil {
		return nil, err
	}
	v := &backend.Verdict{Oracle: a.id, Elapsed: res.Elapsed}
	if res.TimedOut {
		v.Kind = backend.TimedOut
		return v, nil
	}
	status, ok := szsStatus(res.Stdout)
	if !ok {
		v.Kind = backend.Crashed
		v.Detail = "no SZS status in prover output"
		return v, nil
	}
	v.Detail = status
	switch status {
	case "Theorem", "Unsatisfiable":
		v.Kind = backend.Refuted
	case "CounterSatisfiable", "Satisfiable":
		// FOF provers report countersatisfiability without a usable
		// finite assignment; the empty model still witnesses falsity.
		v.Kind = backend.ModelFound
		v.Model = &backend.Model{}
	case "Timeout", "ResourceOut":
		v.Kind = backend.TimedOut
	case "GaveUp", "Unknown", "Incomplete":
		v.Kind = backend.Unknown
	default:
		v.Kind = backend.Crashed
		v.Detail = "unrecognized SZS status " + status
	}
	return v, nil
}

// szsStatus scans prover output for the standard status line, e.g.
// "% SZS status Theorem for problem".
func szsStatus(out []byte) (string, bool) {
	for _, line := range strings.Split(string(out), "\n") {
		idx := strings.Index(line, "SZS status ")
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(line[idx+len("SZS status "):])
		status, _, _ := strings.Cut(rest, " ")
		if status != "" {
			return status, true
		}
	}
	return "", false
}

// folPrinter renders one problem. Sanitized functor names are not
// injective ("a-b" and "a_b" both sanitize to "a_b"), so the printer
// keeps a per-problem table mapping each symbol and free variable to a
// unique TPTP name, suffixing later arrivals that would collide.
type folPrinter struct {
	oracle string
	names  map[any]string
	used   map[string]bool
}

func (p *folPrinter) untranslatable(what string) error {
	return &backend.UntranslatableError{Oracle: p.oracle, Construct: what}
}

func (p *folPrinter) ident(key any, candidate string) string {
	if s, ok := p.names[key]; ok {
		return s
	}
	s := candidate
	for n := 2; p.used[s]; n++ {
		s = fmt.Sprintf("%s_%d", candidate, n)
	}
	p.names[key] = s
	p.used[s] = true
	return s
}

type folFrame struct {
	names []string
	prev  *folFrame
}

func (p *folPrinter) formula(t *term.Term, env *folFrame) (string, error) {
	switch t.Kind() {
	case term.KindConst:
		switch t.Symbol().Name() {
		case term.SymTrue:
			return "$true", nil
		case term.SymFalse:
			return "$false", nil
		}
		if t.Symbol().Interpreted() {
			return "", p.untranslatable("interpreted constant " + t.Symbol().Name())
		}
		return p.ident(t.Symbol(), folAtom(t.Symbol().Name())), nil
	case term.KindFreeVar:
		// Free variables of the sequent act as fresh constants.
		return p.ident(t, "c_"+folAtom(t.Name())), nil
	case term.KindBoundVar:
		bIdx, vIdx := t.BoundIndex()
		f := env
		for i := 0; i < bIdx && f != nil; i++ {
			f = f.prev
		}
		if f == nil || vIdx >= len(f.names) {
			return "", fmt.Errorf("fol: dangling bound variable")
		}
		return f.names[vIdx], nil
	case term.KindApplyFn:
		return "", p.untranslatable("first-class function application")
	case term.KindBinder:
		return p.binder(t, env)
	case term.KindApp:
		return p.app(t, env)
	}
	return "", fmt.Errorf("fol: unhandled term kind %d", t.Kind())
}

func (p *folPrinter) binder(t *term.Term, env *folFrame) (string, error) {
	var q string
	switch t.Binder() {
	case term.Forall:
		q = "!"
	case term.Exists:
		q = "?"
	default:
		return "", p.untranslatable("lambda abstraction")
	}
	names := make([]string, len(t.BoundSorts()))
	for i := range names {
		names[i] = fmt.Sprintf("X%d_%d", folDepth(env), i)
	}
	body, err := p.formula(t.Body(), &folFrame{names: names, prev: env})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s [%s] : (%s)", q, strings.Join(names, ","), body), nil
}

func (p *folPrinter) app(t *term.Term, env *folFrame) (string, error) {
	sym := t.Symbol()
	args := t.Args()
	sub := make([]string, len(args))
	for i, a := range args {
		s, err := p.formula(a, env)
		if err != nil {
			return "", err
		}
		sub[i] = s
	}
	if sym.Interpreted() {
		switch sym.Name() {
		case term.SymNot:
			return "~(" + sub[0] + ")", nil
		case term.SymAnd:
			return "(" + sub[0] + " & " + sub[1] + ")", nil
		case term.SymOr:
			return "(" + sub[0] + " | " + sub[1] + ")", nil
		case term.SymImplies:
			return "(" + sub[0] + " => " + sub[1] + ")", nil
		case term.SymEq:
			if args[0].Sort() == term.Bool() {
				return "(" + sub[0] + " <=> " + sub[1] + ")", nil
			}
			return "(" + sub[0] + " = " + sub[1] + ")", nil
		default:
			return "", p.untranslatable("interpreted symbol " + sym.Name())
		}
	}
	return p.ident(sym, folAtom(sym.Name())) + "(" + strings.Join(sub, ",") + ")", nil
}

func folDepth(env *folFrame) int {
	d := 0
	for f := env; f != nil; f = f.prev {
		d++
	}
	return d
}

// folAtom lowercases and sanitizes a name into a TPTP functor.
func folAtom(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r - 'A' + 'a')
		default:
			b.WriteString("_")
		}
	}
	s := b.String()
	if s == "" || !(s[0] >= 'a' && s[0] <= 'z') {
		s = "f_" + s
	}
	return s
}
