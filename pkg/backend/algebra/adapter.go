// Package algebra is an in-process evaluation oracle built on CEL.
// The sequent is compiled to a CEL expression and decided by
// enumeration: boolean variables are enumerated exhaustively, integer
// variables are sampled over a small window. Exhaustive enumeration
// yields a Refuted verdict with a truth-table certificate; sampling can
// only ever produce a counterexample or Unknown, never a proof.
package algebra

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/backend/cert"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// maxBoolVars bounds exhaustive enumeration.
const maxBoolVars = 16

// intSampleWindow is the half-width of the integer sampling range.
const intSampleWindow = 8

// maxSamples caps the assignment product for mixed goals.
const maxSamples = 1 << 16

type Adapter struct {
	id string
}

func NewAdapter(id string) *Adapter {
	return &Adapter{id: id}
}

func (a *Adapter) ID() string { return a.id }

// jobSpec is the serialized translation carried in Job.Input.
type jobSpec struct {
	Expr string    `json:"expr"`
	Vars []varSpec `json:"vars"`
}

type varSpec struct {
	Name string `json:"name"` // source-level variable name
	CEL  string `json:"cel"`  // sanitized CEL identifier
	Sort string `json:"sort"` // "bool" or "int"
}

// Translate compiles the claim (h1 and ... and hn) => concl into CEL
// source. Reals are rejected to keep evaluation exact; uninterpreted
// symbols, bit-vectors and binders have no evaluation here.
func (a *Adapter) Translate(hyps []*term.Term, concl *term.Term) (*backend.Job, error) {
	claim := concl
	vars := map[*term.Term]*varSpec{}
	var order []*term.Term

	tr := &celPrinter{oracle: a.id, vars: vars, order: &order}
	conclSrc, err := tr.print(claim)
	if err != nil {
		return nil, err
	}
	src := conclSrc
	if len(hyps) > 0 {
		parts := make([]string, len(hyps))
		for i, h := range hyps {
			s, err := tr.print(h)
			if err != nil {
				return nil, err
			}
			parts[i] = s
		}
		src = fmt.Sprintf("!(%s) || (%s)", strings.Join(parts, " && "), conclSrc)
	}

	spec := jobSpec{Expr: src}
	for _, v := range order {
		spec.Vars = append(spec.Vars, *vars[v])
	}
	raw, err := json.Marshal(spec)
	if err != nil {
		return nil, err
	}
	return &backend.Job{OracleID: a.id, Input: raw, FreeVars: order}, nil
}

// Invoke evaluates the compiled claim over the assignment space.
func (a *Adapter) Invoke(ctx context.Context, job *backend.Job) (*backend.Verdict, error) {
	start := time.Now()
	var spec jobSpec
	if err := json.Unmarshal(job.Input, &spec); err != nil {
		return nil, fmt.Errorf("algebra: bad job: %w", err)
	}

	opts := make([]cel.EnvOption, 0, len(spec.Vars))
	for _, v := range spec.Vars {
		switch v.Sort {
		case "bool":
			opts = append(opts, cel.Variable(v.CEL, cel.BoolType))
		case "int":
			opts = append(opts, cel.Variable(v.CEL, cel.IntType))
		default:
			return nil, fmt.Errorf("algebra: unknown variable sort %q", v.Sort)
		}
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(spec.Expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("algebra: compile: %w", iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	exhaustive := true
	for _, v := range spec.Vars {
		if v.Sort != "bool" {
			exhaustive = false
		}
	}
	if len(spec.Vars) > maxBoolVars {
		exhaustive = false
	}

	space := newAssignSpace(spec.Vars)
	count := 0
	for {
		act, ok := space.next()
		if !ok {
			break
		}
		if count++; count > maxSamples {
			exhaustive = false
			break
		}
		select {
		case <-ctx.Done():
			return &backend.Verdict{Kind: backend.TimedOut, Oracle: a.id, Elapsed: time.Since(start)}, nil
		default:
		}
		out, _, err := prg.Eval(act)
		if err != nil {
			return &backend.Verdict{Kind: backend.Crashed, Oracle: a.id, Detail: err.Error(), Elapsed: time.Since(start)}, nil
		}
		holds, ok := out.Value().(bool)
		if !ok {
			return &backend.Verdict{Kind: backend.Crashed, Oracle: a.id, Detail: "non-boolean evaluation result", Elapsed: time.Since(start)}, nil
		}
		if !holds {
			return &backend.Verdict{
				Kind:    backend.ModelFound,
				Oracle:  a.id,
				Model:   modelFrom(spec.Vars, act),
				Elapsed: time.Since(start),
			}, nil
		}
	}
	if !exhaustive {
		return &backend.Verdict{Kind: backend.Unknown, Oracle: a.id, Detail: "no counterexample in sampled assignments", Elapsed: time.Since(start)}, nil
	}

	names := make([]string, len(spec.Vars))
	for i, v := range spec.Vars {
		names[i] = v.Name
	}
	certBytes, err := cert.EncodeTruthTable(names)
	if err != nil {
		return nil, err
	}
	return &backend.Verdict{
		Kind:        backend.Refuted,
		Oracle:      a.id,
		Certificate: certBytes,
		CertScheme:  cert.SchemeTruthTable,
		Elapsed:     time.Since(start),
	}, nil
}

// assignSpace walks the assignment space lazily, one assignment at a
// time: booleans exhaustively, ints over [-intSampleWindow,
// intSampleWindow]. Materializing the full cross product up front
// would allocate 2^n maps before the sample cap could intervene.
type assignSpace struct {
	vars   []varSpec
	values [][]any
	idx    []int
	done   bool
}

func newAssignSpace(vars []varSpec) *assignSpace {
	s := &assignSpace{
		vars:   vars,
		values: make([][]any, len(vars)),
		idx:    make([]int, len(vars)),
	}
	for i, v := range vars {
		if v.Sort == "bool" {
			s.values[i] = []any{false, true}
			continue
		}
		ints := make([]any, 0, 2*intSampleWindow+1)
		for n := -intSampleWindow; n <= intSampleWindow; n++ {
			ints = append(ints, int64(n))
		}
		s.values[i] = ints
	}
	return s
}

// next returns the current assignment and steps the odometer, last
// variable fastest. The zero-variable space holds exactly the empty
// assignment.
func (s *assignSpace) next() (map[string]any, bool) {
	if s.done {
		return nil, false
	}
	m := make(map[string]any, len(s.vars))
	for i, v := range s.vars {
		m[v.CEL] = s.values[i][s.idx[i]]
	}
	for i := len(s.idx) - 1; ; i-- {
		if i < 0 {
			s.done = true
			break
		}
		s.idx[i]++
		if s.idx[i] < len(s.values[i]) {
			break
		}
		s.idx[i] = 0
	}
	return m, true
}

func modelFrom(vars []varSpec, act map[string]any) *backend.Model {
	m := &backend.Model{}
	for _, v := range vars {
		m.Assignments = append(m.Assignments, backend.Assignment{
			Name:  v.Name,
			Sort:  v.Sort,
			Value: fmt.Sprintf("%v", act[v.CEL]),
		})
	}
	return m
}

type celPrinter struct {
	oracle string
	vars   map[*term.Term]*varSpec
	order  *[]*term.Term
}

func (p *celPrinter) untranslatable(what string) error {
	return &backend.UntranslatableError{Oracle: p.oracle, Construct: what}
}

func (p *celPrinter) print(t *term.Term) (string, error) {
	switch t.Kind() {
	case term.KindConst:
		return p.constant(t)
	case term.KindFreeVar:
		return p.variable(t)
	case term.KindApp:
		return p.app(t)
	case term.KindApplyFn:
		return "", p.untranslatable("first-class function application")
	case term.KindBinder:
		return "", p.untranslatable("quantified goal")
	case term.KindBoundVar:
		return "", fmt.Errorf("algebra: dangling bound variable")
	}
	return "", fmt.Errorf("algebra: unhandled term kind %d", t.Kind())
}

func (p *celPrinter) constant(t *term.Term) (string, error) {
	sym := t.Symbol()
	switch sym.Name() {
	case term.SymTrue:
		return "true", nil
	case term.SymFalse:
		return "false", nil
	}
	if v, ok := sym.IntValue(); ok {
		if !v.IsInt64() {
			return "", p.untranslatable("integer literal outside int64")
		}
		return v.String(), nil
	}
	if _, ok := sym.RatValue(); ok {
		return "", p.untranslatable("real arithmetic")
	}
	if _, ok := sym.BitVecValue(); ok {
		return "", p.untranslatable("bit-vector arithmetic")
	}
	return "", p.untranslatable("uninterpreted constant " + sym.Name())
}

func (p *celPrinter) variable(t *term.Term) (string, error) {
	if vs, ok := p.vars[t]; ok {
		return vs.CEL, nil
	}
	var sortName string
	switch t.Sort() {
	case term.Bool():
		sortName = "bool"
	case term.Int():
		sortName = "int"
	default:
		return "", p.untranslatable("variable of sort " + t.Sort().String())
	}
	vs := &varSpec{
		Name: t.Name(),
		CEL:  fmt.Sprintf("v%d", len(p.vars)),
		Sort: sortName,
	}
	p.vars[t] = vs
	*p.order = append(*p.order, t)
	return vs.CEL, nil
}

func (p *celPrinter) app(t *term.Term) (string, error) {
	sym := t.Symbol()
	if !sym.Interpreted() {
		return "", p.untranslatable("uninterpreted symbol " + sym.Name())
	}
	args := t.Args()
	sub := make([]string, len(args))
	for i, a := range args {
		s, err := p.print(a)
		if err != nil {
			return "", err
		}
		sub[i] = s
	}
	switch sym.Name() {
	case term.SymNot:
		return "!(" + sub[0] + ")", nil
	case term.SymAnd:
		return "(" + sub[0] + " && " + sub[1] + ")", nil
	case term.SymOr:
		return "(" + sub[0] + " || " + sub[1] + ")", nil
	case term.SymImplies:
		return "(!(" + sub[0] + ") || (" + sub[1] + "))", nil
	case term.SymEq:
		return "(" + sub[0] + " == " + sub[1] + ")", nil
	case term.SymIte:
		return "((" + sub[0] + ") ? (" + sub[1] + ") : (" + sub[2] + "))", nil
	case term.SymAdd:
		return "(" + sub[0] + " + " + sub[1] + ")", nil
	case term.SymSub:
		return "(" + sub[0] + " - " + sub[1] + ")", nil
	case term.SymMul:
		return "(" + sub[0] + " * " + sub[1] + ")", nil
	case term.SymNeg:
		return "(-(" + sub[0] + "))", nil
	case term.SymLt:
		return "(" + sub[0] + " < " + sub[1] + ")", nil
	case term.SymLe:
		return "(" + sub[0] + " <= " + sub[1] + ")", nil
	case term.SymGt:
		return "(" + sub[0] + " > " + sub[1] + ")", nil
	case term.SymGe:
		return "(" + sub[0] + " >= " + sub[1] + ")", nil
	default:
		return "", p.untranslatable("interpreted symbol " + sym.Name())
	}
}
