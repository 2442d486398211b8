// Package eqsat adapts external equality-saturation engines. The
// oracle receives the hypothesis equations as rewrite rules plus the
// goal equation, and answers with a rewrite trace that is replayed
// locally, so these oracles never need to be trusted.
package eqsat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/backend/cert"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// Adapter invokes an external equality-saturation process that reads
// one s-expression per line:
//
//	(rule <lhs> <rhs>)   for every hypothesis equation
//	(check <lhs> <rhs>)  for the goal equation
//
// and answers "proved" followed by one "(step <rule> <lr|rl> <path...>)"
// line per rewrite, or "unknown".
type Adapter struct {
	id      string
	command string
	args    []string
	timeout time.Duration
}

func NewAdapter(id, command string, args []string, timeout time.Duration) *Adapter {
	return &Adapter{id: id, command: command, args: args, timeout: timeout}
}

func (a *Adapter) ID() string { return a.id }

// Translate renders the sequent as rule and check lines. A hypothesis
// is either a forall over an equation, whose bound variables become
// the rule's pattern variables, or a bare equation, which is a ground
// fact about the exact terms it names. The goal must be a bare
// equation. Anything else, and any nested binder or first-class
// function, is untranslatable.
func (a *Adapter) Translate(hyps []*term.Term, concl *term.Term) (*backend.Job, error) {
	var sb strings.Builder
	vars := map[*term.Term]bool{}
	for _, h := range hyps {
		lhs, rhs, ok := destRule(h)
		if !ok {
			return nil, &backend.UntranslatableError{Oracle: a.id, Construct: "non-equational hypothesis"}
		}
		if err := a.checkFirstOrder(lhs, vars, true); err != nil {
			return nil, err
		}
		if err := a.checkFirstOrder(rhs, vars, true); err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, "(rule %s %s)\n", lhs, rhs)
	}
	lhs, rhs, ok := destEq(concl)
	if !ok {
		return nil, &backend.UntranslatableError{Oracle: a.id, Construct: "non-equational goal"}
	}
	if err := a.checkFirstOrder(lhs, vars, false); err != nil {
		return nil, err
	}
	if err := a.checkFirstOrder(rhs, vars, false); err != nil {
		return nil, err
	}
	fmt.Fprintf(&sb, "(check %s %s)\n", lhs, rhs)

	free := make([]*term.Term, 0, len(vars))
	for v := range vars {
		free = append(free, v)
	}
	return &backend.Job{OracleID: a.id, Input: []byte(sb.String()), FreeVars: free}, nil
}

// checkFirstOrder rejects higher-order structure. Inside a rule side
// the outer forall's variables occur as bound references, so ruleSide
// admits them; the goal admits none.
func (a *Adapter) checkFirstOrder(t *term.Term, vars map[*term.Term]bool, ruleSide bool) error {
	switch t.Kind() {
	case term.KindConst:
		return nil
	case term.KindFreeVar:
		vars[t] = true
		return nil
	case term.KindBoundVar:
		if ruleSide {
			return nil
		}
		return &backend.UntranslatableError{Oracle: a.id, Construct: "dangling bound variable"}
	case term.KindApp:
		for _, arg := range t.Args() {
			if err := a.checkFirstOrder(arg, vars, ruleSide); err != nil {
				return err
			}
		}
		return nil
	case term.KindBinder:
		return &backend.UntranslatableError{Oracle: a.id, Construct: "binder"}
	case term.KindApplyFn:
		return &backend.UntranslatableError{Oracle: a.id, Construct: "first-class function application"}
	default:
		return &backend.UntranslatableError{Oracle: a.id, Construct: "dangling bound variable"}
	}
}

// destRule splits a hypothesis into an oriented rule. A forall over an
// equation contributes its body with the bound variables left as
// references; the certificate checker replays the trace with exactly
// the same pattern-variable discipline.
func destRule(h *term.Term) (*term.Term, *term.Term, bool) {
	if h != nil && h.Kind() == term.KindBinder && h.Binder() == term.Forall {
		return destEq(h.Body())
	}
	return destEq(h)
}

// Invoke runs the engine and converts a proved answer into a
// rewrite-trace certificate.
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
	status, steps, perr := parseOutput(res.Stdout)
	if perr != nil {
		v.Kind = backend.Crashed
		v.Detail = perr.Error()
		if s := strings.TrimSpace(string(res.Stderr)); s != "" {
			if len(s) > 512 {
				s = s[:512]
			}
			v.Detail += "; stderr: " + s
		}
		return v, nil
	}
	switch status {
	case "proved":
		enc, err := cert.EncodeRewriteTrace(steps)
		if err != nil {
			return nil, err
		}
		v.Kind = backend.Refuted
		v.Certificate = enc
		v.CertScheme = cert.SchemeRewriteTrace
	case "timeout":
		v.Kind = backend.TimedOut
	default:
		v.Kind = backend.Unknown
	}
	return v, nil
}

func parseOutput(out []byte) (string, []cert.RewriteStep, error) {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return "", nil, fmt.Errorf("empty output")
	}
	status := strings.TrimSpace(lines[0])
	switch status {
	case "proved":
	case "unknown", "timeout":
		return status, nil, nil
	default:
		return "", nil, fmt.Errorf("unrecognized answer %q", status)
	}
	var steps []cert.RewriteStep
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		step, err := parseStep(line)
		if err != nil {
			return "", nil, err
		}
		steps = append(steps, step)
	}
	if len(steps) == 0 {
		return "", nil, fmt.Errorf("proved answer with no trace")
	}
	return status, steps, nil
}

func parseStep(line string) (cert.RewriteStep, error) {
	var step cert.RewriteStep
	if !strings.HasPrefix(line, "(step ") || !strings.HasSuffix(line, ")") {
		return step, fmt.Errorf("malformed step line %q", line)
	}
	fields := strings.Fields(line[len("(step ") : len(line)-1])
	if len(fields) < 2 {
		return step, fmt.Errorf("malformed step line %q", line)
	}
	rule, err := strconv.Atoi(fields[0])
	if err != nil {
		return step, fmt.Errorf("malformed step line %q: %w", line, err)
	}
	step.Rule = rule
	step.Dir = fields[1]
	if step.Dir != "lr" && step.Dir != "rl" {
		return step, fmt.Errorf("malformed step direction in %q", line)
	}
	for _, f := range fields[2:] {
		idx, err := strconv.Atoi(f)
		if err != nil {
			return step, fmt.Errorf("malformed step path in %q: %w", line, err)
		}
		step.Path = append(step.Path, idx)
	}
	return step, nil
}

func destEq(t *term.Term) (*term.Term, *term.Term, bool) {
	if t == nil || t.Kind() != term.KindApp || t.Symbol().Name() != term.SymEq || !t.Symbol().Interpreted() {
		return nil, nil, false
	}
	args := t.Args()
	if len(args) != 2 {
		return nil, nil, false
	}
	return args[0], args[1], true
}
