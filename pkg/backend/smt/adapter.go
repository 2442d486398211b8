package smt

import (
	"context"
	"strings"
	"time"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// Adapter invokes an external SMT-LIB 2 solver process. SMT proofs are
// not independently checkable here, so Refuted verdicts carry no
// certificate and require the oracle to be on the trusted list.
type Adapter struct {
	id      string
	command string
	args    []string
	timeout time.Duration
}

// NewAdapter configures an SMT adapter around a solver binary that
// reads SMT-LIB 2 on stdin (e.g. "z3 -in").
func NewAdapter(id, command string, args []string, timeout time.Duration) *Adapter {
	return &Adapter{id: id, command: command, args: args, timeout: timeout}
}

func (a *Adapter) ID() string { return a.id }

// Translate renders the sequent as an SMT-LIB 2 script.
func (a *Adapter) Translate(hyps []*term.Term, concl *term.Term) (*backend.Job, error) {
	return Translate(a.id, hyps, concl)
}

// Invoke runs the solver and parses its answer into a verdict.
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
	out, perr := parseOutput(res.Stdout)
	if perr != nil {
		v.Kind = backend.Crashed
		v.Detail = crashDetail(perr, res)
		return v, nil
	}
	switch out.status {
	case "unsat":
		v.Kind = backend.Refuted
	case "unknown":
		v.Kind = backend.Unknown
	case "sat":
		v.Kind = backend.ModelFound
		v.Model = buildModel(out.model, job)
	}
	return v, nil
}

func buildModel(entries []modelEntry, job *backend.Job) *backend.Model {
	m := &backend.Model{}
	for _, e := range entries {
		m.Assignments = append(m.Assignments, backend.Assignment{
			Name:  strings.Trim(e.name, "|"),
			Sort:  e.sort,
			Value: e.value,
		})
	}
	return m
}

func crashDetail(perr error, res *backend.ProcResult) string {
	detail := perr.Error()
	if res.ExitErr != nil {
		detail += "; " + res.ExitErr.Error()
	}
	if s := strings.TrimSpace(string(res.Stderr)); s != "" {
		if len(s) > 512 {
			s = s[:512]
		}
		detail += "; stderr: " + s
	}
	return detail
}
