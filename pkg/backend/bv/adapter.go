package bv

import (
	"context"
	"strings"
	"time"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// Adapter invokes an external BTOR2 model checker. Unreachability
// results are not independently checkable, so Refuted verdicts carry
// no certificate and require the oracle to be on the trusted list.
type Adapter struct {
	id      string
	command string
	args    []string
	timeout time.Duration
}

// NewAdapter configures a bit-vector adapter around a checker binary
// that reads BTOR2 on stdin (e.g. "btormc").
func NewAdapter(id, command string, args []string, timeout time.Duration) *Adapter {
	return &Adapter{id: id, command: command, args: args, timeout: timeout}
}

func (a *Adapter) ID() string { return a.id }

func (a *Adapter) Translate(hyps []*term.Term, concl *term.Term) (*backend.Job, error) {
	return Translate(a.id, hyps, concl)
}

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
		v.Detail = perr.Error()
		if s := strings.TrimSpace(string(res.Stderr)); s != "" {
			if len(s) > 512 {
				s = s[:512]
			}
			v.Detail += "; stderr: " + s
		}
		return v, nil
	}
	switch out.status {
	case "unsat":
		v.Kind = backend.Refuted
	case "unknown":
		v.Kind = backend.Unknown
	case "sat":
		v.Kind = backend.ModelFound
		v.Model = buildModel(out.witness, job)
	}
	return v, nil
}
