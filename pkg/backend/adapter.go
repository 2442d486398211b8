package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aanthord/knuckledragger/pkg/term"
)

// Job is one translated oracle invocation: the goal rendered
// byte-for-byte in the oracle's input grammar, plus whatever the
// adapter needs to interpret the answer.
type Job struct {
	OracleID string
	Input    []byte
	// FreeVars records the goal's free variables in declaration order
	// so model output can be mapped back to source names.
	FreeVars []*term.Term
}

// Adapter translates goals to one oracle family's wire format, invokes
// the oracle, and parses its output. Translate must be total and
// deterministic; a construct the oracle cannot express is reported via
// UntranslatableError, which demotes the adapter from the current race
// without failing the proof attempt.
type Adapter interface {
	// ID returns the configured oracle identifier.
	ID() string
	// Translate renders the sequent hyps |- concl into the oracle's
	// native input.
	Translate(hyps []*term.Term, concl *term.Term) (*Job, error)
	// Invoke runs the oracle on a translated job. Timeouts and crashes
	// are verdicts, not errors; errors are reserved for adapter bugs.
	Invoke(ctx context.Context, job *Job) (*Verdict, error)
}

// UntranslatableError reports a goal construct outside an oracle's
// input language.
type UntranslatableError struct {
	Oracle    string
	Construct string
}

func (e *UntranslatableError) Error() string {
	return fmt.Sprintf("oracle %s cannot express %s", e.Oracle, e.Construct)
}

// IsUntranslatable reports whether err is an UntranslatableError.
func IsUntranslatable(err error) bool {
	var ue *UntranslatableError
	return errors.As(err, &ue)
}
