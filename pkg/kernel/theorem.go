// Package kernel is the trusted core of the prover. A Theorem can come
// into existence only through the primitive rules in this package or
// through the oracle admission paths in admit.go; both live behind this
// package boundary, so the compiler, not convention, enforces that no
// other code can fabricate one.
package kernel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Aanthord/knuckledragger/pkg/term"
)

// Theorem wraps a proved proposition together with the hypothesis set
// it depends on and the provenance of the step that produced it.
// Theorems are immutable and safe to share across goroutines.
type Theorem struct {
	hyps  []*term.Term // sorted by node id, deduplicated
	concl *term.Term
	prov  Provenance
}

// Provenance records how a theorem came to be. Premises reference the
// exact theorem values used, so a proof can be audited or re-derived
// without re-running search.
type Provenance struct {
	Rule     string
	OracleID string       // set for admitted verdicts
	Cert     string       // certificate scheme, if one was checked
	Premises []*Theorem   // direct premises, in rule-argument order
	TermArgs []*term.Term // rule term arguments (e.g. instantiation targets)
}

// Concl returns the proved proposition.
func (t *Theorem) Concl() *term.Term { return t.concl }

// Hyps returns the hypothesis set, ordered by node id.
func (t *Theorem) Hyps() []*term.Term {
	out := make([]*term.Term, len(t.hyps))
	copy(out, t.hyps)
	return out
}

// Provenance returns a copy of the theorem's provenance record.
func (t *Theorem) Provenance() Provenance {
	p := t.prov
	p.Premises = append([]*Theorem(nil), t.prov.Premises...)
	p.TermArgs = append([]*term.Term(nil), t.prov.TermArgs...)
	return p
}

func (t *Theorem) String() string {
	var b strings.Builder
	for i, h := range t.hyps {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(h.String())
	}
	if len(t.hyps) > 0 {
		b.WriteString(" ")
	}
	b.WriteString("|- " + t.concl.String())
	return b.String()
}

// Kernel mints theorems over one interner. All primitive rules are
// methods on this type.
type Kernel struct {
	tm *term.Interner
}

// New creates a kernel over the given interner.
func New(tm *term.Interner) *Kernel {
	return &Kernel{tm: tm}
}

// Interner returns the interner this kernel constructs terms with.
func (k *Kernel) Interner() *term.Interner { return k.tm }

func (k *Kernel) mk(rule string, hyps []*term.Term, concl *term.Term, prov Provenance) *Theorem {
	prov.Rule = rule
	return &Theorem{hyps: normalizeHyps(hyps), concl: concl, prov: prov}
}

func normalizeHyps(hyps []*term.Term) []*term.Term {
	if len(hyps) == 0 {
		return nil
	}
	seen := make(map[*term.Term]bool, len(hyps))
	out := make([]*term.Term, 0, len(hyps))
	for _, h := range hyps {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func unionHyps(a, b []*term.Term) []*term.Term {
	return normalizeHyps(append(append([]*term.Term(nil), a...), b...))
}

func removeHyp(hyps []*term.Term, h *term.Term) []*term.Term {
	out := make([]*term.Term, 0, len(hyps))
	for _, x := range hyps {
		if x != h {
			out = append(out, x)
		}
	}
	return out
}

// KernelError reports a violated precondition of a primitive rule. It
// indicates a bug in the caller, never in the logic; it is always
// surfaced and must not be swallowed.
type KernelError struct {
	Rule         string
	Precondition string
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("kernel rule %s: precondition violated: %s", e.Rule, e.Precondition)
}

func kerr(rule, format string, args ...any) *KernelError {
	return &KernelError{Rule: rule, Precondition: fmt.Sprintf(format, args...)}
}
