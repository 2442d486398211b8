// Package backend defines the adapter contract between the prover core
// and external automated-reasoning oracles: translate a goal to the
// oracle's native input, invoke it under a resource ceiling, and parse
// its output into a structured verdict. Adapters are untrusted; turning
// a verdict into a Theorem is the kernel's job, never an adapter's.
package backend

import (
	"fmt"
	"strings"
	"time"
)

// VerdictKind classifies the outcome of one oracle invocation.
type VerdictKind int

const (
	// Refuted means the negation of the goal is unsatisfiable, so the
	// conclusion is provable. May carry a checkable certificate.
	Refuted VerdictKind = iota
	// ModelFound means the oracle produced a concrete counterexample
	// witnessing the goal is false.
	ModelFound
	// Unknown means the oracle gave up without a verdict.
	Unknown
	// TimedOut means the invocation exceeded its wall-clock budget.
	TimedOut
	// Crashed means the oracle failed or produced unparseable output.
	Crashed
)

func (k VerdictKind) String() string {
	switch k {
	case Refuted:
		return "refuted"
	case ModelFound:
		return "model"
	case Unknown:
		return "unknown"
	case TimedOut:
		return "timed_out"
	case Crashed:
		return "crashed"
	}
	return fmt.Sprintf("verdict(%d)", int(k))
}

// Verdict is the parsed result of one oracle invocation.
type Verdict struct {
	Kind        VerdictKind
	Oracle      string
	Certificate []byte // optional machine-checkable evidence
	CertScheme  string // certificate format name, e.g. "truth-table"
	Model       *Model // set when Kind == ModelFound
	Detail      string // oracle-reported status text, for reports
	Elapsed     time.Duration
}

// Conclusive reports whether this verdict can end a race on its own.
// A Refuted verdict is conclusive pending the trust/certificate rule;
// a model is conclusive outright, since falsity needs one witness.
func (v *Verdict) Conclusive() bool {
	return v != nil && (v.Kind == Refuted || v.Kind == ModelFound)
}

// Model is a structured counterexample: a concrete assignment to the
// goal's free variables.
type Model struct {
	Assignments []Assignment
}

// Assignment binds one free variable to a concrete value, both printed
// in the source syntax of the oracle that produced them.
type Assignment struct {
	Name  string
	Sort  string
	Value string
}

func (m *Model) String() string {
	if m == nil || len(m.Assignments) == 0 {
		return "(empty model)"
	}
	parts := make([]string, len(m.Assignments))
	for i, a := range m.Assignments {
		parts[i] = fmt.Sprintf("%s = %s", a.Name, a.Value)
	}
	return strings.Join(parts, ", ")
}
