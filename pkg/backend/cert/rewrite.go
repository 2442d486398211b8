package cert

import (
	"encoding/json"
	"fmt"

	"github.com/Aanthord/knuckledragger/pkg/term"
)

// SchemeRewriteTrace names the equational rewrite trace scheme emitted
// by equality-saturation oracles.
const SchemeRewriteTrace = "rewrite-trace"

// RewriteTraceCert is the wire form of a rewrite trace: a step list
// turning the goal equation's left side into its right side using the
// hypothesis equations as oriented rewrite rules.
type RewriteTraceCert struct {
	Steps []RewriteStep `json:"steps"`
}

// RewriteStep applies hypothesis equation Rule, oriented left-to-right
// ("lr") or right-to-left ("rl"), at the subterm addressed by Path
// (child indices from the root).
type RewriteStep struct {
	Rule int    `json:"rule"`
	Dir  string `json:"dir"`
	Path []int  `json:"path"`
}

// EncodeRewriteTrace serializes a rewrite trace certificate.
func EncodeRewriteTrace(steps []RewriteStep) ([]byte, error) {
	return json.Marshal(RewriteTraceCert{Steps: steps})
}

// RewriteTrace validates rewrite traces by replaying every step
// against the hypothesis equations. Only the bound variables of a
// forall-quantified equation act as pattern variables; a bare equation
// is a fact about the exact terms it mentions and rewrites them
// node-for-node.
type RewriteTrace struct{}

func (RewriteTrace) Scheme() string { return SchemeRewriteTrace }

func (RewriteTrace) Check(tm *term.Interner, hyps []*term.Term, concl *term.Term, cert []byte) error {
	var c RewriteTraceCert
	if err := json.Unmarshal(cert, &c); err != nil {
		return fmt.Errorf("rewrite-trace: malformed certificate: %w", err)
	}
	lhs, rhs, ok := destEq(concl)
	if !ok {
		return fmt.Errorf("rewrite-trace: conclusion %s is not an equation", concl)
	}
	cur := lhs
	for i, step := range c.Steps {
		if step.Rule < 0 || step.Rule >= len(hyps) {
			return fmt.Errorf("rewrite-trace: step %d references rule %d of %d", i, step.Rule, len(hyps))
		}
		pvars, from, to, ok := destRule(tm, hyps[step.Rule])
		if !ok {
			return fmt.Errorf("rewrite-trace: hypothesis %d is not an equation", step.Rule)
		}
		if step.Dir == "rl" {
			from, to = to, from
		} else if step.Dir != "lr" {
			return fmt.Errorf("rewrite-trace: step %d has direction %q", i, step.Dir)
		}
		next, err := rewriteAt(tm, cur, step.Path, from, to, pvars)
		if err != nil {
			return fmt.Errorf("rewrite-trace: step %d: %w", i, err)
		}
		cur = next
	}
	if cur != rhs {
		return fmt.Errorf("rewrite-trace: trace ends at %s, want %s", cur, rhs)
	}
	return nil
}

// destRule splits a hypothesis into pattern variables and an oriented
// equation. A forall over an equation opens to a schematic rule; a
// bare equation carries no pattern variables, so its free variables
// stand only for themselves.
func destRule(tm *term.Interner, h *term.Term) (map[*term.Term]bool, *term.Term, *term.Term, bool) {
	if h != nil && h.Kind() == term.KindBinder && h.Binder() == term.Forall {
		vars, body, err := tm.Open(h)
		if err != nil {
			return nil, nil, nil, false
		}
		from, to, ok := destEq(body)
		if !ok {
			return nil, nil, nil, false
		}
		pvars := make(map[*term.Term]bool, len(vars))
		for _, v := range vars {
			pvars[v] = true
		}
		return pvars, from, to, true
	}
	from, to, ok := destEq(h)
	return nil, from, to, ok
}

// rewriteAt matches the pattern against the subterm at path and
// replaces it with the instantiated replacement.
func rewriteAt(tm *term.Interner, t *term.Term, path []int, pattern, repl *term.Term, pvars map[*term.Term]bool) (*term.Term, error) {
	if len(path) == 0 {
		binding := map[*term.Term]*term.Term{}
		if !match(pattern, t, pvars, binding) {
			return nil, fmt.Errorf("subterm %s does not match pattern %s", t, pattern)
		}
		for _, v := range term.FreeVars(repl) {
			if pvars[v] {
				if _, ok := binding[v]; !ok {
					return nil, fmt.Errorf("replacement variable %s unbound by pattern", v.Name())
				}
			}
		}
		return tm.Subst(repl, binding)
	}
	if t.Kind() != term.KindApp {
		return nil, fmt.Errorf("path descends into non-application %s", t)
	}
	args := t.Args()
	idx := path[0]
	if idx < 0 || idx >= len(args) {
		return nil, fmt.Errorf("path index %d out of range for %s", idx, t)
	}
	child, err := rewriteAt(tm, args[idx], path[1:], pattern, repl, pvars)
	if err != nil {
		return nil, err
	}
	args[idx] = child
	return tm.App(t.Symbol(), args...)
}

// match performs first-order syntactic matching: pattern variables
// bind subterms of their own sort, everything else must coincide
// node-for-node.
func match(pattern, t *term.Term, pvars map[*term.Term]bool, binding map[*term.Term]*term.Term) bool {
	if pattern.Kind() == term.KindFreeVar && pvars[pattern] {
		if prev, ok := binding[pattern]; ok {
			return prev == t
		}
		if pattern.Sort() != t.Sort() {
			return false
		}
		binding[pattern] = t
		return true
	}
	if pattern.Kind() != t.Kind() || pattern.Sort() != t.Sort() {
		return false
	}
	switch pattern.Kind() {
	case term.KindConst, term.KindFreeVar:
		return pattern == t
	case term.KindApp:
		if pattern.Symbol() != t.Symbol() {
			return false
		}
		pa, ta := pattern.Args(), t.Args()
		if len(pa) != len(ta) {
			return false
		}
		for i := range pa {
			if !match(pa[i], ta[i], pvars, binding) {
				return false
			}
		}
		return true
	default:
		// binders and first-class applications are matched only by
		// identity; eqsat traces stay first-order
		return pattern == t
	}
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
