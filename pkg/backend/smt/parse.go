package smt

import (
	"fmt"
	"strings"
	"unicode"
)

// parseOutput classifies solver output. The first meaningful line must
// be sat, unsat or unknown; anything else is treated as a crash, since
// a truncated or error-spewing solver cannot be trusted either way.
type outcome struct {
	status string // "sat", "unsat", "unknown"
	model  []modelEntry
}

type modelEntry struct {
	name  string
	sort  string
	value string
}

func parseOutput(out []byte) (*outcome, error) {
	text := strings.TrimSpace(string(out))
	if text == "" {
		return nil, fmt.Errorf("empty solver output")
	}
	line, rest, _ := strings.Cut(text, "\n")
	switch strings.TrimSpace(line) {
	case "unsat":
		return &outcome{status: "unsat"}, nil
	case "unknown":
		return &outcome{status: "unknown"}, nil
	case "sat":
		model, err := parseModel(rest)
		if err != nil {
			return nil, err
		}
		return &outcome{status: "sat", model: model}, nil
	case "timeout":
		return &outcome{status: "unknown"}, nil
	default:
		return nil, fmt.Errorf("unrecognized solver status %q", strings.TrimSpace(line))
	}
}

// parseModel extracts zero-arity define-fun entries from a get-model
// response. Function models are ignored; only constant assignments map
// back to goal variables.
func parseModel(text string) ([]modelEntry, error) {
	toks := tokenize(text)
	sexprs, err := readAll(toks)
	if err != nil {
		return nil, err
	}
	var entries []modelEntry
	var scan func(nodes []sexpr)
	scan = func(nodes []sexpr) {
		for _, n := range nodes {
			if n.atom != "" {
				continue
			}
			if len(n.list) >= 5 && n.list[0].atom == "define-fun" && n.list[1].atom != "" && n.list[2].atom == "" && len(n.list[2].list) == 0 {
				entries = append(entries, modelEntry{
					name:  n.list[1].atom,
					sort:  n.list[3].text(),
					value: n.list[4].text(),
				})
				continue
			}
			// z3 wraps entries in (model ...) on older versions
			if len(n.list) > 0 && n.list[0].atom == "model" {
				scan(n.list[1:])
				continue
			}
			scan(n.list)
		}
	}
	scan(sexprs)
	return entries, nil
}

type sexpr struct {
	atom string
	list []sexpr
}

func (s sexpr) text() string {
	if s.atom != "" {
		return s.atom
	}
	parts := make([]string, len(s.list))
	for i, c := range s.list {
		parts[i] = c.text()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func tokenize(text string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	inBar := false
	for _, r := range text {
		switch {
		case inBar:
			cur.WriteRune(r)
			if r == '|' {
				inBar = false
				flush()
			}
		case r == '|':
			flush()
			cur.WriteRune(r)
			inBar = true
		case r == '(' || r == ')':
			flush()
			toks = append(toks, string(r))
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

func readAll(toks []string) ([]sexpr, error) {
	var out []sexpr
	i := 0
	for i < len(toks) {
		s, next, err := readOne(toks, i)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		i = next
	}
	return out, nil
}

func readOne(toks []string, i int) (sexpr, int, error) {
	if i >= len(toks) {
		return sexpr{}, i, fmt.Errorf("unexpected end of solver output")
	}
	switch toks[i] {
	case "(":
		var children []sexpr
		i++
		for i < len(toks) && toks[i] != ")" {
			c, next, err := readOne(toks, i)
			if err != nil {
				return sexpr{}, i, err
			}
			children = append(children, c)
			i = next
		}
		if i >= len(toks) {
			return sexpr{}, i, fmt.Errorf("unbalanced parenthesis in solver output")
		}
		return sexpr{list: children}, i + 1, nil
	case ")":
		return sexpr{}, i, fmt.Errorf("unexpected ')' in solver output")
	default:
		return sexpr{atom: toks[i]}, i + 1, nil
	}
}
