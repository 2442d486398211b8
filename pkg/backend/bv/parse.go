package bv

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

type output struct {
	status  string
	witness []witnessEntry
}

type witnessEntry struct {
	name  string
	value string // binary digits
}

// parseOutput reads a BTOR2 model checker answer: "unsat" when the bad
// property is unreachable, "sat" followed by a witness otherwise.
func parseOutput(raw []byte) (*output, error) {
	sc := bufio.NewScanner(bytes.NewReader(raw))
	out := &output{}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		switch line {
		case "sat", "unsat", "unknown":
			out.status = line
			continue
		case ".":
			return out, nil
		}
		if out.status != "sat" {
			continue
		}
		// property and frame markers: b0, #0, @0
		switch line[0] {
		case 'b', 'j', '#', '@':
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		out.witness = append(out.witness, witnessEntry{
			name:  trimFrame(fields[2]),
			value: fields[1],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if out.status == "" {
		return nil, fmt.Errorf("no sat/unsat answer in output")
	}
	return out, nil
}

// trimFrame strips the "@0" / "#0" frame suffix from a witness name.
func trimFrame(name string) string {
	if i := strings.IndexAny(name, "@#"); i >= 0 {
		return name[:i]
	}
	return name
}

// buildModel resolves witness names against the job's free variables
// so assignments carry the prover-side sort.
func buildModel(entries []witnessEntry, job *backend.Job) *backend.Model {
	sorts := map[string]*term.Sort{}
	for _, v := range job.FreeVars {
		switch v.Kind() {
		case term.KindFreeVar:
			sorts[v.Name()] = v.Sort()
		case term.KindConst:
			sorts[v.Symbol().Name()] = v.Sort()
		}
	}
	m := &backend.Model{}
	for _, e := range entries {
		a := backend.Assignment{Name: e.name, Value: "#b" + e.value}
		if s, ok := sorts[e.name]; ok {
			a.Sort = s.String()
			if s.Kind() == term.SortBool {
				a.Value = boolValue(e.value)
			}
		}
		m.Assignments = append(m.Assignments, a)
	}
	return m
}

func boolValue(bits string) string {
	if strings.ContainsRune(bits, '1') {
		return "true"
	}
	return "false"
}
