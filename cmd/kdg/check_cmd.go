package main

import (
	"flag"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/Aanthord/knuckledragger/pkg/config"
)

// runCheckCmd implements `kdg check`: schema-validate an oracle
// registry and, with --engines, probe the declared solver binaries for
// their versions.
//
// Exit codes:
//
//	0 = registry valid
//	1 = registry invalid or engine constraint unmet
//	2 = runtime error
func runCheckCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("check", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		registryPath string
		probeEngines bool
	)
	cmd.StringVar(&registryPath, "registry", "", "Path to oracle registry YAML (REQUIRED)")
	cmd.BoolVar(&probeEngines, "engines", false, "Probe solver binaries and check version constraints")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if registryPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --registry is required")
		return 2
	}

	reg, err := config.LoadRegistry(registryPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	for _, o := range reg.Oracles {
		trust := "certificate-or-untrusted"
		if o.Trusted {
			trust = "trusted"
		}
		_, _ = fmt.Fprintf(stdout, "%-16s kind=%-8s %s\n", o.ID, o.Kind, trust)
	}

	if probeEngines {
		installed := map[string]string{}
		for _, o := range reg.Oracles {
			if o.Engine == "" || o.Command == "" {
				continue
			}
			if _, ok := installed[o.Engine]; ok {
				continue
			}
			v, err := probeVersion(o.Command)
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "Error: probe %s: %v\n", o.Engine, err)
				return 1
			}
			installed[o.Engine] = v
			_, _ = fmt.Fprintf(stdout, "engine %s: %s\n", o.Engine, v)
		}
		if err := reg.CheckEngines(installed); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	_, _ = fmt.Fprintf(stdout, "Registry OK: %d oracles\n", len(reg.Oracles))
	return 0
}

// probeVersion asks a solver binary for its version. The first token
// that parses as a dotted number wins; solvers disagree on the rest of
// the line.
func probeVersion(command string) (string, error) {
	out, err := exec.Command(command, "--version").CombinedOutput()
	if err != nil {
		return "", err
	}
	for _, tok := range strings.Fields(string(out)) {
		tok = strings.TrimPrefix(tok, "v")
		if len(tok) > 0 && tok[0] >= '0' && tok[0] <= '9' && strings.Contains(tok, ".") {
			return tok, nil
		}
	}
	return "", fmt.Errorf("no version in %q", strings.TrimSpace(string(out)))
}
