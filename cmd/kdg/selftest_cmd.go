package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/Aanthord/knuckledragger/pkg/backend/algebra"
	"github.com/Aanthord/knuckledragger/pkg/backend/cert"
	"github.com/Aanthord/knuckledragger/pkg/dispatch"
	"github.com/Aanthord/knuckledragger/pkg/prooflog"
	"github.com/Aanthord/knuckledragger/pkg/session"
	"github.com/Aanthord/knuckledragger/pkg/tactic"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

// runSelftestCmd implements `kdg selftest`: prove a conjunction goal
// through the tactic engine, mint a tautology through the oracle
// dispatcher's certificate path, disprove a falsifiable goal, then
// replay everything and optionally export the proof log.
//
// Exit codes:
//
//	0 = all checks passed
//	1 = a check failed
//	2 = runtime error
func runSelftestCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("selftest", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var exportPath string
	cmd.StringVar(&exportPath, "export", "", "Export the proof log to a sqlite database")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	s := session.New()
	tm := s.Interner()
	prover := tactic.NewProver(s.Kernel(), tactic.Budget{
		MaxSteps: 1000,
		Deadline: 30 * time.Second,
	})

	p, err := tm.FreeVar("p", term.Bool())
	if err != nil {
		return fatal(stderr, err)
	}
	q, err := tm.FreeVar("q", term.Bool())
	if err != nil {
		return fatal(stderr, err)
	}

	// 1. (p /\ q) => p through structural tactics alone.
	conj, err := tm.And(p, q)
	if err != nil {
		return fatal(stderr, err)
	}
	imp, err := tm.Implies(conj, p)
	if err != nil {
		return fatal(stderr, err)
	}
	goal, err := tactic.NewGoal(nil, imp)
	if err != nil {
		return fatal(stderr, err)
	}
	th, err := tactic.Prove(ctx, prover, goal, tactic.Then(tactic.Intro(), tactic.Assumption()))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "FAIL: conjunction elimination: %v\n", err)
		return 1
	}
	if err := s.Save("conj_elim", th); err != nil {
		return fatal(stderr, err)
	}
	_, _ = fmt.Fprintf(stdout, "proved   %s\n", th)

	// 2. p \/ ~p through the dispatcher: the algebra oracle answers
	// with a truth-table certificate the kernel checks before minting.
	np, err := tm.Not(p)
	if err != nil {
		return fatal(stderr, err)
	}
	lem, err := tm.Or(p, np)
	if err != nil {
		return fatal(stderr, err)
	}
	d := dispatch.New(s.Kernel(), nil,
		[]dispatch.Entry{{Adapter: algebra.NewAdapter("algebra")}},
		dispatch.WithChecker(cert.TruthTable{}),
	)
	lemTh, verdict, err := d.Prove(ctx, nil, lem)
	if err != nil {
		return fatal(stderr, err)
	}
	if lemTh == nil {
		_, _ = fmt.Fprintf(stderr, "FAIL: excluded middle: verdict %v, no theorem\n", verdict)
		return 1
	}
	if err := s.Save("excluded_middle", lemTh); err != nil {
		return fatal(stderr, err)
	}
	_, _ = fmt.Fprintf(stdout, "minted   %s  (oracle=%s cert=%s)\n",
		lemTh, verdict.Oracle, verdict.CertScheme)

	// 3. p => q must be disproved, not merely unproved.
	bad, err := tm.Implies(p, q)
	if err != nil {
		return fatal(stderr, err)
	}
	badGoal, err := tactic.NewGoal(nil, bad)
	if err != nil {
		return fatal(stderr, err)
	}
	rep := tactic.Run(ctx, prover, badGoal, tactic.PropDischarge())
	if rep.Status != tactic.StatusDisproved || rep.Failure == nil || rep.Failure.Witness == nil {
		_, _ = fmt.Fprintf(stderr, "FAIL: expected counterexample for %s, got %s\n", bad, rep.Status)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "refuted  %s  (witness: %d assignments)\n",
		bad, len(rep.Failure.Witness.Assignments))

	// 4. Replay every saved theorem and verify the log chain.
	if err := s.Replay(); err != nil {
		_, _ = fmt.Fprintf(stderr, "FAIL: replay: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "replayed %d theorems, %d log entries, head %s\n",
		len(s.Names()), s.Log().Len(), s.Log().Head()[:16])

	if exportPath != "" {
		if err := s.Export(ctx, exportPath); err != nil {
			return fatal(stderr, err)
		}
		store, err := prooflog.OpenSQLiteStore(exportPath)
		if err != nil {
			return fatal(stderr, err)
		}
		defer func() { _ = store.Close() }()
		if _, err := store.LoadAll(ctx); err != nil {
			_, _ = fmt.Fprintf(stderr, "FAIL: exported log: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "exported proof log to %s\n", exportPath)
	}

	_, _ = fmt.Fprintln(stdout, "selftest OK")
	return 0
}

func fatal(stderr io.Writer, err error) int {
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return 2
}
