package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Aanthord/knuckledragger/pkg/prooflog"
)

// runReplayCmd implements `kdg replay`: load an exported proof log and
// verify its hash chain end to end.
//
// Exit codes:
//
//	0 = chain verified
//	1 = chain broken
//	2 = runtime error
func runReplayCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("replay", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var dbPath string
	cmd.StringVar(&dbPath, "db", "", "Path to exported proof log database (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if dbPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --db is required")
		return 2
	}

	// sqlite happily creates a fresh file on open, which would make a
	// mistyped path look like an empty-but-valid log.
	if _, err := os.Stat(dbPath); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	store, err := prooflog.OpenSQLiteStore(dbPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = store.Close() }()

	entries, err := store.LoadAll(context.Background())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	head := ""
	if len(entries) > 0 {
		head = entries[len(entries)-1].Digest
	}
	_, _ = fmt.Fprintf(stdout, "Proof log OK: %d steps, head %s\n", len(entries), head)
	return 0
}
