// kdg is the prover's command line: registry validation, proof log
// auditing, and a built-in self test exercising the whole pipeline.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Aanthord/knuckledragger/pkg/config"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	setupLogging(stderr)

	if len(args) < 2 {
		usage(stderr)
		return 2
	}
	switch args[1] {
	case "check":
		return runCheckCmd(args[2:], stdout, stderr)
	case "replay":
		return runReplayCmd(args[2:], stdout, stderr)
	case "selftest":
		return runSelftestCmd(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command %q\n", args[1])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, `Usage: kdg <command> [flags]

Commands:
  check     Validate an oracle registry file
  replay    Verify an exported proof log database
  selftest  Prove and disprove built-in goals end to end`)
}

func setupLogging(stderr io.Writer) {
	cfg := config.Load()
	var level slog.Level
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
}
