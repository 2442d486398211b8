// Package wasm runs oracle programs inside a wazero WebAssembly
// sandbox. Deny-by-default: no filesystem, no network, no environment,
// memory capped and CPU time bounded by context deadline. This is the
// adapter for semi-trusted decision procedures distributed as wasm
// binaries.
package wasm

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/Aanthord/knuckledragger/pkg/backend"
	"github.com/Aanthord/knuckledragger/pkg/term"
)

const wasmPageSize = 64 * 1024

// Adapter executes a compiled oracle module per invocation. The module
// reads the goal on stdin, one s-expression per line:
//
//	(hyp <term>)
//	(goal <term>)
//
// and writes "proved", "unknown", or "counterexample" followed by
// "name value" assignment lines. Proved verdicts carry no certificate
// and require the oracle to be on the trusted list.
type Adapter struct {
	id       string
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	timeout  time.Duration
}

// Config bounds a sandboxed oracle.
type Config struct {
	// MemoryLimitBytes caps linear memory; zero means one page.
	MemoryLimitBytes int64
	// Timeout bounds one invocation.
	Timeout time.Duration
}

// New compiles the oracle module under a deny-by-default runtime. The
// adapter holds compiled state and must be closed when retired.
func New(ctx context.Context, id string, module []byte, cfg Config) (*Adapter, error) {
	pages := uint32(cfg.MemoryLimitBytes / wasmPageSize)
	if pages == 0 {
		pages = 1
	}
	runtimeCfg := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(pages).
		WithCloseOnContextDone(true)
	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)
	compiled, err := r.CompileModule(ctx, module)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("wasm oracle %s: compile: %w", id, err)
	}
	return &Adapter{id: id, runtime: r, compiled: compiled, timeout: cfg.Timeout}, nil
}

func (a *Adapter) ID() string { return a.id }

// Close releases the runtime and all compiled state.
func (a *Adapter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.runtime.Close(ctx)
}

// Translate renders the sequent in the line protocol. Sandboxed
// oracles receive fully general terms; what they understand is their
// own business, anything else they answer unknown.
func (a *Adapter) Translate(hyps []*term.Term, concl *term.Term) (*backend.Job, error) {
	var sb strings.Builder
	for _, h := range hyps {
		fmt.Fprintf(&sb, "(hyp %s)\n", h)
	}
	fmt.Fprintf(&sb, "(goal %s)\n", concl)
	return &backend.Job{
		OracleID: a.id,
		Input:    []byte(sb.String()),
		FreeVars: term.FreeVars(concl),
	}, nil
}

// Invoke instantiates the module with the job on stdin and parses the
// verdict line. Each invocation gets a fresh instance, so oracle state
// never leaks between goals.
func (a *Adapter) Invoke(ctx context.Context, job *backend.Job) (*backend.Verdict, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	start := time.Now()

	var stdout, stderr bytes.Buffer
	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_start").
		WithStdin(bytes.NewReader(job.Input)).
		WithStdout(&stdout).
		WithStderr(&stderr)

	mod, err := a.runtime.InstantiateModule(ctx, a.compiled, modCfg)
	if mod != nil {
		defer mod.Close(ctx)
	}
	v := &backend.Verdict{Oracle: a.id, Elapsed: time.Since(start)}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			v.Kind = backend.TimedOut
			return v, nil
		}
		// a clean exit(0) still surfaces as an ExitError
		if exitErr, ok := err.(*sys.ExitError); !ok || exitErr.ExitCode() != 0 {
			v.Kind = backend.Crashed
			v.Detail = crashDetail(err, &stderr)
			return v, nil
		}
	}
	return a.parse(stdout.Bytes(), &stderr, v)
}

func (a *Adapter) parse(out []byte, stderr *bytes.Buffer, v *backend.Verdict) (*backend.Verdict, error) {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	switch strings.TrimSpace(lines[0]) {
	case "proved":
		v.Kind = backend.Refuted
	case "unknown":
		v.Kind = backend.Unknown
	case "counterexample":
		v.Kind = backend.ModelFound
		v.Model = parseAssignments(lines[1:])
	default:
		v.Kind = backend.Crashed
		v.Detail = crashDetail(fmt.Errorf("unrecognized answer %q", lines[0]), stderr)
	}
	return v, nil
}

func parseAssignments(lines []string) *backend.Model {
	m := &backend.Model{}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		m.Assignments = append(m.Assignments, backend.Assignment{
			Name:  fields[0],
			Value: strings.Join(fields[1:], " "),
		})
	}
	return m
}

func crashDetail(err error, stderr *bytes.Buffer) string {
	detail := err.Error()
	if s := strings.TrimSpace(stderr.String()); s != "" {
		if len(s) > 512 {
			s = s[:512]
		}
		detail += "; stderr: " + s
	}
	return detail
}
