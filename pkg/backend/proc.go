package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// OutputMaxBytes caps captured oracle stdout+stderr. Output past the
// cap is discarded and the invocation is classified as Crashed, since
// a truncated answer cannot be parsed safely.
const OutputMaxBytes = 4 * 1024 * 1024

// ProcResult is the raw outcome of one external oracle process.
type ProcResult struct {
	Stdout   []byte
	Stderr   []byte
	TimedOut bool
	ExitErr  error
	Elapsed  time.Duration
}

// RunProcess executes an oracle binary with the job input on stdin,
// bounded by timeout. The process group is killed when the context is
// cancelled or the deadline passes; killing a process that has already
// exited is a no-op.
func RunProcess(ctx context.Context, timeout time.Duration, name string, args []string, stdin []byte) (*ProcResult, error) {
	if name == "" {
		return nil, fmt.Errorf("run process: empty command")
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr boundedBuffer
	stdout.limit = OutputMaxBytes
	stderr.limit = OutputMaxBytes
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Give the process a moment to die cleanly before SIGKILL.
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	res := &ProcResult{
		Stdout:  stdout.buf.Bytes(),
		Stderr:  stderr.buf.Bytes(),
		Elapsed: time.Since(start),
	}
	if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		return res, nil
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return res, ctx.Err()
		}
		res.ExitErr = err
	}
	if stdout.overflowed || stderr.overflowed {
		res.ExitErr = fmt.Errorf("oracle output exceeded %d bytes", OutputMaxBytes)
	}
	return res, nil
}

// boundedBuffer accepts writes up to limit and silently drops the
// rest, recording the overflow.
type boundedBuffer struct {
	buf        bytes.Buffer
	limit      int
	overflowed bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.overflowed = true
		return n, nil
	}
	if len(p) > room {
		b.overflowed = true
		p = p[:room]
	}
	b.buf.Write(p)
	return n, nil
}
