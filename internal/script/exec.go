package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ExecResult holds the output of one process execution.
type ExecResult struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
	ExitCode int
}

// ExecOpts configures a process execution.
type ExecOpts struct {
	Path    string
	Args    []string
	Dir     string
	Timeout time.Duration
	// Env is the complete environment of the child. Nothing is inherited
	// from the parent process.
	Env   []string
	Stdin []byte
}

// Exec runs an executable and captures its output.
// Non-zero exit codes are captured (not treated as errors).
// Timeouts and start failures are errors.
func Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, opts.Path, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	if cmd.Env == nil {
		cmd.Env = []string{}
	}
	// Let a killed shell's children go too, otherwise Wait blocks on their pipes.
	cmd.WaitDelay = time.Second

	if len(opts.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(opts.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("%s timed out after %s", opts.Path, opts.Timeout)
		}
		if ctx.Err() != nil {
			return result, fmt.Errorf("%s: %w", opts.Path, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("executing %s: %w", opts.Path, err)
	}

	return result, nil
}
