// Package runner executes solver runs and writes their output records.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"studyrun/internal/record"
)

// ExecError reports a solver run that could not start or exited non-zero.
type ExecError struct {
	Program  string
	Flags    []string
	Dest     string
	ExitCode int // -1 when the process never started or was killed
	Err      error
}

func (e *ExecError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s %s: exit status %d (output %s)", e.Program, strings.Join(e.Flags, " "), e.ExitCode, e.Dest)
	}
	return fmt.Sprintf("%s %s: %v (output %s)", e.Program, strings.Join(e.Flags, " "), e.Err, e.Dest)
}

func (e *ExecError) Unwrap() error { return e.Err }

// JobRunner runs one solver invocation into dest.
type JobRunner interface {
	Run(ctx context.Context, program string, flags []string, dest string) error
}

// Exec runs the solver as a child process.
type Exec struct {
	// Stderr receives the child's standard error. Defaults to os.Stderr.
	Stderr io.Writer
	// Env is appended to the current environment of the child.
	Env []string
	// Dir is the child's working directory; empty means the current one.
	Dir string
}

// Run overwrites dest with a record of one solver run. The header is
// flushed to disk before the child starts so that it precedes all child
// output; the sentinel is appended only if the child exits with status 0.
// On failure dest is left without a sentinel and is rerun next time.
func (e *Exec) Run(ctx context.Context, program string, flags []string, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(record.Header(flags)); err != nil {
		return fmt.Errorf("write header %s: %w", dest, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush header %s: %w", dest, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync header %s: %w", dest, err)
	}

	cmd := exec.CommandContext(ctx, program, flags...)
	// The child shares f's offset, so its output lands after the header
	// and our later write lands after its output.
	cmd.Stdout = f
	cmd.Stderr = e.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}

	if err := cmd.Run(); err != nil {
		xerr := &ExecError{Program: program, Flags: flags, Dest: dest, ExitCode: -1, Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			xerr.ExitCode = exitErr.ExitCode()
		}
		return xerr
	}

	if _, err := f.WriteString(record.SentinelLine); err != nil {
		return fmt.Errorf("write sentinel %s: %w", dest, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", dest, err)
	}
	return f.Close()
}
