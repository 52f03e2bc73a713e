package shim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often a blocked run retries the output lock.
const lockRetryDelay = 100 * time.Millisecond

// ExecTerminal runs invocations through the shell, one at a time, with
// output going to Stdout and Stderr. While a run is in progress it holds a
// file lock next to the output file, so concurrent runs for the same
// source, from this or another process, take turns.
type ExecTerminal struct {
	Name   string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer

	mu    sync.Mutex
	shown bool
}

// Show prints the terminal banner the first time it is called.
func (t *ExecTerminal) Show() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shown || t.Stdout == nil {
		return
	}
	t.shown = true
	fmt.Fprintf(t.Stdout, "== %s ==\n", t.Name)
}

// Send runs inv and waits for it to finish.
func (t *ExecTerminal) Send(ctx context.Context, inv Invocation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock := flock.New(inv.OutFile + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("locking %s: %w", lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("locking %s: %w", lock.Path(), ctx.Err())
	}
	defer func() { _ = lock.Unlock() }()

	line := inv.CommandLine()
	if t.Stdout != nil {
		fmt.Fprintf(t.Stdout, "$ %s\n", line)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", line)
	cmd.Dir = t.Dir
	cmd.Stdout = t.Stdout
	cmd.Stderr = t.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("compiler exited with status %d", exitErr.ExitCode())
		}
		return fmt.Errorf("running compiler: %w", err)
	}
	return nil
}

// ExecTerminals creates ExecTerminals sharing a working directory and
// output streams.
type ExecTerminals struct {
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// NewTerminal implements TerminalFactory.
func (f ExecTerminals) NewTerminal(name string) (Terminal, error) {
	return &ExecTerminal{Name: name, Dir: f.Dir, Stdout: f.Stdout, Stderr: f.Stderr}, nil
}
