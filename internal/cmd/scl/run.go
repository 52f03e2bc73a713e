// Package scl implements the scl command, the editor-side driver of the
// Scratch Language tools.
package scl

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/scratchlang/scl/internal/cli"
	"github.com/scratchlang/scl/internal/shim"
)

var commands = []cli.Command{
	{Name: "run", Summary: "compile a source file with the configured compiler", Run: runCompile},
	{Name: "check", Summary: "report language server diagnostics for source files", Run: runCheck},
	{Name: "config", Summary: "print the effective configuration", Run: runConfig},
}

// Run executes scl with the given arguments.
func Run(args []string) int {
	return RunWithIO(context.Background(), args, os.Stdin, os.Stdout, os.Stderr)
}

// RunWithIO allows custom IO for testing.
func RunWithIO(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return cli.Dispatch(ctx, "scl", commands, args, stdout, stderr)
}

// exitCode reports err on stderr and maps it to an exit code. User errors
// have already been shown through the window.
func exitCode(stderr io.Writer, err error) int {
	if err == nil {
		return cli.ExitOK
	}
	var ue *shim.UserError
	if !errors.As(err, &ue) {
		cli.Writef(stderr, "scl: %v\n", err)
	}
	return cli.ExitError
}
