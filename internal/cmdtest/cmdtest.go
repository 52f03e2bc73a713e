// Package cmdtest provides a testscript-based test harness for the scl
// command-line tools.
//
// It uses txtar format test files to specify input files and expected outputs,
// making it easy to write comprehensive CLI tests.
//
// Example test file (testdata/scl/check.txtar):
//
//	# scl check prints the diagnostics scl-ls publishes
//	! exec scl check main.scl
//	stdout 'HELLO is all uppercase'
//
//	-- main.scl --
//	HELLO world
package cmdtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/scratchlang/scl/internal/cmd/scl"
	"github.com/scratchlang/scl/internal/cmd/sclls"
)

// Run executes the testscript tests in the given directory.
func Run(t *testing.T, dir string) {
	testscript.Run(t, testscript.Params{
		Dir: dir,
		Setup: func(env *testscript.Env) error {
			// Keep config discovery inside the work directory.
			return os.Mkdir(filepath.Join(env.WorkDir, ".git"), 0o755)
		},
	})
}

// Main is the TestMain function that should be called from test files.
// It sets up the CLI tools as testscript commands.
func Main(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"scl":    wrapRun(scl.Run),
		"scl-ls": wrapRun(sclls.Run),
	}))
}

// wrapRun wraps a Run(args []string) int function to func() int for testscript.
// The args are taken from os.Args[1:].
func wrapRun(run func(args []string) int) func() int {
	return func() int {
		return run(os.Args[1:])
	}
}
