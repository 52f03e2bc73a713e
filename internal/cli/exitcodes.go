// Package cli provides shared utilities for the scl command-line tools.
package cli

// Standard exit codes for the scl tools.
//
// These follow Unix conventions:
//   - 0: Success
//   - 1: General error (bad flags, missing compiler, I/O errors, etc.)
//   - 2: The tool completed but reported problems
const (
	// ExitOK indicates successful execution with no issues.
	ExitOK = 0

	// ExitError indicates a fatal error occurred.
	ExitError = 1

	// ExitWarning indicates the tool completed but found problems that
	// don't constitute errors. For example:
	//   - scl check published diagnostics for a file
	//   - scl config -diff found settings that differ from the defaults
	ExitWarning = 2
)
