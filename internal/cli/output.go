package cli

import (
	"fmt"
	"io"
)

// The helpers below drop write errors. A tool whose stdout or stderr is
// gone has nowhere left to report them.

// Writef formats to w, e.g. the file:line:col lines of scl check.
func Writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// Writeln writes args and a newline to w. With no args it writes a blank line.
func Writeln(w io.Writer, args ...any) {
	_, _ = fmt.Fprintln(w, args...)
}

// Write writes s to w unchanged.
func Write(w io.Writer, s string) {
	_, _ = io.WriteString(w, s)
}

// WriteBytes writes b to w unchanged, e.g. an encoded config.
func WriteBytes(w io.Writer, b []byte) {
	_, _ = w.Write(b)
}
