package cli

import (
	"context"
	"io"
	"text/tabwriter"

	"github.com/scratchlang/scl/internal/version"
)

// Command defines one subcommand of a multi-command tool.
type Command struct {
	Name    string
	Summary string
	Run     func(ctx context.Context, args []string, stdout, stderr io.Writer) int
}

// Dispatch runs the command named by args[0] and returns its exit code.
// "version", "help", -h and --help are handled here.
func Dispatch(ctx context.Context, tool string, commands []Command, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || isHelp(args[0]) {
		PrintUsage(stderr, tool, commands)
		return ExitOK
	}

	switch args[0] {
	case "version":
		Writef(stdout, "%s %s\n", tool, version.String())
		return ExitOK
	case "help":
		PrintUsage(stderr, tool, commands)
		return ExitOK
	}

	for _, cmd := range commands {
		if cmd.Name == args[0] {
			return cmd.Run(ctx, args[1:], stdout, stderr)
		}
	}

	Writef(stderr, "%s: unknown command %q\n\n", tool, args[0])
	PrintUsage(stderr, tool, commands)
	return ExitError
}

// PrintUsage lists the commands of tool.
func PrintUsage(w io.Writer, tool string, commands []Command) {
	Writef(w, "Usage: %s <command> [flags] [args]\n\n", tool)
	Writeln(w, "Commands:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, cmd := range commands {
		Writef(tw, "  %s\t%s\n", cmd.Name, cmd.Summary)
	}
	Writef(tw, "  %s\t%s\n", "version", "print version and exit")
	_ = tw.Flush()
	Writeln(w)
	Writef(w, "Run '%s <command> -h' for the flags of a command.\n", tool)
}

func isHelp(arg string) bool {
	return arg == "-h" || arg == "--help"
}
