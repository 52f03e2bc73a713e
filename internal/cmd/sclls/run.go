package sclls

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/scratchlang/scl/internal/cli"
	"github.com/scratchlang/scl/internal/lsp"
	"github.com/scratchlang/scl/internal/sclconfig"
	"github.com/scratchlang/scl/internal/version"
)

// Run executes scl-ls with the given arguments.
func Run(args []string) int {
	return RunWithIO(context.Background(), args, os.Stdin, os.Stdout, os.Stderr)
}

// RunWithIO allows custom IO for testing.
func RunWithIO(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var (
		versionFlag bool
		verboseFlag bool
		configFlag  string
	)

	fs := flag.NewFlagSet("scl-ls", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&versionFlag, "version", false, "print version and exit")
	fs.BoolVar(&verboseFlag, "v", false, "verbose logging to stderr")
	fs.StringVar(&configFlag, "config", "", "config file (default: discover scl.star or scl.toml)")

	fs.Usage = func() {
		cli.Writeln(stderr, "Usage: scl-ls [flags]")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Scratch Language Server Protocol (LSP) implementation.")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "The server communicates over stdio using JSON-RPC 2.0.")
		cli.Writeln(stderr, "Configure your editor to launch this binary as an LSP server.")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Features:")
		cli.Writeln(stderr, "  - Diagnostics for all-uppercase words")
		cli.Writeln(stderr, "  - Completion of keywords and built-in functions")
		cli.Writeln(stderr, "  - Documentation on completion resolve")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Flags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cli.ExitOK
		}
		return cli.ExitError
	}

	if versionFlag {
		cli.Writef(stdout, "scl-ls %s\n", version.String())
		return cli.ExitOK
	}

	logger := cli.NewLogger(stderr, verboseFlag)
	defer func() { _ = logger.Sync() }()

	cfg, _, err := sclconfig.Load(configFlag)
	if err != nil {
		cli.Writef(stderr, "scl-ls: %v\n", err)
		return cli.ExitError
	}

	// Create context with cancellation for clean shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := lsp.NewServer(cancel,
		lsp.WithServerLogger(logger),
		lsp.WithVersion(version.Version),
		lsp.WithDefaultSettings(lsp.Settings{
			MaxNumberOfProblems: cfg.Server.MaxNumberOfProblems,
		}),
	)

	rwc := &stdioConn{
		Reader: stdin,
		Writer: stdout,
	}

	conn := lsp.NewConn(rwc, server, lsp.WithLogger(logger))
	server.SetConn(conn)

	logger.Info("starting server", zap.String("version", version.Version))

	if err := conn.Run(ctx); err != nil && ctx.Err() == nil {
		cli.Writef(stderr, "scl-ls: %v\n", err)
		return cli.ExitError
	}

	logger.Info("server stopped")
	if server.ExitCode() != 0 {
		return cli.ExitError
	}
	return cli.ExitOK
}

// stdioConn wraps stdin/stdout as an io.ReadWriteCloser.
type stdioConn struct {
	io.Reader
	io.Writer
}

func (s *stdioConn) Close() error {
	return nil
}
