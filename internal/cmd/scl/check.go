package scl

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/scratchlang/scl/internal/cli"
	"github.com/scratchlang/scl/internal/lsp"
	"github.com/scratchlang/scl/internal/sclconfig"
	"github.com/scratchlang/scl/internal/shim"
)

// serverBinary is the language server executable scl check starts.
const serverBinary = "scl-ls"

func runCheck(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		serverFlag  string
		configFlag  string
		verboseFlag bool
	)

	fs := flag.NewFlagSet("scl check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&serverFlag, "server", "", "language server executable (default: scl-ls next to scl, then PATH)")
	fs.StringVar(&configFlag, "config", "", "config file (default: discover scl.star or scl.toml)")
	fs.BoolVar(&verboseFlag, "v", false, "verbose logging to stderr, server logs included")

	fs.Usage = func() {
		cli.Writeln(stderr, "Usage: scl check [flags] <file.scl>...")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Opens each file in a language server, one server per outermost")
		cli.Writeln(stderr, "directory, and prints the diagnostics it publishes.")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Exit codes:")
		cli.Writeln(stderr, "  0  no diagnostics")
		cli.Writeln(stderr, "  1  error")
		cli.Writeln(stderr, "  2  diagnostics reported")
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
	if fs.NArg() == 0 {
		fs.Usage()
		return cli.ExitError
	}

	logger := cli.NewLogger(stderr, verboseFlag)
	defer func() { _ = logger.Sync() }()

	cfg, _, err := sclconfig.Load(configFlag)
	if err != nil {
		cli.Writef(stderr, "scl: %v\n", err)
		return cli.ExitError
	}

	server := serverFlag
	if server == "" {
		server, err = findServer()
		if err != nil {
			cli.Writef(stderr, "scl: finding %s: %v\n", serverBinary, err)
			return cli.ExitError
		}
	}

	factory := &shim.ProcessClientFactory{
		Command:  server,
		Settings: lsp.Settings{MaxNumberOfProblems: cfg.Server.MaxNumberOfProblems},
		Logger:   logger,
	}
	if verboseFlag {
		factory.Args = []string{"-v"}
		factory.Stderr = stderr
	}

	files := fs.Args()
	ext := shim.NewExtension(shim.Host{
		Workspace: folderWorkspace(files),
		Clients:   factory,
	}, logger)

	code := cli.ExitOK
	for _, file := range files {
		n, err := checkFile(ctx, ext, file, stdout)
		if err != nil {
			cli.Writef(stderr, "scl: %v\n", err)
			code = cli.ExitError
			continue
		}
		if n > 0 && code == cli.ExitOK {
			code = cli.ExitWarning
		}
	}

	if err := ext.Deactivate(ctx); err != nil {
		cli.Writef(stderr, "scl: %v\n", err)
		return cli.ExitError
	}
	return code
}

// checkFile opens file in its language server and prints the diagnostics
// published for it. It returns how many were printed.
func checkFile(ctx context.Context, ext *shim.Extension, file string, stdout io.Writer) (int, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return 0, err
	}
	text, err := os.ReadFile(abs)
	if err != nil {
		return 0, err
	}

	doc := documentFor(abs)
	client, err := ext.DidOpenTextDocument(ctx, doc)
	if err != nil {
		return 0, err
	}
	lc, ok := client.(*shim.LanguageClient)
	if !ok {
		return 0, fmt.Errorf("%s: not a Scratch Language file", file)
	}

	diags, err := lc.Open(ctx, doc, string(text))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", file, err)
	}
	for _, d := range diags {
		cli.Writef(stdout, "%s:%d:%d: %s: %s\n",
			file, d.Range.Start.Line+1, d.Range.Start.Character+1, severity(d.Severity), d.Message)
	}
	return len(diags), nil
}

func severity(s protocol.DiagnosticSeverity) string {
	switch s {
	case protocol.DiagnosticSeverityError:
		return "error"
	case protocol.DiagnosticSeverityInformation:
		return "info"
	case protocol.DiagnosticSeverityHint:
		return "hint"
	default:
		return "warning"
	}
}

// folderWorkspace uses the directory of each file as a workspace folder.
func folderWorkspace(files []string) shim.StaticWorkspace {
	var dirs []string
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		dirs = append(dirs, filepath.Dir(abs))
	}
	slices.Sort(dirs)
	dirs = slices.Compact(dirs)

	ws := make(shim.StaticWorkspace, 0, len(dirs))
	for _, d := range dirs {
		ws = append(ws, shim.WorkspaceFolder{URI: uri.File(d), Name: filepath.Base(d)})
	}
	return ws
}

// findServer looks for the language server next to the scl executable,
// then in PATH.
func findServer() (string, error) {
	exe, err := os.Executable()
	if err == nil {
		candidate := filepath.Join(filepath.Dir(exe), serverBinary)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return exec.LookPath(serverBinary)
}
