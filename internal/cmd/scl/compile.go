package scl

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.lsp.dev/uri"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/scratchlang/scl/internal/cli"
	"github.com/scratchlang/scl/internal/sclconfig"
	"github.com/scratchlang/scl/internal/shim"
	"github.com/scratchlang/scl/internal/watch"
)

func runCompile(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		watchFlag       bool
		newTerminalFlag bool
		verboseFlag     bool
		configFlag      string
		compilerFlag    string
		optionsFlag     string
		interpreterFlag string
	)

	fs := flag.NewFlagSet("scl run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&watchFlag, "watch", false, "recompile whenever the file is saved")
	fs.BoolVar(&watchFlag, "w", false, "watch mode (short for -watch)")
	fs.BoolVar(&newTerminalFlag, "new-terminal", false, "start a fresh terminal for every run")
	fs.BoolVar(&verboseFlag, "v", false, "verbose logging to stderr")
	fs.StringVar(&configFlag, "config", "", "config file (default: discover scl.star or scl.toml)")
	fs.StringVar(&compilerFlag, "compiler", "", "compiler path (overrides run.compiler_path)")
	fs.StringVar(&optionsFlag, "options", "", "compiler options (overrides run.compiler_options)")
	fs.StringVar(&interpreterFlag, "interpreter", "", "interpreter for the compiler (overrides run.interpreter)")

	fs.Usage = func() {
		cli.Writeln(stderr, "Usage: scl run [flags] <file.scl>")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Compiles a Scratch Language source file into a .sb3 project next to it.")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Flags:")
		fs.PrintDefaults()
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Examples:")
		cli.Writeln(stderr, "  scl run game.scl")
		cli.Writeln(stderr, "  scl run -compiler /opt/scl/cmdnew.py -interpreter python3 game.scl")
		cli.Writeln(stderr, "  scl run -watch game.scl")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cli.ExitOK
		}
		return cli.ExitError
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return cli.ExitError
	}

	logger := cli.NewLogger(stderr, verboseFlag)
	defer func() { _ = logger.Sync() }()

	cfg, cfgPath, err := sclconfig.Load(configFlag)
	if err != nil {
		cli.Writef(stderr, "scl: %v\n", err)
		return cli.ExitError
	}
	logger.Debug("loaded config", zap.String("path", cfgPath))

	cfg.Merge(&sclconfig.Config{
		Run: sclconfig.RunConfig{
			AlwaysRunInNewTerminal: newTerminalFlag,
			CompilerPath:           compilerFlag,
			CompilerOptions:        optionsFlag,
			Interpreter:            interpreterFlag,
		},
	})
	settings := runSettings(cfg.Run)

	src, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		cli.Writef(stderr, "scl: %v\n", err)
		return cli.ExitError
	}
	if _, err := os.Stat(src); err != nil {
		cli.Writef(stderr, "scl: %v\n", err)
		return cli.ExitError
	}

	ext := shim.NewExtension(shim.Host{
		Window:    &cliWindow{doc: documentFor(src), stderr: stderr},
		Terminals: shim.ExecTerminals{Dir: filepath.Dir(src), Stdout: stdout, Stderr: stderr},
		Settings:  func() shim.RunSettings { return settings },
	}, logger)

	if !watchFlag {
		return exitCode(stderr, ext.RunCode(ctx))
	}
	return watchCompile(ctx, ext, src, stdout, stderr)
}

// watchCompile compiles src, then again every time it changes, until
// interrupted.
func watchCompile(ctx context.Context, ext *shim.Extension, src string, stdout, stderr io.Writer) int {
	watcher, err := watch.NewWatcher(watch.DefaultSettle)
	if err != nil {
		cli.Writef(stderr, "scl: %v\n", err)
		return cli.ExitError
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(src); err != nil {
		cli.Writef(stderr, "scl: %v\n", err)
		return cli.ExitError
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli.Writef(stdout, "Watching %s. Press Ctrl+C to stop.\n", filepath.Base(src))
	code := exitCode(stderr, ext.RunCode(ctx))

	for {
		select {
		case <-ctx.Done():
			cli.Writeln(stdout, "Stopping watch mode.")
			return code

		case event := <-watcher.Events:
			if isTerminal(stdout) {
				cli.Write(stdout, "\033[2J\033[H")
			}
			cli.Writef(stdout, "File changed: %s\n", filepath.Base(event.File))
			code = exitCode(stderr, ext.RunCode(ctx))

		case err := <-watcher.Errors:
			cli.Writef(stderr, "scl: watcher error: %v\n", err)
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// runSettings maps the [run] config section onto the run command settings.
func runSettings(c sclconfig.RunConfig) shim.RunSettings {
	return shim.RunSettings{
		ShowRunIconInEditorTitleMenu: c.ShowRunIcon,
		AlwaysRunInNewTerminal:       c.AlwaysRunInNewTerminal,
		CompilerPath:                 c.CompilerPath,
		CompilerOptions:              c.CompilerOptions,
		Interpreter:                  c.Interpreter,
	}
}

// documentFor describes path the way an editor would.
func documentFor(path string) shim.TextDocument {
	doc := shim.TextDocument{URI: uri.File(path)}
	if filepath.Ext(path) == ".scl" {
		doc.LanguageID = shim.LanguageID
	}
	return doc
}

// cliWindow stands in for an editor window with one file open.
type cliWindow struct {
	doc    shim.TextDocument
	stderr io.Writer
}

func (w *cliWindow) ActiveDocument() (shim.TextDocument, bool) {
	return w.doc, true
}

func (w *cliWindow) ShowErrorMessage(msg string) {
	cli.Writef(w.stderr, "scl: %s\n", msg)
}
