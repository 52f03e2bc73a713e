package shim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/google/shlex"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
)

// User-facing messages of the run command.
const (
	MsgCompilerMissing = "Scratch Language 编译器文件不存在，请检查配置。建议：书写绝对路径的 cmdnew.py。"
	MsgNoSourceFile    = "当前编辑器没有选择 Scratch Language 源代码文件。"
	MsgBadOptions      = "Scratch Language 编译选项无法解析，请检查配置。"
)

// RunSettings are the host settings read by the run command.
type RunSettings struct {
	// ShowRunIconInEditorTitleMenu is only read by the editor, which shows
	// the run button for scl files when it is set. RunCode ignores it.
	ShowRunIconInEditorTitleMenu bool

	AlwaysRunInNewTerminal       bool
	CompilerPath                 string
	CompilerOptions              string
	Interpreter                  string
}

// DefaultRunSettings returns the settings used when the host has none.
func DefaultRunSettings() RunSettings {
	return RunSettings{ShowRunIconInEditorTitleMenu: true}
}

// UserError is a problem the user has to fix. Its message is shown as is.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *UserError) Unwrap() error { return e.Err }

// Window is the part of the host UI the run command uses.
type Window interface {
	// ActiveDocument returns the document of the active editor, if any.
	ActiveDocument() (TextDocument, bool)
	ShowErrorMessage(msg string)
}

// Terminal runs compiler invocations.
type Terminal interface {
	Show()
	Send(ctx context.Context, inv Invocation) error
}

// TerminalFactory creates terminals.
type TerminalFactory interface {
	NewTerminal(name string) (Terminal, error)
}

// TerminalFactoryFunc is an adapter to use functions as TerminalFactory.
type TerminalFactoryFunc func(name string) (Terminal, error)

// NewTerminal implements TerminalFactory.
func (f TerminalFactoryFunc) NewTerminal(name string) (Terminal, error) { return f(name) }

// Invocation is one compiler run.
type Invocation struct {
	Interpreter string
	Compiler    string
	InFile      string
	OutFile     string
	Options     []string
}

// NewInvocation builds the invocation compiling src with settings. The
// output lands next to src with the .scl extension replaced by .sb3.
func NewInvocation(settings RunSettings, src string) (Invocation, error) {
	opts, err := shlex.Split(settings.CompilerOptions)
	if err != nil {
		return Invocation{}, &UserError{Message: MsgBadOptions, Err: err}
	}
	return Invocation{
		Interpreter: settings.Interpreter,
		Compiler:    settings.CompilerPath,
		InFile:      src,
		OutFile:     OutputPath(src),
		Options:     opts,
	}, nil
}

// OutputPath returns the .sb3 path for the source file src.
func OutputPath(src string) string {
	base := strings.TrimSuffix(filepath.Base(src), ".scl")
	return filepath.Join(filepath.Dir(src), base+".sb3")
}

// Args returns the argument vector of the invocation.
func (inv Invocation) Args() []string {
	var args []string
	if inv.Interpreter != "" {
		args = append(args, inv.Interpreter)
	}
	args = append(args, inv.Compiler, "--infile", inv.InFile, "--sb3", "--outfile", inv.OutFile)
	return append(args, inv.Options...)
}

// CommandLine returns the invocation as a shell command line.
func (inv Invocation) CommandLine() string {
	return shellescape.QuoteCommand(inv.Args())
}

// RunCode compiles the document of the active editor. Problems the user
// has to fix are shown through the window and returned as *UserError.
func (e *Extension) RunCode(ctx context.Context) error {
	settings := DefaultRunSettings()
	if e.host.Settings != nil {
		settings = e.host.Settings()
	}

	inv, err := e.prepareRun(settings)
	if err != nil {
		var ue *UserError
		if errors.As(err, &ue) && e.host.Window != nil {
			e.host.Window.ShowErrorMessage(ue.Message)
		}
		return err
	}

	e.mu.Lock()
	if settings.AlwaysRunInNewTerminal || e.terminal == nil {
		t, err := e.host.Terminals.NewTerminal(DisplayName)
		if err != nil {
			e.mu.Unlock()
			return fmt.Errorf("creating terminal: %w", err)
		}
		e.terminal = t
	}
	terminal := e.terminal
	e.mu.Unlock()

	e.logger.Info("running compiler", zap.Strings("args", inv.Args()))
	terminal.Show()
	return terminal.Send(ctx, inv)
}

func (e *Extension) prepareRun(settings RunSettings) (Invocation, error) {
	if err := checkCompiler(settings.CompilerPath); err != nil {
		return Invocation{}, &UserError{Message: MsgCompilerMissing, Err: err}
	}

	var doc TextDocument
	ok := false
	if e.host.Window != nil {
		doc, ok = e.host.Window.ActiveDocument()
	}
	if !ok || doc.LanguageID != LanguageID || scheme(doc.URI) != uri.FileScheme {
		return Invocation{}, &UserError{Message: MsgNoSourceFile}
	}

	return NewInvocation(settings, doc.URI.Filename())
}

// checkCompiler reports whether path names an existing regular file by
// absolute path.
func checkCompiler(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("compiler path %q is not absolute", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("compiler path %q is not a regular file", path)
	}
	return nil
}
