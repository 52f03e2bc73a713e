package scl

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/scratchlang/scl/internal/cli"
	"github.com/scratchlang/scl/internal/sclconfig"
)

func runConfig(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		configFlag string
		diffFlag   bool
	)

	fs := flag.NewFlagSet("scl config", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&configFlag, "config", "", "config file (default: discover scl.star or scl.toml)")
	fs.BoolVar(&diffFlag, "diff", false, "show only how the configuration differs from the defaults")

	fs.Usage = func() {
		cli.Writeln(stderr, "Usage: scl config [flags]")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Prints the effective configuration in scl.toml form.")
		cli.Writeln(stderr, "With -diff, exits 2 when the configuration differs from the defaults.")
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
	if fs.NArg() != 0 {
		fs.Usage()
		return cli.ExitError
	}

	cfg, path, err := sclconfig.Load(configFlag)
	if err != nil {
		cli.Writef(stderr, "scl: %v\n", err)
		return cli.ExitError
	}

	var effective bytes.Buffer
	if err := cfg.EncodeTOML(&effective); err != nil {
		cli.Writef(stderr, "scl: %v\n", err)
		return cli.ExitError
	}

	if !diffFlag {
		if path != "" {
			cli.Writef(stdout, "# %s\n", path)
		} else {
			cli.Writeln(stdout, "# defaults")
		}
		cli.WriteBytes(stdout, effective.Bytes())
		return cli.ExitOK
	}

	var defaults bytes.Buffer
	if err := sclconfig.DefaultConfig().EncodeTOML(&defaults); err != nil {
		cli.Writef(stderr, "scl: %v\n", err)
		return cli.ExitError
	}

	to := path
	if to == "" {
		to = "defaults"
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(defaults.String()),
		B:        difflib.SplitLines(effective.String()),
		FromFile: "defaults",
		ToFile:   to,
		Context:  1,
	})
	if err != nil {
		cli.Writef(stderr, "scl: %v\n", err)
		return cli.ExitError
	}
	if text == "" {
		return cli.ExitOK
	}
	cli.Write(stdout, text)
	return cli.ExitWarning
}
