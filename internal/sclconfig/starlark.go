package sclconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.starlark.net/starlark"
)

// DefaultStarlarkTimeout is the default execution timeout for Starlark config files.
const DefaultStarlarkTimeout = 5 * time.Second

// ErrConfigureNotFound is returned when scl.star doesn't define a configure() function.
var ErrConfigureNotFound = errors.New("scl.star must define a configure() function")

// ErrConfigureReturnType is returned when configure() doesn't return a dict.
var ErrConfigureReturnType = errors.New("configure() must return a dict")

// LoadStarlarkConfig loads a configuration from a Starlark file.
// The file must define a configure() function that returns a dict with
// optional "server" and "run" sections. Execution has no filesystem or
// network access and is cancelled after timeout.
func LoadStarlarkConfig(path string, timeout time.Duration) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	thread := &starlark.Thread{Name: path}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("execution timeout")
		case <-done:
		}
	}()
	defer close(done)

	globals, err := starlark.ExecFile(thread, path, data, configPredeclared())
	if err != nil {
		return nil, fmt.Errorf("executing config %s: %w", path, err)
	}

	configureFn, ok := globals["configure"]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrConfigureNotFound)
	}
	fn, ok := configureFn.(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("%s: configure must be a function, got %s", path, configureFn.Type())
	}

	result, err := starlark.Call(thread, fn, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: calling configure(): %w", path, err)
	}

	dict, ok := result.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("%s: %w, got %s", path, ErrConfigureReturnType, result.Type())
	}

	cfg, err := dictToConfig(dict)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// configPredeclared returns the predeclared values for config Starlark files.
func configPredeclared() starlark.StringDict {
	return starlark.StringDict{
		"getenv":    starlark.NewBuiltin("getenv", builtinGetenv),
		"host_os":   starlark.String(runtime.GOOS),
		"host_arch": starlark.String(runtime.GOARCH),
		"struct":    starlark.NewBuiltin("struct", builtinStruct),
	}
}

// builtinGetenv implements getenv(name, default="") -> string.
func builtinGetenv(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var defaultVal starlark.String
	if err := starlark.UnpackArgs("getenv", args, kwargs, "name", &name, "default?", &defaultVal); err != nil {
		return nil, err
	}

	if val := os.Getenv(name); val != "" {
		return starlark.String(val), nil
	}
	return defaultVal, nil
}

// builtinStruct implements struct(**kwargs), returning a dict.
func builtinStruct(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, errors.New("struct: positional arguments not allowed")
	}

	d := starlark.NewDict(len(kwargs))
	for _, kv := range kwargs {
		if err := d.SetKey(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// dictToConfig converts the dict returned by configure() to a Config,
// starting from the defaults.
func dictToConfig(d *starlark.Dict) (*Config, error) {
	cfg := DefaultConfig()

	for _, item := range d.Items() {
		key, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("config keys must be strings, got %s", item[0].Type())
		}
		section, ok := item[1].(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("%s must be a dict, got %s", key, item[1].Type())
		}

		var err error
		switch key {
		case "server":
			err = parseServerConfig(section, &cfg.Server)
		case "run":
			err = parseRunConfig(section, &cfg.Run)
		default:
			err = fmt.Errorf("unknown section %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s config: %w", key, err)
		}
	}

	return cfg, nil
}

func parseServerConfig(d *starlark.Dict, cfg *ServerConfig) error {
	return unpackSection(d, map[string]any{
		"max_number_of_problems": &cfg.MaxNumberOfProblems,
	})
}

func parseRunConfig(d *starlark.Dict, cfg *RunConfig) error {
	return unpackSection(d, map[string]any{
		"show_run_icon":              &cfg.ShowRunIcon,
		"always_run_in_new_terminal": &cfg.AlwaysRunInNewTerminal,
		"compiler_path":              &cfg.CompilerPath,
		"compiler_options":           &cfg.CompilerOptions,
		"interpreter":                &cfg.Interpreter,
	})
}

// unpackSection stores each entry of d into the matching field. Fields are
// *string, *bool or *int; unknown keys are an error.
func unpackSection(d *starlark.Dict, fields map[string]any) error {
	for _, item := range d.Items() {
		key, ok := starlark.AsString(item[0])
		if !ok {
			return fmt.Errorf("keys must be strings, got %s", item[0].Type())
		}
		field, ok := fields[key]
		if !ok {
			return fmt.Errorf("unknown key %q", key)
		}

		v := item[1]
		switch p := field.(type) {
		case *string:
			s, ok := starlark.AsString(v)
			if !ok {
				return fmt.Errorf("%s must be a string, got %s", key, v.Type())
			}
			*p = s
		case *bool:
			b, ok := v.(starlark.Bool)
			if !ok {
				return fmt.Errorf("%s must be a bool, got %s", key, v.Type())
			}
			*p = bool(b)
		case *int:
			if err := starlark.AsInt(v, p); err != nil {
				return fmt.Errorf("%s must be an int: %w", key, err)
			}
		default:
			panic(fmt.Sprintf("unsupported field type %T", field))
		}
	}
	return nil
}
