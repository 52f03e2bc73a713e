// Package sclconfig provides configuration loading for the scl tools.
//
// It supports two configuration formats:
//   - scl.star: Starlark configuration defining a configure() function
//   - scl.toml: declarative TOML configuration
//
// Configuration files are discovered by walking up the directory tree from
// the working directory, stopping at the git root. The SCL_CONFIG
// environment variable and the -config flag of each tool take precedence.
package sclconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config file names in priority order.
const (
	ConfigStar = "scl.star"
	ConfigTOML = "scl.toml"
)

// EnvConfig is the environment variable for specifying config file path.
const EnvConfig = "SCL_CONFIG"

// DefaultMaxNumberOfProblems mirrors the language server's built-in default.
const DefaultMaxNumberOfProblems = 1000

// ErrConflict is returned when multiple config files exist in the same directory.
var ErrConflict = errors.New("multiple config files found in the same directory; use only one")

// Config is the combined configuration of scl-ls and scl.
type Config struct {
	// Server holds the language server defaults.
	Server ServerConfig `json:"server" toml:"server"`

	// Run holds the run command settings.
	Run RunConfig `json:"run" toml:"run"`
}

// ServerConfig holds the language server defaults. Clients that support
// workspace/configuration override them per document.
type ServerConfig struct {
	MaxNumberOfProblems int `json:"max_number_of_problems" toml:"max_number_of_problems"`
}

// RunConfig holds the settings of the run command.
type RunConfig struct {
	// ShowRunIcon controls whether editors show a run button for scl files.
	ShowRunIcon bool `json:"show_run_icon" toml:"show_run_icon"`

	// AlwaysRunInNewTerminal starts a fresh terminal for every run.
	AlwaysRunInNewTerminal bool `json:"always_run_in_new_terminal" toml:"always_run_in_new_terminal"`

	// CompilerPath is the absolute path of the compiler front end.
	CompilerPath string `json:"compiler_path" toml:"compiler_path"`

	// CompilerOptions is appended verbatim to the compiler invocation.
	CompilerOptions string `json:"compiler_options" toml:"compiler_options"`

	// Interpreter, when set, prefixes the invocation (e.g. "python3").
	Interpreter string `json:"interpreter" toml:"interpreter"`
}

// DefaultConfig returns a Config with the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			MaxNumberOfProblems: DefaultMaxNumberOfProblems,
		},
		Run: RunConfig{
			ShowRunIcon: true,
		},
	}
}

// Validate reports values no tool can work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.MaxNumberOfProblems < 0 {
		errs = append(errs, fmt.Errorf("server.max_number_of_problems must not be negative, got %d", c.Server.MaxNumberOfProblems))
	}
	if p := c.Run.CompilerPath; p != "" && !filepath.IsAbs(p) {
		errs = append(errs, fmt.Errorf("run.compiler_path must be absolute, got %q", p))
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from the specified path.
// The format is auto-detected based on file extension.
func LoadConfig(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		cfg, err = LoadTOMLConfig(path)
	case ".star":
		cfg, err = LoadStarlarkConfig(path, DefaultStarlarkTimeout)
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s (expected .star or .toml)", ext)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// DiscoverConfig searches for a configuration file.
//
// Resolution order:
//  1. If SCL_CONFIG is set, use that path
//  2. Walk up from startDir looking for scl.star or scl.toml, stopping at
//     the git root
//
// If both files exist in the same directory, ErrConflict is returned.
// Returns the loaded config and the path it came from. If no config is
// found, returns (DefaultConfig(), "", nil).
func DiscoverConfig(startDir string) (*Config, string, error) {
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		cfg, err := LoadConfig(envPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", EnvConfig, err)
		}
		return cfg, envPath, nil
	}

	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("getting working directory: %w", err)
		}
	}

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path: %w", err)
	}

	gitRoot := findGitRoot(absDir)

	for dir := absDir; ; {
		configPath, err := findConfigInDir(dir)
		if err != nil {
			return nil, "", err
		}
		if configPath != "" {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return nil, "", err
			}
			return cfg, configPath, nil
		}

		if gitRoot != "" && dir == gitRoot {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return DefaultConfig(), "", nil
}

// Load loads the config file at path, or discovers one from the working
// directory when path is empty. It also returns the path the config came
// from, which is "" for the built-in defaults.
func Load(path string) (*Config, string, error) {
	if path != "" {
		cfg, err := LoadConfig(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	return DiscoverConfig("")
}

// findConfigInDir returns the config file in dir, or "" if there is none.
func findConfigInDir(dir string) (string, error) {
	var found []string
	for _, name := range []string{ConfigStar, ConfigTOML} {
		if fileExists(filepath.Join(dir, name)) {
			found = append(found, name)
		}
	}

	switch len(found) {
	case 0:
		return "", nil
	case 1:
		return filepath.Join(dir, found[0]), nil
	default:
		return "", fmt.Errorf("%w: found %s in %s", ErrConflict, strings.Join(found, ", "), dir)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// findGitRoot returns the closest ancestor of startDir holding .git, or "".
func findGitRoot(startDir string) string {
	dir := startDir
	for {
		if fileExists(filepath.Join(dir, ".git")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Merge applies the overrides in other, typically built from command-line
// flags, to c. Empty strings and zero numbers leave c unchanged and
// always_run_in_new_terminal can only be turned on. show_run_icon has no
// override and keeps the value from c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Server.MaxNumberOfProblems != 0 {
		c.Server.MaxNumberOfProblems = other.Server.MaxNumberOfProblems
	}

	if other.Run.AlwaysRunInNewTerminal {
		c.Run.AlwaysRunInNewTerminal = true
	}
	if other.Run.CompilerPath != "" {
		c.Run.CompilerPath = other.Run.CompilerPath
	}
	if other.Run.CompilerOptions != "" {
		c.Run.CompilerOptions = other.Run.CompilerOptions
	}
	if other.Run.Interpreter != "" {
		c.Run.Interpreter = other.Run.Interpreter
	}
}
