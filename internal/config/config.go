// Package config loads kaleido.yml, the optional settings file of the
// kaleido command.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the name looked up in the working directory when no
// -config flag is given.
const DefaultFile = "kaleido.yml"

// Config holds every setting the command line can also override.
type Config struct {
	Path string `yaml:"-"`

	Database           string `yaml:"database"`
	PersistMode        string `yaml:"persist_mode"`
	Prelude            bool   `yaml:"prelude"`
	PreludeFile        string `yaml:"prelude_file"`
	Optimize           bool   `yaml:"optimize"`
	DumpIR             bool   `yaml:"dump_ir"`
	MaxCallDepth       int    `yaml:"max_call_depth"`
	HistoryFile        string `yaml:"history_file"`
	Prompt             string `yaml:"prompt"`
	ContinuationPrompt string `yaml:"continuation_prompt"`
}

// ValidationError aggregates config validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "config: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("config validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		Database:           "kaleido.db",
		PersistMode:        "on_demand",
		Prelude:            true,
		Optimize:           true,
		MaxCallDepth:       10000,
		Prompt:             "ready> ",
		ContinuationPrompt: "...> ",
	}
}

// Load parses a config file on top of Default and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", absPath, err)
	}
	defer file.Close()

	cfg, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", absPath, err)
	}
	cfg.Path = absPath
	return cfg, nil
}

// Decode reads YAML from r. Unknown keys are errors; an empty document
// yields the defaults.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs ValidationError
	switch strings.ToUpper(strings.ReplaceAll(c.PersistMode, "-", "_")) {
	case "ON_DEMAND", "ALWAYS", "NEVER":
	default:
		errs.Issues = append(errs.Issues, fmt.Sprintf("persist_mode %q must be one of on_demand, always, never", c.PersistMode))
	}
	if c.MaxCallDepth < 0 {
		errs.Issues = append(errs.Issues, "max_call_depth must not be negative")
	}
	if c.PreludeFile != "" && !c.Prelude {
		errs.Issues = append(errs.Issues, "prelude_file is set but prelude is disabled")
	}
	if c.Prompt == "" {
		errs.Issues = append(errs.Issues, "prompt must not be empty")
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}
