// Command kaleido compiles and runs kaleido source, from files, from a
// pipe or interactively.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
	"nickandperla.net/kaleido/internal/config"
	"nickandperla.net/kaleido/pkg/kaleido"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("kaleido", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		evalStr     = fs.String("e", "", "Evaluate kaleido string")
		file        = fs.String("f", "", "Execute kaleido file")
		dbPath      = fs.String("db", "", "SQLite database path (default from config, kaleido.db)")
		configPath  = fs.String("config", "", "Config file (default ./"+config.DefaultFile+" if present)")
		persistMode = fs.String("persist-mode", "", "Persistence mode: on_demand, always, or never")
		noPrelude   = fs.Bool("no-prelude", false, "Disable the operator prelude")
		dumpIR      = fs.Bool("dump-ir", false, "Print the IR of every unit")
		optimize    = fs.Bool("O", true, "Run the IR optimizer")
		maxDepth    = fs.Int("max-depth", 0, "Maximum call depth (0 = config default)")
		compile     = fs.Bool("compile", false, "Compile mode: persist every definition as it is made")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// Flags given explicitly override the config file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.Database = *dbPath
		case "persist-mode":
			cfg.PersistMode = *persistMode
		case "no-prelude":
			cfg.Prelude = !*noPrelude
		case "dump-ir":
			cfg.DumpIR = *dumpIR
		case "O":
			cfg.Optimize = *optimize
		case "max-depth":
			cfg.MaxCallDepth = *maxDepth
		}
	})
	if *compile {
		cfg.PersistMode = "always"
	}
	if _, ok := kaleido.ParsePersistMode(cfg.PersistMode); !ok {
		fmt.Fprintf(stderr, "Unknown persist mode: %s (use on_demand, always, or never)\n", cfg.PersistMode)
		return 1
	}
	if !cfg.Prelude {
		cfg.PreludeFile = ""
	}

	runtime, err := kaleido.New(
		kaleido.WithConfig(cfg),
		kaleido.WithOutput(stdout),
		kaleido.WithDiagnostics(stderr),
	)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer runtime.Close()

	status := 0
	check := func(outcomes []kaleido.Outcome, err error) {
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			status = 1
			return
		}
		for _, o := range outcomes {
			if o.Err != nil {
				status = 1
			}
		}
	}

	switch {
	case *file != "" || *evalStr != "":
		if *file != "" {
			check(runtime.EvalFile(*file))
		}
		if *evalStr != "" {
			check(runtime.Eval(*evalStr))
		}
	case !isTerminal(stdin):
		check(runtime.EvalReader(stdin))
	default:
		return runREPL(runtime, cfg, stdout, stderr)
	}
	return status
}

// loadConfig reads the named file, or kaleido.yml when it exists in the
// working directory, or falls back to the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(config.DefaultFile); err == nil {
		return config.Load(config.DefaultFile)
	}
	return config.Default(), nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
