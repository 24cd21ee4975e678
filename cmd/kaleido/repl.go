package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"nickandperla.net/kaleido/internal/config"
	"nickandperla.net/kaleido/pkg/kaleido"
)

const defaultHistoryFile = ".kaleido_history"

const helpText = `Commands:
  :ops             list binary operators by precedence
  :defs            list definitions and externs
  :persist [name]  store one definition, or all of them
  :forget name     drop a definition from the session and the store
  :history name    list stored versions of a definition
  :help            show this help
  :quit            exit (or Ctrl+D)
`

func runREPL(runtime *kaleido.Runtime, cfg *config.Config, stdout, stderr io.Writer) int {
	fmt.Fprintln(stdout, "kaleido REPL (Ctrl+D to exit, :help for commands)")

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if histPath := historyPath(cfg); histPath != "" {
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if f, err := os.Create(histPath); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()
	}

	for {
		src, ok := readByParseProbe(ln, cfg.Prompt, cfg.ContinuationPrompt, runtime.Incomplete)
		if !ok {
			fmt.Fprintln(stdout)
			return 0
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			if quit := command(runtime, trimmed, stdout, stderr); quit {
				return 0
			}
			continue
		}
		// Unit errors are already reported on stderr.
		if _, err := runtime.Eval(src); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
	}
}

func historyPath(cfg *config.Config) string {
	if cfg.HistoryFile != "" {
		return cfg.HistoryFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, defaultHistoryFile)
}

// readByParseProbe collects lines until they no longer end inside a unit.
// A false result means end of input.
func readByParseProbe(ln *liner.State, prompt, cont string, incomplete func(string) bool) (string, bool) {
	var b strings.Builder

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl+C drops the pending input.
			return "", true
		}

		if b.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ":") {
			return line, true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.TrimSpace(src) == "" || !incomplete(src) {
			return src, true
		}
	}
}

// command runs a REPL meta command and reports whether to quit.
func command(runtime *kaleido.Runtime, line string, stdout, stderr io.Writer) bool {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]

	needName := func() (string, bool) {
		if len(args) != 1 {
			fmt.Fprintf(stderr, "usage: %s name\n", name)
			return "", false
		}
		return args[0], true
	}

	var err error
	switch name {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Fprint(stdout, helpText)
	case ":ops":
		for _, op := range runtime.Operators() {
			fmt.Fprintf(stdout, "  %c  %d\n", op.Op, op.Precedence)
		}
	case ":defs":
		for _, d := range runtime.Definitions() {
			fmt.Fprintln(stdout, d.Source)
		}
	case ":persist":
		switch len(args) {
		case 0:
			err = runtime.PersistAll()
		case 1:
			err = runtime.Persist(args[0])
		default:
			fmt.Fprintln(stderr, "usage: :persist [name]")
		}
	case ":forget":
		if n, ok := needName(); ok {
			err = runtime.Forget(n)
		}
	case ":history":
		n, ok := needName()
		if !ok {
			break
		}
		var versions []kaleido.VersionEntry
		versions, err = runtime.History(n)
		for _, v := range versions {
			fmt.Fprintf(stdout, "v%d  %s  %s\n", v.Version, v.Ts, v.Source)
		}
	default:
		fmt.Fprintln(stderr, "unknown command. Type :help for a list.")
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return false
}
