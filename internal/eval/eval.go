package eval

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"nickandperla.net/kaleido/internal/ast"
	"nickandperla.net/kaleido/internal/codegen"
	"nickandperla.net/kaleido/internal/ir"
	"nickandperla.net/kaleido/internal/jit"
	"nickandperla.net/kaleido/internal/optable"
	"nickandperla.net/kaleido/internal/parser"
	"nickandperla.net/kaleido/internal/scanner"
	"nickandperla.net/kaleido/internal/store"
	"nickandperla.net/kaleido/internal/token"
)

// PersistMode controls when definitions are persisted.
type PersistMode int

const (
	// PersistOnDemand is the default - explicit Persist calls only.
	PersistOnDemand PersistMode = iota
	// PersistAlways persists every successful definition and extern.
	PersistAlways
	// PersistNever makes Persist a no-op (memory-only mode).
	PersistNever
)

// String returns the string representation of a PersistMode.
func (m PersistMode) String() string {
	switch m {
	case PersistOnDemand:
		return "ON_DEMAND"
	case PersistAlways:
		return "ALWAYS"
	case PersistNever:
		return "NEVER"
	default:
		return "UNKNOWN"
	}
}

// ParsePersistMode parses a string into a PersistMode.
func ParsePersistMode(s string) (PersistMode, bool) {
	switch strings.ToUpper(strings.ReplaceAll(s, "-", "_")) {
	case "ON_DEMAND":
		return PersistOnDemand, true
	case "ALWAYS":
		return PersistAlways, true
	case "NEVER":
		return PersistNever, true
	default:
		return PersistOnDemand, false
	}
}

var (
	// ErrNoStore is returned by persistence operations without a store.
	ErrNoStore = errors.New("no store configured")
	// ErrUnknownDefinition is returned for names never defined in the session.
	ErrUnknownDefinition = errors.New("no definition named")
)

// OutputWriter writes program output: putchard/printd text and the value
// of each top-level expression.
type OutputWriter func(text string) error

// writerFunc adapts an OutputWriter to io.Writer for the engine.
type writerFunc OutputWriter

func (w writerFunc) Write(p []byte) (int, error) {
	if err := w(string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Outcome describes one processed top-level unit.
type Outcome struct {
	Kind   parser.UnitKind
	Name   string  // definition or extern name; empty for expressions
	Value  float64 // result of an executed expression
	Source string  // unit rendered back to source; empty on parse errors
	Err    error
}

// Evaluator compiles and runs kaleido source one top-level unit at a time.
type Evaluator struct {
	ops          *optable.Table
	engine       *jit.Engine
	gen          *codegen.Generator
	namespace    *Namespace
	store        store.Store
	persistMode  PersistMode
	outputWriter OutputWriter
	diag         io.Writer
	dumpIR       bool
	optimize     bool
	maxDepth     int
	loadOnly     bool
	restoring    bool
	seq          int64
	historyLimit int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithStore sets the persistence store.
func WithStore(s store.Store) Option {
	return func(e *Evaluator) { e.store = s }
}

// WithPersistMode sets the persistence mode.
func WithPersistMode(mode PersistMode) Option {
	return func(e *Evaluator) { e.persistMode = mode }
}

// WithOutputWriter sets where program output goes.
func WithOutputWriter(w OutputWriter) Option {
	return func(e *Evaluator) { e.outputWriter = w }
}

// WithDiagnostics sets where error reports and IR dumps go.
func WithDiagnostics(w io.Writer) Option {
	return func(e *Evaluator) { e.diag = w }
}

// WithDumpIR prints the IR of every generated unit to the diagnostics writer.
func WithDumpIR(on bool) Option {
	return func(e *Evaluator) { e.dumpIR = on }
}

// WithOptimize runs the IR optimizer on every generated function.
func WithOptimize(on bool) Option {
	return func(e *Evaluator) { e.optimize = on }
}

// WithMaxDepth bounds the call depth of executed code.
func WithMaxDepth(n int) Option {
	return func(e *Evaluator) { e.maxDepth = n }
}

// WithOperatorTable shares an existing operator table.
func WithOperatorTable(t *optable.Table) Option {
	return func(e *Evaluator) { e.ops = t }
}

// WithHistoryLimit caps the number of versions History returns (0 = all).
func WithHistoryLimit(n int) Option {
	return func(e *Evaluator) { e.historyLimit = n }
}

// New creates a new Evaluator with the given options.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		namespace: NewNamespace(),
		diag:      os.Stderr,
		outputWriter: func(text string) error {
			fmt.Print(text)
			return nil
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ops == nil {
		e.ops = optable.New()
	}
	e.engine = jit.New(jit.WithOutput(writerFunc(e.outputWriter)), jit.WithMaxDepth(e.maxDepth))
	e.gen = codegen.New(e.ops, e.engine, codegen.WithOptimize(e.optimize))
	return e
}

// Eval evaluates a kaleido string.
func (e *Evaluator) Eval(input string) ([]Outcome, error) {
	return e.EvalReader(strings.NewReader(input))
}

// EvalReader evaluates every unit read from r. Parse, generation and run
// time errors are reported and recorded in the outcomes; only read errors
// stop the loop and are returned.
func (e *Evaluator) EvalReader(r io.Reader) ([]Outcome, error) {
	return e.evalStream(scanner.New(r))
}

// LoadReader processes definitions and externs from r without executing
// top-level expressions.
func (e *Evaluator) LoadReader(r io.Reader) ([]Outcome, error) {
	e.loadOnly = true
	defer func() { e.loadOnly = false }()
	return e.evalStream(scanner.New(r))
}

// evalStream is the driver loop.
func (e *Evaluator) evalStream(scan *scanner.Scanner) ([]Outcome, error) {
	p := parser.New(scan, e.ops)
	var outcomes []Outcome

	for {
		tok, err := p.Current()
		if err != nil {
			if !isParseError(err) {
				return outcomes, err
			}
			// The scanner has already moved past the bad lexeme.
			outcomes = append(outcomes, e.report(Outcome{Kind: parser.UnitExpression, Err: err}))
			continue
		}
		kind := parser.UnitExpression
		switch {
		case tok.Token == token.DEF:
			kind = parser.UnitDefinition
		case tok.Token == token.EXTERN:
			kind = parser.UnitExtern
		}

		u, err := p.ParseTopLevel()
		if err != nil {
			if !isParseError(err) {
				return outcomes, err
			}
			outcomes = append(outcomes, e.report(Outcome{Kind: kind, Err: err}))
			// Skip token for error recovery.
			if err := p.Skip(); err != nil && !isParseError(err) {
				return outcomes, err
			}
			continue
		}

		switch u.Kind {
		case parser.UnitEOF:
			return outcomes, nil
		case parser.UnitEmpty:
			// Ignore top-level semicolons.
		case parser.UnitDefinition:
			outcomes = append(outcomes, e.report(e.handleDefinition(u.Function)))
		case parser.UnitExtern:
			outcomes = append(outcomes, e.report(e.handleExtern(u.Proto)))
		case parser.UnitExpression:
			outcomes = append(outcomes, e.report(e.handleTopLevelExpression(u.Function)))
		}
	}
}

func isParseError(err error) bool {
	var perr *parser.Error
	return errors.As(err, &perr)
}

// report prints the error of o, if any, and returns o.
func (e *Evaluator) report(o Outcome) Outcome {
	if o.Err != nil {
		fmt.Fprintf(e.diag, "Error: %v\n", o.Err)
	}
	return o
}

func (e *Evaluator) dump(header string, f *ir.Function) {
	if !e.dumpIR {
		return
	}
	fmt.Fprintln(e.diag, header)
	ir.Print(e.diag, f)
}

func (e *Evaluator) handleDefinition(fn *ast.Function) Outcome {
	o := Outcome{Kind: parser.UnitDefinition, Name: fn.Proto.Name, Source: fn.Source()}

	f, err := e.gen.GenFunction(fn)
	if err != nil {
		e.gen.Reset()
		o.Err = err
		return o
	}
	e.dump("Read function definition:", f)

	h, err := e.engine.AddModule(e.gen.TakeModule())
	if err != nil {
		e.gen.Rollback()
		o.Err = err
		return o
	}
	e.record(store.Definition{Name: o.Name, Kind: store.KindDef, Source: o.Source}, h)
	return o
}

func (e *Evaluator) handleExtern(proto *ast.Prototype) Outcome {
	o := Outcome{Kind: parser.UnitExtern, Name: proto.Name, Source: proto.Source()}

	f, err := e.gen.GenPrototype(proto)
	if err != nil {
		e.gen.Reset()
		o.Err = err
		return o
	}
	e.dump("Read extern:", f)
	// The declaration lives on in the prototype cache.
	e.gen.Reset()

	if d, ok := e.namespace.Get(proto.Name); ok && d.Kind == store.KindDef {
		return o
	}
	e.record(store.Definition{Name: o.Name, Kind: store.KindExtern, Source: o.Source}, 0)
	return o
}

func (e *Evaluator) handleTopLevelExpression(fn *ast.Function) Outcome {
	o := Outcome{Kind: parser.UnitExpression, Source: fn.Body.String()}
	if e.loadOnly {
		return o
	}
	defer e.gen.Forget(parser.AnonName)

	f, err := e.gen.GenFunction(fn)
	if err != nil {
		e.gen.Reset()
		o.Err = err
		return o
	}
	e.dump("Read top-level expression:", f)

	// The anonymous function is single use: add, run, remove.
	h, err := e.engine.AddModule(e.gen.TakeModule())
	if err != nil {
		o.Err = err
		return o
	}
	o.Value, o.Err = e.engine.Run(parser.AnonName)
	if err := e.engine.RemoveModule(h); err != nil && o.Err == nil {
		o.Err = err
	}
	if o.Err == nil {
		if err := e.outputWriter(fmt.Sprintf("Evaluated to %f\n", o.Value)); err != nil {
			o.Err = err
		}
	}
	return o
}

// record adds a successful definition or extern to the namespace and
// persists it in PersistAlways mode.
func (e *Evaluator) record(d store.Definition, h jit.Handle) {
	e.seq++
	d.Seq = e.seq
	e.namespace.Set(d, h)
	if e.persistMode == PersistAlways && e.store != nil && !e.restoring {
		if err := e.store.Put(d); err != nil {
			fmt.Fprintf(e.diag, "Error: persisting %s: %v\n", d.Name, err)
		}
	}
}

// Incomplete reports whether src ends inside a unit, so that more input
// could still complete it. Nothing is generated or run.
func (e *Evaluator) Incomplete(src string) bool {
	p := parser.New(scanner.NewFromString(src), e.ops)
	for {
		u, err := p.ParseTopLevel()
		if err != nil {
			return parser.IsIncomplete(err)
		}
		if u.Kind == parser.UnitEOF {
			return false
		}
	}
}

// Namespace returns the evaluator's definition record.
func (e *Evaluator) Namespace() *Namespace {
	return e.namespace
}

// Store returns the evaluator's persistence store.
func (e *Evaluator) Store() store.Store {
	return e.store
}

// Operators returns the current operator table, lowest precedence first.
func (e *Evaluator) Operators() []optable.Entry {
	return e.ops.Snapshot()
}

// Definitions lists the session's definitions and externs in order.
func (e *Evaluator) Definitions() []store.Definition {
	return e.namespace.List()
}

// PersistMode returns the current persistence mode.
func (e *Evaluator) PersistMode() PersistMode {
	return e.persistMode
}

// SetPersistMode sets the persistence mode.
func (e *Evaluator) SetPersistMode(mode PersistMode) {
	e.persistMode = mode
}
