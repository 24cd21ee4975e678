package eval

import (
	"errors"
	"strings"
	"testing"

	"nickandperla.net/kaleido/internal/codegen"
	"nickandperla.net/kaleido/internal/jit"
	"nickandperla.net/kaleido/internal/parser"
	"nickandperla.net/kaleido/internal/store"
)

type harness struct {
	e      *Evaluator
	output strings.Builder
	diag   strings.Builder
}

func newHarness(opts ...Option) *harness {
	h := &harness{}
	opts = append([]Option{
		WithOutputWriter(func(text string) error {
			h.output.WriteString(text)
			return nil
		}),
		WithDiagnostics(&h.diag),
	}, opts...)
	h.e = New(opts...)
	return h
}

func (h *harness) eval(t *testing.T, src string) []Outcome {
	t.Helper()
	outcomes, err := h.e.Eval(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return outcomes
}

// value returns the value of the final outcome, failing on any error.
func (h *harness) value(t *testing.T, src string) float64 {
	t.Helper()
	outcomes := h.eval(t, src)
	for _, o := range outcomes {
		if o.Err != nil {
			t.Fatalf("%q: %v", src, o.Err)
		}
	}
	if len(outcomes) == 0 {
		t.Fatalf("%q produced no outcome", src)
	}
	return outcomes[len(outcomes)-1].Value
}

func TestEvaluatedTo(t *testing.T) {
	h := newHarness()
	if got := h.value(t, "1+2*3;"); got != 7 {
		t.Errorf("expected 7, got %v", got)
	}
	if h.output.String() != "Evaluated to 7.000000\n" {
		t.Errorf("unexpected output %q", h.output.String())
	}
}

func TestUnitsAndEmptyStatements(t *testing.T) {
	h := newHarness()
	outcomes := h.eval(t, ";; def f(x) x*2; extern sin(x); f(4); ;")
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	kinds := []parser.UnitKind{parser.UnitDefinition, parser.UnitExtern, parser.UnitExpression}
	for i, k := range kinds {
		if outcomes[i].Kind != k {
			t.Errorf("outcome %d: expected %s, got %s", i, k, outcomes[i].Kind)
		}
	}
	if outcomes[0].Name != "f" || outcomes[0].Source != "def f(x) (x * 2)" {
		t.Errorf("unexpected definition outcome %+v", outcomes[0])
	}
	if outcomes[2].Value != 8 {
		t.Errorf("f(4) = %v, expected 8", outcomes[2].Value)
	}
}

func TestNestedVar(t *testing.T) {
	h := newHarness()
	if got := h.value(t, "var x = 1 in var x = x+1 in x"); got != 2 {
		t.Errorf("expected 2, got %v", got)
	}
}

func TestForLoopOutput(t *testing.T) {
	h := newHarness()
	h.eval(t, "extern putchard(c);")
	got := h.value(t, "for i = 65, i < 70, 1.0 in putchard(i)")
	if got != 0 {
		t.Errorf("for loop evaluated to %v, expected 0", got)
	}
	if !strings.HasPrefix(h.output.String(), "ABCDEF") {
		t.Errorf("unexpected output %q", h.output.String())
	}

	// The loop variable does not leak out of the loop.
	outcomes := h.eval(t, "i")
	if len(outcomes) != 1 || !errors.Is(outcomes[0].Err, codegen.ErrUnknownVariable) {
		t.Errorf("expected unknown variable i, got %+v", outcomes)
	}
}

func TestUserDefinedBinaryOperator(t *testing.T) {
	h := newHarness()

	// Before the definition, | is not a binary operator: '1 + 2' is one
	// unit and '| 3' is read as a use of an unknown unary operator.
	outcomes := h.eval(t, "1 + 2 | 3")
	if len(outcomes) != 2 || !errors.Is(outcomes[1].Err, codegen.ErrUnknownUnary) {
		t.Fatalf("expected | to be unknown, got %+v", outcomes)
	}

	h.eval(t, "def binary | 5 (LHS RHS) if LHS then 1 else if RHS then 1 else 0;")
	outcomes = h.eval(t, "1 + 2 | 0")
	if len(outcomes) != 1 || outcomes[0].Err != nil {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
	if outcomes[0].Source != "((1 + 2) | 0)" {
		t.Errorf("expected (1+2)|0, got %s", outcomes[0].Source)
	}
	if outcomes[0].Value != 1 {
		t.Errorf("expected 1, got %v", outcomes[0].Value)
	}
}

func TestRedefinitionKeepsFirst(t *testing.T) {
	h := newHarness()
	outcomes := h.eval(t, "def f(x) x+1; def f(x) x+2; f(1)")
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if !errors.Is(outcomes[1].Err, codegen.ErrRedefinition) {
		t.Errorf("expected redefinition error, got %v", outcomes[1].Err)
	}
	if outcomes[2].Value != 2 {
		t.Errorf("f(1) = %v, expected 2", outcomes[2].Value)
	}
	if !strings.Contains(h.diag.String(), "Error: in f: function cannot be redefined") {
		t.Errorf("unexpected diagnostics %q", h.diag.String())
	}
}

func TestErrorsDoNotAbortLoop(t *testing.T) {
	h := newHarness()
	outcomes := h.eval(t, "nosuch(1); y; def (x) x; 4*5")
	errs := 0
	for _, o := range outcomes {
		if o.Err != nil {
			errs++
		}
	}
	if errs < 3 {
		t.Errorf("expected at least 3 errors, got %d: %+v", errs, outcomes)
	}
	last := outcomes[len(outcomes)-1]
	if last.Err != nil || last.Value != 20 {
		t.Errorf("expected 4*5 to evaluate to 20 after errors, got %+v", last)
	}
	if !errors.Is(outcomes[0].Err, codegen.ErrUnknownFunction) {
		t.Errorf("expected unknown function, got %v", outcomes[0].Err)
	}
	if !errors.Is(outcomes[1].Err, codegen.ErrUnknownVariable) {
		t.Errorf("expected unknown variable, got %v", outcomes[1].Err)
	}
}

func TestParseErrorSkipsOneToken(t *testing.T) {
	tests := []struct {
		src  string
		msg  string
		want float64
	}{
		{"extern 5; 7", "expected function name in prototype", 7},
		{"(1; 9", "expected ')'", 9},
	}
	for _, tt := range tests {
		h := newHarness()
		outcomes := h.eval(t, tt.src)
		if len(outcomes) != 2 {
			t.Fatalf("%q: expected 2 outcomes, got %+v", tt.src, outcomes)
		}
		if !isParseError(outcomes[0].Err) || !strings.Contains(outcomes[0].Err.Error(), tt.msg) {
			t.Errorf("%q: expected parse error %q, got %v", tt.src, tt.msg, outcomes[0].Err)
		}
		if outcomes[1].Err != nil || outcomes[1].Value != tt.want {
			t.Errorf("%q: expected %v, got %+v", tt.src, tt.want, outcomes[1])
		}
		if !strings.Contains(h.output.String(), "Evaluated to ") {
			t.Errorf("%q: expected the value to be reported, got %q", tt.src, h.output.String())
		}
	}
}

func TestRuntimeErrors(t *testing.T) {
	h := newHarness(WithMaxDepth(100))
	outcomes := h.eval(t, "def loop(x) loop(x); loop(1); extern nothere(); nothere(); 1")
	if len(outcomes) != 5 {
		t.Fatalf("expected 5 outcomes, got %d", len(outcomes))
	}
	if !errors.Is(outcomes[1].Err, jit.ErrMaxDepth) {
		t.Errorf("expected max depth error, got %v", outcomes[1].Err)
	}
	if !errors.Is(outcomes[3].Err, jit.ErrUnresolved) {
		t.Errorf("expected unresolved symbol, got %v", outcomes[3].Err)
	}
	if outcomes[4].Value != 1 {
		t.Errorf("expected 1, got %v", outcomes[4].Value)
	}
}

func TestLoadReaderSkipsExpressions(t *testing.T) {
	h := newHarness()
	outcomes, err := h.e.LoadReader(strings.NewReader("extern putchard(c); putchard(65); def g() 3"))
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if h.output.Len() != 0 {
		t.Errorf("expression executed in load-only mode: %q", h.output.String())
	}
	if got := h.value(t, "g()"); got != 3 {
		t.Errorf("g() = %v, expected 3", got)
	}
}

func TestDumpIR(t *testing.T) {
	h := newHarness(WithDumpIR(true))
	h.eval(t, "def id(x) x; extern cos(x); id(1)")
	diag := h.diag.String()
	for _, want := range []string{
		"Read function definition:",
		"define double @id(double %x)",
		"Read extern:",
		"declare double @cos(double %x)",
		"Read top-level expression:",
		"define double @__anon_expr()",
	} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %q:\n%s", want, diag)
		}
	}
}

func TestPersistAndRestore(t *testing.T) {
	s := store.NewMemory()
	h := newHarness(WithStore(s))
	h.eval(t, "def binary % 15 (a b) a - b; def sq(x) x*x; extern sqrt(x)")

	if err := h.e.Persist("sq"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if err := h.e.Persist("nosuch"); !errors.Is(err, ErrUnknownDefinition) {
		t.Errorf("expected ErrUnknownDefinition, got %v", err)
	}
	if err := h.e.PersistAll(); err != nil {
		t.Fatalf("PersistAll failed: %v", err)
	}
	defs, _ := s.List()
	if len(defs) != 3 || defs[0].Name != "binary%" || defs[2].Kind != store.KindExtern {
		t.Fatalf("unexpected stored definitions %+v", defs)
	}

	// A new session sees the stored definitions, operators included.
	h2 := newHarness(WithStore(s))
	if _, err := h2.e.Restore(); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if got := h2.value(t, "sq(3) % 1"); got != 8 {
		t.Errorf("sq(3) %% 1 = %v, expected 8", got)
	}
	if got := h2.value(t, "sqrt(16)"); got != 4 {
		t.Errorf("sqrt(16) = %v, expected 4", got)
	}
	if len(h2.output.String()) == 0 {
		t.Error("expected output after restore")
	}
}

func TestPersistAlways(t *testing.T) {
	s := store.NewMemory()
	h := newHarness(WithStore(s), WithPersistMode(PersistAlways))
	h.eval(t, "def f(x) x; def f(x) x+1; 1+1")

	defs, _ := s.List()
	if len(defs) != 1 || defs[0].Source != "def f(x) x" {
		t.Errorf("expected only the successful definition stored, got %+v", defs)
	}
}

func TestPersistNever(t *testing.T) {
	s := store.NewMemory()
	h := newHarness(WithStore(s), WithPersistMode(PersistNever))
	h.eval(t, "def f(x) x")
	if err := h.e.Persist("f"); err != nil {
		t.Fatal(err)
	}
	if defs, _ := s.List(); len(defs) != 0 {
		t.Errorf("expected nothing stored, got %+v", defs)
	}
}

func TestForget(t *testing.T) {
	s := store.NewMemory()
	h := newHarness(WithStore(s), WithPersistMode(PersistAlways))
	h.eval(t, "def binary ~ 12 (a b) a*b; def f(x) x")

	if err := h.e.Forget("binary~"); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}
	if h.e.ops.Precedence('~') != -1 {
		t.Error("operator still registered after Forget")
	}
	if err := h.e.Forget("f"); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}
	if defs, _ := s.List(); len(defs) != 0 {
		t.Errorf("expected store emptied, got %+v", defs)
	}

	// f can be defined again once forgotten.
	if got := h.value(t, "def f(x) x*10; f(2)"); got != 20 {
		t.Errorf("f(2) = %v, expected 20", got)
	}
	if err := h.e.Forget("nosuch"); !errors.Is(err, ErrUnknownDefinition) {
		t.Errorf("expected ErrUnknownDefinition, got %v", err)
	}
}

func TestForgetUnloadedDefinition(t *testing.T) {
	s := store.NewMemory()
	if err := s.Put(store.Definition{Name: "broken", Kind: store.KindDef, Source: "def broken(x) nosuch(x)", Seq: 1}); err != nil {
		t.Fatal(err)
	}
	h := newHarness(WithStore(s))
	outcomes, err := h.e.Restore()
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if len(outcomes) != 1 || !errors.Is(outcomes[0].Err, codegen.ErrUnknownFunction) {
		t.Fatalf("expected the stored unit to fail, got %+v", outcomes)
	}

	if err := h.e.Forget("broken"); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}
	if d, _ := s.Get("broken"); d != nil {
		t.Errorf("expected broken to be deleted, got %+v", d)
	}
	if err := h.e.Forget("broken"); !errors.Is(err, ErrUnknownDefinition) {
		t.Errorf("expected ErrUnknownDefinition, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	s := store.NewMemory()
	h := newHarness(WithStore(s), WithPersistMode(PersistAlways))
	h.eval(t, "def f(x) x")
	if err := h.e.Forget("f"); err != nil {
		t.Fatal(err)
	}
	h.eval(t, "def f(x) x+1")
	h.e.SetPersistMode(PersistOnDemand)

	entries, err := h.e.History("f")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Source != "def f(x) (x + 1)" {
		t.Errorf("unexpected history %+v", entries)
	}

	noStore := newHarness()
	if _, err := noStore.e.History("f"); !errors.Is(err, ErrNoStore) {
		t.Errorf("expected ErrNoStore, got %v", err)
	}
}

func TestParsePersistMode(t *testing.T) {
	tests := []struct {
		in   string
		want PersistMode
		ok   bool
	}{
		{"always", PersistAlways, true},
		{"on-demand", PersistOnDemand, true},
		{"NEVER", PersistNever, true},
		{"sometimes", PersistOnDemand, false},
	}
	for _, tc := range tests {
		got, ok := ParsePersistMode(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParsePersistMode(%q) = %v, %v", tc.in, got, ok)
		}
	}
}

func TestIncomplete(t *testing.T) {
	h := newHarness()
	tests := []struct {
		src  string
		want bool
	}{
		{"def f(x)", true},
		{"def f(x) x +", true},
		{"if x then", true},
		{"var a = 1 in", true},
		{"extern sin(", true},
		{"def f(x) x", false},
		{"1 + 2;", false},
		{"", false},
		{"def f(x) then", false},
	}
	for _, tt := range tests {
		if got := h.e.Incomplete(tt.src); got != tt.want {
			t.Errorf("Incomplete(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
	if len(h.e.Definitions()) != 0 {
		t.Error("Incomplete must not define anything")
	}
}
