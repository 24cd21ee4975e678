package parser

import (
	"errors"
	"strings"
	"testing"

	"nickandperla.net/kaleido/internal/ast"
	"nickandperla.net/kaleido/internal/optable"
	"nickandperla.net/kaleido/internal/scanner"
)

func newParser(src string, ops *optable.Table) *Parser {
	if ops == nil {
		ops = optable.New()
	}
	return New(scanner.NewFromString(src), ops)
}

// parseExpr parses a single top-level expression and renders its body.
func parseExpr(t *testing.T, src string, ops *optable.Table) string {
	t.Helper()
	u, err := newParser(src, ops).ParseTopLevel()
	if err != nil {
		t.Fatalf("%q: %v", src, err)
	}
	if u.Kind != UnitExpression {
		t.Fatalf("%q: expected expression, got %v", src, u.Kind)
	}
	if u.Function.Proto.Name != AnonName || len(u.Function.Proto.Params) != 0 {
		t.Errorf("%q: unexpected wrapper %v", src, u.Function.Proto)
	}
	return u.Function.Body.String()
}

func TestPrecedenceClimbing(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1+2*3", "(1 + (2 * 3))"},
		{"1*2+3", "((1 * 2) + 3)"},
		{"1-2-3", "((1 - 2) - 3)"},
		{"a = b = 1", "((a = b) = 1)"},
		{"x < y + 1", "(x < (y + 1))"},
		{"(1+2)*3", "((1 + 2) * 3)"},
		{"-x*2", "(-x * 2)"},
		{"!!x", "!!x"},
		{"f(1, g(x), y+1)", "f(1, g(x), (y + 1))"},
		{"f()", "f()"},
		{"if x < 3 then 1 else f(x-1)", "(if (x < 3) then 1 else f((x - 1)))"},
		{"for i = 1, i < n in putchard(42)", "(for i = 1, (i < n) in putchard(42))"},
		{"for i = 1, i < n, 2 in i", "(for i = 1, (i < n), 2 in i)"},
		{"var a = 1, b in a + b", "(var a = 1, b in (a + b))"},
		{"1.5", "1.5"},
	}
	for _, tt := range tests {
		if got := parseExpr(t, tt.src, nil); got != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.src, tt.want, got)
		}
	}
}

func TestUserOperatorPrecedence(t *testing.T) {
	ops := optable.New()

	// Unknown characters end the expression
	if got := parseExpr(t, "1 | 2", ops); got != "1" {
		t.Errorf("expected '|' to stop the expression, got %s", got)
	}

	ops.Set('|', 5)
	if got := parseExpr(t, "1 + 2 | 3 * 4", ops); got != "((1 + 2) | (3 * 4))" {
		t.Errorf("got %s", got)
	}
	ops.Set('^', 50)
	if got := parseExpr(t, "2 * 3 ^ 2", ops); got != "(2 * (3 ^ 2))" {
		t.Errorf("got %s", got)
	}
}

func TestPrototypes(t *testing.T) {
	tests := []struct {
		src    string
		name   string
		params []string
		kind   ast.OpKind
		prec   int
	}{
		{"extern sin(x)", "sin", []string{"x"}, ast.NotOperator, 0},
		{"extern rand()", "rand", nil, ast.NotOperator, 0},
		{"extern atan2(y x)", "atan2", []string{"y", "x"}, ast.NotOperator, 0},
		{"extern unary!(v)", "unary!", []string{"v"}, ast.UnaryOperator, 0},
		{"extern binary| 5 (a b)", "binary|", []string{"a", "b"}, ast.BinaryOperator, 5},
		{"extern binary%(a b)", "binary%", []string{"a", "b"}, ast.BinaryOperator, optable.DefaultPrecedence},
	}
	for _, tt := range tests {
		u, err := newParser(tt.src, nil).ParseTopLevel()
		if err != nil {
			t.Errorf("%q: %v", tt.src, err)
			continue
		}
		p := u.Proto
		if u.Kind != UnitExtern || p.Name != tt.name || p.Kind != tt.kind || p.Precedence != tt.prec {
			t.Errorf("%q: unexpected prototype %+v", tt.src, p)
		}
		if strings.Join(p.Params, " ") != strings.Join(tt.params, " ") {
			t.Errorf("%q: params %v, want %v", tt.src, p.Params, tt.params)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		msg  string
		more bool
	}{
		{"def 1(x) x", "expected function name in prototype", false},
		{"def f x", "expected '(' in prototype", false},
		{"def f(x, y) x", "expected ')' in prototype", false},
		{"def unary-(a b) a", "invalid number of operands for operator unary-", false},
		{"def binary| (a) a", "invalid number of operands for operator binary|", false},
		{"def binary| 0 (a b) a", "invalid precedence 0", false},
		{"def binary| 101 (a b) a", "invalid precedence 101", false},
		{"def binary| 2.5 (a b) a", "invalid precedence 2.5", false},
		{"def unary 1(a) a", "expected unary operator", false},
		{"(1 + 2", "expected ')'", true},
		{"f(1 2)", "expected ')' or ',' in argument list", false},
		{"if x then y", "expected 'else'", true},
		{"if x else y", "expected 'then'", false},
		{"for 1", "expected identifier after 'for'", false},
		{"for i 1", "expected '=' after 'for'", false},
		{"for i = 1 in x", "expected ',' after for start value", false},
		{"for i = 1, 2 x", "expected 'in' after for", false},
		{"var in x", "expected identifier after 'var'", false},
		{"var a, 1 in a", "expected identifier list after 'var'", false},
		{"var a x", "expected 'in' keyword after 'var'", false},
		{"def f(x)", "when expecting an expression", true},
		{"then", "when expecting an expression", false},
		// Any other character starts a unary operator.
		{")", "when expecting an expression", true},
	}
	for _, tt := range tests {
		_, err := newParser(tt.src, nil).ParseTopLevel()
		var perr *Error
		if !errors.As(err, &perr) {
			t.Errorf("%q: expected *Error, got %v", tt.src, err)
			continue
		}
		if !strings.Contains(perr.Msg, tt.msg) {
			t.Errorf("%q: expected %q in %q", tt.src, tt.msg, perr.Msg)
		}
		if IsIncomplete(err) != tt.more {
			t.Errorf("%q: IsIncomplete = %v, want %v", tt.src, !tt.more, tt.more)
		}
	}
}

func TestTopLevelUnits(t *testing.T) {
	p := newParser("def f(x) x; extern g(); ;; 1+1", nil)
	var kinds []UnitKind
	for {
		u, err := p.ParseTopLevel()
		if err != nil {
			t.Fatalf("ParseTopLevel: %v", err)
		}
		kinds = append(kinds, u.Kind)
		if u.Kind == UnitEOF {
			break
		}
	}
	want := []UnitKind{UnitDefinition, UnitEmpty, UnitExtern, UnitEmpty, UnitEmpty, UnitEmpty, UnitExpression, UnitEOF}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("unit %d: expected %v, got %v", i, want[i], kinds[i])
		}
	}
}

func TestSkipRecovers(t *testing.T) {
	p := newParser("then 4", nil)
	if _, err := p.ParseTopLevel(); err == nil {
		t.Fatal("expected error")
	}
	if err := p.Skip(); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	u, err := p.ParseTopLevel()
	if err != nil {
		t.Fatalf("ParseTopLevel after Skip: %v", err)
	}
	if u.Kind != UnitExpression || u.Function.Body.String() != "4" {
		t.Errorf("unexpected unit %+v", u)
	}
}

func TestSourceRoundTrip(t *testing.T) {
	ops := optable.New()
	ops.Set('|', 5)
	srcs := []string{
		"def fib(x) if x < 3 then 1 else fib(x-1)+fib(x-2)",
		"def binary| 5 (LHS RHS) if LHS then 1 else if RHS then 1 else 0",
		"def unary-(v) 0-v",
		"def loop(n) var acc = 0 in (for i = 0, i < n, 1 in acc = acc + i) : acc",
		"extern putchard(c)",
	}
	ops.Set(':', 1)
	for _, src := range srcs {
		u, err := newParser(src, ops).ParseTopLevel()
		if err != nil {
			t.Fatalf("%q: %v", src, err)
		}
		var first string
		if u.Kind == UnitExtern {
			first = u.Proto.Source()
		} else {
			first = u.Function.Source()
		}

		u2, err := newParser(first, ops).ParseTopLevel()
		if err != nil {
			t.Fatalf("re-parse %q: %v", first, err)
		}
		var second string
		if u2.Kind == UnitExtern {
			second = u2.Proto.Source()
		} else {
			second = u2.Function.Source()
		}
		if first != second {
			t.Errorf("round trip changed source:\n  %s\n  %s", first, second)
		}
	}
}
