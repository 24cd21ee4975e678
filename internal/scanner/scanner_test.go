package scanner

import (
	"errors"
	"strings"
	"testing"

	"nickandperla.net/kaleido/internal/token"
)

func scanAll(t *testing.T, src string) []*token.Item {
	t.Helper()
	s := NewFromString(src)
	var items []*token.Item
	for {
		item, err := s.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		items = append(items, item)
		if item.Token == token.EOF {
			return items
		}
	}
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	items := scanAll(t, "def extern if then else for in var unary binary foo x1")

	expected := []token.Token{
		token.DEF, token.EXTERN, token.IF, token.THEN, token.ELSE,
		token.FOR, token.IN, token.VAR, token.UNARY, token.BINARY,
		token.IDENT, token.IDENT, token.EOF,
	}
	if len(items) != len(expected) {
		t.Fatalf("expected %d items, got %d", len(expected), len(items))
	}
	for i, tok := range expected {
		if items[i].Token != tok {
			t.Errorf("item %d: expected %s, got %s", i, tok, items[i].Token)
		}
	}
	if items[11].Text != "x1" {
		t.Errorf("expected identifier 'x1', got '%s'", items[11].Text)
	}
}

func TestNumbers(t *testing.T) {
	items := scanAll(t, "1 2.5 .5 10")
	want := []float64{1, 2.5, 0.5, 10}
	for i, w := range want {
		if items[i].Token != token.NUMBER {
			t.Fatalf("item %d: expected NUMBER, got %s", i, items[i].Token)
		}
		if items[i].Num != w {
			t.Errorf("item %d: expected %v, got %v", i, w, items[i].Num)
		}
	}
}

func TestMalformedNumber(t *testing.T) {
	s := NewFromString("1.2.3")
	_, err := s.Next()
	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if !strings.Contains(serr.Msg, "1.2.3") {
		t.Errorf("expected message to mention lexeme, got '%s'", serr.Msg)
	}
}

func TestCharsAndComments(t *testing.T) {
	items := scanAll(t, "a+b # trailing comment\n(c)|;")

	var got strings.Builder
	for _, it := range items {
		if it.Token == token.CHAR {
			got.WriteRune(it.Char)
		}
	}
	if got.String() != "+()|;" {
		t.Errorf("expected chars '+()|;', got '%s'", got.String())
	}
	// a + b ( c ) | ; EOF
	if len(items) != 9 {
		t.Errorf("expected 9 items, got %d", len(items))
	}
}

func TestUnderscoreIsNotIdentifierChar(t *testing.T) {
	items := scanAll(t, "__anon")
	if items[0].Token != token.CHAR || items[0].Char != '_' {
		t.Fatalf("expected '_' char, got %s", items[0])
	}
	if items[2].Token != token.IDENT || items[2].Text != "anon" {
		t.Errorf("expected identifier 'anon', got %s", items[2])
	}
}

func TestLineTracking(t *testing.T) {
	items := scanAll(t, "a\n# comment\nb\n\nc")
	lines := []int{1, 3, 5}
	for i, l := range lines {
		if items[i].Line != l {
			t.Errorf("item %d: expected line %d, got %d", i, l, items[i].Line)
		}
	}
}

func TestEOFRepeats(t *testing.T) {
	s := NewFromString("")
	for i := 0; i < 3; i++ {
		item, err := s.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.Token != token.EOF {
			t.Fatalf("expected EOF, got %s", item.Token)
		}
	}
}
