// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package token defines kaleido token types and keyword lookup.
package token

import "fmt"

// Token represents a kaleido token type.
type Token int

const (
	EOF Token = iota

	// Keywords
	DEF
	EXTERN
	IF
	THEN
	ELSE
	FOR
	IN
	VAR
	UNARY
	BINARY

	// Literals
	IDENT  // identifier, Item.Text holds the name
	NUMBER // numeric literal, Item.Num holds the value

	// CHAR is any other single character (operators and punctuation).
	CHAR
)

var keywords = map[string]Token{
	"def":    DEF,
	"extern": EXTERN,
	"if":     IF,
	"then":   THEN,
	"else":   ELSE,
	"for":    FOR,
	"in":     IN,
	"var":    VAR,
	"unary":  UNARY,
	"binary": BINARY,
}

// Lookup returns the keyword token for word, or IDENT.
func Lookup(word string) Token {
	if t, ok := keywords[word]; ok {
		return t
	}
	return IDENT
}

// String returns the string representation of a token.
func (t Token) String() string {
	switch t {
	case EOF:
		return "EOF"
	case DEF:
		return "DEF"
	case EXTERN:
		return "EXTERN"
	case IF:
		return "IF"
	case THEN:
		return "THEN"
	case ELSE:
		return "ELSE"
	case FOR:
		return "FOR"
	case IN:
		return "IN"
	case VAR:
		return "VAR"
	case UNARY:
		return "UNARY"
	case BINARY:
		return "BINARY"
	case IDENT:
		return "IDENT"
	case NUMBER:
		return "NUMBER"
	case CHAR:
		return "CHAR"
	}
	return "UNKNOWN"
}

// IsKeyword returns true for the reserved words.
func (t Token) IsKeyword() bool {
	return t >= DEF && t <= BINARY
}

// Item is a scanned token with its value.
type Item struct {
	Token Token
	Text  string  // identifier or keyword text, number lexeme, or the character
	Num   float64 // set for NUMBER
	Char  rune    // set for CHAR
	Line  int     // line number where this token started
}

// Is reports whether the item is the single character ch.
func (it *Item) Is(ch rune) bool {
	return it != nil && it.Token == CHAR && it.Char == ch
}

// IsSymbol reports whether the item is an ASCII symbol character, the only
// kind of token that can name a user-defined operator.
func (it *Item) IsSymbol() bool {
	return it != nil && it.Token == CHAR && it.Char < 0x80
}

func (it *Item) String() string {
	switch it.Token {
	case EOF:
		return "end of input"
	case CHAR:
		return fmt.Sprintf("'%c'", it.Char)
	case NUMBER:
		return fmt.Sprintf("number %s", it.Text)
	case IDENT:
		return fmt.Sprintf("identifier %q", it.Text)
	}
	return fmt.Sprintf("'%s'", it.Text)
}
