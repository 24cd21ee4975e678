// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package scanner provides a streaming lexer for kaleido source.
package scanner

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"nickandperla.net/kaleido/internal/token"
)

// Scanner tokenizes kaleido input rune-by-rune.
type Scanner struct {
	reader *bufio.Reader
	buf    strings.Builder
	line   int // Current line number (1-based)
}

// Error is a lexical error such as a malformed number.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// New creates a new Scanner from an io.Reader.
func New(r io.Reader) *Scanner {
	return &Scanner{
		reader: bufio.NewReader(r),
		line:   1,
	}
}

// NewFromString creates a new Scanner from a string.
func NewFromString(s string) *Scanner {
	return New(strings.NewReader(s))
}

// Line returns the current line number (1-based).
func (s *Scanner) Line() int {
	return s.line
}

// Next returns the next token from the input. Once the input is exhausted
// every call returns an EOF item.
func (s *Scanner) Next() (*token.Item, error) {
	r, err := s.skipSpaceAndComments()
	if err == io.EOF {
		return &token.Item{Token: token.EOF, Line: s.line}, nil
	}
	if err != nil {
		return nil, err
	}

	line := s.line
	switch {
	case isLetter(r):
		word, err := s.scanWhile(r, isAlnum)
		if err != nil {
			return nil, err
		}
		return &token.Item{Token: token.Lookup(word), Text: word, Line: line}, nil

	case isDigit(r) || r == '.':
		lexeme, err := s.scanWhile(r, func(r rune) bool { return isDigit(r) || r == '.' })
		if err != nil {
			return nil, err
		}
		num, perr := strconv.ParseFloat(lexeme, 64)
		if perr != nil {
			return nil, &Error{Line: line, Msg: fmt.Sprintf("malformed number %q", lexeme)}
		}
		return &token.Item{Token: token.NUMBER, Text: lexeme, Num: num, Line: line}, nil
	}

	return &token.Item{Token: token.CHAR, Text: string(r), Char: r, Line: line}, nil
}

// skipSpaceAndComments returns the first rune that starts a token.
func (s *Scanner) skipSpaceAndComments() (rune, error) {
	for {
		r, _, err := s.reader.ReadRune()
		if err != nil {
			return 0, err
		}
		if r == '\n' {
			s.line++
			continue
		}
		if unicode.IsSpace(r) {
			continue
		}
		if r == '#' {
			// Comment until end of line
			for {
				r, _, err = s.reader.ReadRune()
				if err != nil {
					return 0, err
				}
				if r == '\n' || r == '\r' {
					s.reader.UnreadRune()
					break
				}
			}
			continue
		}
		return r, nil
	}
}

// scanWhile accumulates first and every following rune accepted by keep.
func (s *Scanner) scanWhile(first rune, keep func(rune) bool) (string, error) {
	s.buf.Reset()
	s.buf.WriteRune(first)
	for {
		r, _, err := s.reader.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if !keep(r) {
			s.reader.UnreadRune()
			break
		}
		s.buf.WriteRune(r)
	}
	return s.buf.String(), nil
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isAlnum(r rune) bool {
	return isLetter(r) || isDigit(r)
}
