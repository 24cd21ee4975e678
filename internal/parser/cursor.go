package parser

import "nickandperla.net/kaleido/internal/token"

// TokenSource produces tokens one at a time. *scanner.Scanner implements it.
type TokenSource interface {
	Next() (*token.Item, error)
}

// Cursor gives the parser a single token of lookahead over a TokenSource.
type Cursor struct {
	src TokenSource
	cur *token.Item
}

// NewCursor wraps src. The first token is read on the first call to Current.
func NewCursor(src TokenSource) *Cursor {
	return &Cursor{src: src}
}

// Current returns the lookahead token, reading it if needed.
func (c *Cursor) Current() (*token.Item, error) {
	if c.cur == nil {
		if err := c.Advance(); err != nil {
			return nil, err
		}
	}
	return c.cur, nil
}

// Advance discards the lookahead token and reads the next one. On error the
// lookahead is left unchanged.
func (c *Cursor) Advance() error {
	item, err := c.src.Next()
	if err != nil {
		return err
	}
	c.cur = item
	return nil
}
