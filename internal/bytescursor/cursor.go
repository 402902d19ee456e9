// Package bytescursor implements a positional reader over an immutable
// byte slice, the base building block the bencoding decoder parses on top
// of.
package bytescursor

import "github.com/pkg/errors"

// Cursor is a positional view over bytes. It never copies the underlying
// slice; callers that need to remember a byte range use Pos and SliceFrom
// to recover it later.
type Cursor struct {
	b   []byte
	pos int
}

// New returns a Cursor positioned at the start of b.
func New(b []byte) *Cursor {
	return &Cursor{b: b}
}

// Peek returns the current byte without advancing.
func (c *Cursor) Peek() (byte, error) {
	if c.pos >= len(c.b) {
		return 0, errors.New("bytescursor: peek past end")
	}
	return c.b[c.pos], nil
}

// Skip advances the cursor by one byte.
func (c *Cursor) Skip() error {
	_, err := c.ReadN(1)
	return err
}

// ReadN returns the next n bytes and advances past them.
func (c *Cursor) ReadN(n int) ([]byte, error) {
	if c.pos+n > len(c.b) {
		return nil, errors.New("bytescursor: read past end")
	}
	out := c.b[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

// ReadUntil returns the prefix up to (not including) the first occurrence
// of delim and leaves the cursor positioned on delim.
func (c *Cursor) ReadUntil(delim byte) ([]byte, error) {
	for i := c.pos; i < len(c.b); i++ {
		if c.b[i] == delim {
			out := c.b[c.pos:i]
			c.pos = i
			return out, nil
		}
	}
	return nil, errors.Errorf("bytescursor: %q not found before end", delim)
}

// Pos returns the current absolute position.
func (c *Cursor) Pos() int {
	return c.pos
}

// SliceFrom returns the byte range [start, pos), inclusive of anything the
// caller already consumed up to the current position.
func (c *Cursor) SliceFrom(start int) []byte {
	return c.b[start:c.pos]
}

// AtEnd reports whether the cursor has consumed the whole slice.
func (c *Cursor) AtEnd() bool {
	return c.pos >= len(c.b)
}
