package bencode

import (
	"strconv"

	"github.com/pkg/errors"

	"goswarm/internal/bytescursor"
)

// Decoder is bencoding structured mode (§4.B mode 2): it walks a
// dictionary key-by-key without ever materializing a full parse tree, so
// that FinishDict can hand back the exact byte range a nested dictionary
// spanned in the source. This is how metainfo recovers info.encoded
// bit-exactly — re-encoding a parsed tree risks reordering keys and
// silently changing the info-hash (§9).
type Decoder struct {
	c *bytescursor.Cursor
}

// NewDecoder returns a Decoder over b.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{c: bytescursor.New(b)}
}

func (d *Decoder) is(b byte) bool {
	p, err := d.c.Peek()
	return err == nil && p == b
}

// StartDict consumes the opening 'd' and returns the position it started
// at, to be handed back to FinishDict later.
func (d *Decoder) StartDict() (int, error) {
	if !d.is('d') {
		return 0, errors.New("bencode: not a dictionary")
	}
	start := d.c.Pos()
	if err := d.c.Skip(); err != nil {
		return 0, err
	}
	return start, nil
}

// FindKey advances pairwise through the current dictionary until it finds
// key, leaving the cursor positioned on the corresponding value. Metainfo
// parsing relies on canonical lexicographic key order, so the keys it
// asks for in sequence are found without backtracking; FindKey itself
// does not require sorted input, only that the sought key appears before
// the dictionary's closing 'e'.
func (d *Decoder) FindKey(key string) error {
	for {
		atEnd, err := d.c.Peek()
		if err != nil {
			return errors.Wrapf(err, "bencode: key %q not found", key)
		}
		if atEnd == 'e' {
			return errors.Errorf("bencode: key %q not found", key)
		}
		got, err := d.ReadString()
		if err != nil {
			return errors.Wrap(err, "bencode: dictionary key")
		}
		if got == key {
			return nil
		}
		if err := d.skipValue(); err != nil {
			return err
		}
	}
}

// ReadStringBytes consumes a byte-string token and returns its raw bytes.
func (d *Decoder) ReadStringBytes() ([]byte, error) {
	lenBytes, err := d.c.ReadUntil(':')
	if err != nil {
		return nil, errors.Wrap(err, "bencode: string length")
	}
	n, err := strconv.Atoi(string(lenBytes))
	if err != nil {
		return nil, errors.Wrap(err, "bencode: string length")
	}
	if err := d.c.Skip(); err != nil {
		return nil, err
	}
	return d.c.ReadN(n)
}

// ReadString consumes a byte-string token and returns it as a string.
func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadStringBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadInteger consumes an integer token.
func (d *Decoder) ReadInteger() (int64, error) {
	if !d.is('i') {
		return 0, errors.New("bencode: not an integer")
	}
	if err := d.c.Skip(); err != nil {
		return 0, err
	}
	digits, err := d.c.ReadUntil('e')
	if err != nil {
		return 0, errors.Wrap(err, "bencode: integer")
	}
	if err := d.c.Skip(); err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "bencode: integer")
	}
	return n, nil
}

// FinishDict skips any remaining key/value pairs, consumes the closing
// 'e', and returns the raw byte slice spanning [start, end] inclusive of
// both delimiters.
func (d *Decoder) FinishDict(start int) ([]byte, error) {
	for {
		atEnd, err := d.c.Peek()
		if err != nil {
			return nil, errors.Wrap(err, "bencode: unterminated dictionary")
		}
		if atEnd == 'e' {
			break
		}
		if err := d.skipValue(); err != nil { // key
			return nil, err
		}
		if err := d.skipValue(); err != nil { // value
			return nil, err
		}
	}
	if err := d.c.Skip(); err != nil {
		return nil, err
	}
	return d.c.SliceFrom(start), nil
}

// skipValue consumes one value of any type without materializing it.
func (d *Decoder) skipValue() error {
	if d.c.AtEnd() {
		return errors.New("bencode: unexpected end of input")
	}
	lookahead, err := d.c.Peek()
	if err != nil {
		return err
	}
	switch {
	case lookahead >= '0' && lookahead <= '9':
		_, err := d.ReadStringBytes()
		return err
	case lookahead == 'i':
		_, err := d.ReadInteger()
		return err
	case lookahead == 'l':
		if err := d.c.Skip(); err != nil {
			return err
		}
		for !d.is('e') {
			if err := d.skipValue(); err != nil {
				return err
			}
		}
		return d.c.Skip()
	case lookahead == 'd':
		if err := d.c.Skip(); err != nil {
			return err
		}
		for !d.is('e') {
			if err := d.skipValue(); err != nil { // key
				return err
			}
			if err := d.skipValue(); err != nil { // value
				return err
			}
		}
		return d.c.Skip()
	default:
		return errors.Errorf("bencode: invalid leading byte %q", lookahead)
	}
}
