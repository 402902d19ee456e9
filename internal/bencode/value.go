package bencode

import (
	"strconv"

	"github.com/pkg/errors"

	"goswarm/internal/bytescursor"
)

// Kind identifies which of the four bencoding types a Value holds.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindList
	KindDict
)

// DictEntry is one key/value pair of a decoded dictionary, kept in the
// order it appeared in the source so pretty-printing can reproduce it.
type DictEntry struct {
	Key string
	Val Value
}

// Value is a decoded bencoded value in "pretty-print mode" (§4.B mode 1):
// a tree that remembers dictionary key order, used only by the decode
// subcommand. Structured-mode parsing (info-hash extraction) goes through
// Decoder instead, which never materializes a full tree.
type Value struct {
	Kind Kind
	Str  []byte
	Int  int64
	List []Value
	Dict []DictEntry
}

// Decode parses a single bencoded value from the start of b.
func Decode(b []byte) (Value, error) {
	c := bytescursor.New(b)
	return parseValue(c)
}

func parseValue(c *bytescursor.Cursor) (Value, error) {
	lookahead, err := c.Peek()
	if err != nil {
		return Value{}, err
	}

	switch {
	case lookahead == 'i':
		return parseInteger(c)
	case lookahead == 'l':
		return parseList(c)
	case lookahead == 'd':
		return parseDict(c)
	case lookahead >= '0' && lookahead <= '9':
		return parseString(c)
	default:
		return Value{}, errors.Errorf("bencode: invalid leading byte %q", lookahead)
	}
}

func parseString(c *bytescursor.Cursor) (Value, error) {
	lenBytes, err := c.ReadUntil(':')
	if err != nil {
		return Value{}, errors.Wrap(err, "bencode: string length")
	}
	n, err := strconv.Atoi(string(lenBytes))
	if err != nil {
		return Value{}, errors.Wrap(err, "bencode: string length")
	}
	if err := c.Skip(); err != nil { // ':'
		return Value{}, err
	}
	s, err := c.ReadN(n)
	if err != nil {
		return Value{}, errors.Wrap(err, "bencode: string body")
	}
	return Value{Kind: KindString, Str: s}, nil
}

func parseInteger(c *bytescursor.Cursor) (Value, error) {
	if err := c.Skip(); err != nil { // 'i'
		return Value{}, err
	}
	digits, err := c.ReadUntil('e')
	if err != nil {
		return Value{}, errors.Wrap(err, "bencode: integer")
	}
	if err := c.Skip(); err != nil { // 'e'
		return Value{}, err
	}
	n, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return Value{}, errors.Wrap(err, "bencode: integer")
	}
	return Value{Kind: KindInteger, Int: n}, nil
}

func parseList(c *bytescursor.Cursor) (Value, error) {
	if err := c.Skip(); err != nil { // 'l'
		return Value{}, err
	}
	var list []Value
	for {
		next, err := c.Peek()
		if err != nil {
			return Value{}, errors.Wrap(err, "bencode: unterminated list")
		}
		if next == 'e' {
			break
		}
		v, err := parseValue(c)
		if err != nil {
			return Value{}, err
		}
		list = append(list, v)
	}
	if err := c.Skip(); err != nil { // 'e'
		return Value{}, err
	}
	return Value{Kind: KindList, List: list}, nil
}

func parseDict(c *bytescursor.Cursor) (Value, error) {
	if err := c.Skip(); err != nil { // 'd'
		return Value{}, err
	}
	var entries []DictEntry
	for {
		next, err := c.Peek()
		if err != nil {
			return Value{}, errors.Wrap(err, "bencode: unterminated dict")
		}
		if next == 'e' {
			break
		}
		key, err := parseValue(c)
		if err != nil {
			return Value{}, err
		}
		if key.Kind != KindString {
			return Value{}, errors.New("bencode: dictionary key is not a string")
		}
		val, err := parseValue(c)
		if err != nil {
			return Value{}, err
		}
		entries = append(entries, DictEntry{Key: string(key.Str), Val: val})
	}
	if err := c.Skip(); err != nil { // 'e'
		return Value{}, err
	}
	return Value{Kind: KindDict, Dict: entries}, nil
}
