package bencode

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"
)

// JSON renders v the way the decode subcommand is specified to (§4.B mode
// 1): UTF-8 byte-strings become JSON strings, non-UTF-8 byte-strings
// become lowercase hex, and dictionaries keep source key order — which
// rules out encoding/json (it marshals maps in sorted-key order and
// cannot represent a decode order at all), so this writes JSON by hand.
func (v Value) JSON() string {
	var sb strings.Builder
	v.writeJSON(&sb)
	return sb.String()
}

func (v Value) writeJSON(sb *strings.Builder) {
	switch v.Kind {
	case KindString:
		writeJSONString(sb, v.Str)
	case KindInteger:
		sb.WriteString(strconv.FormatInt(v.Int, 10))
	case KindList:
		sb.WriteByte('[')
		for i, el := range v.List {
			if i > 0 {
				sb.WriteByte(',')
			}
			el.writeJSON(sb)
		}
		sb.WriteByte(']')
	case KindDict:
		sb.WriteByte('{')
		for i, entry := range v.Dict {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeJSONString(sb, []byte(entry.Key))
			sb.WriteByte(':')
			entry.Val.writeJSON(sb)
		}
		sb.WriteByte('}')
	}
}

// writeJSONString renders raw as a JSON string literal if it is valid
// UTF-8, otherwise as a lowercase hex JSON string (§4.B mode 1).
func writeJSONString(sb *strings.Builder, raw []byte) {
	if !utf8.Valid(raw) {
		sb.WriteByte('"')
		sb.WriteString(hex.EncodeToString(raw))
		sb.WriteByte('"')
		return
	}
	sb.WriteByte('"')
	for _, r := range string(raw) {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
}
