package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// EncodeASCII renders v as JSON with ", " and ": " separators, object keys
// sorted, and every non-ASCII rune escaped as \uXXXX (surrogate pairs above
// the BMP). Integral floats keep a trailing ".0".
func EncodeASCII(v Value) (string, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func encodeValue(buf *bytes.Buffer, v Value) error {
	switch x := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(x)))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case Float:
		f := float64(x)
		switch {
		case math.IsNaN(f):
			buf.WriteString("NaN")
		case math.IsInf(f, 1):
			buf.WriteString("Infinity")
		case math.IsInf(f, -1):
			buf.WriteString("-Infinity")
		case f == math.Trunc(f) && math.Abs(f) < 1e16:
			buf.WriteString(strconv.FormatFloat(f, 'f', 1, 64))
		default:
			buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
	case String:
		encodeString(buf, string(x))
	case List:
		buf.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, key := range x.Keys() {
			if i > 0 {
				buf.WriteString(", ")
			}
			encodeString(buf, key)
			buf.WriteString(": ")
			if err := encodeValue(buf, x[key]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported value %T", v)
	}
	return nil
}

// QuoteASCII quotes s as a JSON string with non-ASCII runes escaped.
func QuoteASCII(s string) string {
	var buf bytes.Buffer
	encodeString(&buf, s)
	return buf.String()
}

func encodeString(buf *bytes.Buffer, s string) {
	var raw bytes.Buffer
	enc := json.NewEncoder(&raw)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	quoted := bytes.TrimRight(raw.Bytes(), "\n")

	for len(quoted) > 0 {
		r, size := utf8.DecodeRune(quoted)
		quoted = quoted[size:]
		switch {
		case r < utf8.RuneSelf:
			buf.WriteRune(r)
		case r > 0xFFFF:
			r -= 0x10000
			fmt.Fprintf(buf, `\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
		default:
			fmt.Fprintf(buf, `\u%04x`, r)
		}
	}
}
