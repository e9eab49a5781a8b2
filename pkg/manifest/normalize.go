// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	"fmt"

	"github.com/titanous/json5"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Normalize rewrites hand-written JSON into something a JSON5 decoder accepts.
//
// Outside strings it drops '#', '//' and '/* */' comments and inserts a comma
// when a value ends on one line and the next member starts on a following line
// without a separator. Inside strings it escapes raw newlines, carriage returns
// and tabs. Everything else is passed through untouched.
func Normalize(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	out := make([]byte, 0, len(data)+16)

	var (
		inString   bool
		quote      byte
		escaped    bool
		lastSig    byte
		sawNewline bool
	)

	for i := 0; i < len(data); i++ {
		c := data[i]

		if inString {
			switch {
			case escaped:
				escaped = false
				out = append(out, c)
			case c == '\\':
				escaped = true
				out = append(out, c)
			case c == quote:
				inString = false
				lastSig = c
				out = append(out, c)
			case c == '\n':
				out = append(out, '\\', 'n')
			case c == '\r':
				out = append(out, '\\', 'r')
			case c == '\t':
				out = append(out, '\\', 't')
			default:
				out = append(out, c)
			}
			continue
		}

		switch {
		case c == '#' || (c == '/' && i+1 < len(data) && data[i+1] == '/'):
			for i+1 < len(data) && data[i+1] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(data) && data[i+1] == '*':
			end := bytes.Index(data[i+2:], []byte("*/"))
			if end < 0 {
				i = len(data)
				continue
			}
			if bytes.IndexByte(data[i+2:i+2+end], '\n') >= 0 {
				sawNewline = true
			}
			i += end + 3
		case c == ' ' || c == '\t' || c == '\r':
			out = append(out, c)
		case c == '\n':
			sawNewline = true
			out = append(out, c)
		default:
			if sawNewline && endsValue(lastSig) && startsValue(c) {
				out = append(out, ',')
			}
			if c == '"' || c == '\'' {
				inString = true
				quote = c
			}
			out = append(out, c)
			lastSig = c
			sawNewline = false
		}
	}

	return out
}

// decodeTree runs both normalization and JSON5 decoding, returning the top-level object.
func decodeTree(data []byte) (map[string]any, error) {
	var tree any
	if err := json5.Unmarshal(Normalize(data), &tree); err != nil {
		return nil, &ParseError{Reason: "malformed document", Cause: err}
	}
	obj, ok := tree.(map[string]any)
	if !ok {
		return nil, &ParseError{Reason: fmt.Sprintf("top level must be an object, got %T", tree)}
	}
	return obj, nil
}

func endsValue(b byte) bool {
	return b == '"' || b == '\'' || b == '}' || b == ']' || isWordByte(b)
}

func startsValue(b byte) bool {
	return b == '"' || b == '\'' || b == '{' || b == '[' || b == '-' || b == '+' || b == '.' || isWordByte(b)
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_' || b == '$' || b >= 0x80
}
