// SPDX-License-Identifier: MPL-2.0

package version

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// Less means the left operand orders before the right one.
	Less Ordering = -1
	// Equal means both operands have identical normalized segments.
	Equal Ordering = 0
	// Greater means the left operand orders after the right one.
	Greater Ordering = 1
)

type (
	// Ordering is the result of comparing two versions.
	Ordering int

	// Version is a parsed, immutable version string.
	// The zero value is the empty version, which orders below every other version.
	Version struct {
		raw   string
		build string
		segs  []segment
	}

	// segment is one normalized component of a version.
	// Numeric segments hold their digits without leading zeros ("0" for zero);
	// textual segments hold their lower-cased text.
	segment struct {
		value   string
		numeric bool
	}
)

// String returns "less", "equal" or "greater".
func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	default:
		return "unknown"
	}
}

// Parse splits s into segments. It never fails.
func Parse(s string) Version {
	raw := strings.TrimSpace(s)
	body := raw
	var build string
	if i := strings.IndexByte(body, '+'); i >= 0 {
		build = strings.TrimSpace(body[i+1:])
		body = body[:i]
	}
	if len(body) > 1 && (body[0] == 'v' || body[0] == 'V') && isDigit(body[1]) {
		body = body[1:]
	}

	v := Version{raw: raw, build: build}
	start := -1
	numeric := false
	flush := func(end int) {
		if start < 0 {
			return
		}
		v.segs = append(v.segs, newSegment(body[start:end], numeric))
		start = -1
	}

	for i := 0; i < len(body); {
		r, size := utf8.DecodeRuneInString(body[i:])
		switch {
		case isSeparator(r):
			flush(i)
		case r < utf8.RuneSelf && isDigit(byte(r)):
			if start >= 0 && !numeric {
				flush(i)
			}
			if start < 0 {
				start, numeric = i, true
			}
		default:
			if start >= 0 && numeric {
				flush(i)
			}
			if start < 0 {
				start, numeric = i, false
			}
		}
		i += size
	}
	flush(len(body))

	return v
}

// CompareStrings parses both strings and compares them.
func CompareStrings(a, b string) Ordering {
	return Parse(a).Compare(Parse(b))
}

// Compare orders a against b.
func Compare(a, b Version) Ordering {
	return a.Compare(b)
}

// Satisfies reports whether candidate is at least minimum.
func Satisfies(candidate, minimum Version) bool {
	return candidate.Compare(minimum) != Less
}

// Compare orders v against other.
func (v Version) Compare(other Version) Ordering {
	n := max(len(v.segs), len(other.segs))
	for i := range n {
		switch {
		case i >= len(v.segs):
			return Less
		case i >= len(other.segs):
			return Greater
		}
		if o := compareSegments(v.segs[i], other.segs[i]); o != Equal {
			return o
		}
	}
	return Equal
}

// Equal reports whether v and other have identical normalized segments.
// Build metadata is ignored.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == Equal
}

// SameBuild reports whether v and other carry the same build token.
func (v Version) SameBuild(other Version) bool {
	return strings.EqualFold(v.build, other.build)
}

// String returns the original (trimmed) text.
func (v Version) String() string {
	return v.raw
}

// Build returns the text after '+', if any.
func (v Version) Build() string {
	return v.build
}

// IsZero reports whether the version has no segments.
func (v Version) IsZero() bool {
	return len(v.segs) == 0
}

// Segments returns the normalized segments.
func (v Version) Segments() []string {
	out := make([]string, len(v.segs))
	for i, s := range v.segs {
		out[i] = s.value
	}
	return out
}

// Canonical renders the normalized segments joined by '.'.
// Two versions are Equal exactly when their canonical forms match.
func (v Version) Canonical() string {
	return strings.Join(v.Segments(), ".")
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	*v = Parse(string(text))
	return nil
}

func newSegment(text string, numeric bool) segment {
	if numeric {
		trimmed := strings.TrimLeft(text, "0")
		if trimmed == "" {
			trimmed = "0"
		}
		return segment{value: trimmed, numeric: true}
	}
	return segment{value: strings.ToLower(text)}
}

func compareSegments(a, b segment) Ordering {
	switch {
	case a.numeric && b.numeric:
		if len(a.value) != len(b.value) {
			return orderingOf(len(a.value) - len(b.value))
		}
		return orderingOf(strings.Compare(a.value, b.value))
	case a.numeric:
		return Greater
	case b.numeric:
		return Less
	default:
		return orderingOf(strings.Compare(a.value, b.value))
	}
}

func orderingOf(n int) Ordering {
	switch {
	case n < 0:
		return Less
	case n > 0:
		return Greater
	default:
		return Equal
	}
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isSeparator(r rune) bool {
	return r == '.' || r == '-' || r == '_' || unicode.IsSpace(r)
}
