package security

import "strings"

// Normalize removes block comments, line comments and quoted string literals
// from query and collapses whitespace runs to single spaces. Removed spans
// are replaced by a space so adjacent tokens never fuse.
//
// The text is scanned once, left to right, so a comment marker inside a
// literal and a quote inside a comment are both treated as the inert text
// they are. Backtick-quoted identifiers are copied through unchanged, so a
// quote inside one never opens a literal. An unterminated comment, literal
// or identifier is left in place.
func Normalize(query string) string {
	var b strings.Builder
	b.Grow(len(query))

	space := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
			b.WriteByte(' ')
		}
	}

	n := len(query)
	for i := 0; i < n; {
		c := query[i]

		switch {
		case c == '/' && i+1 < n && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				b.WriteString("/*")
				i += 2
				continue
			}
			space()
			i += 2 + end + 2

		case c == '-' && i+1 < n && query[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			space()
			if end < 0 {
				i = n
			} else {
				i += end
			}

		case c == '\'' || c == '"':
			end := closingQuote(query, i)
			if end < 0 {
				b.WriteByte(c)
				i++
				continue
			}
			space()
			i = end + 1

		case c == '`':
			end := closingQuote(query, i)
			if end < 0 {
				b.WriteByte(c)
				i++
				continue
			}
			b.WriteString(query[i : end+1])
			i = end + 1

		case isSpace(c):
			space()
			i++

		default:
			b.WriteByte(c)
			i++
		}
	}

	return strings.TrimSpace(b.String())
}

// closingQuote returns the index of the quote closing the literal opened at
// start, or -1. A backslash escapes the next character and a doubled quote
// is an escaped quote.
func closingQuote(s string, start int) int {
	q := s[start]
	for j := start + 1; j < len(s); j++ {
		if s[j] == '\\' {
			j++
			continue
		}
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j
	}
	return -1
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
