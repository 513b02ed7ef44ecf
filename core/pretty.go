package core

import (
	"strings"
)

// clause keywords that start a new line, two word forms first
var clauseKeywords = []string{
	"LEFT JOIN", "INNER JOIN", "ORDER BY", "GROUP BY", "INSERT INTO",
	"SELECT", "FROM", "WHERE", "AND", "OR", "LIMIT", "OFFSET",
	"VALUES", "SET", "UPDATE", "DELETE", "RETURNING", "JOIN",
}

// prettify breaks a generated statement onto one line per clause for
// debug logs. Quoted strings and identifiers are copied unchanged.
func prettify(query, dbType string) string {
	var b strings.Builder
	b.Grow(len(query) + 64)

	backtick := dbType == "mysql" || dbType == "mariadb"
	space := false

	for i := 0; i < len(query); i++ {
		c := query[i]

		if c == '\'' || c == '"' || (backtick && c == '`') {
			if space {
				b.WriteByte(' ')
				space = false
			}
			j := closingQuote(query, i, c, c == '\'' && backtick)
			b.WriteString(query[i:j])
			i = j - 1
			continue
		}

		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			space = b.Len() != 0
			continue
		}

		if isWordStart(query, i) {
			if kw, n := matchKeyword(query[i:]); n != 0 {
				if b.Len() != 0 {
					b.WriteByte('\n')
				}
				b.WriteString(kw)
				i += n - 1
				space = true
				continue
			}
		}

		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// closingQuote returns the index just past the quote that closes the one
// at start. A doubled quote is an escaped quote.
func closingQuote(s string, start int, q byte, backslash bool) int {
	for i := start + 1; i < len(s); i++ {
		switch {
		case backslash && s[i] == '\\':
			i++
		case s[i] == q && i+1 < len(s) && s[i+1] == q:
			i++
		case s[i] == q:
			return i + 1
		}
	}
	return len(s)
}

func isWordStart(s string, i int) bool {
	return i == 0 || !isWordChar(s[i-1])
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// matchKeyword returns the keyword s starts with and the number of bytes
// it spans in s.
func matchKeyword(s string) (string, int) {
	for _, kw := range clauseKeywords {
		first, second, two := strings.Cut(kw, " ")
		if !hasWordPrefix(s, first) {
			continue
		}
		if !two {
			return kw, len(first)
		}
		rest := s[len(first):]
		trimmed := strings.TrimLeft(rest, " ")
		if len(trimmed) == len(rest) || !hasWordPrefix(trimmed, second) {
			continue
		}
		return kw, len(s) - len(trimmed) + len(second)
	}
	return "", 0
}

func hasWordPrefix(s, word string) bool {
	if len(s) < len(word) || !strings.EqualFold(s[:len(word)], word) {
		return false
	}
	return len(s) == len(word) || !isWordChar(s[len(word)])
}
