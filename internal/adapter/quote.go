package adapter

import (
	"strings"
)

// QuoteIdent returns name unchanged when it only contains [A-Za-z0-9_],
// and double-quoted otherwise.
func QuoteIdent(name string) string {
	for _, r := range name {
		if !isPlainIdentRune(r) {
			return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
		}
	}
	if name == "" {
		return `""`
	}
	return name
}

// QuoteLiteral returns s as a single-quoted SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func isPlainIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
