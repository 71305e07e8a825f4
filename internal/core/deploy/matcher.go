package deploy

import (
	"strings"
	"unicode"
)

// IsMatch reports whether a page name matches a target token. Both sides are
// lowercased and trimmed; they match when equal, or when equal once every
// whitespace and hyphen is removed ("Notre Histoire" ~ "notre-histoire").
// There is deliberately no typo tolerance: "Homepage" does not match "home".
func IsMatch(candidate, token string) bool {
	c := normalizePageName(candidate)
	t := normalizePageName(token)
	if c == t {
		return true
	}
	return stripSeparators(c) == stripSeparators(t)
}

func normalizePageName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// matchesAny reports whether name matches at least one target token.
func matchesAny(name string, targets map[string]struct{}) bool {
	for t := range targets {
		if IsMatch(name, t) {
			return true
		}
	}
	return false
}
