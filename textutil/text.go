// Package textutil holds the code-aware tokenizer shared by query evaluation
// and corpus indexing.
package textutil

import (
	"strings"
	"unicode"
)

// Stop words to filter out of natural language and identifier text
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "or": true, "if": true, "else": true, "return": true,
	"func": true, "def": true, "var": true, "let": true, "const": true, "nil": true,
	"null": true, "true": true, "false": true, "self": true, "get": true, "set": true,
}

// IsStopWord reports whether w (lowercase) carries no search signal.
func IsStopWord(w string) bool {
	return stopWords[w]
}

// Words splits text on anything that is not a letter, digit or underscore.
// Case is preserved.
func Words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// SplitIdentifier breaks an identifier into its parts on underscores,
// lower-to-upper transitions, acronym boundaries and letter/digit changes.
// "parseHTTPRequest_v2" yields ["parse", "HTTP", "Request", "v", "2"].
func SplitIdentifier(ident string) []string {
	var parts []string
	for _, chunk := range strings.Split(ident, "_") {
		parts = append(parts, splitCamel(chunk)...)
	}
	return parts
}

func splitCamel(s string) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	var parts []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		split := false
		switch {
		case unicode.IsLower(prev) && unicode.IsUpper(cur):
			split = true
		case unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			split = true
		case unicode.IsDigit(prev) != unicode.IsDigit(cur):
			split = true
		}
		if split {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	return append(parts, string(runes[start:]))
}

// Tokens returns the lowercase search tokens of text: every word, plus the
// parts of compound identifiers. Stop words and single characters are dropped.
// Order follows first appearance and tokens are unique.
func Tokens(text string) []string {
	return collect(text, func(w string) bool {
		return len([]rune(w)) >= 2 && !stopWords[w]
	})
}

// Fields is Tokens without any filtering. Predicate matching uses it so a
// query word always matches the same word in text, stop word or not.
func Fields(text string) []string {
	return collect(text, func(string) bool { return true })
}

func collect(text string, keep func(string) bool) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(w string) {
		w = strings.ToLower(w)
		if seen[w] || !keep(w) {
			return
		}
		seen[w] = true
		out = append(out, w)
	}
	for _, word := range Words(text) {
		add(word)
		parts := SplitIdentifier(word)
		if len(parts) > 1 {
			for _, p := range parts {
				add(p)
			}
		}
	}
	return out
}

// Fold returns the lowercase, trimmed form of s used for case-insensitive comparison.
func Fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
