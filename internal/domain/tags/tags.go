// Package tags turns free text into canonical domain-tag tokens.
//
// A domain tag is lowercase ASCII letters and digits joined by single
// hyphens, 2 to 60 characters long, and never the name of a programming
// language.
package tags

import (
	"strings"
	"unicode"
)

// Tag length bounds.
const (
	MinLen = 2
	MaxLen = 60
)

// languageNames are rejected as domain tags. Compared case-insensitively
// against both the raw token and its normalized form.
var languageNames = map[string]struct{}{
	"rust": {}, "go": {}, "python": {}, "javascript": {}, "typescript": {},
	"java": {}, "c": {}, "cpp": {}, "c#": {}, "ruby": {}, "scala": {},
	"kotlin": {}, "swift": {}, "elixir": {}, "haskell": {}, "zig": {},
	"php": {}, "shell": {}, "bash": {}, "html": {}, "css": {},
}

// IsLanguage reports whether s names a programming language.
func IsLanguage(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	if _, ok := languageNames[lower]; ok {
		return true
	}
	_, ok := languageNames[collapse(lower)]
	return ok
}

// Normalize converts s into a canonical tag. ok is false when the result is
// shorter than MinLen. Language names are NOT rejected here; see Tag.
func Normalize(s string) (tag string, ok bool) {
	t := collapse(strings.ToLower(s))
	if len(t) > MaxLen {
		t = strings.TrimRight(t[:MaxLen], "-")
	}
	if len(t) < MinLen {
		return "", false
	}
	return t, true
}

// Tag normalizes s and additionally rejects language names.
func Tag(s string) (string, bool) {
	if IsLanguage(s) {
		return "", false
	}
	t, ok := Normalize(s)
	if !ok || IsLanguage(t) {
		return "", false
	}
	return t, true
}

// Valid reports whether s is already a canonical, non-language tag.
func Valid(s string) bool {
	t, ok := Tag(s)
	return ok && t == s
}

// NormalizeAll maps every input through Tag, dropping invalid entries and
// duplicates while preserving first-seen order.
func NormalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		t, ok := Tag(s)
		if !ok {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Parse splits a free-text classifier response on whitespace and commas and
// returns at most limit tags (limit <= 0 means unbounded).
func Parse(raw string, limit int) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	out := NormalizeAll(fields)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// collapse replaces every run of characters outside [a-z0-9] with a single
// hyphen and trims leading and trailing hyphens. Input must be lowercase.
func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteByte(ch)
			continue
		}
		pending = true
	}
	return b.String()
}
