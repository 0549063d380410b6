package schema

import (
	"strings"
	"unicode"
)

// Normalize returns the canonical lower camel case form of a model or
// field name: "UserProfile", "user_profile" and "user-profile" all become
// "userProfile". Acronyms collapse to a single word ("HTTPServer" is
// "httpServer"). Normalize(Normalize(s)) == Normalize(s) for any s.
func Normalize(name string) string {
	words := joinWords(splitWords(name))
	var b strings.Builder
	b.Grow(len(name))
	for i, w := range words {
		b.WriteString(string(casedWord(w, i)))
	}
	return b.String()
}

// casedWord lowers every rune of w and, past the first word, upper-cases
// the leading one.
func casedWord(w string, i int) []rune {
	rs := []rune(w)
	for j, r := range rs {
		rs[j] = unicode.ToLower(r)
	}
	if i > 0 && len(rs) > 0 {
		rs[0] = unicode.ToUpper(rs[0])
	}
	return rs
}

// isUpper reports whether r can open a word. Uppercase runes without a
// lowercase form never do, since lowering leaves them unchanged.
func isUpper(r rune) bool {
	return unicode.IsUpper(r) && unicode.ToLower(r) != r
}

func splitWords(s string) []string {
	rs := []rune(s)
	var words []string
	start := -1
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			if start >= 0 {
				words = append(words, string(rs[start:i]))
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		if isUpper(r) {
			// fooBar, v2Beta, HTTPServer (split before "Server")
			nextLower := i+1 < len(rs) && unicode.IsLetter(rs[i+1]) && !isUpper(rs[i+1])
			if !isUpper(rs[i-1]) || nextLower {
				words = append(words, string(rs[start:i]))
				start = i
			}
		}
	}
	if start >= 0 {
		words = append(words, string(rs[start:]))
	}
	return words
}

// joinWords joins runs of one-letter words ("a_b_c" is "abc") and every
// boundary that splitWords would not find again in the cased output
// ("has_a_B2" is "hasAb2", not "hasAB2").
func joinWords(words []string) []string {
	var out []string
	run := false
	for _, w := range words {
		single := isLetter(w)
		if n := len(out); n > 0 && ((single && run) || !splitsBefore(out[n-1], n-1, w)) {
			out[n-1] += w
			run = run && single
			continue
		}
		out = append(out, w)
		run = single
	}
	return out
}

// splitsBefore reports whether splitWords starts a new word at w when w
// follows prev, the idx-th word, in the cased output.
func splitsBefore(prev string, idx int, w string) bool {
	p, q := casedWord(prev, idx), casedWord(w, idx+1)
	if len(p) == 0 || len(q) == 0 || !isUpper(q[0]) {
		return false
	}
	if !isUpper(p[len(p)-1]) {
		return true
	}
	return len(q) > 1 && unicode.IsLetter(q[1]) && !isUpper(q[1])
}

func isLetter(w string) bool {
	rs := []rune(w)
	return len(rs) == 1 && unicode.IsLetter(rs[0])
}

// KnownModels turns a client's model keys into canonical names, skipping
// internal keys that start with '$' or '_'.
func KnownModels(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" || strings.HasPrefix(k, "$") || strings.HasPrefix(k, "_") || k == "constructor" {
			continue
		}
		n := Normalize(k)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
