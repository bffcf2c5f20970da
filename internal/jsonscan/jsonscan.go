// Package jsonscan reads individual fields out of a JSON document by scanning
// its text, without building a parse tree.
//
// Lookups match the first occurrence of the quoted key followed by a colon,
// regardless of nesting depth. Missing keys and null values are reported as
// absent; nothing in this package returns an error.
package jsonscan

import (
	"strconv"
	"strings"
)

// Value returns the scalar value stored under key.
//
// Strings are unescaped. Numbers, booleans and any other token are returned
// as their literal text, cut at the next comma, closing brace, closing bracket
// or whitespace. The second return is false when the key is missing, the value
// is null, or a string value is never terminated.
func Value(doc, key string) (string, bool) {
	start, ok := valueStart(doc, key)
	if !ok {
		return "", false
	}

	if doc[start] == '"' {
		end, ok := closingQuote(doc, start+1)
		if !ok {
			return "", false
		}
		return Unescape(doc[start+1 : end]), true
	}

	if strings.HasPrefix(doc[start:], "null") {
		return "", false
	}

	end := start
	for end < len(doc) && !isTokenEnd(doc[end]) {
		end++
	}
	return strings.TrimSpace(doc[start:end]), true
}

// Int parses the value under key as an integer. Absent or non-numeric values
// yield 0.
func Int(doc, key string) int {
	raw, ok := Value(doc, key)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

// Objects returns the top-level objects of the array stored under key, as raw
// JSON text in order of appearance. Each entry can be passed back to Value.
// A missing key, a missing bracket or an empty array gives an empty slice.
func Objects(doc, key string) []string {
	objects := []string{}

	keyIdx := strings.Index(doc, keyPattern(key))
	if keyIdx == -1 {
		return objects
	}
	open := strings.IndexByte(doc[keyIdx:], '[')
	if open == -1 {
		return objects
	}
	open += keyIdx

	// An unbalanced array leaves close at open and the slice empty.
	closeIdx := open
	depth := 0
	for i := open; i < len(doc); i++ {
		switch doc[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				closeIdx = i
			}
		}
		if depth == 0 {
			break
		}
	}
	if closeIdx <= open {
		return objects
	}
	body := doc[open+1 : closeIdx]

	depth = 0
	objStart := -1
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '{':
			if depth == 0 {
				objStart = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && objStart != -1 {
				objects = append(objects, body[objStart:i+1])
				objStart = -1
			}
		}
	}
	return objects
}

func keyPattern(key string) string {
	return `"` + key + `":`
}

// valueStart returns the offset of the first non-whitespace byte after the key.
func valueStart(doc, key string) (int, bool) {
	pattern := keyPattern(key)
	idx := strings.Index(doc, pattern)
	if idx == -1 {
		return 0, false
	}
	pos := idx + len(pattern)
	for pos < len(doc) && isSpace(doc[pos]) {
		pos++
	}
	if pos >= len(doc) {
		return 0, false
	}
	return pos, true
}

// closingQuote finds the first unescaped quote at or after from.
func closingQuote(doc string, from int) (int, bool) {
	escaped := false
	for i := from; i < len(doc); i++ {
		c := doc[i]
		switch {
		case c == '\\' && !escaped:
			escaped = true
		case c == '"' && !escaped:
			return i, true
		default:
			escaped = false
		}
	}
	return 0, false
}

func isTokenEnd(c byte) bool {
	return c == ',' || c == '}' || c == ']' || isSpace(c)
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	default:
		return false
	}
}
