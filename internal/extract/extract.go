// Package extract pulls typed values out of free-text model output.
//
// Every function tries an ordered list of patterns and returns the caller's
// default when none match. Callers never receive a partially populated or
// null value from this package; a missing field degrades to a documented
// fallback, not an error.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	bulletRe      = regexp.MustCompile(`(?m)^\s*[-*]\s+(.+)$`)
	numberedRe    = regexp.MustCompile(`(?m)^\s*(\d+)[.)]\s+(.+)$`)
	numberTokenRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
	intTokenRe    = regexp.MustCompile(`\d+`)
	affirmativeRe = regexp.MustCompile(`(?i)^\s*(yes|true|y)\b`)
	negativeRe    = regexp.MustCompile(`(?i)^\s*(no|false|n)\b`)
)

// Field finds a "NAME: value" line and returns the trimmed value. The match
// is case-insensitive and tolerates markdown bullets and emphasis around the
// label.
func Field(text, name string) (string, bool) {
	re, err := regexp.Compile(`(?im)^\s*[*#>-]*\s*\*{0,2}` + regexp.QuoteMeta(name) + `\*{0,2}\s*[:=]\s*(.+)$`)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	val := strings.TrimSpace(m[1])
	val = strings.Trim(val, "*_`")
	if val == "" {
		return "", false
	}
	return val, true
}

// Bool reads a yes/no style field, returning def when the field is absent or
// unrecognizable.
func Bool(text, name string, def bool) bool {
	val, ok := Field(text, name)
	if !ok {
		return def
	}
	if affirmativeRe.MatchString(val) {
		return true
	}
	if negativeRe.MatchString(val) {
		return false
	}
	return def
}

// Int reads an integer field, returning def when absent or malformed.
func Int(text, name string, def int) int {
	val, ok := Field(text, name)
	if !ok {
		return def
	}
	tok := intTokenRe.FindString(val)
	if tok == "" {
		return def
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return def
	}
	return n
}

// Confidence reads a confidence field expressed either as 0-100 or 0.0-1.0
// and normalizes it to [0,1]. When the field is absent or unparsable it
// returns def exactly.
func Confidence(text, name string, def float64) float64 {
	val, ok := Field(text, name)
	if !ok {
		return def
	}
	tok := numberTokenRe.FindString(val)
	if tok == "" {
		return def
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return def
	}
	if f > 1 {
		f = f / 100
	}
	if f < 0 {
		return def
	}
	if f > 1 {
		return 1
	}
	return f
}

// CommaList reads a field and splits it on commas, dropping empty entries
// and placeholder values like "none".
func CommaList(text, name string) []string {
	val, ok := Field(text, name)
	if !ok {
		return nil
	}
	lower := strings.ToLower(val)
	if lower == "none" || lower == "n/a" || lower == "-" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Bullets returns the "- item" lines that follow the named header, stopping
// at the next labelled field. Used for multi-line list fields such as
// follow-up queries.
func Bullets(text, header string) []string {
	re, err := regexp.Compile(`(?im)^\s*\*{0,2}` + regexp.QuoteMeta(header) + `\*{0,2}\s*[:=]\s*$`)
	if err != nil {
		return nil
	}
	loc := re.FindStringIndex(text)
	var section string
	if loc != nil {
		section = text[loc[1]:]
	} else {
		// Inline form: "HEADER: first item" with bullets on following lines.
		val, ok := Field(text, header)
		if !ok {
			return nil
		}
		idx := strings.Index(text, val)
		if idx < 0 {
			return nil
		}
		section = text[idx:]
	}

	var out []string
	for _, line := range strings.Split(section, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			item := strings.TrimSpace(m[1])
			if item != "" {
				out = append(out, item)
			}
			continue
		}
		// A new labelled field ends the section.
		if strings.Contains(trimmed, ":") && !strings.HasPrefix(trimmed, "-") {
			break
		}
	}
	return out
}

// NumberedItems returns the items of a "1. foo" style list in order.
func NumberedItems(text string) []string {
	var out []string
	for _, m := range numberedRe.FindAllStringSubmatch(text, -1) {
		item := strings.TrimSpace(m[2])
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// IndexList reads a field containing comma-separated 1-based indices
// ("RANKING: 3, 1, 2") and returns them converted to 0-based, deduplicated,
// with out-of-range entries dropped.
func IndexList(text, name string, n int) []int {
	val, ok := Field(text, name)
	if !ok {
		return nil
	}
	seen := make(map[int]bool, n)
	var out []int
	for _, tok := range intTokenRe.FindAllString(val, -1) {
		idx, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		idx-- // model speaks 1-based
		if idx < 0 || idx >= n || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out
}

// ContainsAny reports whether text contains any of the given keywords,
// case-insensitively. Used by keyword-heuristic fallbacks.
func ContainsAny(text string, keywords ...string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
