package view

import (
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/justyntemme/duopane/internal/model"
)

// termKind is the field a filter term tests.
type termKind int

const (
	termName termKind = iota
	termExt
	termSize
	termModified
)

type operator int

const (
	opEquals operator = iota
	opGreater
	opLess
	opGreaterEq
	opLessEq
)

type term struct {
	kind  termKind
	value string
	op    operator
	size  uint64
	at    time.Time
	valid bool
}

// Filter selects entries by a search string. A string without directives
// is a case-insensitive substring of the name. Directives are separated by
// spaces, combined with AND, and quoted values may contain spaces:
//
//	name:*.jpg        name glob (substring without *)
//	ext:go            extension
//	size:>10MB        size with >, <, >=, <= or =
//	modified:>=2024-01-01   also today, yesterday, week, month, year
type Filter struct {
	substring string
	terms     []term
}

// ParseFilter parses input. now anchors relative dates.
func ParseFilter(input string, now time.Time) Filter {
	input = strings.TrimSpace(input)
	if input == "" {
		return Filter{}
	}

	var terms []term
	directives := false
	for _, part := range splitQuoted(input) {
		t, ok := parseTerm(part, now)
		if ok {
			directives = true
		}
		terms = append(terms, t)
	}
	if !directives {
		return Filter{substring: strings.ToLower(input)}
	}
	return Filter{terms: terms}
}

// Empty reports whether the filter accepts everything.
func (f Filter) Empty() bool {
	return f.substring == "" && len(f.terms) == 0
}

// Match reports whether e passes every term.
func (f Filter) Match(e model.Entry) bool {
	if f.substring != "" {
		return strings.Contains(strings.ToLower(e.Name), f.substring)
	}
	for _, t := range f.terms {
		if !t.match(e) {
			return false
		}
	}
	return true
}

func splitQuoted(s string) []string {
	var parts []string
	var current strings.Builder
	quote := rune(0)

	for _, r := range s {
		switch {
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
		case r == quote:
			quote = 0
		case r == ' ' && quote == 0:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// parseTerm reports whether part was a recognized directive. Anything else
// is a name substring.
func parseTerm(part string, now time.Time) (term, bool) {
	idx := strings.Index(part, ":")
	if idx <= 0 {
		return term{kind: termName, value: strings.ToLower(part), valid: true}, false
	}
	value := strings.Trim(part[idx+1:], `"'`)

	switch strings.ToLower(part[:idx]) {
	case "name", "filename":
		return term{kind: termName, value: strings.ToLower(value), valid: true}, true

	case "ext", "extension":
		value = strings.ToLower(value)
		if !strings.HasPrefix(value, ".") {
			value = "." + value
		}
		return term{kind: termExt, value: value, valid: true}, true

	case "size":
		op, rest := parseOperator(value)
		n, err := humanize.ParseBytes(rest)
		return term{kind: termSize, value: value, op: op, size: n, valid: err == nil}, true

	case "modified", "mtime", "date":
		op, rest := parseOperator(value)
		at, ok := parseDate(rest, now)
		return term{kind: termModified, value: value, op: op, at: at, valid: ok}, true
	}
	return term{kind: termName, value: strings.ToLower(part), valid: true}, false
}

func parseOperator(s string) (operator, string) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, ">="):
		return opGreaterEq, strings.TrimSpace(s[2:])
	case strings.HasPrefix(s, "<="):
		return opLessEq, strings.TrimSpace(s[2:])
	case strings.HasPrefix(s, ">"):
		return opGreater, strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "<"):
		return opLess, strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "="):
		return opEquals, strings.TrimSpace(s[1:])
	}
	return opEquals, s
}

func parseDate(s string, now time.Time) (time.Time, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	midnight := func(t time.Time) time.Time {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}

	switch s {
	case "today":
		return midnight(now), true
	case "yesterday":
		return midnight(now.AddDate(0, 0, -1)), true
	case "week":
		return now.AddDate(0, 0, -7), true
	case "month":
		return now.AddDate(0, -1, 0), true
	case "year":
		return now.AddDate(-1, 0, 0), true
	}

	for _, layout := range []string{time.DateOnly, "2006-01", "2006/01/02", "01/02/2006", "Jan 2, 2006"} {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// match rejects entries for terms that failed to parse, so a typo shows an
// empty listing instead of everything.
func (t term) match(e model.Entry) bool {
	if !t.valid {
		return false
	}
	switch t.kind {
	case termName:
		return matchGlob(strings.ToLower(e.Name), t.value)

	case termExt:
		return !e.IsDir && strings.ToLower(path.Ext(e.Name)) == t.value

	case termSize:
		if e.IsDir || e.Size == model.UnknownSize {
			return false
		}
		return compare(uint64(e.Size), t.size, t.op)

	case termModified:
		at, err := time.Parse(time.RFC3339, e.ModifiedAt)
		if err != nil {
			return false
		}
		if t.op == opEquals {
			ay, am, ad := at.In(t.at.Location()).Date()
			ty, tm, td := t.at.Date()
			return ay == ty && am == tm && ad == td
		}
		return compare(at.Unix(), t.at.Unix(), t.op)
	}
	return true
}

// matchGlob matches * wildcards; a pattern without * is a substring.
func matchGlob(name, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return strings.Contains(name, pattern)
	}

	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	last := parts[len(parts)-1]
	if !strings.HasSuffix(name[len(parts[0]):], last) {
		return false
	}

	pos := len(parts[0])
	end := len(name) - len(last)
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(name[pos:end], part)
		if idx < 0 {
			return false
		}
		pos += idx + len(part)
	}
	return true
}

func compare[T int64 | uint64](val, target T, op operator) bool {
	switch op {
	case opGreater:
		return val > target
	case opLess:
		return val < target
	case opGreaterEq:
		return val >= target
	case opLessEq:
		return val <= target
	}
	return val == target
}
