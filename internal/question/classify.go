package question

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LongAnswerThreshold is the canonical answer length (in characters) above
// which an untyped question is treated as long-answer.
const LongAnswerThreshold = 100

// minOptionLines is the number of option-marker lines needed before a
// prompt is considered multiple-choice.
const minOptionLines = 2

// optionLine matches "a) ...", "a. ...", "(a) ...", "1) ...", "1. ..." and
// "(1) ...", with or without a space after the marker. Groups: terminator,
// spacing, option text.
var optionLine = regexp.MustCompile(`(?i)^\s*(?:\((?:[a-z]|\d+)(\))|(?:[a-z]|\d+)([.)]))(\s*)(\S.*)$`)

// Classify returns q with its Type filled in.
//
// An explicit type is passed through untouched. Otherwise a "true"/"false"
// answer makes it true/false. Two or more supplied Options, or two or more
// option lines in the prompt, make it multiple-choice; prompt options are
// extracted in source order when none were supplied. The rest is split into
// short and long answers by the length of the canonical answer.
func Classify(q Question) Question {
	if q.Type != "" {
		return q
	}

	answer := strings.TrimSpace(q.Answer)
	if strings.EqualFold(answer, "true") || strings.EqualFold(answer, "false") {
		q.Type = TypeTrueFalse
		return q
	}

	if len(q.Options) >= minOptionLines {
		q.Type = TypeMultipleChoice
		return q
	}
	if opts := ExtractOptions(q.Text); len(opts) >= minOptionLines {
		q.Type = TypeMultipleChoice
		q.Options = opts
		return q
	}

	if utf8.RuneCountInString(q.Answer) > LongAnswerThreshold {
		q.Type = TypeLongAnswer
	} else {
		q.Type = TypeShortAnswer
	}
	return q
}

// ClassifyAll classifies every question in qs, preserving order.
func ClassifyAll(qs []Question) []Question {
	out := make([]Question, len(qs))
	for i, q := range qs {
		out[i] = Classify(q)
	}
	return out
}

// ExtractOptions returns the option strings found in text, with their
// leading markers stripped.
func ExtractOptions(text string) []string {
	var opts []string
	for _, line := range strings.Split(text, "\n") {
		if opt, ok := parseOptionLine(strings.TrimRight(line, "\r")); ok {
			opts = append(opts, opt)
		}
	}
	return opts
}

// parseOptionLine returns the option text of an option-marker line. A "."
// marker glued to a digit ("1.5 litres") or to an abbreviation ("e.g.") is
// not an option.
func parseOptionLine(line string) (string, bool) {
	m := optionLine.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	term, spacing, text := m[1]+m[2], m[3], m[4]
	if term == "." && spacing == "" {
		if text[0] >= '0' && text[0] <= '9' {
			return "", false
		}
		if len(text) > 1 && text[1] == '.' {
			return "", false
		}
	}
	return strings.TrimSpace(text), true
}

// OptionIndex resolves s to a position in q.Options. s may be the option
// text itself (case-insensitive) or a marker such as "b", "(b)", "b)" or "2".
// Numeric markers are ignored when any option is itself a number, and letter
// markers when any option is a single letter, so a marker never shadows an
// option value. It returns -1 when s names no option.
func (q Question) OptionIndex(s string) int {
	s = strings.TrimSpace(s)
	for i, opt := range q.Options {
		if strings.EqualFold(s, strings.TrimSpace(opt)) {
			return i
		}
	}

	m, ok := optionMarker(s)
	if !ok {
		return -1
	}
	idx := -1
	if m[0] >= 'a' && m[0] <= 'z' {
		if q.hasLetterOption() {
			return -1
		}
		idx = int(m[0] - 'a')
	} else if n, err := strconv.Atoi(m); err == nil {
		if q.hasNumericOption() {
			return -1
		}
		idx = n - 1
	}
	if idx < 0 || idx >= len(q.Options) {
		return -1
	}
	return idx
}

func (q Question) hasNumericOption() bool {
	for _, opt := range q.Options {
		if _, err := strconv.ParseFloat(strings.TrimSpace(opt), 64); err == nil {
			return true
		}
	}
	return false
}

func (q Question) hasLetterOption() bool {
	for _, opt := range q.Options {
		opt = strings.TrimSpace(opt)
		if len(opt) == 1 && unicode.IsLetter(rune(opt[0])) {
			return true
		}
	}
	return false
}

// optionMarker returns the bare marker ("a", "2") if s is exactly an option
// marker such as "b", "(b)", "b)", "b." or "2".
func optionMarker(s string) (string, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimRight(s, ").")
	if s == "" {
		return "", false
	}
	if len(s) == 1 && s[0] >= 'a' && s[0] <= 'z' {
		return s, true
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return s, true
}
