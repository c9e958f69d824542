package extract

import (
	"fmt"
	"regexp"
)

type clockForm int

const (
	// [o godzinie] <hour> <minute> [modifier]
	hourMinuteForm clockForm = iota
	// [o godzinie] <hour> [modifier]
	bareHourForm
	// <minute> [minut(a|y)] po <hour> [modifier]
	minutesPastForm
	// za <minute> [minut(a|y)] <hour> [modifier]
	minutesToForm
	// wpół do <hour> [modifier]
	halfToForm
)

type clockPattern struct {
	form  clockForm
	regex *regexp.Regexp
}

const hourPrefix = `o\s+godzin(?:ie|ą)\s+`

var numericTimeRegex = boundedRegexp("", `(?:[01]?[0-9]|2[0-3])[.: ][0-5][0-9](?:[.:][0-5][0-9])?`)

func compileClockPatterns(t *TimeWordTables) []clockPattern {
	hour := `(?P<hour>` + alternation(keys(t.Hours)) + `)`
	minute := `(?P<minute>` + alternation(keys(t.Minutes)) + `)`
	modifier := `(?:\s+(?P<modifier>` + alternation(keys(t.Modifiers)) + `))?`
	minuteWord := `(?:minut[ay]?\s+)?`

	exprs := []struct {
		form clockForm
		expr string
	}{
		{hourMinuteForm, `(?:` + hourPrefix + `)?` + hour + `\s+` + minute + modifier},
		{bareHourForm, `(?:` + hourPrefix + `)?` + hour + modifier},
		{minutesPastForm, minute + `\s+` + minuteWord + `po\s+` + hour + modifier},
		{minutesToForm, `za\s+` + minute + `\s+` + minuteWord + hour + modifier},
		{halfToForm, `wpół\s+do\s+` + hour + modifier},
	}

	patterns := make([]clockPattern, 0, len(exprs))
	for _, e := range exprs {
		patterns = append(patterns, clockPattern{form: e.form, regex: boundedRegexp("(?i)", e.expr)})
	}
	return patterns
}

// ExtractTimes reports colloquial clock phrases normalized to HH:MM and numeric
// clock times verbatim. Every form runs over the whole text, so one span may be
// reported by more than one form: "wpół do trzeciej" yields 02:30 and, for the
// bare hour word, 03:00.
//
// The subtracting and adding readings belong to the "za" and "po" forms only.
// An hour word followed by a minute word always reads as minutes past the
// hour, even when the hour word contains "za" as in "pierwsza".
func (e *Engine) ExtractTimes(text string) []Match {
	offs := newRuneOffsets(text)
	words := &e.dicts.TimeWords

	var out []Match
	for _, p := range e.clock {
		for _, m := range findAllBounded(p.regex, text) {
			value, ok := p.normalize(words, text, m)
			if !ok {
				continue
			}
			start, end := m.span()
			out = append(out, offs.match(text, start, end, value))
		}
	}

	for _, m := range findAllBounded(numericTimeRegex, text) {
		start, end := m.span()
		out = append(out, offs.match(text, start, end, text[start:end]))
	}

	return out
}

func (p clockPattern) normalize(words *TimeWordTables, text string, m submatch) (string, bool) {
	word := func(name string) (string, bool) {
		start, end, ok := m.group(p.regex, name)
		if !ok {
			return "", false
		}
		return foldWord(text[start:end]), true
	}

	hw, ok := word("hour")
	if !ok {
		return "", false
	}
	hour, ok := words.Hours[hw]
	if !ok {
		return "", false
	}

	minute := 0
	if p.form == hourMinuteForm || p.form == minutesPastForm || p.form == minutesToForm {
		mw, ok := word("minute")
		if !ok {
			return "", false
		}
		if minute, ok = words.Minutes[mw]; !ok {
			return "", false
		}
	}

	modWord, hasModifier := word("modifier")

	switch p.form {
	case minutesToForm:
		minute = 60 - minute
	case halfToForm:
		minute = 30
		hour = (hour + 23) % 24
	}

	if hasModifier {
		switch words.Modifiers[modWord] {
		case PM:
			if hour < 12 {
				hour += 12
			}
		case AM:
			if hour >= 12 {
				hour -= 12
			}
		}
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}
