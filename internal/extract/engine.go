package extract

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minWindowRunes = 10
	maxWindowRunes = 200
)

// Engine holds the dictionaries and the patterns compiled from them. It is
// read-only after NewEngine returns and safe for concurrent use.
type Engine struct {
	dicts      *Dictionaries
	dateParser DateParser

	window *regexp.Regexp
	clock  []clockPattern
}

type Option func(*Engine)

// WithDateParser replaces the calendar used to confirm numeric and month-name
// dates.
func WithDateParser(p DateParser) Option {
	return func(e *Engine) {
		e.dateParser = p
	}
}

func NewEngine(dicts *Dictionaries, opts ...Option) (*Engine, error) {
	if dicts == nil {
		return nil, errors.New("dictionaries are required")
	}
	if err := dicts.Validate(); err != nil {
		return nil, err
	}

	numerals := make([]string, 0)
	numerals = append(numerals, keys(dicts.Numerals.Hundreds)...)
	numerals = append(numerals, keys(dicts.Numerals.Tens)...)
	numerals = append(numerals, keys(dicts.Numerals.Ones)...)
	token := `(?:` + alternation(numerals) + `|[0-9]+)`

	e := &Engine{
		dicts:      dicts,
		dateParser: CalendarDateParser{},
		window:     boundedRegexp("(?i)", token+`(?:[\s\-]+`+token+`)*`),
		clock:      compileClockPatterns(&dicts.TimeWords),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.dateParser == nil {
		e.dateParser = CalendarDateParser{}
	}
	return e, nil
}

func (e *Engine) Dictionaries() *Dictionaries {
	return e.dicts
}

func (e *Engine) Extract(text string) Result {
	return Result{
		Pesels: e.ExtractPESEL(text),
		Phones: e.ExtractPhones(text),
		Dates:  e.ExtractDates(text),
		Times:  e.ExtractTimes(text),
	}
}

type window struct {
	start, end int
	tokens     []string
}

// candidateWindows returns the maximal runs of numeral words and digit groups
// that are between 10 and 200 characters wide.
func (e *Engine) candidateWindows(text string) []window {
	var out []window
	for _, m := range findAllBounded(e.window, text) {
		start, end := m.span()
		n := utf8.RuneCountInString(text[start:end])
		if n < minWindowRunes || n > maxWindowRunes {
			continue
		}
		out = append(out, window{
			start: start,
			end:   end,
			tokens: strings.FieldsFunc(text[start:end], func(r rune) bool {
				return unicode.IsSpace(r) || r == '-'
			}),
		})
	}
	return out
}
