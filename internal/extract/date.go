package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	minYear = 1900
	maxYear = 2100
)

// DateParser turns a matched date candidate into a calendar date. It is called
// with the exact matched substring, day first.
type DateParser interface {
	ParseDate(s string) (time.Time, error)
}

var ErrUnknownMonth = errors.New("unknown month")

var monthNumbers = map[string]int{
	"stycznia": 1, "styczeń": 1, "sty": 1,
	"lutego": 2, "luty": 2, "lut": 2,
	"marca": 3, "marzec": 3, "mar": 3,
	"kwietnia": 4, "kwiecień": 4, "kwi": 4,
	"maja": 5, "maj": 5,
	"czerwca": 6, "czerwiec": 6, "cze": 6,
	"lipca": 7, "lipiec": 7, "lip": 7,
	"sierpnia": 8, "sierpień": 8, "sie": 8,
	"września": 9, "wrzesień": 9, "wrz": 9,
	"października": 10, "październik": 10, "paź": 10,
	"listopada": 11, "listopad": 11, "lis": 11,
	"grudnia": 12, "grudzień": 12, "gru": 12,
}

// CalendarDateParser accepts "D.M.YYYY" with any of . / - as separators and
// "D <month> YYYY" with a Polish month name or abbreviation. Dates that do not
// exist in the calendar are rejected.
type CalendarDateParser struct{}

func (CalendarDateParser) ParseDate(s string) (time.Time, error) {
	parts := strings.FieldsFunc(foldWord(s), func(r rune) bool {
		return unicode.IsSpace(r) || r == '.' || r == '/' || r == '-'
	})
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("date %q must have day, month and year", s)
	}

	if !isDigits(parts[1]) {
		month, ok := monthNumbers[parts[1]]
		if !ok {
			return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownMonth, parts[1])
		}
		parts[1] = strconv.Itoa(month)
	}

	t, err := time.Parse("2.1.2006", strings.Join(parts, "."))
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing date %q: %w", s, err)
	}
	return t, nil
}

var (
	numericDateRegex = boundedRegexp("", `[0-9]{1,2}[./\-][0-9]{1,2}[./\-][0-9]{4}`)
	monthDateRegex   = boundedRegexp("(?i)", `[0-9]{1,2}\s+`+alternation(keys(monthNumbers))+`\.?\s+[0-9]{4}`)
	tokenRegex       = regexp.MustCompile(`\S+`)
)

// ExtractDates reports dates as written. The numeric and month-name families
// are confirmed by the DateParser; the word triplet family only checks that
// day, month and year are in range, so it accepts "31 2 2024". Families are
// not deduplicated against each other.
func (e *Engine) ExtractDates(text string) []Match {
	offs := newRuneOffsets(text)

	var out []Match
	for _, re := range []*regexp.Regexp{numericDateRegex, monthDateRegex} {
		for _, m := range findAllBounded(re, text) {
			start, end := m.span()
			if !e.validDate(text[start:end]) {
				continue
			}
			out = append(out, offs.match(text, start, end, text[start:end]))
		}
	}

	tokens := tokenRegex.FindAllStringIndex(text, -1)
	for i := 0; i+2 < len(tokens); i++ {
		day, month, year := tokens[i], tokens[i+1], tokens[i+2]
		if !e.inRange(text[day[0]:day[1]], 1, 31) || !e.inRange(text[month[0]:month[1]], 1, 12) {
			continue
		}
		if !validYear(text[year[0]:year[1]]) {
			continue
		}
		out = append(out, offs.match(text, day[0], year[1], text[day[0]:year[1]]))
	}

	return out
}

func (e *Engine) validDate(s string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	t, err := e.dateParser.ParseDate(s)
	if err != nil {
		return false
	}
	return t.Year() >= minYear && t.Year() <= maxYear
}

func (e *Engine) inRange(tok string, min, max int) bool {
	res := e.dicts.Numerals.Decode([]string{tok})
	return res.OK && res.Value >= min && res.Value <= max
}

func validYear(tok string) bool {
	if len(tok) != 4 || !isDigits(tok) {
		return false
	}
	y, _ := strconv.Atoi(tok)
	return y >= minYear && y <= maxYear
}
