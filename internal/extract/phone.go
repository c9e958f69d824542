package extract

import "strings"

const countryCodePL = "48"

var directPhoneRegex = boundedRegexp("", `(?:\+|[0-9])[0-9 \-]{5,15}[0-9]`)

// IsPhoneNumber classifies a digit string: nine national digits, or eleven
// digits starting with the Polish country code. Valid PESEL numbers are never
// phone numbers.
func IsPhoneNumber(digits string) bool {
	if !isDigits(digits) || ValidatePESEL(digits) {
		return false
	}
	return len(digits) == 9 || (len(digits) == 11 && strings.HasPrefix(digits, countryCodePL))
}

type phoneKey struct {
	text        string
	start, stop int
}

func (e *Engine) ExtractPhones(text string) []Match {
	offs := newRuneOffsets(text)

	var out []Match
	seen := make(map[phoneKey]struct{})

	for _, m := range findAllBounded(directPhoneRegex, text) {
		start, end := m.span()
		digits := stripNonDigits(text[start:end])
		if !IsPhoneNumber(digits) {
			continue
		}
		match := offs.match(text, start, end, digits)
		seen[phoneKey{match.Text, match.Start, match.Stop}] = struct{}{}
		out = append(out, match)
	}

	for _, w := range e.candidateWindows(text) {
		digits, ok := e.dicts.Numerals.DecodeRun(w.tokens)
		if !ok || !IsPhoneNumber(digits) {
			continue
		}
		match := offs.match(text, w.start, w.end, digits)
		if _, dup := seen[phoneKey{match.Text, match.Start, match.Stop}]; dup {
			continue
		}
		out = append(out, match)
	}

	return out
}
