package extract

var peselWeights = [10]int{1, 3, 7, 9, 1, 3, 7, 9, 1, 3}

var directPeselRegex = boundedRegexp("", `[0-9]{11}`)

// ValidatePESEL checks length, digits and the weighted check digit.
func ValidatePESEL(s string) bool {
	if len(s) != 11 || !isDigits(s) {
		return false
	}

	sum := 0
	for i, w := range peselWeights {
		sum += w * int(s[i]-'0')
	}
	check := (10 - sum%10) % 10
	return check == int(s[10]-'0')
}

func (e *Engine) ExtractPESEL(text string) []Match {
	offs := newRuneOffsets(text)

	var out []Match
	seen := make(map[Match]struct{})

	for _, m := range findAllBounded(directPeselRegex, text) {
		start, end := m.span()
		digits := text[start:end]
		if !ValidatePESEL(digits) {
			continue
		}
		match := offs.match(text, start, end, digits)
		seen[spanKey(match)] = struct{}{}
		out = append(out, match)
	}

	for _, w := range e.candidateWindows(text) {
		digits, ok := e.dicts.Numerals.DecodeDigits(w.tokens)
		if !ok || !ValidatePESEL(digits) {
			continue
		}
		match := offs.match(text, w.start, w.end, digits)
		if _, dup := seen[spanKey(match)]; dup {
			continue
		}
		out = append(out, match)
	}

	return out
}

// spanKey drops the text so matches compare by value and span only.
func spanKey(m Match) Match {
	return Match{Value: m.Value, Start: m.Start, Stop: m.Stop}
}
