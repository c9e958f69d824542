package extract

import (
	"strconv"
	"strings"
)

const maxDecodedValue = 999

// DecodeResult is either Decoded(Value) or Failed.
type DecodeResult struct {
	Value int
	OK    bool
}

func Decoded(v int) DecodeResult { return DecodeResult{Value: v, OK: true} }

var Failed = DecodeResult{}

// Decode sums the values of the tokens. It does not model numeral grammar:
// "sto sto" is 200. A token that is neither a numeral word nor a run of ASCII
// digits no greater than 999 fails the whole decode, as does a sum above 999.
func (t *NumeralTables) Decode(tokens []string) DecodeResult {
	if len(tokens) == 0 {
		return Failed
	}

	sum := 0
	for _, tok := range tokens {
		v, ok := t.lookup(foldWord(tok))
		if !ok {
			return Failed
		}
		sum += v
		if sum > maxDecodedValue {
			return Failed
		}
	}
	return Decoded(sum)
}

func (t *NumeralTables) lookup(tok string) (int, bool) {
	if isDigits(tok) {
		// leading zeros do not count towards the bound, "0123" is 123
		trimmed := strings.TrimLeft(tok, "0")
		if len(trimmed) > 3 {
			return 0, false
		}
		if trimmed == "" {
			return 0, true
		}
		v, err := strconv.Atoi(trimmed)
		if err != nil || v > maxDecodedValue {
			return 0, false
		}
		return v, true
	}
	if v, ok := t.Hundreds[tok]; ok {
		return v, true
	}
	if v, ok := t.Tens[tok]; ok {
		return v, true
	}
	if v, ok := t.Ones[tok]; ok {
		return v, true
	}
	return 0, false
}

// DecodeDigits decodes every token on its own and concatenates the decimal
// values, so "cztery 4 zero" becomes "440".
func (t *NumeralTables) DecodeDigits(tokens []string) (string, bool) {
	var b strings.Builder
	for _, tok := range tokens {
		res := t.Decode([]string{tok})
		if !res.OK {
			return "", false
		}
		if isDigits(tok) {
			// keep leading zeros of digit groups such as "048"
			b.WriteString(tok)
			continue
		}
		b.WriteString(strconv.Itoa(res.Value))
	}
	return b.String(), true
}

// DecodeRun decodes a spelled-out run greedily, trying windows of three, two
// and one tokens at each position and taking the first that Decode accepts.
// Windows are summed like any other decode, so "sześć zero zero" is 6, not 600.
// Any position where no window decodes fails the whole run.
func (t *NumeralTables) DecodeRun(tokens []string) (string, bool) {
	var b strings.Builder
	for i := 0; i < len(tokens); {
		advanced := false
		for size := 3; size >= 1; size-- {
			if i+size > len(tokens) {
				continue
			}
			window := tokens[i : i+size]
			res := t.Decode(window)
			if !res.OK {
				continue
			}
			if size == 1 && isDigits(window[0]) {
				b.WriteString(window[0])
			} else {
				b.WriteString(strconv.Itoa(res.Value))
			}
			i += size
			advanced = true
			break
		}
		if !advanced {
			return "", false
		}
	}
	return b.String(), b.Len() > 0
}
