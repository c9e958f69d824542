package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Go's \b only knows ASCII word characters, so "trzecią" would never end on a
// boundary. Patterns are instead wrapped in explicit non-word guards and run
// over a space padded copy of the text.
const nonWord = `[^\pL\pM\pN_]`

func boundedRegexp(flags, expr string) *regexp.Regexp {
	return regexp.MustCompile(flags + nonWord + `(` + expr + `)` + nonWord)
}

// submatch holds byte offsets into the original text, laid out like the
// result of FindStringSubmatchIndex with the guards stripped off.
type submatch []int

func (m submatch) span() (int, int) {
	return m[0], m[1]
}

func (m submatch) group(re *regexp.Regexp, name string) (int, int, bool) {
	i := re.SubexpIndex(name)
	if i < 0 {
		return 0, 0, false
	}
	// group 0 is the guarded match, group 1 the bounded expression
	i--
	if 2*i+1 >= len(m) || m[2*i] < 0 {
		return 0, 0, false
	}
	return m[2*i], m[2*i+1], true
}

func findAllBounded(re *regexp.Regexp, text string) []submatch {
	padded := " " + text + " "

	var out []submatch
	pos := 0
	for pos < len(padded) {
		loc := re.FindStringSubmatchIndex(padded[pos:])
		if loc == nil {
			break
		}

		m := make(submatch, len(loc)-2)
		for i, v := range loc[2:] {
			if v < 0 {
				m[i] = -1
				continue
			}
			m[i] = v + pos - 1
		}
		out = append(out, m)

		// resume on the trailing guard so it can serve as the next leading one
		pos += loc[3]
	}
	return out
}

// runeOffsets maps every byte offset of a string to the index of the rune it
// belongs to, with one extra entry for len(text).
type runeOffsets []int

func newRuneOffsets(text string) runeOffsets {
	offs := make(runeOffsets, len(text)+1)
	n := -1
	for i := 0; i < len(text); i++ {
		if utf8.RuneStart(text[i]) {
			n++
		}
		offs[i] = n
	}
	offs[len(text)] = n + 1
	return offs
}

func (o runeOffsets) match(text string, start, end int, value string) Match {
	return Match{
		Value: value,
		Text:  text[start:end],
		Start: o[start],
		Stop:  o[end],
	}
}

// alternation builds a regexp alternation of dictionary words, longest first so
// that "dwudziesta pierwsza" wins over "dwudziesta".
func alternation(words []string) string {
	sorted := make([]string, len(words))
	copy(sorted, words)
	sort.Slice(sorted, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(sorted[i]), utf8.RuneCountInString(sorted[j])
		if li != lj {
			return li > lj
		}
		return sorted[i] < sorted[j]
	})

	parts := make([]string, len(sorted))
	for i, w := range sorted {
		fields := strings.Fields(w)
		for j, f := range fields {
			fields[j] = regexp.QuoteMeta(f)
		}
		parts[i] = strings.Join(fields, `\s+`)
	}
	return `(?:` + strings.Join(parts, "|") + `)`
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
