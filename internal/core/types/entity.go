package types

import (
	"strings"
	"unicode/utf8"
)

// Entity is a span recognized by a NER model. Start and End are rune
// offsets into the analyzed text.
type Entity struct {
	Label string
	Text  string
	Start int
	End   int
	Score float64
}

func CreateEntityWithRune(label string, runes []rune, start, end int, score float64) Entity {
	start = max(start, 0)
	end = min(end, len(runes))
	if start > end {
		start = end
	}

	return Entity{
		Label: label,
		Text:  strings.ToValidUTF8(string(runes[start:end]), ""),
		Start: start,
		End:   end,
		Score: score,
	}
}

// ByteToRuneOffsets maps every byte offset of text, including len(text),
// to the index of the rune it falls in.
func ByteToRuneOffsets(text string) []int {
	offsets := make([]int, len(text)+1)
	r := 0
	for i := 0; i < len(text); {
		_, size := utf8.DecodeRuneInString(text[i:])
		for j := 0; j < size; j++ {
			offsets[i+j] = r
		}
		i += size
		r++
	}
	offsets[len(text)] = r
	return offsets
}
