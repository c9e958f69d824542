package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var tokenRegex = regexp.MustCompile(`\S+`)

const DefaultSentenceLength = 100

// SplitTextCustomLength groups every length whitespace separated tokens into a
// sentence. Start offsets are byte offsets into text, so the whitespace
// between sentences is dropped without shifting any token.
func SplitTextCustomLength(text string, length int) (sentences []string, startOffsets []int) {
	idxs := tokenRegex.FindAllStringIndex(text, -1)

	for tokenIndex := 0; tokenIndex < len(idxs); tokenIndex += length {
		end := min(tokenIndex+length, len(idxs))
		startOffset := idxs[tokenIndex][0]
		endOffset := idxs[end-1][1]
		sentences = append(sentences, text[startOffset:endOffset])
		startOffsets = append(startOffsets, startOffset)
	}
	return
}

func SplitText(text string) (sentences []string, startOffsets []int) {
	return SplitTextCustomLength(text, DefaultSentenceLength)
}

// ChunkText cuts text into pieces of at most maxRunes runes, preferring to cut
// after a line break and falling back to any whitespace. Offsets are rune
// offsets of each chunk into text. Concatenating the chunks gives back text.
func ChunkText(text string, maxRunes int) (chunks []string, runeOffsets []int) {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		if text == "" {
			return nil, nil
		}
		return []string{text}, []int{0}
	}

	offset := 0
	for len(text) > 0 {
		cut := len(text)
		n, lastLine, lastSpace := 0, -1, -1
		for i, r := range text {
			if n == maxRunes {
				cut = i
				break
			}
			n++
			if r == '\n' {
				lastLine = i + 1
			} else if unicode.IsSpace(r) {
				lastSpace = i + utf8.RuneLen(r)
			}
		}

		if cut < len(text) {
			if lastLine > 0 {
				cut = lastLine
			} else if lastSpace > 0 {
				cut = lastSpace
			}
		}

		chunk := text[:cut]
		chunks = append(chunks, chunk)
		runeOffsets = append(runeOffsets, offset)
		offset += utf8.RuneCountInString(chunk)
		text = text[cut:]
	}
	return
}

// CollapseBlankLines trims every line and drops runs of empty lines, used to
// clean up text scraped from markup.
func CollapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
