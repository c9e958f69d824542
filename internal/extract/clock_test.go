package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func values(matches []Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Value)
	}
	return out
}

func TestExtractTimes(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"half to", "wpół do trzeciej", []string{"03:00", "02:30"}},
		{"half to midnight wraps", "wpół do pierwszej", []string{"01:00", "00:30"}},
		{"minutes to", "za dziesięć trzecia", []string{"03:00", "03:50"}},
		{"minutes to with minut", "za dziesięć minut trzecia", []string{"03:00", "03:50"}},
		{"minutes past", "pięć po siódmej", []string{"07:00", "07:05"}},
		{"minutes past with minut", "dwadzieścia minut po ósmej", []string{"08:00", "08:20"}},
		{"hour and minute", "o godzinie ósmej trzydzieści", []string{"08:30", "08:00"}},
		{"bare hour with modifier", "trzecia po południu", []string{"15:00"}},
		{"bare hour with prefix", "o godzinie dziesiątej", []string{"10:00"}},
		{"bare hour", "Przyjdę druga.", []string{"02:00"}},
		{"bare hour inside other words", "trzecia klasa", []string{"03:00"}},
		{"hour word containing za", "pierwsza dziesięć", []string{"01:10", "01:00"}},
		{"AM subtracts from noon", "dwunasta rano", []string{"00:00"}},
		{"AM on late hour", "o godzinie czternastej rano", []string{"02:00"}},
		{"PM is a no-op after noon", "osiemnasta wieczorem", []string{"18:00"}},
		{"two word hour", "o godzinie dwudziestej pierwszej", []string{"21:00"}},
		{"numeric", "start 14:30, koniec 9.05", []string{"14:30", "9.05"}},
		{"numeric with seconds", "o 23:59:59", []string{"23:59:59"}},
		{"numeric space separated", "pociąg 7 45", []string{"7 45"}},
		{"numeric out of range", "24:00 oraz 12:60", []string{}},
		{"case insensitive", "Wpół Do Trzeciej", []string{"03:00", "02:30"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, values(e.ExtractTimes(tt.text)))
		})
	}
}

func TestExtractTimesSpans(t *testing.T) {
	e := newTestEngine(t)

	got := e.ExtractTimes("Spotkanie o wpół do trzeciej.")
	assert.ElementsMatch(t, []Match{
		{Value: "03:00", Text: "trzeciej", Start: 20, Stop: 28},
		{Value: "02:30", Text: "wpół do trzeciej", Start: 12, Stop: 28},
	}, got)
}

func TestExtractTimesOverlappingForms(t *testing.T) {
	e := newTestEngine(t)

	// half-to and bare hour with a modifier both cover "trzeciej po południu"
	got := e.ExtractTimes("wpół do trzeciej po południu")
	assert.ElementsMatch(t, []string{"15:00", "14:30"}, values(got))
}
