// Package extract finds PESEL numbers, phone numbers, dates and clock times in
// Polish text, including numbers spelled out in words.
//
// Every extractor is a pure function of the input text and a read-only
// Dictionaries value, so a single Engine can be shared by any number of
// goroutines. Absence of a match is never an error.
package extract

type Category string

const (
	CategoryPESEL Category = "PESEL"
	CategoryPhone Category = "PHONE"
	CategoryDate  Category = "DATE"
	CategoryTime  Category = "TIME"
)

var Categories = []Category{CategoryPESEL, CategoryPhone, CategoryDate, CategoryTime}

// Match is a single finding. Start and Stop are half-open character (rune)
// offsets into the original text and Text is exactly the runes in that range.
// Value is the normalized form: the 11 PESEL digits, the phone digits, the
// date as written, or an HH:MM time.
type Match struct {
	Value string
	Text  string
	Start int
	Stop  int
}

type Result struct {
	Pesels []Match
	Phones []Match
	Dates  []Match
	Times  []Match
}

func (r Result) ByCategory() map[Category][]Match {
	return map[Category][]Match{
		CategoryPESEL: r.Pesels,
		CategoryPhone: r.Phones,
		CategoryDate:  r.Dates,
		CategoryTime:  r.Times,
	}
}

func (r Result) Count() int {
	return len(r.Pesels) + len(r.Phones) + len(r.Dates) + len(r.Times)
}
