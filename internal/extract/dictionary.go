package extract

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"
)

var ErrInvalidDictionary = errors.New("invalid dictionary")

type Meridiem string

const (
	AM Meridiem = "AM"
	PM Meridiem = "PM"
)

type NumeralTables struct {
	Hundreds map[string]int `yaml:"hundreds" json:"hundreds"`
	Tens     map[string]int `yaml:"tens" json:"tens"`
	Ones     map[string]int `yaml:"ones" json:"ones"`
}

type TimeWordTables struct {
	Hours     map[string]int      `yaml:"hours" json:"hours"`
	Minutes   map[string]int      `yaml:"minutes" json:"minutes"`
	Modifiers map[string]Meridiem `yaml:"modifiers" json:"modifiers"`
}

// Dictionaries is loaded once at start-up and must not be modified afterwards.
type Dictionaries struct {
	Numerals  NumeralTables
	TimeWords TimeWordTables
}

//go:embed data/numerals.yaml
var numeralsYAML []byte

//go:embed data/time_words.yaml
var timeWordsYAML []byte

func DefaultDictionaries() (*Dictionaries, error) {
	return ParseDictionaries(numeralsYAML, timeWordsYAML)
}

// ParseDictionaries accepts YAML or JSON documents for both tables.
func ParseDictionaries(numerals, timeWords []byte) (*Dictionaries, error) {
	var d Dictionaries
	if err := yaml.Unmarshal(numerals, &d.Numerals); err != nil {
		return nil, fmt.Errorf("%w: error parsing numeral tables: %w", ErrInvalidDictionary, err)
	}
	if err := yaml.Unmarshal(timeWords, &d.TimeWords); err != nil {
		return nil, fmt.Errorf("%w: error parsing time word tables: %w", ErrInvalidDictionary, err)
	}

	d.normalize()

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadDictionaries reads the tables from disk. An empty path falls back to the
// embedded default for that table.
func LoadDictionaries(numeralsPath, timeWordsPath string) (*Dictionaries, error) {
	numerals, err := readTable(numeralsPath, numeralsYAML)
	if err != nil {
		return nil, err
	}
	timeWords, err := readTable(timeWordsPath, timeWordsYAML)
	if err != nil {
		return nil, err
	}
	return ParseDictionaries(numerals, timeWords)
}

func readTable(path string, fallback []byte) ([]byte, error) {
	if path == "" {
		return fallback, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading dictionary %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		// yaml.v2 handles most JSON, but not every escape sequence; round trip
		// through encoding/json to be safe.
		var raw map[string]map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: error parsing %s: %w", ErrInvalidDictionary, path, err)
		}
		if data, err = yaml.Marshal(raw); err != nil {
			return nil, fmt.Errorf("error converting %s: %w", path, err)
		}
	}
	return data, nil
}

// foldWord lowercases with Polish rules and collapses inner whitespace, which
// is the form every dictionary key is stored in.
func foldWord(w string) string {
	return strings.Join(strings.Fields(cases.Lower(language.Polish).String(w)), " ")
}

func (d *Dictionaries) normalize() {
	d.Numerals.Hundreds = normalizeKeys(d.Numerals.Hundreds)
	d.Numerals.Tens = normalizeKeys(d.Numerals.Tens)
	d.Numerals.Ones = normalizeKeys(d.Numerals.Ones)
	d.TimeWords.Hours = normalizeKeys(d.TimeWords.Hours)
	d.TimeWords.Minutes = normalizeKeys(d.TimeWords.Minutes)
	d.TimeWords.Modifiers = normalizeKeys(d.TimeWords.Modifiers)
	for k, v := range d.TimeWords.Modifiers {
		d.TimeWords.Modifiers[k] = Meridiem(strings.ToUpper(string(v)))
	}
}

func normalizeKeys[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[foldWord(k)] = v
	}
	return out
}

func (d *Dictionaries) Validate() error {
	checks := []struct {
		name     string
		table    map[string]int
		min, max int
		step     int
	}{
		{"numerals.hundreds", d.Numerals.Hundreds, 100, 900, 100},
		{"numerals.tens", d.Numerals.Tens, 10, 90, 1},
		{"numerals.ones", d.Numerals.Ones, 0, 9, 1},
		{"time_words.hours", d.TimeWords.Hours, 0, 23, 1},
		{"time_words.minutes", d.TimeWords.Minutes, 0, 59, 1},
	}

	for _, c := range checks {
		if len(c.table) == 0 {
			return fmt.Errorf("%w: table %s is missing or empty", ErrInvalidDictionary, c.name)
		}
		for word, v := range c.table {
			if word == "" {
				return fmt.Errorf("%w: table %s contains an empty word", ErrInvalidDictionary, c.name)
			}
			if v < c.min || v > c.max || v%c.step != 0 {
				return fmt.Errorf("%w: %s[%q] = %d is out of range", ErrInvalidDictionary, c.name, word, v)
			}
		}
	}

	if len(d.TimeWords.Modifiers) == 0 {
		return fmt.Errorf("%w: table time_words.modifiers is missing or empty", ErrInvalidDictionary)
	}
	for word, m := range d.TimeWords.Modifiers {
		if word == "" || (m != AM && m != PM) {
			return fmt.Errorf("%w: time_words.modifiers[%q] = %q must be AM or PM", ErrInvalidDictionary, word, m)
		}
	}

	return nil
}
