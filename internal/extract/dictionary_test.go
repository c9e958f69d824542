package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTimeWords = `
hours:
  Trzecia: 3
  dwudziesta   pierwsza: 21
minutes:
  dziesięć: 10
modifiers:
  po południu: pm
`

func TestDefaultDictionaries(t *testing.T) {
	d := defaultDicts(t)

	assert.Equal(t, 900, d.Numerals.Hundreds["dziewięćset"])
	assert.Equal(t, 19, d.Numerals.Tens["dziewiętnaście"])
	assert.Equal(t, 0, d.Numerals.Ones["zero"])
	assert.Equal(t, 3, d.TimeWords.Hours["trzeciej"])
	assert.Equal(t, 15, d.TimeWords.Minutes["kwadrans"])
	assert.Equal(t, PM, d.TimeWords.Modifiers["po południu"])
}

func TestParseDictionariesNormalizesKeys(t *testing.T) {
	d, err := ParseDictionaries(numeralsYAML, []byte(validTimeWords))
	require.NoError(t, err)

	assert.Equal(t, 3, d.TimeWords.Hours["trzecia"])
	assert.Equal(t, 21, d.TimeWords.Hours["dwudziesta pierwsza"])
	assert.Equal(t, PM, d.TimeWords.Modifiers["po południu"])
}

func TestParseDictionariesRejectsMalformedTables(t *testing.T) {
	tests := []struct {
		name      string
		numerals  string
		timeWords string
	}{
		{"missing modifiers", string(numeralsYAML), "hours: {trzecia: 3}\nminutes: {pięć: 5}\n"},
		{"missing hours", string(numeralsYAML), "minutes: {pięć: 5}\nmodifiers: {rano: AM}\n"},
		{"hour out of range", string(numeralsYAML), "hours: {trzecia: 24}\nminutes: {pięć: 5}\nmodifiers: {rano: AM}\n"},
		{"minute out of range", string(numeralsYAML), "hours: {trzecia: 3}\nminutes: {pięć: 60}\nmodifiers: {rano: AM}\n"},
		{"unknown modifier", string(numeralsYAML), "hours: {trzecia: 3}\nminutes: {pięć: 5}\nmodifiers: {rano: NOON}\n"},
		{"hundreds not a multiple", "hundreds: {sto: 150}\ntens: {dziesięć: 10}\nones: {jeden: 1}\n", validTimeWords},
		{"ones out of range", "hundreds: {sto: 100}\ntens: {dziesięć: 10}\nones: {jeden: 10}\n", validTimeWords},
		{"missing tens", "hundreds: {sto: 100}\nones: {jeden: 1}\n", validTimeWords},
		{"not yaml", "hundreds: [", validTimeWords},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDictionaries([]byte(tt.numerals), []byte(tt.timeWords))
			assert.ErrorIs(t, err, ErrInvalidDictionary)
		})
	}
}

func TestLoadDictionaries(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "time_words.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{
		"hours": {"trzeciej": 3},
		"minutes": {"pięć": 5},
		"modifiers": {"wieczorem": "PM"}
	}`), 0644))

	d, err := LoadDictionaries("", jsonPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"trzeciej": 3}, d.TimeWords.Hours)
	assert.Equal(t, 100, d.Numerals.Hundreds["sto"])

	e, err := NewEngine(d)
	require.NoError(t, err)
	assert.Equal(t, []string{"15:00"}, values(e.ExtractTimes("o trzeciej wieczorem")))

	_, err = LoadDictionaries(filepath.Join(dir, "missing.yaml"), "")
	assert.Error(t, err)
}
