package app

import (
	"testing"

	"alpharia-assessment/internal/domain"
	"alpharia-assessment/internal/itembank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringAccuracy(t *testing.T) {
	cases := []struct {
		name       string
		expected   string
		transcript string
		want       int
	}{
		{"case insensitive", "Cat", "cat", 100},
		{"trimmed", "The dog runs.", "  the dog runs.  ", 100},
		{"empty transcript", "cat", "", 0},
		{"blank transcript", "cat", "   ", 0},
		{"half the words", "the big red dog", "the big", 50},
		{"positional", "the big red dog", "big the red dog", 50},
		{"reversed scores nothing", "one two", "two one", 0},
		{"extra words ignored", "go", "go now", 100},
		{"two of three", "I can run", "I can fun", 67},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StringAccuracy(tc.expected, tc.transcript))
		})
	}
}

func TestGrade(t *testing.T) {
	assert.Equal(t, domain.OutcomeCorrect, Grade(80, 80))
	assert.Equal(t, domain.OutcomeIncorrect, Grade(79, 80))
	assert.Equal(t, domain.OutcomeCorrect, Grade(0, 0))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, Percentage(0, 0))
	assert.Equal(t, 100, Percentage(26, 26))
	assert.Equal(t, 33, Percentage(1, 3))
	assert.Equal(t, 67, Percentage(2, 3))
}

func TestScoringDefaults(t *testing.T) {
	cfg := ScoringConfig{PassThreshold: 140}.withDefaults()
	assert.Equal(t, 100, cfg.PassThreshold)
	assert.Equal(t, DefaultMaxAttempts, cfg.MaxAttempts)
}

func TestZeroScoringUsesDefaults(t *testing.T) {
	assert.Equal(t, DefaultScoring(), ScoringConfig{}.withDefaults())

	explicit := ScoringConfig{PassThreshold: 0, MaxAttempts: 2}.withDefaults()
	assert.Equal(t, 0, explicit.PassThreshold)
	assert.Equal(t, 2, explicit.MaxAttempts)
}

// Punctuation is part of the expected text, so an unpunctuated reading of a
// passage loses every word that ends a sentence.
func TestPassagePunctuationCountsAgainstTranscript(t *testing.T) {
	sec, ok := itembank.Default().Section("passages-preprimer")
	require.True(t, ok)
	expected := sec.Items[0].Expected()
	assert.Equal(t, "I see a cat. The cat is big. The cat can run.", expected)

	assert.Equal(t, 100, StringAccuracy(expected, "i see a cat. the cat is big. the cat can run."))
	acc := StringAccuracy(expected, "i see a cat the cat is big the cat can run")
	assert.Equal(t, 75, acc)
	assert.Equal(t, domain.OutcomeIncorrect, Grade(acc, DefaultPassThreshold))
}
