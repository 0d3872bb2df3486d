package app

import (
	"math"
	"strings"

	"alpharia-assessment/internal/domain"
)

// Scoring defaults.
const (
	DefaultPassThreshold = 80
	DefaultMaxAttempts   = 3
)

// ScoringConfig tunes the speech path.
type ScoringConfig struct {
	// PassThreshold is the minimum accuracy (0-100) graded as correct.
	PassThreshold int
	// MaxAttempts bounds speech attempts per item before it is force-submitted.
	MaxAttempts int
}

// DefaultScoring returns the standard 80% / 3 attempt configuration.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{PassThreshold: DefaultPassThreshold, MaxAttempts: DefaultMaxAttempts}
}

// withDefaults maps the zero config to DefaultScoring. A config with any field
// set keeps its threshold, so an explicit 0 still passes everything.
func (c ScoringConfig) withDefaults() ScoringConfig {
	if c == (ScoringConfig{}) {
		return DefaultScoring()
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.PassThreshold < 0 {
		c.PassThreshold = 0
	}
	if c.PassThreshold > 100 {
		c.PassThreshold = 100
	}
	return c
}

// StringAccuracy scores a transcript against the expected text as a percentage.
//
// Comparison is word-positional: the i-th transcript word must equal the i-th
// expected word. Correct words spoken in a different order do not count.
func StringAccuracy(expected, transcript string) int {
	e := strings.ToLower(strings.TrimSpace(expected))
	t := strings.ToLower(strings.TrimSpace(transcript))
	if t == "" {
		return 0
	}
	if e == t {
		return 100
	}

	want := strings.Fields(e)
	got := strings.Fields(t)
	if len(want) == 0 {
		return 0
	}
	matches := 0
	for i, w := range want {
		if i < len(got) && got[i] == w {
			matches++
		}
	}
	return int(math.Round(float64(matches) / float64(len(want)) * 100))
}

// Grade turns an accuracy into an outcome.
func Grade(accuracy, passThreshold int) domain.Outcome {
	if accuracy >= passThreshold {
		return domain.OutcomeCorrect
	}
	return domain.OutcomeIncorrect
}

// Percentage rounds correct/total to a whole percent; zero when total is zero.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
