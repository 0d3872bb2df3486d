package app

import (
	"fmt"
	"math/rand"

	"alpharia-assessment/internal/domain"
	"alpharia-assessment/internal/itembank"
)

// Shuffler permutes n elements in place through swap, like rand.Shuffle.
type Shuffler func(n int, swap func(i, j int))

// Permute returns a uniformly shuffled copy of ids.
func Permute(ids []string, shuffle Shuffler) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// SectionState owns the presentation order, cursor and outcomes of one section.
type SectionState struct {
	section  itembank.Section
	shuffle  Shuffler
	order    []string
	current  int
	results  map[string]domain.Outcome
	methods  map[string]domain.Method
	accuracy map[string]int
	attempts map[string]*domain.ItemAttempt
}

// NewSectionState builds a freshly shuffled state for section.
func NewSectionState(section itembank.Section, shuffle Shuffler) (*SectionState, error) {
	if len(section.Items) == 0 {
		return nil, fmt.Errorf("section %q: %w", section.Key, domain.ErrEmptyCategory)
	}
	s := &SectionState{section: section, shuffle: shuffle}
	s.Reshuffle()
	return s, nil
}

// Reshuffle draws a new order, clears every outcome and rewinds the cursor.
func (s *SectionState) Reshuffle() {
	s.order = Permute(s.section.IDs(), s.shuffle)
	s.current = 0
	s.results = make(map[string]domain.Outcome)
	s.methods = make(map[string]domain.Method)
	s.accuracy = make(map[string]int)
	s.attempts = make(map[string]*domain.ItemAttempt)
}

func (s *SectionState) Key() string   { return s.section.Key }
func (s *SectionState) Title() string { return s.section.Title }
func (s *SectionState) Len() int      { return len(s.order) }
func (s *SectionState) Current() int  { return s.current }

// Order returns a copy of the presentation order.
func (s *SectionState) Order() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// CurrentItem returns the item under the cursor.
func (s *SectionState) CurrentItem() itembank.Item {
	it, _ := s.section.Lookup(s.order[s.current])
	return it
}

// AtLast reports whether the cursor is on the final item.
func (s *SectionState) AtLast() bool {
	return s.current == len(s.order)-1
}

// Advance moves the cursor forward without wrapping.
func (s *SectionState) Advance() bool {
	if s.current >= len(s.order)-1 {
		return false
	}
	s.current++
	return true
}

// Retreat moves the cursor back without wrapping.
func (s *SectionState) Retreat() bool {
	if s.current == 0 {
		return false
	}
	s.current--
	return true
}

func (s *SectionState) item(id string) (itembank.Item, error) {
	it, ok := s.section.Lookup(id)
	if !ok {
		return itembank.Item{}, fmt.Errorf("%w: %q in %q", domain.ErrInvalidItem, id, s.section.Key)
	}
	return it, nil
}

// RecordOutcome sets the outcome of an item. OutcomeUnset clears it.
func (s *SectionState) RecordOutcome(id string, outcome domain.Outcome, method domain.Method) error {
	if _, err := s.item(id); err != nil {
		return err
	}
	if !outcome.Valid() {
		return fmt.Errorf("invalid outcome %q", outcome)
	}
	if outcome == domain.OutcomeUnset {
		delete(s.results, id)
		delete(s.methods, id)
		return nil
	}
	s.results[id] = outcome
	s.methods[id] = method
	return nil
}

// Override is the Mark Correct / Mark Incorrect escape hatch. It bypasses
// transcript comparison and submits the item.
func (s *SectionState) Override(id string, outcome domain.Outcome) error {
	if outcome != domain.OutcomeCorrect && outcome != domain.OutcomeIncorrect {
		return fmt.Errorf("override needs correct or incorrect, got %q", outcome)
	}
	if err := s.RecordOutcome(id, outcome, domain.MethodManual); err != nil {
		return err
	}
	att := s.attemptFor(id)
	att.Submitted = true
	if outcome == domain.OutcomeCorrect {
		att.Status = domain.StatusCorrect
	}
	return nil
}

// ToggleOutcome cycles unset -> correct -> incorrect -> unset.
func (s *SectionState) ToggleOutcome(id string) (domain.Outcome, error) {
	if _, err := s.item(id); err != nil {
		return domain.OutcomeUnset, err
	}
	var next domain.Outcome
	switch s.results[id] {
	case domain.OutcomeUnset:
		next = domain.OutcomeCorrect
	case domain.OutcomeCorrect:
		next = domain.OutcomeIncorrect
	default:
		next = domain.OutcomeUnset
	}
	return next, s.RecordOutcome(id, next, domain.MethodToggle)
}

// Outcome returns the recorded outcome for id.
func (s *SectionState) Outcome(id string) domain.Outcome {
	return s.results[id]
}

// Results returns a copy of the outcome map.
func (s *SectionState) Results() map[string]domain.Outcome {
	out := make(map[string]domain.Outcome, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}

func (s *SectionState) attemptFor(id string) *domain.ItemAttempt {
	att, ok := s.attempts[id]
	if !ok {
		att = &domain.ItemAttempt{Status: domain.StatusNotStarted}
		s.attempts[id] = att
	}
	return att
}

// Attempt returns the speech attempt record for id.
func (s *SectionState) Attempt(id string) domain.ItemAttempt {
	if att, ok := s.attempts[id]; ok {
		return *att
	}
	return domain.ItemAttempt{Status: domain.StatusNotStarted}
}

// ScoreTranscript grades one speech attempt on id.
func (s *SectionState) ScoreTranscript(id, transcript string, cfg ScoringConfig) (domain.ItemAttempt, error) {
	it, err := s.item(id)
	if err != nil {
		return domain.ItemAttempt{}, err
	}
	cfg = cfg.withDefaults()
	att := s.attemptFor(id)
	if att.Submitted {
		return *att, domain.ErrItemSubmitted
	}

	acc := StringAccuracy(it.Expected(), transcript)
	att.Attempts++
	att.LastTranscript = transcript
	att.LastAccuracy = acc
	s.accuracy[id] = acc

	if Grade(acc, cfg.PassThreshold) == domain.OutcomeCorrect {
		att.Status = domain.StatusCorrect
		att.Submitted = true
		s.results[id] = domain.OutcomeCorrect
		s.methods[id] = domain.MethodSpeech
		return *att, nil
	}
	s.settleMiss(att, it, cfg)
	return *att, nil
}

// FailAttempt consumes an attempt for a recognition error.
func (s *SectionState) FailAttempt(id string, cfg ScoringConfig) (domain.ItemAttempt, error) {
	it, err := s.item(id)
	if err != nil {
		return domain.ItemAttempt{}, err
	}
	cfg = cfg.withDefaults()
	att := s.attemptFor(id)
	if att.Submitted {
		return *att, domain.ErrItemSubmitted
	}
	att.Attempts++
	att.LastTranscript = ""
	s.settleMiss(att, it, cfg)
	return *att, nil
}

func (s *SectionState) settleMiss(att *domain.ItemAttempt, it itembank.Item, cfg ScoringConfig) {
	if att.Attempts < cfg.MaxAttempts {
		att.Status = domain.StatusAttempting
		return
	}
	att.Status = domain.StatusMaxAttemptsReached
	att.Submitted = true
	att.Expected = it.Text
	s.results[it.ID] = domain.OutcomeIncorrect
	s.methods[it.ID] = domain.MethodSpeech
}

// Summary counts correct outcomes over the whole section.
func (s *SectionState) Summary() domain.SectionSummary {
	correct := 0
	for _, o := range s.results {
		if o == domain.OutcomeCorrect {
			correct++
		}
	}
	total := len(s.section.Items)
	return domain.SectionSummary{
		Key:        s.section.Key,
		Label:      s.section.Title,
		Correct:    correct,
		Total:      total,
		Percentage: Percentage(correct, total),
	}
}

// Report builds the item-by-item detail table in presentation order.
func (s *SectionState) Report() domain.SectionReport {
	rows := make([]domain.ReportRow, 0, len(s.order))
	for _, id := range s.order {
		it, _ := s.section.Lookup(id)
		rows = append(rows, domain.ReportRow{
			ItemID:        id,
			Item:          it.Display(),
			Outcome:       s.results[id],
			Method:        s.methods[id],
			AccuracyLabel: s.accuracyLabel(id),
		})
	}
	return domain.SectionReport{
		Key:     s.section.Key,
		Title:   s.section.Title,
		Rows:    rows,
		Summary: s.Summary(),
	}
}

func (s *SectionState) accuracyLabel(id string) string {
	switch s.methods[id] {
	case domain.MethodManual, domain.MethodToggle:
		return "manual"
	}
	if acc, ok := s.accuracy[id]; ok {
		return fmt.Sprintf("%d%%", acc)
	}
	if att, ok := s.attempts[id]; ok && att.Attempts > 0 {
		return "no speech"
	}
	return "not attempted"
}
