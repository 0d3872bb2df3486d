package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"alpharia-assessment/internal/domain"
	"alpharia-assessment/internal/itembank"
)

// DefaultTimeLimit bounds one attempt before it auto-submits.
const DefaultTimeLimit = 30 * time.Minute

// SessionOptions configures a TestSession.
type SessionOptions struct {
	ID        string
	StudentID string
	Scoring   ScoringConfig
	// TimeLimit of zero disables the deadline.
	TimeLimit time.Duration
	Now       func() time.Time
	Shuffle   Shuffler
}

// TransitionSectionCompleted marks the move from a section's last item to its report.
const TransitionSectionCompleted = "section.completed"

// Transition is a lifecycle change recorded under the session lock. Kind is
// TransitionSectionCompleted or one of the domain.EventAttempt types.
type Transition struct {
	Kind    string
	Retake  bool
	Section domain.SectionSummary
	Record  domain.AttemptRecord
}

// TestSession is the state of one learner working through a bank.
type TestSession struct {
	id        string
	studentID string
	bank      itembank.Bank
	scoring   ScoringConfig
	timeLimit time.Duration
	now       func() time.Time

	mu        sync.RWMutex
	sections  []*SectionState
	flow      *Flow
	active    int
	attemptNo int
	startedAt time.Time
	deadline  time.Time
	timedOut  bool
	finished  bool

	recGen    uint64
	recCancel context.CancelFunc
	recording bool

	subscribers map[chan domain.Snapshot]struct{}

	pending  []Transition
	notifyMu sync.Mutex
}

// NewTestSession validates bank and shuffles every section.
func NewTestSession(bank itembank.Bank, opts SessionOptions) (*TestSession, error) {
	if err := bank.Validate(); err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &TestSession{
		id:          opts.ID,
		studentID:   opts.StudentID,
		bank:        bank,
		scoring:     opts.Scoring.withDefaults(),
		timeLimit:   opts.TimeLimit,
		now:         now,
		flow:        NewFlow(len(bank.Sections)),
		subscribers: make(map[chan domain.Snapshot]struct{}),
	}
	s.sections = make([]*SectionState, len(bank.Sections))
	for i, sec := range bank.Sections {
		state, err := NewSectionState(sec, opts.Shuffle)
		if err != nil {
			return nil, err
		}
		s.sections[i] = state
	}
	return s, nil
}

func (s *TestSession) ID() string        { return s.id }
func (s *TestSession) StudentID() string { return s.studentID }
func (s *TestSession) BankID() string    { return s.bank.ID }

// Section returns the live state of the section with key.
func (s *TestSession) Section(key string) (*SectionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.sectionIndexLocked(key)
	if i < 0 {
		return nil, false
	}
	return s.sections[i], true
}

// Snapshot returns the current view state.
func (s *TestSession) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Summary aggregates every section without mutating anything.
func (s *TestSession) Summary() domain.AttemptSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summarize(s.sections)
}

// SectionReport returns the detail table for one section.
func (s *TestSession) SectionReport(key string) (domain.SectionReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.sectionIndexLocked(key)
	if i < 0 {
		return domain.SectionReport{}, fmt.Errorf("%w: %q", domain.ErrUnknownSection, key)
	}
	return s.sections[i].Report(), nil
}

// Record is the durable projection of the current attempt.
func (s *TestSession) Record() domain.AttemptRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recordLocked()
}

func (s *TestSession) recordLocked() domain.AttemptRecord {
	return domain.AttemptRecord{
		ID:          fmt.Sprintf("%s-%d", s.id, s.attemptNo),
		SessionID:   s.id,
		StudentID:   s.studentID,
		BankID:      s.bank.ID,
		StartedAt:   s.startedAt,
		CompletedAt: s.now(),
		TimedOut:    s.timedOut,
		Summary:     Summarize(s.sections),
	}
}

// Transitions hands pending lifecycle changes to fn in the order they happened.
// Each change is delivered once; calls for the same session do not interleave.
func (s *TestSession) Transitions(fn func(Transition)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, tr := range pending {
		fn(tr)
	}
}

func (s *TestSession) noteLocked(tr Transition) {
	s.pending = append(s.pending, tr)
}

// Deadline returns the auto-submit time of the running attempt, or zero.
func (s *TestSession) Deadline() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deadline
}

// CheckDeadline auto-submits the attempt once its deadline has passed.
func (s *TestSession) CheckDeadline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.expireIfDueLocked() {
		return false
	}
	s.broadcastLocked()
	return true
}

// Dispatch applies one command and returns the resulting snapshot. Recoverable
// errors are returned alongside a valid snapshot.
func (s *TestSession) Dispatch(ctx context.Context, cmd Command) (domain.Snapshot, error) {
	switch c := cmd.(type) {
	case StartRecognition:
		return s.Recognize(ctx, c.Recognizer)
	case SubmitTranscript:
		return s.Recognize(ctx, StaticRecognizer{Transcript: c.Transcript})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return s.snapshotLocked(), fmt.Errorf("%w: session finished", domain.ErrInvalidTransition)
	}
	if s.expireIfDueLocked() {
		return s.broadcastLocked(), nil
	}
	if err := s.applyLocked(cmd); err != nil {
		return s.snapshotLocked(), err
	}
	return s.broadcastLocked(), nil
}

func (s *TestSession) applyLocked(cmd Command) error {
	switch c := cmd.(type) {
	case Start:
		if err := s.flow.Start(); err != nil {
			return err
		}
		s.beginAttemptLocked()
		return nil

	case Reshuffle:
		idx := s.active
		if c.Section != "" {
			if idx = s.sectionIndexLocked(c.Section); idx < 0 {
				return fmt.Errorf("%w: %q", domain.ErrUnknownSection, c.Section)
			}
		}
		if s.flow.Locked() && idx != s.active {
			return domain.ErrNavigationLocked
		}
		if s.flow.State() == domain.FlowShowingSectionReport {
			return fmt.Errorf("%w: reshuffle during section report", domain.ErrInvalidTransition)
		}
		s.abortRecognitionLocked()
		s.sections[idx].Reshuffle()
		return nil

	case Advance:
		if s.flow.State() == domain.FlowShowingSectionReport {
			return fmt.Errorf("%w: advance during section report", domain.ErrInvalidTransition)
		}
		s.abortRecognitionLocked()
		sec := s.sections[s.active]
		if !sec.Advance() && s.flow.State() == domain.FlowInSection {
			if err := s.flow.FinishSection(); err != nil {
				return err
			}
			s.noteLocked(Transition{Kind: TransitionSectionCompleted, Section: sec.Summary()})
		}
		return nil

	case Retreat:
		if s.flow.State() == domain.FlowShowingSectionReport {
			return fmt.Errorf("%w: retreat during section report", domain.ErrInvalidTransition)
		}
		s.abortRecognitionLocked()
		s.sections[s.active].Retreat()
		return nil

	case RecordOutcome:
		sec, id, err := s.targetLocked(c.ItemID)
		if err != nil {
			return err
		}
		return sec.Override(id, c.Outcome)

	case ToggleOutcome:
		sec, id, err := s.targetLocked(c.ItemID)
		if err != nil {
			return err
		}
		_, err = sec.ToggleOutcome(id)
		return err

	case AbortRecognition:
		s.abortRecognitionLocked()
		return nil

	case AcknowledgeSectionReport:
		if err := s.flow.Acknowledge(); err != nil {
			return err
		}
		if s.flow.State() == domain.FlowInSection {
			s.active = s.flow.Index()
			return nil
		}
		s.noteLocked(Transition{Kind: domain.EventAttemptCompleted, Record: s.recordLocked()})
		return nil

	case Navigate:
		if s.flow.Locked() {
			return domain.ErrNavigationLocked
		}
		idx := s.sectionIndexLocked(c.Section)
		if idx < 0 {
			return fmt.Errorf("%w: %q", domain.ErrUnknownSection, c.Section)
		}
		s.abortRecognitionLocked()
		s.active = idx
		return nil

	case Retake:
		if s.flow.State() != domain.FlowComplete {
			return fmt.Errorf("%w: retake before completion", domain.ErrInvalidTransition)
		}
		s.abortRecognitionLocked()
		for _, sec := range s.sections {
			sec.Reshuffle()
		}
		s.flow.Reset()
		if err := s.flow.Start(); err != nil {
			return err
		}
		s.beginAttemptLocked()
		return nil

	case Finish:
		if s.flow.State() != domain.FlowComplete {
			return fmt.Errorf("%w: finish before completion", domain.ErrInvalidTransition)
		}
		s.abortRecognitionLocked()
		s.finished = true
		s.noteLocked(Transition{Kind: domain.EventAttemptFinished, Record: s.recordLocked()})
		return nil
	}
	return fmt.Errorf("%w: %T", domain.ErrUnknownCommand, cmd)
}

func (s *TestSession) beginAttemptLocked() {
	s.attemptNo++
	s.active = s.flow.Index()
	s.timedOut = false
	s.startedAt = s.now()
	s.deadline = time.Time{}
	if s.timeLimit > 0 {
		s.deadline = s.startedAt.Add(s.timeLimit)
	}
	s.noteLocked(Transition{Kind: domain.EventAttemptStarted, Retake: s.attemptNo > 1, Record: s.recordLocked()})
}

// targetLocked resolves an item id in the active section, defaulting to the current item.
func (s *TestSession) targetLocked(itemID string) (*SectionState, string, error) {
	if s.flow.State() == domain.FlowShowingSectionReport {
		return nil, "", fmt.Errorf("%w: grading during section report", domain.ErrInvalidTransition)
	}
	sec := s.sections[s.active]
	if itemID == "" {
		itemID = sec.CurrentItem().ID
	}
	return sec, itemID, nil
}

// Recognize runs one speech request against the current item. Only one request
// is outstanding per session; starting another, or navigating, aborts it.
func (s *TestSession) Recognize(ctx context.Context, rec Recognizer) (domain.Snapshot, error) {
	if rec == nil {
		return s.Snapshot(), domain.ErrRecognitionUnavailable
	}

	s.mu.Lock()
	if s.finished {
		defer s.mu.Unlock()
		return s.snapshotLocked(), fmt.Errorf("%w: session finished", domain.ErrInvalidTransition)
	}
	if s.expireIfDueLocked() {
		defer s.mu.Unlock()
		return s.broadcastLocked(), nil
	}
	sec, itemID, err := s.targetLocked("")
	if err != nil {
		defer s.mu.Unlock()
		return s.snapshotLocked(), err
	}
	if sec.Attempt(itemID).Submitted {
		defer s.mu.Unlock()
		return s.snapshotLocked(), domain.ErrItemSubmitted
	}
	s.abortRecognitionLocked()
	s.recGen++
	gen := s.recGen
	rctx, cancel := context.WithCancel(ctx)
	s.recCancel = cancel
	s.recording = true
	s.broadcastLocked()
	s.mu.Unlock()

	transcript, recErr := rec.Recognize(rctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	cancel()
	if gen != s.recGen {
		return s.snapshotLocked(), domain.ErrRecognitionAborted
	}
	s.recCancel = nil
	s.recording = false

	if s.expireIfDueLocked() {
		return s.broadcastLocked(), nil
	}

	switch {
	case recErr == nil:
		_, err = sec.ScoreTranscript(itemID, transcript, s.scoring)
	case errors.Is(recErr, context.Canceled), errors.Is(recErr, context.DeadlineExceeded):
		err = domain.ErrRecognitionAborted
	case errors.Is(recErr, domain.ErrRecognitionUnavailable):
		err = recErr
	default:
		if _, ferr := sec.FailAttempt(itemID, s.scoring); ferr != nil {
			err = ferr
		} else {
			err = fmt.Errorf("%w: %v", domain.ErrRecognitionFailure, recErr)
		}
	}
	return s.broadcastLocked(), err
}

func (s *TestSession) abortRecognitionLocked() {
	if s.recCancel != nil {
		s.recCancel()
		s.recCancel = nil
	}
	if s.recording {
		s.recGen++
	}
	s.recording = false
}

func (s *TestSession) expireIfDueLocked() bool {
	if s.deadline.IsZero() || !s.flow.Locked() || s.now().Before(s.deadline) {
		return false
	}
	s.abortRecognitionLocked()
	s.flow.Expire()
	s.timedOut = true
	s.noteLocked(Transition{Kind: domain.EventAttemptCompleted, Record: s.recordLocked()})
	return true
}

func (s *TestSession) sectionIndexLocked(key string) int {
	for i, sec := range s.sections {
		if sec.Key() == key {
			return i
		}
	}
	return -1
}

// Subscribe returns a channel receiving a snapshot after every change.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *TestSession) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// fresh buffer, cannot block
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *TestSession) broadcastLocked() domain.Snapshot {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// slow reader: drop its oldest snapshot
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *TestSession) snapshotLocked() domain.Snapshot {
	state := s.flow.State()
	locked := s.flow.Locked()
	sec := s.sections[s.active]

	snap := domain.Snapshot{
		SessionID:    s.id,
		StudentID:    s.studentID,
		BankID:       s.bank.ID,
		State:        state,
		SectionIndex: s.active,
		SectionKey:   sec.Key(),
		SectionTitle: sec.Title(),
		Locked:       locked,
		Recording:    s.recording,
		TimedOut:     s.timedOut,
		Finished:     s.finished,
		UpdatedAt:    s.now(),
	}

	snap.Menu = make([]domain.SectionLink, len(s.sections))
	for i, st := range s.sections {
		snap.Menu[i] = domain.SectionLink{Key: st.Key(), Title: st.Title(), Enabled: !locked}
	}

	if !s.startedAt.IsZero() {
		started := s.startedAt
		snap.StartedAt = &started
	}
	if !s.deadline.IsZero() && locked {
		deadline := s.deadline
		snap.Deadline = &deadline
	}

	switch state {
	case domain.FlowShowingSectionReport:
		report := sec.Report()
		snap.SectionReport = &report
	case domain.FlowComplete:
		final := s.finalReportLocked()
		snap.FinalReport = &final
		snap.Current = currentView(sec)
	default:
		snap.Current = currentView(sec)
	}
	return snap
}

func (s *TestSession) finalReportLocked() domain.FinalReport {
	reports := make([]domain.SectionReport, len(s.sections))
	for i, sec := range s.sections {
		reports[i] = sec.Report()
	}
	return domain.FinalReport{
		Summary:  Summarize(s.sections),
		Sections: reports,
		TimedOut: s.timedOut,
		Actions:  []string{domain.ActionRetake, domain.ActionFinish},
	}
}

func currentView(sec *SectionState) *domain.ItemView {
	it := sec.CurrentItem()
	return &domain.ItemView{
		ID:       it.ID,
		Kind:     string(it.Kind),
		Display:  it.Text,
		Position: sec.Current() + 1,
		Total:    sec.Len(),
		Outcome:  sec.Outcome(it.ID),
		Attempt:  sec.Attempt(it.ID),
	}
}
