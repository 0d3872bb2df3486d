package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"alpharia-assessment/internal/domain"
	"alpharia-assessment/internal/itembank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newSession(t *testing.T, opts SessionOptions) *TestSession {
	t.Helper()
	if opts.ID == "" {
		opts.ID = "s1"
	}
	if opts.Shuffle == nil {
		opts.Shuffle = identity
	}
	s, err := NewTestSession(itembank.Default(), opts)
	require.NoError(t, err)
	return s
}

func dispatch(t *testing.T, s *TestSession, cmd Command) domain.Snapshot {
	t.Helper()
	snap, err := s.Dispatch(context.Background(), cmd)
	require.NoError(t, err, "command %s", CommandName(cmd))
	return snap
}

func TestFreshSessionIsIdleAndUnlocked(t *testing.T) {
	s := newSession(t, SessionOptions{})
	snap := s.Snapshot()

	assert.Equal(t, domain.FlowIdle, snap.State)
	assert.False(t, snap.Locked)
	require.Len(t, snap.Menu, 17)
	for _, link := range snap.Menu {
		assert.True(t, link.Enabled)
	}
	require.NotNil(t, snap.Current)
	assert.Equal(t, "A", snap.Current.ID)
	assert.Equal(t, 1, snap.Current.Position)
	assert.Equal(t, 26, snap.Current.Total)
}

func TestGuidedUppercaseSectionEndToEnd(t *testing.T) {
	s := newSession(t, SessionOptions{})
	snap := dispatch(t, s, Start{})
	assert.Equal(t, domain.FlowInSection, snap.State)
	assert.Equal(t, "uppercase", snap.SectionKey)
	assert.True(t, snap.Locked)

	for i := 0; i < 26; i++ {
		snap = dispatch(t, s, RecordOutcome{Outcome: domain.OutcomeCorrect})
		for _, link := range snap.Menu {
			require.False(t, link.Enabled, "menu must stay locked")
		}
		snap = dispatch(t, s, Advance{})
	}

	require.Equal(t, domain.FlowShowingSectionReport, snap.State)
	require.NotNil(t, snap.SectionReport)
	assert.Len(t, snap.SectionReport.Rows, 26)
	assert.Equal(t, 26, snap.SectionReport.Summary.Correct)
	assert.Equal(t, 26, snap.SectionReport.Summary.Total)
	assert.Equal(t, 100, snap.SectionReport.Summary.Percentage)
	assert.Nil(t, snap.Current)

	_, err := s.Dispatch(context.Background(), Advance{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = s.Dispatch(context.Background(), RecordOutcome{Outcome: domain.OutcomeIncorrect})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	snap = dispatch(t, s, AcknowledgeSectionReport{})
	assert.Equal(t, domain.FlowInSection, snap.State)
	assert.Equal(t, "lowercase", snap.SectionKey)
	assert.Equal(t, 1, snap.SectionIndex)
	assert.True(t, snap.Locked)
	assert.Equal(t, "a", snap.Current.ID)

	_, err = s.Dispatch(context.Background(), Navigate{Section: "sentences"})
	assert.ErrorIs(t, err, domain.ErrNavigationLocked)
}

func TestFullTraversalCompletesAndAggregates(t *testing.T) {
	s := newSession(t, SessionOptions{})
	dispatch(t, s, Start{})

	var snap domain.Snapshot
	for section := 0; section < 17; section++ {
		for {
			snap = dispatch(t, s, Advance{})
			if snap.State == domain.FlowShowingSectionReport {
				break
			}
		}
		snap = dispatch(t, s, AcknowledgeSectionReport{})
	}

	require.Equal(t, domain.FlowComplete, snap.State)
	assert.False(t, snap.Locked)
	require.NotNil(t, snap.FinalReport)
	assert.Equal(t, 134, snap.FinalReport.Summary.Total)
	assert.Equal(t, 0, snap.FinalReport.Summary.Correct)
	assert.Len(t, snap.FinalReport.Sections, 17)
	assert.Equal(t, []string{domain.ActionRetake, domain.ActionFinish}, snap.FinalReport.Actions)

	sum := s.Summary()
	total := 0
	for _, sec := range sum.Sections {
		total += sec.Total
	}
	assert.Equal(t, sum.Total, total)

	// free browse is available again
	snap = dispatch(t, s, Navigate{Section: "words-grade3"})
	assert.Equal(t, "words-grade3", snap.SectionKey)
}

func TestRetakeClearsEverySection(t *testing.T) {
	s := newSession(t, SessionOptions{})
	dispatch(t, s, Start{})
	dispatch(t, s, RecordOutcome{Outcome: domain.OutcomeCorrect})
	first := s.Record().ID

	_, err := s.Dispatch(context.Background(), Retake{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	for s.Snapshot().State != domain.FlowComplete {
		if s.Snapshot().State == domain.FlowShowingSectionReport {
			dispatch(t, s, AcknowledgeSectionReport{})
			continue
		}
		dispatch(t, s, Advance{})
	}
	require.Equal(t, 1, s.Summary().Correct)

	snap := dispatch(t, s, Retake{})
	assert.Equal(t, domain.FlowInSection, snap.State)
	assert.Equal(t, 0, snap.SectionIndex)
	assert.Equal(t, 0, s.Summary().Correct)
	assert.NotEqual(t, first, s.Record().ID)
	for _, key := range []string{"uppercase", "passages-grade5"} {
		sec, ok := s.Section(key)
		require.True(t, ok)
		assert.Equal(t, 0, sec.Current())
		assert.Empty(t, sec.Results())
	}
}

func TestFinishClosesSession(t *testing.T) {
	s := newSession(t, SessionOptions{TimeLimit: time.Minute})
	dispatch(t, s, Start{})
	_, err := s.Dispatch(context.Background(), Finish{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	clock := &fakeClock{now: time.Now()}
	s = newSession(t, SessionOptions{TimeLimit: time.Minute, Now: clock.Now})
	dispatch(t, s, Start{})
	clock.Advance(2 * time.Minute)
	require.True(t, s.CheckDeadline())

	snap := dispatch(t, s, Finish{})
	assert.True(t, snap.Finished)
	_, err = s.Dispatch(context.Background(), Start{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestDeadlineAutoSubmits(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
	s := newSession(t, SessionOptions{TimeLimit: 30 * time.Minute, Now: clock.Now})

	snap := dispatch(t, s, Start{})
	require.NotNil(t, snap.Deadline)
	assert.Equal(t, clock.Now().Add(30*time.Minute), *snap.Deadline)
	dispatch(t, s, RecordOutcome{Outcome: domain.OutcomeCorrect})

	clock.Advance(29 * time.Minute)
	assert.False(t, s.CheckDeadline())

	clock.Advance(2 * time.Minute)
	snap = dispatch(t, s, Advance{})
	assert.Equal(t, domain.FlowComplete, snap.State)
	assert.True(t, snap.TimedOut)
	require.NotNil(t, snap.FinalReport)
	assert.True(t, snap.FinalReport.TimedOut)
	assert.Equal(t, 1, snap.FinalReport.Summary.Correct)
	assert.Nil(t, snap.Deadline)
	assert.True(t, s.Record().TimedOut)
}

func TestSpeechPathScoresCurrentItem(t *testing.T) {
	s := newSession(t, SessionOptions{})
	dispatch(t, s, Start{})

	snap, err := s.Dispatch(context.Background(), SubmitTranscript{Transcript: "b"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAttempting, snap.Current.Attempt.Status)
	assert.Equal(t, 1, snap.Current.Attempt.Attempts)

	snap, err = s.Dispatch(context.Background(), SubmitTranscript{Transcript: "A"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCorrect, snap.Current.Attempt.Status)
	assert.Equal(t, domain.OutcomeCorrect, snap.Current.Outcome)

	_, err = s.Dispatch(context.Background(), SubmitTranscript{Transcript: "A"})
	assert.ErrorIs(t, err, domain.ErrItemSubmitted)
}

func TestRecognitionFailureConsumesAttempt(t *testing.T) {
	s := newSession(t, SessionOptions{})
	dispatch(t, s, Start{})

	snap, err := s.Recognize(context.Background(), StaticRecognizer{Err: errors.New("network")})
	assert.ErrorIs(t, err, domain.ErrRecognitionFailure)
	assert.True(t, domain.IsRecoverable(err))
	assert.Equal(t, 1, snap.Current.Attempt.Attempts)
	assert.False(t, snap.Recording)

	snap, err = s.Recognize(context.Background(), StaticRecognizer{Err: domain.ErrRecognitionUnavailable})
	assert.ErrorIs(t, err, domain.ErrRecognitionUnavailable)
	assert.Equal(t, 1, snap.Current.Attempt.Attempts)

	_, err = s.Recognize(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrRecognitionUnavailable)

	// manual marking still works without speech
	snap = dispatch(t, s, RecordOutcome{Outcome: domain.OutcomeCorrect})
	assert.Equal(t, domain.OutcomeCorrect, snap.Current.Outcome)
}

func TestNavigationAbortsInFlightRecognition(t *testing.T) {
	s := newSession(t, SessionOptions{})
	dispatch(t, s, Start{})

	rec := NewChannelRecognizer()
	done := make(chan error, 1)
	go func() {
		_, err := s.Recognize(context.Background(), rec)
		done <- err
	}()

	require.Eventually(t, func() bool { return s.Snapshot().Recording }, time.Second, 5*time.Millisecond)

	snap := dispatch(t, s, Advance{})
	assert.False(t, snap.Recording)
	assert.Equal(t, "B", snap.Current.ID)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, domain.ErrRecognitionAborted)
	case <-time.After(time.Second):
		t.Fatal("recognition did not abort")
	}

	sec, _ := s.Section("uppercase")
	assert.Equal(t, domain.StatusNotStarted, sec.Attempt("A").Status)
}

func TestChannelRecognizerDelivers(t *testing.T) {
	s := newSession(t, SessionOptions{})
	dispatch(t, s, Start{})

	rec := NewChannelRecognizer()
	require.True(t, rec.Deliver("a", nil))
	assert.False(t, rec.Deliver("z", nil))

	snap, err := s.Recognize(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCorrect, snap.Current.Attempt.Status)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	s := newSession(t, SessionOptions{})
	ch, cancel := s.Subscribe()
	defer cancel()

	initial := <-ch
	assert.Equal(t, domain.FlowIdle, initial.State)

	dispatch(t, s, Start{})
	update := <-ch
	assert.Equal(t, domain.FlowInSection, update.State)
}

func TestReshuffleLockedToActiveSection(t *testing.T) {
	s := newSession(t, SessionOptions{})
	dispatch(t, s, Start{})
	dispatch(t, s, Advance{})

	_, err := s.Dispatch(context.Background(), Reshuffle{Section: "lowercase"})
	assert.ErrorIs(t, err, domain.ErrNavigationLocked)

	snap := dispatch(t, s, Reshuffle{})
	assert.Equal(t, 1, snap.Current.Position)
}

func TestDefaultSessionRejectsWrongTranscript(t *testing.T) {
	s := newSession(t, SessionOptions{})
	dispatch(t, s, Start{})

	snap := dispatch(t, s, SubmitTranscript{Transcript: "zebra"})
	assert.Equal(t, domain.StatusAttempting, snap.Current.Attempt.Status)
	assert.Equal(t, domain.OutcomeUnset, snap.Current.Outcome)
	assert.False(t, snap.Current.Attempt.Submitted)

	snap = dispatch(t, s, SubmitTranscript{Transcript: ""})
	assert.Equal(t, domain.StatusAttempting, snap.Current.Attempt.Status)
	assert.Equal(t, 0, snap.Current.Attempt.LastAccuracy)
}

func TestPassThresholdControlsGrading(t *testing.T) {
	bank := itembank.Bank{
		ID: "sentences-only",
		Sections: []itembank.Section{{
			Key: "sentences", Title: "Sentences", Kind: itembank.KindSentence,
			Items: []itembank.Item{{ID: "s1", Kind: itembank.KindSentence, Text: "I can run"}},
		}},
	}
	cases := []struct {
		name    string
		scoring ScoringConfig
		want    domain.AttemptStatus
		outcome domain.Outcome
	}{
		{"default threshold", ScoringConfig{}, domain.StatusAttempting, domain.OutcomeUnset},
		{"threshold 50", ScoringConfig{PassThreshold: 50, MaxAttempts: 3}, domain.StatusCorrect, domain.OutcomeCorrect},
		{"threshold 67", ScoringConfig{PassThreshold: 67, MaxAttempts: 3}, domain.StatusCorrect, domain.OutcomeCorrect},
		{"threshold 100", ScoringConfig{PassThreshold: 100, MaxAttempts: 3}, domain.StatusAttempting, domain.OutcomeUnset},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewTestSession(bank, SessionOptions{ID: "s", Scoring: tc.scoring, Shuffle: identity})
			require.NoError(t, err)
			dispatch(t, s, Start{})

			snap := dispatch(t, s, SubmitTranscript{Transcript: "I can fun"})
			assert.Equal(t, 67, snap.Current.Attempt.LastAccuracy)
			assert.Equal(t, tc.want, snap.Current.Attempt.Status)
			assert.Equal(t, tc.outcome, snap.Current.Outcome)
		})
	}
}

func TestRetakeDrawsNewOrders(t *testing.T) {
	reverse := false
	shuffle := func(n int, swap func(i, j int)) {
		if !reverse {
			return
		}
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}
	s := newSession(t, SessionOptions{Shuffle: shuffle})
	dispatch(t, s, Start{})
	for s.Snapshot().State != domain.FlowComplete {
		if s.Snapshot().State == domain.FlowShowingSectionReport {
			dispatch(t, s, AcknowledgeSectionReport{})
			continue
		}
		dispatch(t, s, Advance{})
	}

	bank := itembank.Default()
	reverse = true
	dispatch(t, s, Retake{})

	for _, def := range bank.Sections {
		sec, ok := s.Section(def.Key)
		require.True(t, ok)
		want := def.IDs()
		for i, j := 0, len(want)-1; i < j; i, j = i+1, j-1 {
			want[i], want[j] = want[j], want[i]
		}
		assert.Equal(t, want, sec.Order(), "section %s keeps its old order", def.Key)
	}
}

func TestTransitionsDeliveredOnce(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)}
	s := newSession(t, SessionOptions{TimeLimit: time.Minute, Now: clock.Now})
	kinds := func() []string {
		var out []string
		s.Transitions(func(tr Transition) { out = append(out, tr.Kind) })
		return out
	}

	dispatch(t, s, Start{})
	assert.Equal(t, []string{domain.EventAttemptStarted}, kinds())
	assert.Empty(t, kinds())

	clock.Advance(2 * time.Minute)
	require.True(t, s.CheckDeadline())
	assert.False(t, s.CheckDeadline())
	_, err := s.Dispatch(context.Background(), Advance{})
	require.NoError(t, err)
	assert.Equal(t, []string{domain.EventAttemptCompleted}, kinds())

	dispatch(t, s, Retake{})
	var retake Transition
	s.Transitions(func(tr Transition) { retake = tr })
	assert.Equal(t, domain.EventAttemptStarted, retake.Kind)
	assert.True(t, retake.Retake)
	assert.Equal(t, "s1-2", retake.Record.ID)
}

func TestSubscribeDoesNotBlockUnderBroadcasts(t *testing.T) {
	s := newSession(t, SessionOptions{})
	dispatch(t, s, Start{})

	stop := make(chan struct{})
	churned := make(chan struct{})
	go func() {
		defer close(churned)
		for {
			select {
			case <-stop:
				return
			default:
			}
			_, _ = s.Dispatch(context.Background(), Advance{})
			_, _ = s.Dispatch(context.Background(), Retreat{})
		}
	}()

	for i := 0; i < 50; i++ {
		subscribed := make(chan struct{})
		go func() {
			_, cancel := s.Subscribe()
			cancel()
			close(subscribed)
		}()
		select {
		case <-subscribed:
		case <-time.After(time.Second):
			t.Fatal("Subscribe blocked")
		}
	}
	close(stop)
	<-churned
}
