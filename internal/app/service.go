package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"alpharia-assessment/internal/domain"
	"alpharia-assessment/internal/export"
	"alpharia-assessment/internal/itembank"
	"github.com/google/uuid"
)

// Document collections used by the service.
const (
	CollectionAttempts = "attempts"
	CollectionBanks    = "banks"
)

// SessionRepository abstracts where live test sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *TestSession)
	Get(id string) (*TestSession, bool)
	Delete(id string)
}

// BankRepository loads item banks (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context, id string) (itembank.Bank, error)
}

// BankInvalidator is implemented by caching bank repositories.
type BankInvalidator interface {
	InvalidateBank(ctx context.Context, id string) error
}

// DocumentRepository is a schemaless store of JSON documents grouped in collections.
type DocumentRepository interface {
	GetDocument(ctx context.Context, collection, id string) (domain.Document, error)
	SaveDocument(ctx context.Context, collection, id string, data json.RawMessage) error
	QueryDocuments(ctx context.Context, collection string, filters ...domain.Filter) ([]domain.Document, error)
	DeleteDocument(ctx context.Context, collection, id string) error
}

// EventPublisher emits attempt lifecycle events.
type EventPublisher interface {
	PublishAttemptEvent(ctx context.Context, event domain.AttemptEvent) error
}

// Options tunes an AssessmentService. Zero values fall back to defaults.
type Options struct {
	Scoring   ScoringConfig
	TimeLimit time.Duration
	Logger    *slog.Logger
	Events    EventPublisher
	Now       func() time.Time
	Shuffle   Shuffler
}

// AssessmentService contains the assessment use cases.
type AssessmentService struct {
	sessions SessionRepository
	banks    BankRepository
	docs     DocumentRepository
	events   EventPublisher
	log      *slog.Logger
	opts     Options

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewAssessmentService(sessions SessionRepository, banks BankRepository, docs DocumentRepository, opts Options) *AssessmentService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Scoring = opts.Scoring.withDefaults()
	return &AssessmentService{
		sessions: sessions,
		banks:    banks,
		docs:     docs,
		events:   opts.Events,
		log:      opts.Logger,
		opts:     opts,
		timers:   make(map[string]*time.Timer),
	}
}

// CreateSession opens a new session for a student against a bank.
func (s *AssessmentService) CreateSession(ctx context.Context, studentID, bankID string) (domain.Snapshot, error) {
	if bankID == "" {
		bankID = itembank.DefaultBankID
	}
	bank, err := s.banks.GetBank(ctx, bankID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	session, err := NewTestSession(bank, SessionOptions{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Scoring:   s.opts.Scoring,
		TimeLimit: s.opts.TimeLimit,
		Now:       s.opts.Now,
		Shuffle:   s.opts.Shuffle,
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	s.sessions.Put(session)
	s.log.Info("session created", "session", session.ID(), "student", studentID, "bank", bankID)
	return session.Snapshot(), nil
}

// Session returns a live session.
func (s *AssessmentService) Session(id string) (*TestSession, error) {
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Snapshot returns the current view of a session.
func (s *AssessmentService) Snapshot(id string) (domain.Snapshot, error) {
	session, err := s.Session(id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return session.Snapshot(), nil
}

// Dispatch applies a command to a session and handles attempt lifecycle side effects.
func (s *AssessmentService) Dispatch(ctx context.Context, sessionID string, cmd Command) (domain.Snapshot, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap, err := session.Dispatch(ctx, cmd)
	if err != nil {
		s.log.Debug("command rejected", "session", sessionID, "command", CommandName(cmd), "error", err)
	}
	s.observe(ctx, session)
	return snap, err
}

// Recognize runs a speech request against the session's current item.
func (s *AssessmentService) Recognize(ctx context.Context, sessionID string, rec Recognizer) (domain.Snapshot, error) {
	return s.Dispatch(ctx, sessionID, StartRecognition{Recognizer: rec})
}

// Subscribe returns a channel that receives snapshots for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *AssessmentService) Subscribe(_ context.Context, sessionID string) (<-chan domain.Snapshot, func(), error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Summary aggregates a session's current results.
func (s *AssessmentService) Summary(sessionID string) (domain.AttemptSummary, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return domain.AttemptSummary{}, err
	}
	return session.Summary(), nil
}

// ExportSection renders one section's results in the requested format.
func (s *AssessmentService) ExportSection(sessionID, section string, format export.Format) (export.File, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return export.File{}, err
	}
	if section == "" {
		section = session.Snapshot().SectionKey
	}
	report, err := session.SectionReport(section)
	if err != nil {
		return export.File{}, err
	}
	return export.SectionFile(report, format)
}

// ExportSummary renders the attempt summary in the requested format.
func (s *AssessmentService) ExportSummary(sessionID string, format export.Format) (export.File, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return export.File{}, err
	}
	base := "attempt-summary"
	if session.StudentID() != "" {
		base = session.StudentID() + "-summary"
	}
	return export.SummaryFile(base, session.Summary(), format)
}

// ListAttempts returns a student's persisted attempts, oldest first.
func (s *AssessmentService) ListAttempts(ctx context.Context, studentID string) ([]domain.AttemptRecord, error) {
	docs, err := s.docs.QueryDocuments(ctx, CollectionAttempts, domain.Filter{Field: "studentId", Value: studentID})
	if err != nil {
		return nil, err
	}
	records := make([]domain.AttemptRecord, 0, len(docs))
	for _, doc := range docs {
		var rec domain.AttemptRecord
		if err := json.Unmarshal(doc.Data, &rec); err != nil {
			return nil, fmt.Errorf("decode attempt %s: %w", doc.ID, err)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CompletedAt.Before(records[j].CompletedAt)
	})
	return records, nil
}

func (s *AssessmentService) GetAttempt(ctx context.Context, id string) (domain.AttemptRecord, error) {
	doc, err := s.docs.GetDocument(ctx, CollectionAttempts, id)
	if err != nil {
		return domain.AttemptRecord{}, err
	}
	var rec domain.AttemptRecord
	if err := json.Unmarshal(doc.Data, &rec); err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("decode attempt %s: %w", id, err)
	}
	return rec, nil
}

func (s *AssessmentService) DeleteAttempt(ctx context.Context, id string) error {
	return s.docs.DeleteDocument(ctx, CollectionAttempts, id)
}

// SaveBank validates and stores a custom bank.
func (s *AssessmentService) SaveBank(ctx context.Context, bank itembank.Bank) error {
	if bank.ID == itembank.DefaultBankID {
		return domain.ErrBankReadOnly
	}
	if err := bank.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(bank)
	if err != nil {
		return fmt.Errorf("encode bank: %w", err)
	}
	if err := s.docs.SaveDocument(ctx, CollectionBanks, bank.ID, data); err != nil {
		return err
	}
	if inv, ok := s.banks.(BankInvalidator); ok {
		if err := inv.InvalidateBank(ctx, bank.ID); err != nil {
			s.log.Warn("bank cache invalidation failed", "bank", bank.ID, "error", err)
		}
	}
	s.log.Info("bank saved", "bank", bank.ID, "items", bank.TotalItems())
	return nil
}

func (s *AssessmentService) GetBank(ctx context.Context, id string) (itembank.Bank, error) {
	return s.banks.GetBank(ctx, id)
}

// Close stops pending deadline timers.
func (s *AssessmentService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// observe runs the side effects of the session's pending lifecycle transitions.
func (s *AssessmentService) observe(ctx context.Context, session *TestSession) {
	session.Transitions(func(tr Transition) {
		switch tr.Kind {
		case domain.EventAttemptStarted:
			if tr.Retake {
				s.log.Info("attempt retake", "session", session.ID(), "attempt", tr.Record.ID)
			}
			s.armDeadline(session)
			s.publish(ctx, tr, nil)

		case TransitionSectionCompleted:
			s.log.Info("section completed", "session", session.ID(), "section", tr.Section.Key,
				"correct", tr.Section.Correct, "total", tr.Section.Total)

		case domain.EventAttemptCompleted:
			s.stopDeadline(session.ID())
			rec := tr.Record
			if err := s.persist(ctx, rec); err != nil {
				s.log.Error("persist attempt failed", "attempt", rec.ID, "error", err)
			}
			s.log.Info("attempt completed", "attempt", rec.ID, "student", rec.StudentID,
				"correct", rec.Summary.Correct, "total", rec.Summary.Total, "timedOut", rec.TimedOut)
			s.publish(ctx, tr, &rec.Summary)

		case domain.EventAttemptFinished:
			s.stopDeadline(session.ID())
			s.sessions.Delete(session.ID())
			s.publish(ctx, tr, nil)
			s.log.Info("session finished", "session", session.ID())
		}
	})
}

func (s *AssessmentService) persist(ctx context.Context, rec domain.AttemptRecord) error {
	if s.docs == nil {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.docs.SaveDocument(ctx, CollectionAttempts, rec.ID, data)
}

func (s *AssessmentService) publish(ctx context.Context, tr Transition, summary *domain.AttemptSummary) {
	if s.events == nil {
		return
	}
	event := domain.AttemptEvent{
		Type:       tr.Kind,
		SessionID:  tr.Record.SessionID,
		StudentID:  tr.Record.StudentID,
		AttemptID:  tr.Record.ID,
		OccurredAt: s.opts.Now(),
		Summary:    summary,
	}
	if err := s.events.PublishAttemptEvent(ctx, event); err != nil {
		s.log.Warn("publish event failed", "type", tr.Kind, "session", tr.Record.SessionID, "error", err)
	}
}

func (s *AssessmentService) armDeadline(session *TestSession) {
	deadline := session.Deadline()
	if deadline.IsZero() {
		return
	}
	id := session.ID()
	wait := deadline.Sub(s.opts.Now())
	if wait < 0 {
		wait = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	s.timers[id] = time.AfterFunc(wait, func() {
		if session.CheckDeadline() {
			s.log.Info("attempt timed out", "session", id)
		}
		s.observe(context.Background(), session)
	})
}

func (s *AssessmentService) stopDeadline(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// IsNotFound reports whether err means a requested entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound) ||
		errors.Is(err, domain.ErrBankNotFound) ||
		errors.Is(err, domain.ErrDocumentNotFound) ||
		errors.Is(err, domain.ErrUnknownSection)
}
