package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Outcome is the graded result for one item. The zero value means not yet attempted.
type Outcome string

const (
	OutcomeUnset     Outcome = ""
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
)

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeUnset || o == OutcomeCorrect || o == OutcomeIncorrect
}

// Method records how an outcome was determined.
type Method string

const (
	MethodNone   Method = ""
	MethodManual Method = "manual"
	MethodToggle Method = "toggle"
	MethodSpeech Method = "speech"
)

// AttemptStatus is the speech-path state of a single item.
type AttemptStatus string

const (
	StatusNotStarted         AttemptStatus = "not_started"
	StatusAttempting         AttemptStatus = "attempting"
	StatusCorrect            AttemptStatus = "correct"
	StatusMaxAttemptsReached AttemptStatus = "max_attempts_reached"
)

// FlowState is the position of the guided test flow.
type FlowState string

const (
	FlowIdle                 FlowState = "idle"
	FlowInSection            FlowState = "in_section"
	FlowShowingSectionReport FlowState = "showing_section_report"
	FlowComplete             FlowState = "complete"
)

// ItemAttempt tracks speech attempts on one item.
type ItemAttempt struct {
	Status         AttemptStatus `json:"status"`
	Attempts       int           `json:"attempts"`
	LastTranscript string        `json:"lastTranscript,omitempty"`
	LastAccuracy   int           `json:"lastAccuracy"`
	Submitted      bool          `json:"submitted"`
	// Expected is only populated once the answer is revealed.
	Expected string `json:"expected,omitempty"`
}

// ItemView is the item currently presented to the student.
type ItemView struct {
	ID       string      `json:"id"`
	Kind     string      `json:"kind"`
	Display  string      `json:"display"`
	Position int         `json:"position"`
	Total    int         `json:"total"`
	Outcome  Outcome     `json:"outcome"`
	Attempt  ItemAttempt `json:"attempt"`
}

// ReportRow is one line of the item-by-item section detail table.
type ReportRow struct {
	ItemID        string  `json:"itemId"`
	Item          string  `json:"item"`
	Outcome       Outcome `json:"outcome"`
	Method        Method  `json:"method,omitempty"`
	AccuracyLabel string  `json:"accuracy"`
}

// SectionSummary holds the correct/total/percentage figures for one section.
type SectionSummary struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Correct    int    `json:"correct"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// AttemptSummary is a read-only projection over every section of a session.
type AttemptSummary struct {
	Sections   []SectionSummary `json:"sections"`
	Correct    int              `json:"correct"`
	Total      int              `json:"total"`
	Percentage int              `json:"percentage"`
}

// SectionReport is shown at the end of every guided section.
type SectionReport struct {
	Key     string         `json:"key"`
	Title   string         `json:"title"`
	Rows    []ReportRow    `json:"rows"`
	Summary SectionSummary `json:"summary"`
}

// Report actions offered on the final report.
const (
	ActionRetake = "retake"
	ActionFinish = "finish"
)

// FinalReport is shown once the flow reaches Complete.
type FinalReport struct {
	Summary  AttemptSummary  `json:"summary"`
	Sections []SectionReport `json:"sections"`
	TimedOut bool            `json:"timedOut"`
	Actions  []string        `json:"actions"`
}

// SectionLink is one entry of the free-navigation menu.
type SectionLink struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Enabled bool   `json:"enabled"`
}

// Snapshot is the full view state of a test session after a command.
type Snapshot struct {
	SessionID     string         `json:"sessionId"`
	StudentID     string         `json:"studentId"`
	BankID        string         `json:"bankId"`
	State         FlowState      `json:"state"`
	SectionIndex  int            `json:"sectionIndex"`
	SectionKey    string         `json:"sectionKey"`
	SectionTitle  string         `json:"sectionTitle"`
	Locked        bool           `json:"locked"`
	Menu          []SectionLink  `json:"menu"`
	Current       *ItemView      `json:"current,omitempty"`
	Recording     bool           `json:"recording"`
	SectionReport *SectionReport `json:"sectionReport,omitempty"`
	FinalReport   *FinalReport   `json:"finalReport,omitempty"`
	StartedAt     *time.Time     `json:"startedAt,omitempty"`
	Deadline      *time.Time     `json:"deadline,omitempty"`
	TimedOut      bool           `json:"timedOut"`
	Finished      bool           `json:"finished"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// AttemptRecord is the durable record of one finished traversal.
type AttemptRecord struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"sessionId"`
	StudentID   string         `json:"studentId"`
	BankID      string         `json:"bankId"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt time.Time      `json:"completedAt"`
	TimedOut    bool           `json:"timedOut"`
	Summary     AttemptSummary `json:"summary"`
}

// Document is a schemaless record held by a document store.
type Document struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Filter is an equality match on a top-level document field.
type Filter struct {
	Field string
	Value any
}

// Matches reports whether a decoded document satisfies the filter.
func (f Filter) Matches(data map[string]any) bool {
	v, ok := data[f.Field]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == fmt.Sprint(f.Value)
}

// MatchAll applies every filter to raw JSON data.
func MatchAll(raw json.RawMessage, filters []Filter) bool {
	if len(filters) == 0 {
		return true
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return false
	}
	for _, f := range filters {
		if !f.Matches(data) {
			return false
		}
	}
	return true
}

// Attempt lifecycle event types.
const (
	EventAttemptStarted   = "attempt.started"
	EventAttemptCompleted = "attempt.completed"
	EventAttemptFinished  = "attempt.finished"
)

// AttemptEvent is published when an attempt changes lifecycle stage.
type AttemptEvent struct {
	Type       string          `json:"type"`
	SessionID  string          `json:"sessionId"`
	StudentID  string          `json:"studentId"`
	AttemptID  string          `json:"attemptId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Summary    *AttemptSummary `json:"summary,omitempty"`
}
