package app

import "alpharia-assessment/internal/domain"

// Command is a UI intent routed through TestSession.Dispatch.
type Command interface {
	command() string
}

type (
	// Start begins the guided flow at the first section.
	Start struct{}
	// Reshuffle redraws a section's order. Empty Section means the active one.
	Reshuffle struct{ Section string }
	// Advance moves to the next item; on the last item of a guided section it opens the report.
	Advance struct{}
	// Retreat moves to the previous item.
	Retreat struct{}
	// RecordOutcome is the Mark Correct / Mark Incorrect override. Empty ItemID means the current item.
	RecordOutcome struct {
		ItemID  string
		Outcome domain.Outcome
	}
	// ToggleOutcome runs the click-to-grade cycle on an item.
	ToggleOutcome struct{ ItemID string }
	// StartRecognition runs a speech request for the current item.
	StartRecognition struct{ Recognizer Recognizer }
	// SubmitTranscript scores an already recognized transcript for the current item.
	SubmitTranscript struct{ Transcript string }
	// AbortRecognition cancels the in-flight speech request.
	AbortRecognition struct{}
	// AcknowledgeSectionReport proceeds past a section report.
	AcknowledgeSectionReport struct{}
	// Navigate jumps to a section in free-browse mode.
	Navigate struct{ Section string }
	// Retake resets every section and restarts the flow.
	Retake struct{}
	// Finish closes a completed attempt.
	Finish struct{}
)

func (Start) command() string                    { return "start" }
func (Reshuffle) command() string                { return "reshuffle" }
func (Advance) command() string                  { return "advance" }
func (Retreat) command() string                  { return "retreat" }
func (RecordOutcome) command() string            { return "recordOutcome" }
func (ToggleOutcome) command() string            { return "toggleOutcome" }
func (StartRecognition) command() string         { return "startRecognition" }
func (SubmitTranscript) command() string         { return "submitTranscript" }
func (AbortRecognition) command() string         { return "abortRecognition" }
func (AcknowledgeSectionReport) command() string { return "acknowledge" }
func (Navigate) command() string                 { return "navigate" }
func (Retake) command() string                   { return "retake" }
func (Finish) command() string                   { return "finish" }

// CommandName returns the wire name of cmd.
func CommandName(cmd Command) string {
	if cmd == nil {
		return ""
	}
	return cmd.command()
}
