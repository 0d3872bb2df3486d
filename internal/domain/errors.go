package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a test session has not been created.
	ErrSessionNotFound = errors.New("test session not found")
	// ErrBankNotFound indicates the item bank could not be loaded.
	ErrBankNotFound = errors.New("item bank not found")
	// ErrBankReadOnly is returned when saving over the built-in bank.
	ErrBankReadOnly = errors.New("item bank is read-only")
	// ErrDocumentNotFound is returned by document stores on a missing id.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidItem marks an outcome recorded against an item outside the section.
	ErrInvalidItem = errors.New("item not in section")
	// ErrEmptyCategory is raised when a section is configured with zero items.
	ErrEmptyCategory = errors.New("section has no items")
	// ErrDuplicateItem is raised when a section lists the same item id twice.
	ErrDuplicateItem = errors.New("duplicate item in section")

	// ErrRecognitionUnavailable means no speech engine is present; fall back to manual marking.
	ErrRecognitionUnavailable = errors.New("speech recognition unavailable")
	// ErrRecognitionFailure means a single recognition attempt errored.
	ErrRecognitionFailure = errors.New("speech recognition failed")
	// ErrRecognitionAborted is returned to a recognition request that was cancelled or superseded.
	ErrRecognitionAborted = errors.New("speech recognition aborted")

	// ErrInvalidTransition is returned when a command is not valid in the current flow state.
	ErrInvalidTransition = errors.New("invalid flow transition")
	// ErrNavigationLocked is returned for free navigation during the guided flow.
	ErrNavigationLocked = errors.New("navigation locked during test")
	// ErrItemSubmitted is returned for speech input on an item that is already submitted.
	ErrItemSubmitted = errors.New("item already submitted")
	// ErrUnknownCommand is returned by the dispatcher for unsupported commands.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnsupportedFormat is returned by exporters for an unknown file format.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrUnknownSection is returned when a section key does not exist in the bank.
	ErrUnknownSection = errors.New("unknown section")
)

// IsRecoverable reports whether err should surface as a transient notification
// rather than end the client's connection.
func IsRecoverable(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrInvalidItem), errors.Is(err, ErrEmptyCategory), errors.Is(err, ErrSessionNotFound):
		return false
	}
	return true
}
