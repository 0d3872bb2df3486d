package app

import (
	"context"
)

// Recognizer performs one speech-to-text request. Implementations must return
// promptly once ctx is cancelled.
type Recognizer interface {
	Recognize(ctx context.Context) (string, error)
}

// StaticRecognizer returns a result that is already known, e.g. a transcript
// produced by the browser's speech engine.
type StaticRecognizer struct {
	Transcript string
	Err        error
}

func (r StaticRecognizer) Recognize(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.Transcript, r.Err
}

type recognitionResult struct {
	transcript string
	err        error
}

// ChannelRecognizer waits for a result delivered later by a transport.
type ChannelRecognizer struct {
	results chan recognitionResult
}

func NewChannelRecognizer() *ChannelRecognizer {
	return &ChannelRecognizer{results: make(chan recognitionResult, 1)}
}

// Deliver hands a result to the waiting request. It reports false when a
// result was already delivered.
func (r *ChannelRecognizer) Deliver(transcript string, err error) bool {
	select {
	case r.results <- recognitionResult{transcript: transcript, err: err}:
		return true
	default:
		return false
	}
}

func (r *ChannelRecognizer) Recognize(ctx context.Context) (string, error) {
	select {
	case res := <-r.results:
		return res.transcript, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
