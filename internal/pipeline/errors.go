package pipeline

import (
	"errors"
	"fmt"
)

// ErrNoCandidateAvailable is returned when a listing page has no acceptable item.
// It ends the run.
var ErrNoCandidateAvailable = errors.New("no candidate available")

// ErrExplicitContent is returned by the safety filter for explicit annotations
var ErrExplicitContent = errors.New("explicit content rejected")

// SourceUnavailableError wraps a failed content source listing
type SourceUnavailableError struct {
	Source   string
	Category string
	Err      error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable for %q: %v", e.Source, e.Category, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// PublishExhaustedError is returned after MaxPublishAttempts failed publishes.
// Err is the error returned by the last attempt.
type PublishExhaustedError struct {
	Attempts int
	Err      error
}

func (e *PublishExhaustedError) Error() string {
	return fmt.Sprintf("publish failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *PublishExhaustedError) Unwrap() error {
	return e.Err
}
