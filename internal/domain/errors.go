package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the quiz is not present in the canonical snapshot or store.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question ID is not part of the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAnswerNotFound indicates an answer ID is not part of the question.
	ErrAnswerNotFound = errors.New("answer not found")
	// ErrInvalidID is returned for malformed identifiers.
	ErrInvalidID = errors.New("invalid id")
	// ErrProvisionalID is returned when a provisional id would be sent to the remote store.
	ErrProvisionalID = errors.New("provisional id cannot target the remote store")
	// ErrInvalidField indicates an unknown field or a value of the wrong type.
	ErrInvalidField = errors.New("invalid field")
	// ErrInvalidDifficulty indicates a difficulty outside 1..3.
	ErrInvalidDifficulty = errors.New("difficulty must be 1, 2 or 3")
	// ErrNotEditing is returned when an edit arrives while no draft is open.
	ErrNotEditing = errors.New("no quiz is being edited")
	// ErrAlreadyEditing is returned when an operation requires the idle state.
	ErrAlreadyEditing = errors.New("a quiz is already being edited")
	// ErrSaveInProgress is returned while a save is running.
	ErrSaveInProgress = errors.New("save in progress")
	// ErrQuizInUse is returned when deleting the quiz that is being edited.
	ErrQuizInUse = errors.New("quiz is being edited")
)

// Remote store failure classes, reached through errors.Is on a *RemoteError.
var (
	ErrTransport      = errors.New("transport error")
	ErrValidation     = errors.New("validation error")
	ErrStaleReference = errors.New("stale reference")
	ErrUnauthorized   = errors.New("unauthorized")
)

// RemoteError describes a failed remote store call.
type RemoteError struct {
	Op      string
	Status  int
	Message string
	Kind    error
	Err     error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %v (status %d): %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, msg)
}

func (e *RemoteError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}
