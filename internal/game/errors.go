package game

import "errors"

// Error kinds. Every error returned by the engine unwraps to exactly one of these.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrCapacity          = errors.New("capacity exceeded")
	ErrValidation        = errors.New("validation failed")
)

var (
	ErrInvalidCode        = kindError(ErrValidation, "join code must be exactly 4 digits")
	ErrInvalidName        = kindError(ErrValidation, "username must be 1-20 characters")
	ErrTooManyCaptions    = kindError(ErrValidation, "too many captions for template")
	ErrCaptionTooLong     = kindError(ErrValidation, "caption is too long")
	ErrEmptyCatalog       = kindError(ErrValidation, "meme catalog is empty")
	ErrCodeInUse          = kindError(ErrConflict, "join code already in use")
	ErrAlreadyJoined      = kindError(ErrConflict, "player already in game")
	ErrAlreadySubmitted   = kindError(ErrConflict, "already submitted")
	ErrAlreadyVoted       = kindError(ErrConflict, "already voted")
	ErrSelfVote           = kindError(ErrConflict, "cannot vote for own submission")
	ErrNothingToSkip      = kindError(ErrConflict, "no submission left to skip")
	ErrSessionFull        = kindError(ErrCapacity, "game is full")
	ErrSessionNotFound    = kindError(ErrNotFound, "game not found")
	ErrPlayerNotFound     = kindError(ErrNotFound, "player not found")
	ErrVoterNotFound      = kindError(ErrNotFound, "voter not found")
	ErrSubmissionNotFound = kindError(ErrNotFound, "submission not found")
	ErrSnapshotNotFound   = kindError(ErrNotFound, "snapshot not found")
	ErrAlreadyStarted     = kindError(ErrInvalidTransition, "game has already started")
	ErrNotFinished        = kindError(ErrInvalidTransition, "game is not finished")
	ErrRoundMissing       = kindError(ErrInvalidTransition, "round is missing")
	ErrWrongPhase         = kindError(ErrInvalidTransition, "action not allowed in current phase")
	ErrStoreClosed        = kindError(ErrInvalidTransition, "session store is closed")
)

type gameError struct {
	kind error
	msg  string
}

func kindError(kind error, msg string) error {
	return &gameError{kind: kind, msg: msg}
}

func (e *gameError) Error() string { return e.msg }

func (e *gameError) Unwrap() error { return e.kind }
