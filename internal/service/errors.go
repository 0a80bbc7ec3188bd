package service

import "errors"

// Sentinel errors returned by the service layer. Handlers map these onto
// HTTP status codes.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrCandidateNotFound   = errors.New("candidate not found")
	ErrPositionNotFound    = errors.New("position not found")
	ErrItemNotFound        = errors.New("session item not found")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrInvalidSessionKind  = errors.New("invalid session kind")
	ErrInvalidSessionState = errors.New("session is not in a valid state for this operation")
	ErrSessionExpired      = errors.New("session has expired")
	ErrInvalidEventType    = errors.New("unknown event type")
	ErrNoItemsAvailable    = errors.New("no challenges available for this position")
	ErrMissingLanguage     = errors.New("language is required for coding submissions")
)
