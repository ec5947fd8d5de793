package service

import (
	"errors"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("Unauthorized")
	ErrForbidden    = errors.New("Forbidden")
	ErrNotFound     = errors.New("Not found")
	ErrGameFull     = errors.New("Game is full")
	ErrConflict     = errors.New("Conflict")
	ErrUnavailable  = errors.New("Service unavailable")
)

// ValidationError a rejected input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Error a classified failure with a caller-facing message
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func newError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

var (
	errGameNotFound = newError(ErrNotFound, "Game not found")
	errUserNotFound = newError(ErrNotFound, "User not found")
	errNotMember    = newError(ErrForbidden, "Not a member of this game")
	errNotDM        = newError(ErrForbidden, "Only the game's DM can do that")
	errDMRole       = newError(ErrForbidden, "Only users with the dm role can create games")
)
