package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidGameID      = errors.New("game id must be a non-negative integer")
	ErrInvalidPrice       = errors.New("price must be a non-negative number")
	ErrInvalidReleaseDate = errors.New("release date must look like \"Oct 21, 2008\"")
	ErrInvalidUsername    = errors.New("username must not be empty")
	ErrInvalidPassword    = errors.New("password hash must not be empty")
	ErrInvalidRating      = errors.New("rating must be between 0 and 5")
	ErrEmptyComment       = errors.New("comment must not be empty")
	ErrNilUser            = errors.New("user is required")
	ErrNilGame            = errors.New("game is required")
)

// ValidationError reports the field that rejected a value.
type ValidationError struct {
	Entity string
	Field  string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Entity, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(entity, field string, err error) error {
	return &ValidationError{Entity: entity, Field: field, Err: err}
}
