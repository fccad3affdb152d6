package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyExists     = errors.New("already exists")
	ErrDanglingReference = errors.New("dangling reference")
	ErrIO                = errors.New("io failure")
	ErrInvalid           = errors.New("invalid request")
)

// ItemError scopes a failure to one entity (a filename, reference or link)
// so batch operations can report it and keep going.
type ItemError struct {
	Op     string
	Entity string
	Kind   error
	Err    error
}

// Item builds an ItemError. err may be nil when kind says it all.
func Item(op, entity string, kind, err error) *ItemError {
	return &ItemError{Op: op, Entity: entity, Kind: kind, Err: err}
}

func (e *ItemError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Entity, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *ItemError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
