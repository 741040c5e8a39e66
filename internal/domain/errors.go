package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidCode = errors.New("invalid confirmation code")
	ErrThrottled   = errors.New("too many requests")
	ErrConflict    = errors.New("conflict")
)

// ConflictError 唯一约束冲突；Field 为空时只给出 detail
type ConflictError struct {
	Field string
	Msg   string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func Conflict(field, msg string) error { return &ConflictError{Field: field, Msg: msg} }
