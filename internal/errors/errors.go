package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies a failure so callers can tell "not there" from "broken"
type Code string

const (
	ErrNotFound     Code = "NOT_FOUND"
	ErrInvalidInput Code = "INVALID_INPUT"
	ErrStorage      Code = "STORAGE"
	ErrEncoding     Code = "ENCODING"
	ErrDuplicate    Code = "DUPLICATE"
	ErrUnavailable  Code = "UNAVAILABLE"
)

// Error is a coded error. Err, when set, is the underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewNotFound reports a missing record
func NewNotFound(id int64) *Error {
	return &Error{Code: ErrNotFound, Message: fmt.Sprintf("record %d not found", id)}
}

// NewInvalidInput reports input rejected before it reached storage
func NewInvalidInput(msg string) *Error {
	return &Error{Code: ErrInvalidInput, Message: msg}
}

// NewStorage wraps a storage-layer failure
func NewStorage(op string, err error) *Error {
	return &Error{Code: ErrStorage, Message: op, Err: err}
}

// NewEncoding wraps an image decode/encode failure
func NewEncoding(op string, err error) *Error {
	return &Error{Code: ErrEncoding, Message: op, Err: err}
}

// NewDuplicate reports content already present in history
func NewDuplicate(hash string) *Error {
	return &Error{Code: ErrDuplicate, Message: fmt.Sprintf("content %s already captured", hash)}
}

// NewUnavailable reports a collaborator that cannot be reached
func NewUnavailable(msg string, err error) *Error {
	return &Error{Code: ErrUnavailable, Message: msg, Err: err}
}

// Is checks whether err, or anything it wraps, is an Error with the given code
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the first Error in err's chain, or "" if none
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}
