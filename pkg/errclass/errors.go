// Package errclass defines the stable error classes returned by VEM.
package errclass

import (
	"errors"
	"fmt"
)

// Error is a stable, machine-readable error class.
//
// Message is meant for humans and never carries filesystem paths or raw I/O
// text; the underlying cause, if any, is reachable through Unwrap.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithMessage returns a new Error with the same Code but a specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Err: e.Err}
}

// WithMessagef returns a new Error with a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...), Err: e.Err}
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// Detail returns the cause's text, or "" when there is none.
func (e *Error) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Error classes.
var (
	ErrNameInvalid       = &Error{Code: "E_NAME_INVALID"}
	ErrNotFound          = &Error{Code: "E_NOT_FOUND"}
	ErrAlreadyExists     = &Error{Code: "E_ALREADY_EXISTS"}
	ErrActiveEnvironment = &Error{Code: "E_ACTIVE_ENVIRONMENT"}
	ErrNoCurrent         = &Error{Code: "E_NO_CURRENT"}
	ErrStorage           = &Error{Code: "E_STORAGE"}
	ErrCodec             = &Error{Code: "E_CODEC"}
	ErrConfigInvalid     = &Error{Code: "E_CONFIG_INVALID"}
	ErrAuditChainBroken  = &Error{Code: "E_AUDIT_CHAIN_BROKEN"}
	ErrPathEscape        = &Error{Code: "E_PATH_ESCAPE"}
)

// Storage wraps a filesystem failure as ErrStorage with a human message.
func Storage(err error, format string, args ...any) *Error {
	return &Error{Code: ErrStorage.Code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Classify returns the *Error in err's chain, or nil if err is unclassified.
func Classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
