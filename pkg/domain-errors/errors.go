// Package derrors provides coded domain errors. Services wrap infrastructure
// errors with a code so transports and operators can react without string
// matching. Sentinel errors for infrastructure facts live in
// pkg/platform/sentinel; this package is for domain-level classification.
package derrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal"

	// CodeIncompleteStamp marks a day whose end stamp is missing past the
	// grace window. Recoverable: the record persists as provisional and is
	// re-normalized once the stamp arrives or is corrected.
	CodeIncompleteStamp Code = "incomplete_stamp"

	// CodePeriodClosed marks a write attempt against a closed period.
	// Fatal for the attempt; requires an explicit operator reopen.
	CodePeriodClosed Code = "period_closed"

	// CodeNoApplicableRule marks a scope/date with no bracketing legal rule
	// while the company holds a negotiated agreement. A configuration error
	// surfaced to operators; detection for that scope is blocked, not
	// silently treated as compliant.
	CodeNoApplicableRule Code = "no_applicable_rule"
)

// Error is a coded error with an operator-facing message.
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

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error. A nil err yields
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	for errors.As(err, &domainErr) {
		if domainErr.Code == code {
			return true
		}
		err = domainErr.Err
		domainErr = nil
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error is not coded.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}
