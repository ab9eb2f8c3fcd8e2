package feed

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode categorizes failures surfaced by the engine.
type ErrorCode string

const (
	// ErrCodeTransport indicates the Fetch Gateway failed.
	ErrCodeTransport ErrorCode = "TRANSPORT"

	// ErrCodeLogical indicates a non-retryable condition such as a missing
	// auth context. Retrying without an external state change will fail again.
	ErrCodeLogical ErrorCode = "LOGICAL"

	// ErrCodeStore indicates the Entity Store could not persist a merge.
	ErrCodeStore ErrorCode = "STORE"

	// ErrCodeCancelled indicates the operation was cancelled, usually because
	// the controller was torn down mid-fetch.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// ErrLogical marks gateway errors that must not be retried blindly.
// Gateways wrap it: fmt.Errorf("no account for %s: %w", domain, feed.ErrLogical).
var ErrLogical = errors.New("logical error")

// Error is the typed failure reported upward when a pagination flow fails.
type Error struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Op names the flow that failed ("reload", "load_older", "load_gap").
	Op string

	// Feed identifies the feed (Params.String()).
	Feed string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Feed != "" {
		return fmt.Sprintf("%s: %s (feed=%s): %v", e.Code, e.Op, e.Feed, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Classify wraps err into an *Error with a code derived from its chain.
// An err that already is an *Error is returned unchanged.
func Classify(op, feedName string, err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	code := ErrCodeTransport
	switch {
	case errors.Is(err, context.Canceled):
		code = ErrCodeCancelled
	case errors.Is(err, ErrLogical):
		code = ErrCodeLogical
	}
	return &Error{Code: code, Op: op, Feed: feedName, Err: err}
}

// StoreError wraps a store failure.
func StoreError(op, feedName string, err error) *Error {
	return &Error{Code: ErrCodeStore, Op: op, Feed: feedName, Err: err}
}

func hasCode(err error, code ErrorCode) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// IsTransport reports whether err is a gateway transport failure.
func IsTransport(err error) bool { return hasCode(err, ErrCodeTransport) }

// IsLogical reports whether err is a non-retryable logical failure.
func IsLogical(err error) bool { return hasCode(err, ErrCodeLogical) }

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool { return hasCode(err, ErrCodeCancelled) }

// IsRetryable reports whether retrying without external change may succeed.
func IsRetryable(err error) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Code == ErrCodeTransport || fe.Code == ErrCodeStore
}
