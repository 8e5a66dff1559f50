package backend

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrSessionExpired   = errors.New("session expired")
	ErrBadCredentials   = errors.New("bad credentials")
)

// FetchError reports a failed read from the backend: a network error
// (Status 0) or a non-2xx response.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SubmissionError reports a rejected write, typically a 4xx with the
// backend's "detail" message.
type SubmissionError struct {
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("backend %s rejected", e.Op)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SubmissionError) Unwrap() error { return e.Err }
