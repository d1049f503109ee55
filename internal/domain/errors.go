package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrTransport  = errors.New("transport failure")
	ErrBusy       = errors.New("a job is already in progress")
	ErrNoHandle   = errors.New("upload handle is required")
	ErrCancelled  = errors.New("polling session cancelled")
)

// Messages shown to the user when the server gives nothing better.
const (
	MsgConnectionLost = "connection lost while checking progress"
	MsgSendFailed     = "sending emails failed"
)

// ValidationError is detected on the client before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type UploadError struct {
	HTTPStatus int
	Message    string
	Cause      error
}

func (e *UploadError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("upload: %s: %v", e.Message, e.Cause)
	case e.HTTPStatus != 0:
		return fmt.Sprintf("upload: %s (status %d)", e.Message, e.HTTPStatus)
	default:
		return "upload: " + e.Message
	}
}

func (e *UploadError) Unwrap() error { return e.Cause }

// SubmitError is returned when the server refuses to create a job or the
// request could not reach it (Network).
type SubmitError struct {
	HTTPStatus int
	Message    string
	Network    bool
	Cause      error
}

func (e *SubmitError) Error() string {
	if e.Network {
		return fmt.Sprintf("submit: network: %v", e.Cause)
	}
	return fmt.Sprintf("submit: %s (status %d)", e.Message, e.HTTPStatus)
}

func (e *SubmitError) Unwrap() error { return e.Cause }

// UserMessage is the text surfaced to the user.
func (e *SubmitError) UserMessage() string {
	switch {
	case e.Network:
		return "connection error: " + errString(e.Cause)
	case e.Message != "":
		return e.Message
	default:
		return fmt.Sprintf("Server error %d", e.HTTPStatus)
	}
}

type PollErrorKind int

const (
	PollNetwork PollErrorKind = iota
	PollServerFailed
)

func (k PollErrorKind) String() string {
	if k == PollServerFailed {
		return "server_failed"
	}
	return "network"
}

type PollError struct {
	Kind    PollErrorKind
	JobID   JobID
	Message string
	Cause   error
}

func (e *PollError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("poll %s: %s: %v", e.JobID, e.Kind, e.Cause)
	}
	return fmt.Sprintf("poll %s: %s: %s", e.JobID, e.Kind, e.Message)
}

func (e *PollError) Unwrap() error { return e.Cause }

// RequestError is a non-2xx answer from a synchronous endpoint.
type RequestError struct {
	Endpoint   string
	HTTPStatus int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Endpoint, e.Message, e.HTTPStatus)
}

func errString(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
