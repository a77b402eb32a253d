package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport covers network failures, TLS failures and timeouts
	ErrTransport = errors.New("transport error")
	// ErrAuth is returned for HTTP 401 and 403
	ErrAuth = errors.New("authentication rejected")
	// ErrNotFound is returned when the remote file or document does not exist
	ErrNotFound = errors.New("not found")
	// ErrProtocol is returned for malformed or unparseable response bodies
	ErrProtocol = errors.New("protocol error")
	// ErrUnsupported is returned for operations the backend cannot perform
	ErrUnsupported = errors.New("unsupported operation")
	// ErrUnexpectedStatus is returned for any other non-success HTTP status
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrMissingGistID is returned when a gist operation needs an id that is not configured
	ErrMissingGistID = errors.New("gist id required")
	// ErrInvalidPath is returned for logical paths the backend cannot address
	ErrInvalidPath = errors.New("invalid path")
	// ErrNotConnected is returned when an operation runs before Connect or after Close
	ErrNotConnected = errors.New("provider not connected")
)

// Error is the error type returned by every provider call
type Error struct {
	Op         string // connect, list, upload, download, create
	Path       string
	StatusCode int   // HTTP status, 0 when no response was received
	Kind       error // one of the Err* sentinels
	Err        error // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Kind.Error()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error kind so callers can use errors.Is(err, ErrAuth)
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// Transient reports whether retrying the same call may succeed
func (e *Error) Transient() bool {
	if e.Kind == ErrTransport {
		return true
	}
	switch e.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// KindForStatus maps an HTTP status to an error kind. Success statuses return nil.
func KindForStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrUnexpectedStatus
	}
}

// StatusError builds the error for a non-success HTTP response
func StatusError(op, path string, status int) error {
	kind := KindForStatus(status)
	if kind == nil {
		return nil
	}
	return &Error{Op: op, Path: path, StatusCode: status, Kind: kind}
}

// TransportError wraps a failure that happened before any response was received.
// Context cancellation is passed through unchanged so callers can detect it.
func TransportError(op, path string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &Error{Op: op, Path: path, Kind: ErrTransport, Err: err}
}

// ProtocolError wraps a response body that could not be decoded
func ProtocolError(op, path string, err error) error {
	return &Error{Op: op, Path: path, Kind: ErrProtocol, Err: err}
}

// StatusCode extracts the HTTP status from a provider error, 0 when absent
func StatusCode(err error) int {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.StatusCode
	}
	return 0
}

func errStateDetail(s State) error {
	return fmt.Errorf("state is %s", s)
}
